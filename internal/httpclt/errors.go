package httpclt

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the server responds with 404.
var ErrNotFound = errors.New("not found")

type ErrorHTTPRequest struct {
	Body   []byte
	Status int
}

func (e *ErrorHTTPRequest) Error() string {
	return fmt.Sprintf("http request failed with StatusCode: %d, response: %q", e.Status, string(e.Body))
}

func (e *ErrorHTTPRequest) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}
