// Package httpclt provides a small JSON-over-HTTP client that is shared by
// the code review and build grid clients.
package httpclt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/cqerr"
	"github.com/simplesurance/commitqueue/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

// maxBodySize limits how much of a response is read.
const maxBodySize = 32 * 1024 * 1024

// Client sends requests relative to a base URL.
// All methods return a cqerr.RetryableError when the operation can be
// retried, that is the case for transport errors, 5xx responses and 429
// responses.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	logger  *zap.Logger
}

// New returns a client for the server at baseURL.
// If httpClient is nil, a client with a timeout of DefaultHTTPClientTimeout
// is used.
func New(baseURL string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url failed: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPClientTimeout}
	}

	return &Client{
		baseURL: u,
		client:  httpClient,
		logger:  logger,
	}, nil
}

// BaseURL returns the URL all request paths are relative to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// URL returns the absolute URL for path and query.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// GetJSON sends a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.Do(ctx, http.MethodGet, c.URL(path, query), nil, "")
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response of %s failed: %w", path, err)
	}

	return nil
}

// Get sends a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, c.URL(path, query), nil, "")
}

// PostForm sends a form-encoded POST request.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.Do(
		ctx,
		http.MethodPost,
		c.URL(path, nil),
		strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded",
	)
}

// PostJSON sends v JSON-encoded in a POST request.
func (c *Client) PostJSON(ctx context.Context, path string, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, http.MethodPost, c.URL(path, nil), bytes.NewReader(b), "application/json")
}

// Do sends a request to the absolute URL u.
func (c *Client) Do(ctx context.Context, method, u string, body io.Reader, contentType string) ([]byte, error) {
	return c.DoRequest(ctx, method, u, body, func(req *http.Request) {
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
	})
}

// DoRequest sends a request to the absolute URL u, prepare is called to
// modify the request before it is sent.
func (c *Client) DoRequest(ctx context.Context, method, u string, body io.Reader, prepare func(*http.Request)) ([]byte, error) {
	logger := c.logger.With(zap.String("http_url", u), zap.String("http_method", method))

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}

	if prepare != nil {
		prepare(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, cqerr.Retryable(err)
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		logger.Warn(
			"reading http response body failed",
			logfields.Event("http_reading_response_body_failed"),
			zap.Int("http_response_code", resp.StatusCode),
			zap.Error(err),
		)

		return nil, cqerr.Retryable(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		logger.Debug("http request sent", logfields.Event("http_request_sent"))
		return respBody, nil
	}

	reqErr := &ErrorHTTPRequest{Body: respBody, Status: resp.StatusCode}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, cqerr.RetryableAfter(reqErr, retryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return nil, cqerr.Retryable(reqErr)
	}

	return nil, reqErr
}

func retryAfter(hdr string) time.Time {
	if hdr == "" {
		return time.Time{}
	}

	if secs, err := strconv.Atoi(hdr); err == nil {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}

	if t, err := http.ParseTime(hdr); err == nil {
		return t
	}

	return time.Time{}
}
