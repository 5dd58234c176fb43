package status

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/httpclt"
)

// HTTPSink posts events JSON encoded to an URL.
type HTTPSink struct {
	url      string
	user     string
	password string
	headers  map[string]string
	clt      *httpclt.Client
}

func NewHTTPSink(url, user, password string, headers map[string]string) (*HTTPSink, error) {
	clt, err := httpclt.New(
		url,
		&http.Client{Timeout: httpclt.DefaultHTTPClientTimeout},
		zap.L().Named(loggerName).Named("http_sink"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPSink{
		url:      url,
		user:     user,
		password: password,
		headers:  headers,
		clt:      clt,
	}, nil
}

func (*HTTPSink) Name() string {
	return "http"
}

func (s *HTTPSink) Send(ctx context.Context, ev *Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, err = s.clt.DoRequest(ctx, http.MethodPost, s.url, bytes.NewReader(body), func(req *http.Request) {
		req.Header.Set("Content-Type", "application/json")

		if s.user != "" || s.password != "" {
			req.SetBasicAuth(s.user, s.password)
		}

		for k, v := range s.headers {
			req.Header.Add(k, v)
		}
	})

	return err
}
