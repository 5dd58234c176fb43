package httpclt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/commitqueue/internal/cqerr"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	clt, err := New(srv.URL+"/", nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	return clt
}

func TestGetJSON(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/123", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("messages"))
		_, _ = w.Write([]byte(`{"issue": 123}`))
	})

	var res struct {
		Issue int `json:"issue"`
	}

	err := clt.GetJSON(context.Background(), "api/123", url.Values{"messages": []string{"true"}}, &res)
	require.NoError(t, err)
	assert.Equal(t, 123, res.Issue)
}

func TestServerErrorIsRetryable(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := clt.Get(context.Background(), "/", nil)
	require.Error(t, err)
	assert.True(t, cqerr.IsRetryable(err))
}

func TestNotFound(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := clt.Get(context.Background(), "/api/1", nil)
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, cqerr.IsRetryable(err))
}

func TestRateLimitRetryAfter(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := clt.Get(context.Background(), "/", nil)
	require.Error(t, err)

	var retryErr *cqerr.RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.False(t, retryErr.After.IsZero())
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("codereview", nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}
