package treestatus

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/httpclt"
)

// Status is the current state of the tree as reported by the tree status
// service.
type Status struct {
	Message         string `json:"message"`
	GeneralState    string `json:"general_state"`
	CanCommitFreely bool   `json:"can_commit_freely"`
}

func (s *Status) IsOpen() bool {
	return s.CanCommitFreely
}

// Client queries the tree status service.
type Client struct {
	clt *httpclt.Client
}

func NewClient(serverURL string) (*Client, error) {
	clt, err := httpclt.New(
		serverURL,
		&http.Client{Timeout: httpclt.DefaultHTTPClientTimeout},
		zap.L().Named(loggerName).Named("client"),
	)
	if err != nil {
		return nil, err
	}

	return &Client{clt: clt}, nil
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status

	if err := c.clt.GetJSON(ctx, "current", url.Values{"format": []string{"json"}}, &st); err != nil {
		return nil, err
	}

	return &st, nil
}
