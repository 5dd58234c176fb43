// Package buildbot provides a client for the JSON status API of the build
// grid.
package buildbot

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/httpclt"
)

const loggerName = "grid_client"

// ErrNotFound is returned when a builder or build does not exist.
var ErrNotFound = httpclt.ErrNotFound

// Client retrieves builder and build status from the grid.
// All methods return a cqerr.RetryableError when an operation can be
// retried.
type Client struct {
	clt *httpclt.Client
}

// New returns a client for the grid master at serverURL.
func New(serverURL string) (*Client, error) {
	clt, err := httpclt.New(serverURL, nil, zap.L().Named(loggerName))
	if err != nil {
		return nil, err
	}

	return &Client{clt: clt}, nil
}

// Builder returns the status of a builder.
func (c *Client) Builder(ctx context.Context, builder string) (*Builder, error) {
	var res Builder

	err := c.clt.GetJSON(ctx, "json/builders/"+url.PathEscape(builder), nil, &res)
	if err != nil {
		return nil, fmt.Errorf("retrieving status of builder %s failed: %w", builder, err)
	}

	return &res, nil
}

// Build returns the status of a build.
func (c *Client) Build(ctx context.Context, builder string, number int) (*Build, error) {
	var res Build

	err := c.clt.GetJSON(
		ctx,
		"json/builders/"+url.PathEscape(builder)+"/builds/"+strconv.Itoa(number),
		nil,
		&res,
	)
	if err != nil {
		return nil, fmt.Errorf("retrieving build %s/%d failed: %w", builder, number, err)
	}

	if res.Number != number {
		return nil, fmt.Errorf("grid returned build %d, expected %d", res.Number, number)
	}

	if res.Builder == "" {
		res.Builder = builder
	}

	return &res, nil
}

// BuildURL returns the link to the web page of a build.
func (c *Client) BuildURL(builder string, number int) string {
	return c.clt.URL("builders/"+url.PathEscape(builder)+"/builds/"+strconv.Itoa(number), nil)
}
