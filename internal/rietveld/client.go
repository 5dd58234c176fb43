// Package rietveld provides a client for the code review service.
package rietveld

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/commitqueue/internal/httpclt"
	"github.com/simplesurance/commitqueue/internal/logfields"
)

const loggerName = "review_client"

// ErrNotFound is returned when an issue or patchset does not exist (anymore).
var ErrNotFound = httpclt.ErrNotFound

// searchLimit is the maximum number of issues returned by the search
// endpoint per request.
const searchLimit = 1000

// Client is a client for the JSON API of the code review service.
// All methods return a cqerr.RetryableError when an operation can be
// retried.
type Client struct {
	clt    *httpclt.Client
	logger *zap.Logger
}

// New returns a new client for the code review server at serverURL.
// When apiToken is not empty it is sent as OAuth2 bearer token.
func New(serverURL, apiToken string) (*Client, error) {
	logger := zap.L().Named(loggerName)

	clt, err := httpclt.New(serverURL, newHTTPClient(apiToken), logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		clt:    clt,
		logger: logger,
	}, nil
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: httpclt.DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = httpclt.DefaultHTTPClientTimeout

	return tc
}

// ServerURL returns the URL of the code review server.
func (c *Client) ServerURL() string {
	return c.clt.BaseURL()
}

// IssueURL returns the URL of the issue in the web interface.
func (c *Client) IssueURL(issue int) string {
	return c.clt.URL(strconv.Itoa(issue), nil)
}

// PendingIssues returns the ids of all open issues that have the commit
// flag set, in ascending order.
func (c *Client) PendingIssues(ctx context.Context) ([]int, error) {
	var res []int
	cursor := ""

	for {
		query := url.Values{
			"format":    []string{"json"},
			"closed":    []string{"3"},
			"commit":    []string{"2"},
			"limit":     []string{strconv.Itoa(searchLimit)},
			"keys_only": []string{"True"},
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var page struct {
			Results []int  `json:"results"`
			Cursor  string `json:"cursor"`
		}

		if err := c.clt.GetJSON(ctx, "search", query, &page); err != nil {
			return nil, fmt.Errorf("searching pending issues failed: %w", err)
		}

		res = append(res, page.Results...)

		if len(page.Results) < searchLimit || page.Cursor == "" || page.Cursor == cursor {
			break
		}

		cursor = page.Cursor
	}

	sort.Ints(res)

	return res, nil
}

// Issue returns the issue with its messages.
// If the issue does not exist ErrNotFound is returned.
func (c *Client) Issue(ctx context.Context, issue int) (*Issue, error) {
	var res Issue

	err := c.clt.GetJSON(ctx, "api/"+strconv.Itoa(issue), url.Values{"messages": []string{"true"}}, &res)
	if err != nil {
		return nil, fmt.Errorf("retrieving issue %d failed: %w", issue, err)
	}

	if res.Issue != issue {
		return nil, fmt.Errorf("server returned issue %d, expected %d", res.Issue, issue)
	}

	return &res, nil
}

// TryJobResults returns the try job results that were recorded for a
// patchset.
func (c *Client) TryJobResults(ctx context.Context, issue, patchset int) ([]TryJobResult, error) {
	var res patchsetInfo

	err := c.clt.GetJSON(ctx, fmt.Sprintf("api/%d/%d", issue, patchset), nil, &res)
	if err != nil {
		return nil, fmt.Errorf("retrieving patchset %d of issue %d failed: %w", patchset, issue, err)
	}

	return res.TryJobResults, nil
}

// Patch returns the raw diff of a patchset.
func (c *Client) Patch(ctx context.Context, issue, patchset int) ([]byte, error) {
	b, err := c.clt.Get(ctx, fmt.Sprintf("download/issue%d_%d.diff", issue, patchset), nil)
	if err != nil {
		return nil, fmt.Errorf("downloading diff of patchset %d of issue %d failed: %w", patchset, issue, err)
	}

	return b, nil
}

// TriggerTryJobs asks the server to schedule try jobs on the build grid.
// builders maps the builder name to the steps that should run on it.
func (c *Client) TriggerTryJobs(
	ctx context.Context,
	issue, patchset int,
	reason string,
	clobber bool,
	revision string,
	builders map[string][]string,
) error {
	buildersJSON, err := json.Marshal(builders)
	if err != nil {
		return err
	}

	form := url.Values{
		"reason":   []string{reason},
		"clobber":  []string{strconv.FormatBool(clobber)},
		"revision": []string{revision},
		"builders": []string{string(buildersJSON)},
	}

	_, err = c.clt.PostForm(ctx, fmt.Sprintf("%d/try/%d", issue, patchset), form)
	if err != nil {
		return fmt.Errorf("triggering try jobs for patchset %d of issue %d failed: %w", patchset, issue, err)
	}

	c.logger.Debug(
		"try jobs triggered",
		logfields.Event("try_jobs_triggered"),
		logfields.Issue(issue),
		logfields.Patchset(patchset),
		zap.Any("builders", builders),
	)

	return nil
}

// SetFlag sets a flag of a patchset, e.g. the commit checkbox.
func (c *Client) SetFlag(ctx context.Context, issue, patchset int, flag string, value bool) error {
	form := url.Values{
		"last_patchset": []string{strconv.Itoa(patchset)},
		flag:            []string{strconv.FormatBool(value)},
	}

	_, err := c.clt.PostForm(ctx, strconv.Itoa(issue)+"/edit_flags", form)
	if err != nil {
		return fmt.Errorf("setting flag %q of issue %d failed: %w", flag, issue, err)
	}

	return nil
}

// AddComment posts a message to an issue.
func (c *Client) AddComment(ctx context.Context, issue int, message string) error {
	form := url.Values{
		"message":      []string{message},
		"message_only": []string{"True"},
		"send_mail":    []string{"True"},
		"no_redirect":  []string{"True"},
	}

	_, err := c.clt.PostForm(ctx, strconv.Itoa(issue)+"/publish", form)
	if err != nil {
		return fmt.Errorf("adding comment to issue %d failed: %w", issue, err)
	}

	return nil
}

// UpdateDescription replaces the description of an issue.
func (c *Client) UpdateDescription(ctx context.Context, issue int, description string) error {
	form := url.Values{"description": []string{description}}

	_, err := c.clt.PostForm(ctx, strconv.Itoa(issue)+"/description", form)
	if err != nil {
		return fmt.Errorf("updating description of issue %d failed: %w", issue, err)
	}

	return nil
}

// CloseIssue closes an issue.
func (c *Client) CloseIssue(ctx context.Context, issue int) error {
	_, err := c.clt.PostForm(ctx, strconv.Itoa(issue)+"/close", url.Values{})
	if err != nil {
		return fmt.Errorf("closing issue %d failed: %w", issue, err)
	}

	return nil
}

// IsNotFound returns true if err was caused by a 404 response.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
