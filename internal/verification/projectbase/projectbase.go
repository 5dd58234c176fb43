// Package projectbase provides a verifier that ignores commits whose code
// review base URL does not belong to a served project.
package projectbase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"
	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
	"github.com/simplesurance/commitqueue/internal/verification"
)

const loggerName = "project_base_verifier"

const Name = "project_bases"

// relPathGroup is the name of the regexp subexpression that matches the
// relative path of the commit in the repository.
const relPathGroup = "relpath"

// Verifier marks commits as Ignored when their base URL is not matched by
// any of the configured regular expressions or when the optional jq filter
// does not evaluate to true for the commit.
//
// When the matching expression has a subexpression named "relpath" its match
// becomes the relative path of the commit, otherwise the part of the base
// URL following the match is used.
type Verifier struct {
	bases  []*regexp.Regexp
	filter *gojq.Query
	logger *zap.Logger
}

// New returns a verifier accepting base URLs matching one of the regular
// expressions in bases. The expressions are anchored at the start of the
// base URL. If jqFilter is not empty, it is evaluated on the JSON
// representation of the pending commit and must return a single boolean.
func New(bases []string, jqFilter string) (*Verifier, error) {
	if len(bases) == 0 {
		return nil, errors.New("no project base url expressions specified")
	}

	v := Verifier{logger: zap.L().Named(loggerName)}

	for _, b := range bases {
		if !strings.HasPrefix(b, "^") {
			b = "^" + b
		}

		re, err := regexp.Compile(b)
		if err != nil {
			return nil, fmt.Errorf("parsing project base expression %q failed: %w", b, err)
		}

		v.bases = append(v.bases, re)
	}

	if jqFilter != "" {
		query, err := gojq.Parse(jqFilter)
		if err != nil {
			return nil, fmt.Errorf("parsing jq filter %q failed: %w", jqFilter, err)
		}

		v.filter = query
	}

	return &v, nil
}

func (*Verifier) Name() string {
	return Name
}

func (v *Verifier) Verify(ctx context.Context, pc *verification.PendingCommit) error {
	logger := v.logger.With(pc.LogFields()...)

	relPath, ok := v.match(pc.BaseURL)
	if !ok {
		logger.Info(
			"base url is not served by the commit queue",
			zap.String("cq.base_url", pc.BaseURL),
			logfields.Event("project_base_mismatch"),
		)

		pc.Set(Name, verification.NewIgnored(fmt.Sprintf(
			"Project base URL %q is not supported by the commit queue.", pc.BaseURL,
		)))

		return nil
	}

	pc.RelPath = relPath

	if v.filter != nil {
		match, err := v.runFilter(ctx, pc)
		if err != nil {
			return err
		}

		if !match {
			logger.Info(
				"commit does not match the project filter",
				zap.Stringer("jq_filter", v.filter),
				logfields.Event("project_filter_mismatch"),
			)

			pc.Set(Name, verification.NewIgnored("The issue does not match the project filter of the commit queue."))

			return nil
		}
	}

	pc.Set(Name, verification.NewSucceeded())

	return nil
}

func (*Verifier) UpdateStatus(context.Context, []*verification.PendingCommit) error {
	return nil
}

func (v *Verifier) match(baseURL string) (string, bool) {
	for _, re := range v.bases {
		m := re.FindStringSubmatchIndex(baseURL)
		if m == nil {
			continue
		}

		if idx := re.SubexpIndex(relPathGroup); idx > 0 && m[2*idx] >= 0 {
			return strings.Trim(baseURL[m[2*idx]:m[2*idx+1]], "/"), true
		}

		return strings.Trim(baseURL[m[1]:], "/"), true
	}

	return "", false
}

func (v *Verifier) runFilter(ctx context.Context, pc *verification.PendingCommit) (bool, error) {
	b, err := json.Marshal(pc)
	if err != nil {
		return false, fmt.Errorf("encoding commit to json failed: %w", err)
	}

	var in any
	if err := json.Unmarshal(b, &in); err != nil {
		return false, fmt.Errorf("decoding commit json failed: %w", err)
	}

	iter := v.filter.RunWithContext(ctx, in)

	var results []any
	for {
		res, ok := iter.Next()
		if !ok {
			break
		}

		if err, isErr := res.(error); isErr {
			return false, fmt.Errorf("jq filter %q failed: %w", v.filter, err)
		}

		results = append(results, res)
	}

	if len(results) != 1 {
		return false, fmt.Errorf("jq filter %q returned %d results, expected 1", v.filter, len(results))
	}

	val, ok := results[0].(bool)
	if !ok {
		return false, fmt.Errorf("jq filter %q returned non-bool result: %+v (%T)", v.filter, results[0], results[0])
	}

	return val, nil
}
