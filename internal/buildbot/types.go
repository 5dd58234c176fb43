package buildbot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Result codes of a build step.
const (
	ResultSuccess   = 0
	ResultWarnings  = 1
	ResultFailure   = 2
	ResultSkipped   = 3
	ResultException = 4
	ResultRetry     = 5
)

// Builder is the status of a builder.
type Builder struct {
	CachedBuilds  []int `json:"cachedBuilds"`
	CurrentBuilds []int `json:"currentBuilds"`
}

// IsRunning returns true if build is currently running on the builder.
func (b *Builder) IsRunning(build int) bool {
	for _, nr := range b.CurrentBuilds {
		if nr == build {
			return true
		}
	}

	return false
}

type SourceStamp struct {
	Revision string `json:"revision"`
}

type Step struct {
	Name       string          `json:"name"`
	Results    json.RawMessage `json:"results"`
	IsStarted  bool            `json:"isStarted"`
	IsFinished bool            `json:"isFinished"`
}

// Result returns the result code of the step.
// The result is encoded either as number or as [code, [text...]] list.
func (s *Step) Result() (int, error) {
	if len(s.Results) == 0 || string(s.Results) == "null" {
		return ResultSuccess, nil
	}

	var code int
	if err := json.Unmarshal(s.Results, &code); err == nil {
		return code, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(s.Results, &list); err != nil {
		return 0, fmt.Errorf("step %s: unsupported results value: %s", s.Name, string(s.Results))
	}

	if len(list) == 0 || string(list[0]) == "null" {
		return ResultSuccess, nil
	}

	if err := json.Unmarshal(list[0], &code); err != nil {
		return 0, fmt.Errorf("step %s: unsupported results code: %s", s.Name, string(list[0]))
	}

	return code, nil
}

// Build is the status of a single build.
type Build struct {
	Builder     string      `json:"builderName"`
	Number      int         `json:"number"`
	Steps       []Step      `json:"steps"`
	SourceStamp SourceStamp `json:"sourceStamp"`
	Blame       []string    `json:"blame"`
	Properties  [][]any     `json:"properties"`
	Times       []*float64  `json:"times"`
}

// Revision returns the source revision the build ran against.
func (b *Build) Revision() string {
	if rev := b.SourceStamp.Revision; rev != "" {
		return rev
	}

	if v, ok := b.Property("got_revision"); ok {
		return fmt.Sprint(v)
	}

	return ""
}

// Property returns the value of a build property.
func (b *Build) Property(name string) (any, bool) {
	for _, p := range b.Properties {
		if len(p) < 2 {
			continue
		}

		if n, ok := p[0].(string); ok && n == name {
			return p[1], true
		}
	}

	return nil, false
}

// Parent returns the builder name and build number of the build that
// triggered this build. ok is false when the build was not triggered by
// another build.
func (b *Build) Parent() (builder string, number int, ok bool) {
	pb, exist := b.Property("parent_buildername")
	if !exist {
		return "", 0, false
	}

	builder, _ = pb.(string)
	if builder == "" {
		return "", 0, false
	}

	pn, exist := b.Property("parent_buildnumber")
	if !exist {
		return "", 0, false
	}

	switch v := pn.(type) {
	case float64:
		return builder, int(v), true
	case string:
		nr, err := strconv.Atoi(v)
		if err != nil {
			return "", 0, false
		}
		return builder, nr, true
	}

	return "", 0, false
}

// StartTime returns when the build started, the zero value if unknown.
func (b *Build) StartTime() time.Time {
	return b.time(0)
}

// EndTime returns when the build finished, the zero value if it is still
// running or unknown.
func (b *Build) EndTime() time.Time {
	return b.time(1)
}

func (b *Build) time(idx int) time.Time {
	if len(b.Times) <= idx || b.Times[idx] == nil {
		return time.Time{}
	}

	secs := *b.Times[idx]
	return time.Unix(0, int64(secs*float64(time.Second))).UTC()
}

// StepResults returns the names of the finished steps, split into passed and
// failed ones. Skipped and retried steps are part of neither. A step that
// ran multiple times counts as passed if one of the runs passed.
func (b *Build) StepResults() (passed, failed []string, err error) {
	passedSet := map[string]struct{}{}
	failedSet := map[string]struct{}{}

	for i := range b.Steps {
		step := &b.Steps[i]
		if !step.IsFinished {
			continue
		}

		code, err := step.Result()
		if err != nil {
			return nil, nil, err
		}

		switch code {
		case ResultSuccess, ResultWarnings:
			passedSet[step.Name] = struct{}{}
		case ResultFailure, ResultException:
			failedSet[step.Name] = struct{}{}
		}
	}

	for i := range b.Steps {
		name := b.Steps[i].Name

		if _, exist := passedSet[name]; exist {
			passed = appendOnce(passed, name)
			continue
		}

		if _, exist := failedSet[name]; exist {
			failed = appendOnce(failed, name)
		}
	}

	return passed, failed, nil
}

func appendOnce(sl []string, s string) []string {
	for _, e := range sl {
		if e == s {
			return sl
		}
	}

	return append(sl, s)
}
