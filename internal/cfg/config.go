// Package cfg provides the configuration of the commit queue daemon.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
)

const DefConfigFile = "/etc/commitqueue/config.toml"

const (
	defHTTPListenAddr    = ":8085"
	defLogFormat         = "logfmt"
	defLogTimeKey        = "time_iso8601"
	defLogLevel          = "info"
	defStateFile         = "/var/lib/commitqueue/state.json"
	defPollInterval      = time.Minute
	defTriggerReason     = "CQ"
	defMaxBurst          = 4
	defBurstDelay        = 10 * time.Minute
	defMaxTries          = 3
	defPropagationDelay  = 3 * time.Hour
	defPendingTimeout    = 30 * 24 * time.Hour
	defMaxRevisionsBack  = 100
	defCheckoutRemoteRef = "main"
)

type Config struct {
	HTTPListenAddr string `toml:"http_server_listen_addr"`
	LogFormat      string `toml:"log_format"`
	LogTimeKey     string `toml:"log_time_key"`
	LogLevel       string `toml:"log_level"`
	StateFile      string `toml:"state_file"`
	PollInterval   string `toml:"poll_interval"`
	DryRun         bool   `toml:"dry_run"`

	Review     Review     `toml:"review"`
	Grid       Grid       `toml:"grid"`
	Checkout   Checkout   `toml:"checkout"`
	Project    Project    `toml:"project"`
	Reviewers  Reviewers  `toml:"reviewers"`
	TreeStatus TreeStatus `toml:"tree_status"`
	Commit     Commit     `toml:"commit"`
	TryJobs    TryJobs    `toml:"tryjobs"`
	Status     Status     `toml:"status"`

	pollInterval time.Duration
}

// Review is the code review service.
type Review struct {
	URL      string `toml:"url"`
	APIToken string `toml:"api_token"`
}

// Grid is the build status service.
type Grid struct {
	URL string `toml:"url"`
}

type Checkout struct {
	URL                string `toml:"url"`
	Branch             string `toml:"branch"`
	Path               string `toml:"path"`
	Username           string `toml:"username"`
	Password           string `toml:"password"`
	CommitterName      string `toml:"committer_name"`
	CommitterEmail     string `toml:"committer_email"`
	MaxRevisionsBehind int    `toml:"max_revisions_behind"`
}

type Project struct {
	// BaseURLs are regular expressions matching the base URLs of issues
	// that are handled.
	BaseURLs []string `toml:"base_urls"`
	// FilterQuery is an optional jq query that is evaluated on the
	// pending commit.
	FilterQuery string `toml:"filter_query"`
}

type Reviewers struct {
	Committers []string `toml:"committers"`
}

// TreeStatus is the tree status service. The verifier is disabled if URL is
// empty.
type TreeStatus struct {
	URL           string `toml:"url"`
	MaxClosedWait string `toml:"max_closed_wait"`

	maxClosedWait time.Duration
}

// Commit configures the commit burst limiter.
type Commit struct {
	MaxBurst   int    `toml:"max_burst"`
	BurstDelay string `toml:"burst_delay"`

	burstDelay time.Duration
}

type TryJobs struct {
	PolicyFile       string `toml:"policy_file"`
	Reason           string `toml:"trigger_reason"`
	Clobber          bool   `toml:"clobber"`
	MaxTries         int    `toml:"max_tries"`
	PropagationDelay string `toml:"propagation_delay"`
	PendingTimeout   string `toml:"pending_timeout"`

	propagationDelay time.Duration
	pendingTimeout   time.Duration
}

// Status configures the sinks status events are sent to.
type Status struct {
	Log      bool         `toml:"log"`
	HTTP     HTTPSink     `toml:"http"`
	Postgres PostgresSink `toml:"postgres"`
	PubSub   PubSubSink   `toml:"pubsub"`
}

// HTTPSink is enabled when URL is not empty.
type HTTPSink struct {
	URL      string `toml:"url"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	// Headers are additional HTTP headers in the format "Name: Value".
	Headers []string `toml:"headers"`
}

// PostgresSink is enabled when DSN is not empty.
type PostgresSink struct {
	DSN string `toml:"dsn"`
}

// PubSubSink is enabled when Topic is not empty.
type PubSubSink struct {
	Project string `toml:"project"`
	Topic   string `toml:"topic"`
}

func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}

func parseDuration(name, val string, def time.Duration) (time.Duration, error) {
	if val == "" {
		return def, nil
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}

	if d < 0 {
		return 0, fmt.Errorf("%s: duration must not be negative", name)
	}

	return d, nil
}

// Validate checks the configuration for missing and invalid values and sets
// defaults for unset optional ones.
func (c *Config) Validate() error {
	var err error

	setDefault(&c.HTTPListenAddr, defHTTPListenAddr)
	setDefault(&c.LogFormat, defLogFormat)
	setDefault(&c.LogTimeKey, defLogTimeKey)
	setDefault(&c.LogLevel, defLogLevel)
	setDefault(&c.StateFile, defStateFile)
	setDefault(&c.Checkout.Branch, defCheckoutRemoteRef)
	setDefault(&c.TryJobs.Reason, defTriggerReason)

	switch c.LogFormat {
	case "logfmt", "console", "json":
	default:
		return fmt.Errorf("log_format: unsupported value %q", c.LogFormat)
	}

	if c.pollInterval, err = parseDuration("poll_interval", c.PollInterval, defPollInterval); err != nil {
		return err
	}

	if c.pollInterval == 0 {
		return errors.New("poll_interval: must be greater than 0")
	}

	if c.Review.URL == "" {
		return errors.New("review.url: missing")
	}

	if c.Grid.URL == "" {
		return errors.New("grid.url: missing")
	}

	if c.Checkout.URL == "" {
		return errors.New("checkout.url: missing")
	}

	if c.Checkout.Path == "" {
		return errors.New("checkout.path: missing")
	}

	if c.Checkout.MaxRevisionsBehind == 0 {
		c.Checkout.MaxRevisionsBehind = defMaxRevisionsBack
	}

	if len(c.Project.BaseURLs) == 0 {
		return errors.New("project.base_urls: missing")
	}

	if c.TreeStatus.maxClosedWait, err = parseDuration("tree_status.max_closed_wait", c.TreeStatus.MaxClosedWait, 0); err != nil {
		return err
	}

	if c.Commit.MaxBurst == 0 {
		c.Commit.MaxBurst = defMaxBurst
	}

	if c.Commit.burstDelay, err = parseDuration("commit.burst_delay", c.Commit.BurstDelay, defBurstDelay); err != nil {
		return err
	}

	if c.TryJobs.PolicyFile == "" {
		return errors.New("tryjobs.policy_file: missing")
	}

	if c.TryJobs.MaxTries == 0 {
		c.TryJobs.MaxTries = defMaxTries
	}

	if c.TryJobs.propagationDelay, err = parseDuration("tryjobs.propagation_delay", c.TryJobs.PropagationDelay, defPropagationDelay); err != nil {
		return err
	}

	if c.TryJobs.pendingTimeout, err = parseDuration("tryjobs.pending_timeout", c.TryJobs.PendingTimeout, defPendingTimeout); err != nil {
		return err
	}

	if _, err := c.Status.HTTP.ParsedHeaders(); err != nil {
		return fmt.Errorf("status.http.headers: %w", err)
	}

	if c.Status.PubSub.Topic != "" && c.Status.PubSub.Project == "" {
		return errors.New("status.pubsub.project: missing")
	}

	return nil
}

func setDefault(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

// PollIntervalDuration returns the parsed poll interval, Validate must
// have been called before.
func (c *Config) PollIntervalDuration() time.Duration {
	return c.pollInterval
}

func (t *TreeStatus) MaxClosedWaitDuration() time.Duration {
	return t.maxClosedWait
}

func (c *Commit) BurstDelayDuration() time.Duration {
	return c.burstDelay
}

func (t *TryJobs) PropagationDelayDuration() time.Duration {
	return t.propagationDelay
}

func (t *TryJobs) PendingTimeoutDuration() time.Duration {
	return t.pendingTimeout
}

// ParsedHeaders returns Headers as map.
func (h *HTTPSink) ParsedHeaders() (map[string]string, error) {
	res := make(map[string]string, len(h.Headers))

	for _, hdr := range h.Headers {
		name, val, found := strings.Cut(hdr, ":")
		if !found || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expecting format 'Name: Value'", hdr)
		}

		res[strings.TrimSpace(name)] = strings.TrimSpace(val)
	}

	return res, nil
}
