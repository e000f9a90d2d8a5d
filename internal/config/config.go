package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/vutcrawl/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "vutcrawl"

	// DefaultBaseURL is the root of the public catalog site.
	DefaultBaseURL = "https://www.vut.cz"

	// DefaultMinDelay and DefaultMaxDelay bound the politeness delay drawn
	// before every request.
	DefaultMinDelay = 2 * time.Second
	DefaultMaxDelay = 5 * time.Second

	// DefaultTimeout applies to each HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts is the number of fetch attempts per node,
	// including the first one.
	DefaultMaxAttempts = 3

	// DefaultBackoffMultiplier scales the delay on every retry.
	DefaultBackoffMultiplier = 2.0

	// DefaultMaxBackoff caps a single retry wait.
	DefaultMaxBackoff = time.Minute

	// DefaultPersistEvery saves the state after every completed node.
	DefaultPersistEvery = 1

	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = "vutcrawl/1.0 (+https://github.com/nao1215/vutcrawl)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Sink names accepted in Config.Sinks.
const (
	SinkJSON   = "json"
	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
)

// Config holds all options of a crawl run. It is built from defaults, the
// optional config file and CLI flags, in that order of precedence.
type Config struct {
	// Locale selects the catalog language to crawl.
	Locale model.Locale

	// Resume continues from the persisted state when one exists.
	// When false the crawl starts fresh and overwrites the old state.
	Resume bool

	// MinDelay and MaxDelay bound the uniformly drawn delay before each
	// request. Both must be non-negative and MinDelay <= MaxDelay.
	MinDelay time.Duration
	MaxDelay time.Duration

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxAttempts is the number of fetch attempts per node.
	MaxAttempts int

	// BackoffMultiplier scales the retry delay per attempt.
	BackoffMultiplier float64

	// MaxBackoff caps a single retry delay.
	MaxBackoff time.Duration

	// PersistEvery is the number of completed nodes between state saves.
	// A final save always happens when the traversal ends.
	PersistEvery int

	// BaseURL is the root of the catalog site.
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// MaxBodySize is the maximum number of response bytes read.
	MaxBodySize int64

	// DataDir receives the sink output.
	DataDir string

	// StateDir holds the per-locale state snapshots.
	StateDir string

	// Sinks lists the enabled outputs (json, csv, sqlite).
	Sinks []string

	// Verbose enables debug logging.
	Verbose bool

	// LogFile, when set, receives a rotated copy of the log.
	LogFile string

	// JSONReport and MarkdownReport select the report format.
	// At most one may be set; the default is plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is the explicitly requested config file, if any.
	ConfigFilePath string
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Locale:            model.LocaleCS,
		Resume:            true,
		MinDelay:          DefaultMinDelay,
		MaxDelay:          DefaultMaxDelay,
		Timeout:           DefaultTimeout,
		MaxAttempts:       DefaultMaxAttempts,
		BackoffMultiplier: DefaultBackoffMultiplier,
		MaxBackoff:        DefaultMaxBackoff,
		PersistEvery:      DefaultPersistEvery,
		BaseURL:           DefaultBaseURL,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		DataDir:           XDGDataDir(),
		StateDir:          XDGStateDir(),
		Sinks:             []string{SinkJSON},
	}
}

// Clone returns a copy of c that shares no slices or maps with it.
func (c *Config) Clone() *Config {
	out := *c
	out.Sinks = append([]string(nil), c.Sinks...)
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	return &out
}

// XDGDataDir returns the default output directory.
// On Linux: ~/.local/share/vutcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGStateDir returns the default state directory.
// On Linux: ~/.local/state/vutcrawl
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// XDGConfigDir returns the XDG config directory.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ListingURL returns the programme listing page for locale.
func (c *Config) ListingURL(locale model.Locale) string {
	return strings.TrimRight(c.BaseURL, "/") + locale.ListingPath()
}

// Validate checks the configuration and returns the first problem found.
// It never touches the network.
func (c *Config) Validate() error {
	if !c.Locale.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLocale, c.Locale)
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return ErrNegativeDelay
	}
	if c.MinDelay > c.MaxDelay {
		return fmt.Errorf("%w: min %v > max %v", ErrInvalidDelayRange, c.MinDelay, c.MaxDelay)
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.BackoffMultiplier < 1 {
		return ErrInvalidBackoffMultiplier
	}
	if c.MaxBackoff < 0 {
		return ErrInvalidMaxBackoff
	}
	if c.PersistEvery < 1 {
		return ErrInvalidPersistEvery
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}
	if c.StateDir == "" {
		return ErrNoStateDir
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if len(c.Sinks) == 0 {
		return ErrNoSink
	}
	for _, s := range c.Sinks {
		switch s {
		case SinkJSON, SinkCSV, SinkSQLite:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownSink, s)
		}
	}
	if c.DataDir == "" {
		return ErrNoDataDir
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
	}
	return nil
}
