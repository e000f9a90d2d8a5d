package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/vutcrawl/internal/model"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".vutcrawl"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the structure of the .vutcrawl configuration file.
// Zero values leave the corresponding Config field unchanged.
type File struct {
	Locale       string            `yaml:"locale,omitempty"`
	Resume       *bool             `yaml:"resume,omitempty"`
	Delay        DelayConfig       `yaml:"delay,omitempty"`
	Timeout      time.Duration     `yaml:"timeout,omitempty"`
	Attempts     int               `yaml:"attempts,omitempty"`
	Backoff      BackoffConfig     `yaml:"backoff,omitempty"`
	PersistEvery int               `yaml:"persistEvery,omitempty"`
	BaseURL      string            `yaml:"baseURL,omitempty"`
	UserAgent    string            `yaml:"userAgent,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	DataDir      string            `yaml:"dataDir,omitempty"`
	StateDir     string            `yaml:"stateDir,omitempty"`
	Sinks        []string          `yaml:"sinks,omitempty"`
	LogFile      string            `yaml:"logFile,omitempty"`
}

// DelayConfig is the politeness delay range.
type DelayConfig struct {
	Min *time.Duration `yaml:"min,omitempty"`
	Max *time.Duration `yaml:"max,omitempty"`
}

// BackoffConfig tunes the retry backoff.
type BackoffConfig struct {
	Multiplier float64       `yaml:"multiplier,omitempty"`
	Max        time.Duration `yaml:"max,omitempty"`
}

// LoadConfigFile reads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cf, nil
}

// Apply copies the values set in the file onto cfg.
func (f *File) Apply(cfg *Config) error {
	if f.Locale != "" {
		locale, err := model.ParseLocale(f.Locale)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidLocale, f.Locale)
		}
		cfg.Locale = locale
	}
	if f.Resume != nil {
		cfg.Resume = *f.Resume
	}
	if f.Delay.Min != nil {
		cfg.MinDelay = *f.Delay.Min
	}
	if f.Delay.Max != nil {
		cfg.MaxDelay = *f.Delay.Max
	}
	if f.Timeout != 0 {
		cfg.Timeout = f.Timeout
	}
	if f.Attempts != 0 {
		cfg.MaxAttempts = f.Attempts
	}
	if f.Backoff.Multiplier != 0 {
		cfg.BackoffMultiplier = f.Backoff.Multiplier
	}
	if f.Backoff.Max != 0 {
		cfg.MaxBackoff = f.Backoff.Max
	}
	if f.PersistEvery != 0 {
		cfg.PersistEvery = f.PersistEvery
	}
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if len(f.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			cfg.Headers[k] = v
		}
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.StateDir != "" {
		cfg.StateDir = f.StateDir
	}
	if len(f.Sinks) > 0 {
		cfg.Sinks = append([]string(nil), f.Sinks...)
	}
	if f.LogFile != "" {
		cfg.LogFile = f.LogFile
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .vutcrawl in the current directory
// 3. Look for .vutcrawl in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
