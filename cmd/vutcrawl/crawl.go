package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/vutcrawl/internal/config"
	"github.com/nao1215/vutcrawl/internal/crawler"
	"github.com/nao1215/vutcrawl/internal/database"
	"github.com/nao1215/vutcrawl/internal/engine"
	applog "github.com/nao1215/vutcrawl/internal/log"
	"github.com/nao1215/vutcrawl/internal/model"
	"github.com/nao1215/vutcrawl/internal/report"
	"github.com/nao1215/vutcrawl/internal/sink"
	"github.com/nao1215/vutcrawl/internal/state"
)

// localeAll selects every locale in crawl order.
const localeAll = "all"

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the study catalog",
		Long: `Crawl walks the catalog breadth-first: the programme listing, every
programme, every specialization and finally every subject of the study plans.

Each fetched page is written to the enabled sinks and recorded in the state
file of its locale. A later run resumes from that state unless --no-resume is
given. Nodes that failed stay pending and are retried by the next run.

Exit status: 0 complete, 1 some nodes failed, 2 configuration error,
3 state or sink error, 130 interrupted.

Examples:
  # Crawl the Czech catalog into JSON files
  vutcrawl crawl

  # Crawl both locales, also into SQLite
  vutcrawl crawl --locale all --sink json --sink sqlite

  # Start over, ignoring the saved progress
  vutcrawl crawl --no-resume

  # Slower crawl with a Markdown report
  vutcrawl crawl --delay-min 5s --delay-max 10s --markdown -o report.md`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("locale", "l", string(model.LocaleCS),
		"Catalog locale to crawl: cs, en or all")
	cmd.Flags().Bool("no-resume", false,
		"Ignore saved progress and start a fresh crawl")
	cmd.Flags().Duration("delay-min", config.DefaultMinDelay,
		"Minimum delay between requests")
	cmd.Flags().Duration("delay-max", config.DefaultMaxDelay,
		"Maximum delay between requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("attempts", "a", config.DefaultMaxAttempts,
		"Attempts per page before it is reported as failed")
	cmd.Flags().String("base-url", config.DefaultBaseURL,
		"Catalog site base URL")
	cmd.Flags().String("data-dir", "",
		"Directory for crawled records (default: XDG data directory)")
	cmd.Flags().String("state-dir", "",
		"Directory for crawl state (default: XDG state directory)")
	cmd.Flags().StringSlice("sink", []string{config.SinkJSON},
		"Record outputs: json, csv, sqlite (repeatable)")
	cmd.Flags().String("log-file", "",
		"Also write JSON logs to this rotated file")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .vutcrawl in current or home directory)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, locales, err := buildConfig(cmd)
	if err != nil {
		return &exitError{code: engine.ExitConfig, err: err}
	}

	for _, l := range locales {
		c := cfg.Clone()
		c.Locale = l
		if err := c.Validate(); err != nil {
			return &exitError{code: engine.ExitConfig, err: fmt.Errorf("configuration error: %w", err)}
		}
	}

	logger, closer, err := applog.New(applog.Options{
		Writer:  cmd.ErrOrStderr(),
		Verbose: cfg.Verbose,
		File:    cfg.LogFile,
		Redact:  slices.Collect(maps.Keys(cfg.Headers)),
	})
	if err != nil {
		return &exitError{code: engine.ExitConfig, err: err}
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := newSpider(cfg, logger)
	reports, runErr := runCrawl(ctx, cfg, locales, fetcher, logger)

	stats := fetcher.Stats()
	logger.Info("requests finished", "fetched", stats.Fetched, "failed", stats.Failed)

	if len(reports) > 0 {
		if err := outputReport(cfg, reports, cmd.OutOrStdout()); err != nil {
			logger.Error("failed to write report", "error", err)
		}
	}

	if code := exitCodeFor(reports, runErr); code != engine.ExitOK {
		return &exitError{code: code, err: runErr}
	}
	return nil
}

// buildConfig merges defaults, the configuration file and explicitly set
// flags, in that order of increasing precedence.
func buildConfig(cmd *cobra.Command) (*config.Config, []model.Locale, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, nil, err
	}

	if err := applyConfigFile(cfg); err != nil {
		return nil, nil, err
	}

	locales := []model.Locale{cfg.Locale}
	if flags.Changed("locale") {
		raw, _ := flags.GetString("locale")
		if locales, err = parseLocales(raw); err != nil {
			return nil, nil, err
		}
		cfg.Locale = locales[0]
	}

	if flags.Changed("no-resume") {
		noResume, _ := flags.GetBool("no-resume")
		cfg.Resume = !noResume
	}
	if flags.Changed("delay-min") {
		cfg.MinDelay, _ = flags.GetDuration("delay-min")
	}
	if flags.Changed("delay-max") {
		cfg.MaxDelay, _ = flags.GetDuration("delay-max")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("attempts") {
		cfg.MaxAttempts, _ = flags.GetInt("attempts")
	}
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("state-dir") {
		cfg.StateDir, _ = flags.GetString("state-dir")
	}
	if flags.Changed("sink") {
		cfg.Sinks, _ = flags.GetStringSlice("sink")
	}
	if flags.Changed("log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, locales, nil
}

// applyConfigFile loads the configuration file named by cfg.ConfigFilePath,
// or the default one when none is named, onto cfg. A missing default file is
// not an error.
func applyConfigFile(cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := file.Apply(cfg); err != nil {
			return fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}
	return nil
}

// parseLocales accepts a single locale or "all".
func parseLocales(raw string) ([]model.Locale, error) {
	if strings.EqualFold(strings.TrimSpace(raw), localeAll) {
		return model.Locales(), nil
	}
	l, err := model.ParseLocale(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidLocale, err)
	}
	return []model.Locale{l}, nil
}

func newSpider(cfg *config.Config, logger *slog.Logger) *crawler.Spider {
	return crawler.NewSpider(
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithSpiderUserAgent(cfg.UserAgent),
		crawler.WithHeaders(cfg.Headers),
		crawler.WithSpiderMaxBodySize(cfg.MaxBodySize),
		crawler.WithLogger(logger),
	)
}

// openSinks opens every configured sink below cfg.DataDir.
func openSinks(cfg *config.Config) (*sink.Multi, error) {
	sinks := make([]sink.Sink, 0, len(cfg.Sinks))
	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkJSON:
			sinks = append(sinks, sink.NewJSONSink(filepath.Join(cfg.DataDir, "json")))
		case config.SinkCSV:
			sinks = append(sinks, sink.NewCSVSink(filepath.Join(cfg.DataDir, "csv")))
		case config.SinkSQLite:
			db, err := database.Open(cfg.DataDir, database.DefaultOptions())
			if err != nil {
				_ = sink.NewMulti(sinks...).Close()
				return nil, err
			}
			sinks = append(sinks, db)
		default:
			return nil, fmt.Errorf("%w: %q", config.ErrUnknownSink, name)
		}
	}
	return sink.NewMulti(sinks...), nil
}

// runCrawl crawls locales one after another. It stops at the first fatal
// error or interruption and returns the reports of the locales it ran.
func runCrawl(ctx context.Context, cfg *config.Config, locales []model.Locale, fetcher engine.Fetcher, logger *slog.Logger) ([]*model.CrawlReport, error) {
	sinks, err := openSinks(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrSink, err)
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error("failed to close sinks", "error", err)
		}
	}()

	store := state.NewFileStore(cfg.StateDir)
	reports := make([]*model.CrawlReport, 0, len(locales))

	for _, locale := range locales {
		c := cfg.Clone()
		c.Locale = locale

		rep, err := engine.New(c, fetcher, sinks, store, engine.WithLogger(logger)).Run(ctx)
		if rep != nil {
			reports = append(reports, rep)
		}
		if err != nil {
			return reports, err
		}
		if rep != nil && rep.Interrupted {
			break
		}
	}
	return reports, nil
}

// exitCodeFor combines the outcome of every locale. A fatal error decides
// alone; otherwise an interruption beats failed nodes.
func exitCodeFor(reports []*model.CrawlReport, err error) int {
	if err != nil {
		var last *model.CrawlReport
		if len(reports) > 0 {
			last = reports[len(reports)-1]
		}
		return engine.ExitCode(last, err)
	}

	code := engine.ExitOK
	for _, r := range reports {
		switch c := engine.ExitCode(r, nil); {
		case c == engine.ExitInterrupted:
			return c
		case c != engine.ExitOK:
			code = c
		}
	}
	return code
}

// outputReport writes reports in the requested format to the report file or w.
func outputReport(cfg *config.Config, reports []*model.CrawlReport, w io.Writer) error {
	output := w
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	if _, err := writer.Write(reports...); err != nil {
		return errors.Join(errors.New("failed to write report"), err)
	}
	return nil
}
