package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/vutcrawl/internal/config"
	"github.com/nao1215/vutcrawl/internal/database"
	"github.com/nao1215/vutcrawl/internal/engine"
	"github.com/nao1215/vutcrawl/internal/model"
	"github.com/nao1215/vutcrawl/internal/state"
)

// maxErrorWidth truncates failure messages in the status table.
const maxErrorWidth = 60

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show saved crawl progress",
		Long: `Status reads the saved crawl state of each locale and prints how many
programmes, specializations and subjects are done, how many are still pending
and which pages keep failing. When the sqlite sink has been used, the number
of stored records is shown as well. It never contacts the catalog site.

Examples:
  # Progress of both locales
  vutcrawl status

  # Only the English catalog, from a custom state directory
  vutcrawl status --locale en --state-dir ./state`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	cmd.Flags().StringP("locale", "l", localeAll,
		"Locale to show: cs, en or all")
	cmd.Flags().String("state-dir", "",
		"Directory for crawl state (default: XDG state directory)")
	cmd.Flags().String("data-dir", "",
		"Directory holding the sqlite database (default: XDG data directory)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .vutcrawl in current or home directory)")

	return cmd
}

// localeStatus is the loaded state of one locale; st is nil when the locale
// has never been crawled and stored is nil without a database.
type localeStatus struct {
	locale model.Locale
	st     *state.CrawlState
	stored *model.Counts
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, locales, err := stateConfig(cmd)
	if err != nil {
		return &exitError{code: engine.ExitConfig, err: err}
	}

	statuses, err := loadStatuses(cmd, state.NewFileStore(cfg.StateDir), locales)
	if err != nil {
		return err
	}
	if err := loadStoredCounts(cmd, cfg.DataDir, statuses); err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), statuses)
	return nil
}

// loadStoredCounts fills in the per-locale row counts of the sqlite sink.
// A missing database leaves them unset.
func loadStoredCounts(cmd *cobra.Command, dataDir string, statuses []localeStatus) error {
	if dataDir == "" {
		return nil
	}

	db, err := database.Open(dataDir, database.Options{})
	if errors.Is(err, database.ErrDatabaseNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	for i := range statuses {
		counts, err := db.Counts(cmd.Context(), statuses[i].locale)
		if err != nil {
			return err
		}
		statuses[i].stored = &counts
	}
	return nil
}

// stateConfig resolves the directories, sinks and locales for commands that
// work on saved state rather than the network. Flags a command does not
// define are never changed.
func stateConfig(cmd *cobra.Command) (*config.Config, []model.Locale, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, nil, err
	}
	if err := applyConfigFile(cfg); err != nil {
		return nil, nil, err
	}
	if flags.Changed("state-dir") {
		cfg.StateDir, _ = flags.GetString("state-dir")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("sink") {
		cfg.Sinks, _ = flags.GetStringSlice("sink")
	}
	if cfg.StateDir == "" {
		return nil, nil, config.ErrNoStateDir
	}

	raw, err := flags.GetString("locale")
	if err != nil {
		return nil, nil, err
	}
	locales, err := parseLocales(raw)
	if err != nil {
		return nil, nil, err
	}
	return cfg, locales, nil
}

// loadStatuses reads the snapshots of all locales concurrently.
func loadStatuses(cmd *cobra.Command, store state.Store, locales []model.Locale) ([]localeStatus, error) {
	statuses := make([]localeStatus, len(locales))

	g, ctx := errgroup.WithContext(cmd.Context())
	for i, locale := range locales {
		g.Go(func() error {
			st, err := store.Load(ctx, locale)
			switch {
			case errors.Is(err, state.ErrNotFound):
				st = nil
			case err != nil:
				return fmt.Errorf("failed to load %s state: %w", locale, err)
			}
			statuses[i] = localeStatus{locale: locale, st: st}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

func printStatus(w io.Writer, statuses []localeStatus) {
	progress := table.New("Locale", "Updated", "Programmes", "Specializations", "Subjects", "Pending", "Failing", "Stored").
		WithWriter(w)

	failures := table.New("Locale", "Node", "Attempts", "Last error").WithWriter(w)
	failureCount := 0

	for _, s := range statuses {
		stored := "-"
		if s.stored != nil {
			stored = strconv.Itoa(s.stored.Total())
		}

		if s.st == nil {
			progress.AddRow(s.locale, "no state", "-", "-", "-", "-", "-", stored)
			continue
		}

		p := s.st.Progress()
		progress.AddRow(
			s.locale,
			s.st.UpdatedAt().Local().Format(time.DateTime),
			p.Done.Programmes,
			p.Done.Specializations,
			p.Done.Subjects,
			p.Pending.Total(),
			p.Failing,
			stored,
		)

		for _, f := range s.st.Failures() {
			failures.AddRow(s.locale, f.ID, f.Attempts, truncate(f.LastError, maxErrorWidth))
			failureCount++
		}
	}

	progress.Print()
	if failureCount > 0 {
		fmt.Fprintln(w)
		failures.Print()
	}
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
