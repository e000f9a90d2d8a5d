package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/vutcrawl/internal/config"
	"github.com/nao1215/vutcrawl/internal/engine"
	"github.com/nao1215/vutcrawl/internal/model"
	"github.com/nao1215/vutcrawl/internal/sink"
	"github.com/nao1215/vutcrawl/internal/state"
)

// NewMergeCmd creates the merge command.
func NewMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge crawl progress from another state directory",
		Long: `Merge folds the saved progress of another state directory into the local
one, so two partial crawls, for example from different machines, can be
combined and finished by a single resumed run.

Every page the other crawl discovered becomes known locally. A page the other
crawl finished is only taken over as done when its record can be copied from
the other machine's data directory (--from-data, the JSON output) into the
local sinks. Without it those pages stay pending and the next resumed run
fetches them again.

Examples:
  # Merge discovered pages of both locales
  vutcrawl merge --from ./other-state

  # Also take over finished pages together with their records
  vutcrawl merge --from ./other-state --from-data ./other-data

  # Merge only the Czech catalog
  vutcrawl merge --from ./other-state --locale cs`,
		Args: cobra.NoArgs,
		RunE: runMergeCmd,
	}

	cmd.Flags().String("from", "",
		"State directory to merge from (required)")
	cmd.Flags().String("from-data", "",
		"Data directory of the other crawl; its JSON records are copied into the local sinks")
	cmd.Flags().StringP("locale", "l", localeAll,
		"Locale to merge: cs, en or all")
	cmd.Flags().String("state-dir", "",
		"Directory for crawl state (default: XDG state directory)")
	cmd.Flags().String("data-dir", "",
		"Directory for crawled records (default: XDG data directory)")
	cmd.Flags().StringSlice("sink", []string{config.SinkJSON},
		"Record outputs for copied records: json, csv, sqlite (repeatable)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .vutcrawl in current or home directory)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

// mergeResult is the outcome of merging one locale.
type mergeResult struct {
	state  *state.CrawlState
	copied int
}

// recordSource reads back records written by another crawl.
type recordSource interface {
	Load(ctx context.Context, id model.NodeID, locale model.Locale) (model.Record, error)
}

func runMergeCmd(cmd *cobra.Command, _ []string) error {
	cfg, locales, err := stateConfig(cmd)
	if err != nil {
		return &exitError{code: engine.ExitConfig, err: err}
	}

	from, err := cmd.Flags().GetString("from")
	if err != nil {
		return err
	}
	if filepath.Clean(from) == filepath.Clean(cfg.StateDir) {
		return &exitError{code: engine.ExitConfig, err: fmt.Errorf("cannot merge %s into itself", from)}
	}
	fromData, err := cmd.Flags().GetString("from-data")
	if err != nil {
		return err
	}

	var (
		records recordSource
		out     engine.Sink
	)
	if fromData != "" {
		if filepath.Clean(fromData) == filepath.Clean(cfg.DataDir) {
			return &exitError{code: engine.ExitConfig, err: fmt.Errorf("cannot copy records of %s into itself", fromData)}
		}
		if err := cfg.Validate(); err != nil {
			return &exitError{code: engine.ExitConfig, err: fmt.Errorf("configuration error: %w", err)}
		}
		sinks, err := openSinks(cfg)
		if err != nil {
			return &exitError{code: engine.ExitFatal, err: fmt.Errorf("%w: %w", engine.ErrSink, err)}
		}
		defer sinks.Close()

		records = sink.NewJSONSink(filepath.Join(fromData, "json"))
		out = sinks
	}

	src := state.NewFileStore(from)
	dst := state.NewFileStore(cfg.StateDir)
	w := cmd.OutOrStdout()

	for _, locale := range locales {
		res, err := mergeLocale(cmd.Context(), src, dst, records, out, locale)
		if err != nil {
			return &exitError{code: engine.ExitFatal, err: err}
		}
		if res == nil {
			fmt.Fprintf(w, "%s: nothing to merge\n", locale)
			continue
		}
		p := res.state.Progress()
		fmt.Fprintf(w, "%s: merged, %d records copied, %d done, %d pending\n",
			locale, res.copied, p.Done.Total(), p.Pending.Total())
	}
	return nil
}

// mergeLocale merges the snapshot of locale in src into dst and saves it.
// Nodes done in src are adopted only after their record was read from
// records and written to out; with no records source none are adopted.
// It returns nil when src has no snapshot for locale.
func mergeLocale(ctx context.Context, src, dst state.Store, records recordSource, out engine.Sink, locale model.Locale) (*mergeResult, error) {
	other, err := src.Load(ctx, locale)
	if errors.Is(err, state.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s state to merge: %w", locale, err)
	}

	local, err := dst.Load(ctx, locale)
	switch {
	case errors.Is(err, state.ErrNotFound):
		local = state.New(locale)
	case err != nil:
		return nil, fmt.Errorf("failed to load local %s state: %w", locale, err)
	}

	adopted := make(map[model.NodeID]bool)
	if records != nil {
		for id := range other.DoneNodes() {
			if local.IsDone(id) {
				continue
			}
			record, err := records.Load(ctx, id, locale)
			if errors.Is(err, sink.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read record to merge: %w", err)
			}
			if err := out.Write(ctx, record, locale); err != nil {
				return nil, fmt.Errorf("%w: %w", engine.ErrSink, err)
			}
			adopted[id] = true
		}
	}

	if err := local.Merge(other, func(id model.NodeID) bool { return adopted[id] }); err != nil {
		return nil, err
	}
	if err := dst.Save(ctx, local); err != nil {
		return nil, fmt.Errorf("failed to save merged %s state: %w", locale, err)
	}
	return &mergeResult{state: local, copied: len(adopted)}, nil
}
