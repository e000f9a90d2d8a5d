package engine

import (
	"context"
	"errors"

	"github.com/nao1215/vutcrawl/internal/model"
)

// Fatal error classes. Per-node fetch failures are not errors of Run; they
// are listed in the report instead.
var (
	// ErrConfig wraps configuration problems found before any request.
	ErrConfig = errors.New("configuration error")

	// ErrState wraps failures to load a usable state snapshot.
	ErrState = errors.New("state error")

	// ErrPersist wraps failures to save the state snapshot.
	ErrPersist = errors.New("state persistence error")

	// ErrSink wraps failures to write a record.
	ErrSink = errors.New("sink error")

	// ErrSeed is returned when the programme listing cannot be fetched or
	// contains no programmes.
	ErrSeed = errors.New("failed to seed programmes")
)

// Process exit statuses returned by ExitCode.
const (
	ExitOK          = 0
	ExitFailures    = 1
	ExitConfig      = 2
	ExitFatal       = 3
	ExitInterrupted = 130
)

// ExitCode maps the outcome of a run to a process exit status.
func ExitCode(report *model.CrawlReport, err error) int {
	switch {
	case err == nil:
		if report == nil {
			return ExitOK
		}
		if report.Interrupted {
			return ExitInterrupted
		}
		if len(report.Failed) > 0 {
			return ExitFailures
		}
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrState), errors.Is(err, ErrPersist), errors.Is(err, ErrSink):
		return ExitFatal
	default:
		return ExitFailures
	}
}
