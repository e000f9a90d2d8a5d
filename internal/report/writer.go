package report

import (
	"fmt"
	"io"
	"time"

	"github.com/nao1215/vutcrawl/internal/model"
)

// Writer renders crawl reports.
type Writer interface {
	// Write renders reports, one section per locale. It returns the number
	// of bytes written.
	Write(reports ...*model.CrawlReport) (int, error)
}

// MultiWriter writes to multiple Writers. It stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write implements Writer.
func (m *MultiWriter) Write(reports ...*model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(reports...)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Status values of a report.
const (
	StatusComplete    = "Complete"
	StatusFailures    = "Completed with failures"
	StatusInterrupted = "Interrupted"
	StatusError       = "Error"
)

// Status classifies a report for display.
func Status(r *model.CrawlReport) string {
	switch {
	case r.Error != "":
		return StatusError
	case r.Interrupted:
		return StatusInterrupted
	case len(r.Failed) > 0:
		return StatusFailures
	default:
		return StatusComplete
	}
}

func modeText(r *model.CrawlReport) string {
	if r.Resumed {
		return "resumed"
	}
	return "fresh"
}

func durationText(r *model.CrawlReport) string {
	return r.Duration().Round(time.Millisecond).String()
}

func failureLine(f model.FailedNode) string {
	return fmt.Sprintf("[%s] %s (%s, %d attempt(s))", f.Class, f.ID, f.Kind, f.Attempts)
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
