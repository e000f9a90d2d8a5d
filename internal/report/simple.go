package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/vutcrawl/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints the failure section even when nothing failed.
	showEmpty bool

	// verbose prints the URL and error of every failed node.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write implements Writer.
func (w *SimpleWriter) Write(reports ...*model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb)
	for _, r := range reports {
		w.writeRun(&sb, r)
		w.writeCounts(&sb, r)
		w.writeFailures(&sb, r)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                        VUT CATALOG CRAWL\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeRun(sb *strings.Builder, r *model.CrawlReport) {
	fmt.Fprintf(sb, "Locale:    %s\n", r.Locale)
	fmt.Fprintf(sb, "Started:   %s\n", r.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:  %s\n", durationText(r))
	fmt.Fprintf(sb, "Mode:      %s\n", modeText(r))

	status := Status(r)
	if r.Error != "" {
		status += " - " + r.Error
	}
	fmt.Fprintf(sb, "Status:    %s\n\n", status)
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, r *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\nFETCHED\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  Programmes:       %d\n", r.Fetched.Programmes)
	fmt.Fprintf(sb, "  Specializations:  %d\n", r.Fetched.Specializations)
	fmt.Fprintf(sb, "  Subjects:         %d\n", r.Fetched.Subjects)
	fmt.Fprintf(sb, "  TOTAL:            %d\n\n", r.Fetched.Total())
	fmt.Fprintf(sb, "  Already done:     %d\n", r.Skipped)
	fmt.Fprintf(sb, "  Still pending:    %d\n\n", r.Pending)
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, r *model.CrawlReport) {
	if len(r.Failed) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", ruleWidth))
	fmt.Fprintf(sb, "\nFAILED NODES (%d)\n", len(r.Failed))
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")

	if len(r.Failed) == 0 {
		sb.WriteString("  No failures\n\n")
		return
	}

	for _, f := range r.Failed {
		fmt.Fprintf(sb, "  * %s\n", failureLine(f))
		if w.verbose {
			fmt.Fprintf(sb, "    URL:   %s\n", f.URL)
			fmt.Fprintf(sb, "    Error: %s\n", f.Error)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Failed and pending nodes are retried by the next run.\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
