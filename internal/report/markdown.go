package report

import (
	"bytes"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/vutcrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(reports ...*model.CrawlReport) (int, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1("VUT Catalog Crawl Report")
	md.PlainText("")

	for _, r := range reports {
		w.writeRun(md, r)
		w.writeCounts(md, r)
		w.writeAlert(md, r)
		w.writeFailures(md, r)
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [vutcrawl](https://github.com/nao1215/vutcrawl)*")

	if err := md.Build(); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

func (w *MarkdownWriter) writeRun(md *markdown.Markdown, r *model.CrawlReport) {
	md.H2("Locale `" + r.Locale.String() + "`")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", durationText(r)},
			{"Mode", modeText(r)},
			{"Status", Status(r)},
			{"Already done", strconv.Itoa(r.Skipped)},
			{"Still pending", strconv.Itoa(r.Pending)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, r *model.CrawlReport) {
	md.H3("Fetched")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows: [][]string{
			{"Programmes", strconv.Itoa(r.Fetched.Programmes)},
			{"Specializations", strconv.Itoa(r.Fetched.Specializations)},
			{"Subjects", strconv.Itoa(r.Fetched.Subjects)},
			{"**Total**", "**" + strconv.Itoa(r.Fetched.Total()) + "**"},
		},
	})
	md.PlainText("")

	if r.Fetched.Total() > 0 {
		w.writePieChart(md, r.Fetched)
	}
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, c model.Counts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetched nodes by kind"),
		piechart.WithShowData(true),
	)

	if c.Programmes > 0 {
		chart.LabelAndIntValue("Programmes", uint64(c.Programmes))
	}
	if c.Specializations > 0 {
		chart.LabelAndIntValue("Specializations", uint64(c.Specializations))
	}
	if c.Subjects > 0 {
		chart.LabelAndIntValue("Subjects", uint64(c.Subjects))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, r *model.CrawlReport) {
	switch Status(r) {
	case StatusError:
		md.Cautionf("The run aborted: %s", r.Error)
	case StatusInterrupted:
		md.Warningf("The run was interrupted. %d node(s) are still pending and will be fetched by the next run.", r.Pending)
	case StatusFailures:
		md.Importantf("%d node(s) failed and stay pending for the next run.", len(r.Failed))
	default:
		md.Tip("Every discovered node was fetched.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, r *model.CrawlReport) {
	if len(r.Failed) == 0 {
		return
	}

	md.H3("Failed nodes")
	md.PlainText("")

	rows := make([][]string, len(r.Failed))
	for i, f := range r.Failed {
		rows[i] = []string{
			"`" + f.ID.String() + "`",
			f.Kind,
			f.Class.String(),
			strconv.Itoa(f.Attempts),
			truncateString(f.Error, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Node", "Kind", "Class", "Attempts", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}
