package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/vutcrawl/internal/model"
)

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
	version      string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the crawler version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport is the document written by JSONWriter.
type JSONReport struct {
	Version   string               `json:"version,omitempty"`
	Succeeded bool                 `json:"succeeded"`
	Reports   []*model.CrawlReport `json:"reports"`
}

// NewJSONReport wraps reports with version information.
func NewJSONReport(version string, reports ...*model.CrawlReport) *JSONReport {
	out := &JSONReport{
		Version:   version,
		Succeeded: true,
		Reports:   make([]*model.CrawlReport, 0, len(reports)),
	}
	for _, r := range reports {
		out.Reports = append(out.Reports, r)
		out.Succeeded = out.Succeeded && r.Succeeded()
	}
	return out
}

// Write implements Writer.
func (w *JSONWriter) Write(reports ...*model.CrawlReport) (int, error) {
	var (
		data []byte
		err  error
	)
	doc := NewJSONReport(w.version, reports...)
	if w.indent {
		data, err = json.MarshalIndent(doc, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
