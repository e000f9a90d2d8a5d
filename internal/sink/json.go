package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/nao1215/vutcrawl/internal/fsutil"
	"github.com/nao1215/vutcrawl/internal/model"
)

// JSONSink writes each record to its own JSON file below a root directory:
//
//	<root>/<locale>/<programme>/programme.json
//	<root>/<locale>/<programme>/<specialization>/specialization.json
//	<root>/<locale>/<programme>/<specialization>/subjects/<subject>.json
//	<root>/<locale>/<programme>/subjects/<subject>.json
//
// Files are replaced atomically, so rewriting a record is safe.
type JSONSink struct {
	root string
}

// NewJSONSink returns a JSONSink rooted at dir.
func NewJSONSink(dir string) *JSONSink {
	return &JSONSink{root: dir}
}

// Write implements Sink.
func (s *JSONSink) Write(ctx context.Context, record model.Record, locale model.Locale) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.Path(record, locale)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", record.RecordID(), err)
	}
	data = append(data, '\n')

	if err := fsutil.WriteFileAtomic(path, data, fsutil.FilePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", record.RecordID(), err)
	}
	return nil
}

// Path returns the file a record is written to.
func (s *JSONSink) Path(record model.Record, locale model.Locale) (string, error) {
	switch record.(type) {
	case *model.ProgrammeNode, *model.SpecializationNode, *model.SubjectRecord:
		return s.pathOf(record.RecordID(), locale), nil
	default:
		return "", unsupported(record)
	}
}

// pathOf returns the file of the record with id.
func (s *JSONSink) pathOf(id model.NodeID, locale model.Locale) string {
	base := filepath.Join(s.root, string(locale), pathSegment(id.Programme))

	switch id.Kind() {
	case model.KindProgramme:
		return filepath.Join(base, "programme.json")
	case model.KindSpecialization:
		return filepath.Join(base, pathSegment(id.Specialization), "specialization.json")
	default:
		if id.Specialization != "" {
			base = filepath.Join(base, pathSegment(id.Specialization))
		}
		return filepath.Join(base, "subjects", pathSegment(id.Subject)+".json")
	}
}

// Load reads back the record with id written for locale. It returns
// ErrRecordNotFound when no such file exists.
func (s *JSONSink) Load(ctx context.Context, id model.NodeID, locale model.Locale) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.pathOf(id, locale))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}

	var record model.Record
	switch id.Kind() {
	case model.KindProgramme:
		record = &model.ProgrammeNode{}
	case model.KindSpecialization:
		record = &model.SpecializationNode{}
	default:
		record = &model.SubjectRecord{}
	}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", id, err)
	}
	if got := record.RecordID(); got != id {
		return nil, fmt.Errorf("failed to decode %s: file holds %s", id, got)
	}
	return record, nil
}

// pathSegment makes a code safe to use as a single path element.
func pathSegment(code string) string {
	escaped := url.PathEscape(code)
	if escaped == "" || escaped == "." || escaped == ".." {
		return "_" + escaped
	}
	return escaped
}
