package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/nao1215/vutcrawl/internal/fsutil"
	"github.com/nao1215/vutcrawl/internal/model"
)

// CSV file names, one per record kind, inside <root>/<locale>/.
const (
	ProgrammesCSV      = "programmes.csv"
	SpecializationsCSV = "specializations.csv"
	SubjectsCSV        = "subjects.csv"
)

// ProgrammeRow is a programmes.csv row.
type ProgrammeRow struct {
	Code            string `csv:"code"`
	Name            string `csv:"name"`
	FacultyCode     string `csv:"faculty_code"`
	FacultyName     string `csv:"faculty_name"`
	Duration        string `csv:"duration"`
	Credits         string `csv:"credits"`
	Specializations string `csv:"specializations"`
	URL             string `csv:"url"`
}

// SpecializationRow is a specializations.csv row.
type SpecializationRow struct {
	ProgrammeCode string `csv:"programme_code"`
	Code          string `csv:"code"`
	Name          string `csv:"name"`
	Duration      string `csv:"duration"`
	Credits       string `csv:"credits"`
	URL           string `csv:"url"`
}

// SubjectRow is a subjects.csv row.
type SubjectRow struct {
	ProgrammeCode      string `csv:"programme_code"`
	SpecializationCode string `csv:"specialization_code"`
	Code               string `csv:"code"`
	Name               string `csv:"name"`
	Credits            string `csv:"credits"`
	Obligation         string `csv:"obligation"`
	Completion         string `csv:"completion"`
	Group              string `csv:"group"`
	Semesters          string `csv:"semesters"`
	Year               string `csv:"year"`
	URL                string `csv:"url"`
}

// CSVSink appends records to per-kind CSV files. The header is written when
// a file is created. A record rewritten after a resume appears twice;
// consumers should keep the last row per key.
type CSVSink struct {
	root string
	mu   sync.Mutex
}

// NewCSVSink returns a CSVSink rooted at dir.
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{root: dir}
}

// Write implements Sink.
func (s *CSVSink) Write(ctx context.Context, record model.Record, locale model.Locale) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		name string
		rows any
	)
	switch r := record.(type) {
	case *model.ProgrammeNode:
		name = ProgrammesCSV
		rows = []*ProgrammeRow{{
			Code:            r.Code,
			Name:            r.Name,
			FacultyCode:     r.Faculty.Code,
			FacultyName:     r.Faculty.Name,
			Duration:        r.Duration,
			Credits:         r.Credits,
			Specializations: strings.Join(r.Specializations, ";"),
			URL:             r.URL,
		}}
	case *model.SpecializationNode:
		name = SpecializationsCSV
		rows = []*SpecializationRow{{
			ProgrammeCode: r.ProgrammeCode,
			Code:          r.Code,
			Name:          r.Name,
			Duration:      r.Duration,
			Credits:       r.Credits,
			URL:           r.URL,
		}}
	case *model.SubjectRecord:
		name = SubjectsCSV
		rows = []*SubjectRow{{
			ProgrammeCode:      r.ProgrammeCode,
			SpecializationCode: r.SpecializationCode,
			Code:               r.Code,
			Name:               r.Name,
			Credits:            r.Credits,
			Obligation:         r.Obligation,
			Completion:         r.Completion,
			Group:              r.Group,
			Semesters:          strings.Join(r.Semesters, ";"),
			Year:               r.Year,
			URL:                r.URL,
		}}
	default:
		return unsupported(record)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRows(filepath.Join(s.root, string(locale), name), rows)
}

// Path returns the CSV file for a kind of record.
func (s *CSVSink) Path(locale model.Locale, file string) string {
	return filepath.Join(s.root, string(locale), file)
}

func (s *CSVSink) appendRows(path string, rows any) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), fsutil.DirPerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, fsutil.FilePerm) //nolint:gosec // path built from configured root
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if info.Size() == 0 {
		err = gocsv.Marshal(rows, file)
	} else {
		err = gocsv.MarshalWithoutHeaders(rows, file)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Sync()
}
