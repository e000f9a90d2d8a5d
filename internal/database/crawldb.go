package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/vutcrawl/internal/model"
	"github.com/nao1215/vutcrawl/internal/sink"
)

// FileName is the database file created in the database directory.
const FileName = "vutcrawl.db"

// ErrDatabaseNotFound is returned by Open when the database must already
// exist but does not.
var ErrDatabaseNotFound = errors.New("database not found")

// CrawlDB stores catalog records in SQLite. It implements sink.Sink.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS programmes (
		locale TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		faculty_code TEXT,
		faculty_name TEXT,
		duration TEXT,
		credits TEXT,
		url TEXT NOT NULL,
		specializations TEXT NOT NULL DEFAULT '[]',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (locale, code)
	);

	CREATE TABLE IF NOT EXISTS specializations (
		locale TEXT NOT NULL,
		programme_code TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		duration TEXT,
		credits TEXT,
		url TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (locale, programme_code, code)
	);

	CREATE TABLE IF NOT EXISTS subjects (
		locale TEXT NOT NULL,
		programme_code TEXT NOT NULL,
		specialization_code TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		credits TEXT,
		obligation TEXT,
		completion TEXT,
		grp TEXT,
		semesters TEXT NOT NULL DEFAULT '[]',
		year TEXT,
		url TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (locale, programme_code, specialization_code, code)
	);

	CREATE INDEX IF NOT EXISTS idx_subjects_code ON subjects(locale, code);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Write stores record, replacing any earlier row with the same key.
func (cdb *CrawlDB) Write(ctx context.Context, record model.Record, locale model.Locale) error {
	switch r := record.(type) {
	case *model.ProgrammeNode:
		return cdb.upsertProgramme(ctx, r, locale)
	case *model.SpecializationNode:
		return cdb.upsertSpecialization(ctx, r, locale)
	case *model.SubjectRecord:
		return cdb.upsertSubject(ctx, r, locale)
	default:
		return fmt.Errorf("%w: %T", sink.ErrUnsupportedRecord, record)
	}
}

func (cdb *CrawlDB) upsertProgramme(ctx context.Context, p *model.ProgrammeNode, locale model.Locale) error {
	specs, err := encodeList(p.Specializations)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO programmes (locale, code, name, faculty_code, faculty_name, duration, credits, url, specializations)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(locale, code) DO UPDATE SET
		name = excluded.name,
		faculty_code = excluded.faculty_code,
		faculty_name = excluded.faculty_name,
		duration = excluded.duration,
		credits = excluded.credits,
		url = excluded.url,
		specializations = excluded.specializations,
		updated_at = CURRENT_TIMESTAMP
	`

	_, err = cdb.db.ExecContext(ctx, query,
		string(locale), p.Code, p.Name, p.Faculty.Code, p.Faculty.Name,
		p.Duration, p.Credits, p.URL, specs,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert programme %s: %w", p.Code, err)
	}
	return nil
}

func (cdb *CrawlDB) upsertSpecialization(ctx context.Context, s *model.SpecializationNode, locale model.Locale) error {
	query := `
	INSERT INTO specializations (locale, programme_code, code, name, duration, credits, url)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(locale, programme_code, code) DO UPDATE SET
		name = excluded.name,
		duration = excluded.duration,
		credits = excluded.credits,
		url = excluded.url,
		updated_at = CURRENT_TIMESTAMP
	`

	_, err := cdb.db.ExecContext(ctx, query,
		string(locale), s.ProgrammeCode, s.Code, s.Name, s.Duration, s.Credits, s.URL,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert specialization %s/%s: %w", s.ProgrammeCode, s.Code, err)
	}
	return nil
}

func (cdb *CrawlDB) upsertSubject(ctx context.Context, s *model.SubjectRecord, locale model.Locale) error {
	semesters, err := encodeList(s.Semesters)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO subjects (locale, programme_code, specialization_code, code, name, credits, obligation, completion, grp, semesters, year, url)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(locale, programme_code, specialization_code, code) DO UPDATE SET
		name = excluded.name,
		credits = excluded.credits,
		obligation = excluded.obligation,
		completion = excluded.completion,
		grp = excluded.grp,
		semesters = excluded.semesters,
		year = excluded.year,
		url = excluded.url,
		updated_at = CURRENT_TIMESTAMP
	`

	_, err = cdb.db.ExecContext(ctx, query,
		string(locale), s.ProgrammeCode, s.SpecializationCode, s.Code, s.Name,
		s.Credits, s.Obligation, s.Completion, s.Group, semesters, s.Year, s.URL,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subject %s: %w", s.RecordID(), err)
	}
	return nil
}

// StoredProgramme is a programme row with its last update time.
type StoredProgramme struct {
	model.ProgrammeNode
	UpdatedAt time.Time
}

// GetProgramme returns the programme with code in locale, or nil when it
// has not been stored.
func (cdb *CrawlDB) GetProgramme(ctx context.Context, locale model.Locale, code string) (*StoredProgramme, error) {
	query := `
	SELECT code, name, faculty_code, faculty_name, duration, credits, url, specializations, updated_at
	FROM programmes
	WHERE locale = ? AND code = ?
	`

	var (
		p         StoredProgramme
		specs     string
		timestamp string
	)
	err := cdb.db.QueryRowContext(ctx, query, string(locale), code).Scan(
		&p.Code,
		&p.Name,
		&p.Faculty.Code,
		&p.Faculty.Name,
		&p.Duration,
		&p.Credits,
		&p.URL,
		&specs,
		&timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get programme: %w", err)
	}

	if p.Specializations, err = decodeList(specs); err != nil {
		return nil, err
	}
	p.Locale = locale
	p.UpdatedAt = parseTimestamp(timestamp)
	return &p, nil
}

// ListSubjects returns the subjects of a programme in locale ordered by
// specialization and code. An empty specialization selects every subject of
// the programme.
func (cdb *CrawlDB) ListSubjects(ctx context.Context, locale model.Locale, programme, specialization string) ([]model.SubjectRecord, error) {
	query := `
	SELECT programme_code, specialization_code, code, name, credits, obligation, completion, grp, semesters, year, url
	FROM subjects
	WHERE locale = ? AND programme_code = ?
	`
	args := []any{string(locale), programme}
	if specialization != "" {
		query += " AND specialization_code = ?"
		args = append(args, specialization)
	}
	query += " ORDER BY specialization_code, code"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var results []model.SubjectRecord
	for rows.Next() {
		var (
			s         model.SubjectRecord
			semesters string
		)
		if err := rows.Scan(
			&s.ProgrammeCode,
			&s.SpecializationCode,
			&s.Code,
			&s.Name,
			&s.Credits,
			&s.Obligation,
			&s.Completion,
			&s.Group,
			&semesters,
			&s.Year,
			&s.URL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		if s.Semesters, err = decodeList(semesters); err != nil {
			return nil, err
		}
		s.Locale = locale
		results = append(results, s)
	}

	return results, rows.Err()
}

// Counts returns the number of stored rows per kind in locale.
func (cdb *CrawlDB) Counts(ctx context.Context, locale model.Locale) (model.Counts, error) {
	query := `
	SELECT
		(SELECT COUNT(*) FROM programmes WHERE locale = ?),
		(SELECT COUNT(*) FROM specializations WHERE locale = ?),
		(SELECT COUNT(*) FROM subjects WHERE locale = ?)
	`

	var c model.Counts
	l := string(locale)
	if err := cdb.db.QueryRowContext(ctx, query, l, l, l).Scan(&c.Programmes, &c.Specializations, &c.Subjects); err != nil {
		return model.Counts{}, fmt.Errorf("failed to count records: %w", err)
	}
	return c, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to serialize list: %w", err)
	}
	return string(data), nil
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, fmt.Errorf("failed to parse list: %w", err)
	}
	return values, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses s with the first matching format, or returns the
// zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
