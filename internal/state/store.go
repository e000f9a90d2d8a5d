package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nao1215/vutcrawl/internal/fsutil"
	"github.com/nao1215/vutcrawl/internal/model"
)

// Store persists CrawlState snapshots, one per locale.
type Store interface {
	// Load returns the snapshot for locale, or ErrNotFound.
	Load(ctx context.Context, locale model.Locale) (*CrawlState, error)

	// Save durably replaces the snapshot for the state's locale.
	Save(ctx context.Context, s *CrawlState) error

	// Delete removes the snapshot for locale. Deleting a missing
	// snapshot is not an error.
	Delete(ctx context.Context, locale model.Locale) error
}

// FileStore keeps snapshots as JSON files in a directory.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// Path returns the snapshot file for locale.
func (f *FileStore) Path(locale model.Locale) string {
	return filepath.Join(f.dir, "state-"+string(locale)+".json")
}

// Load reads and verifies the snapshot for locale.
func (f *FileStore) Load(ctx context.Context, locale model.Locale) (*CrawlState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path(locale))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	return decode(data, locale)
}

// Save writes the snapshot atomically.
func (f *FileStore) Save(ctx context.Context, s *CrawlState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := f.now()
	data, err := encode(s, now)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(f.Path(s.locale), data, fsutil.FilePerm); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	s.updatedAt = now.UTC()
	return nil
}

// Delete removes the snapshot file for locale.
func (f *FileStore) Delete(ctx context.Context, locale model.Locale) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.Path(locale)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

// MemoryStore keeps encoded snapshots in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[model.Locale][]byte
	saves map[model.Locale]int

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[model.Locale][]byte),
		saves: make(map[model.Locale]int),
	}
}

// Load decodes the stored snapshot for locale.
func (m *MemoryStore) Load(ctx context.Context, locale model.Locale) (*CrawlState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	data, ok := m.data[locale]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(data, locale)
}

// Save encodes and stores the snapshot.
func (m *MemoryStore) Save(ctx context.Context, s *CrawlState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	now := time.Now()
	data, err := encode(s, now)
	if err != nil {
		return err
	}
	m.data[s.locale] = data
	m.saves[s.locale]++
	s.updatedAt = now.UTC()
	return nil
}

// Delete drops the snapshot for locale.
func (m *MemoryStore) Delete(ctx context.Context, locale model.Locale) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, locale)
	return nil
}

// Put stores raw snapshot bytes for locale, bypassing encoding.
func (m *MemoryStore) Put(locale model.Locale, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[locale] = append([]byte(nil), data...)
}

// Raw returns the stored snapshot bytes for locale.
func (m *MemoryStore) Raw(locale model.Locale) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[locale]
	return append([]byte(nil), data...), ok
}

// Saves returns how many times a snapshot for locale was saved.
func (m *MemoryStore) Saves(locale model.Locale) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[locale]
}
