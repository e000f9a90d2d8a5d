package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nao1215/vutcrawl/internal/model"
)

// ErrUnsupportedRecord is returned for a record type a sink cannot store.
var ErrUnsupportedRecord = errors.New("unsupported record type")

// ErrRecordNotFound is returned by JSONSink.Load when no record was written.
var ErrRecordNotFound = errors.New("record not found")

// Sink durably stores catalog records.
type Sink interface {
	Write(ctx context.Context, record model.Record, locale model.Locale) error
}

// Multi writes every record to all sinks in order and stops at the first
// failure.
type Multi struct {
	sinks []Sink
}

// NewMulti returns a sink fanning out to sinks.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Write implements Sink.
func (m *Multi) Write(ctx context.Context, record model.Record, locale model.Locale) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, record, locale); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink that implements io.Closer.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// MemorySink keeps written records in memory. It is safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	records []model.Record
	ids     map[model.Locale]map[model.NodeID]int
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{ids: make(map[model.Locale]map[model.NodeID]int)}
}

// Write implements Sink. Rewriting an ID replaces the previous record.
func (m *MemorySink) Write(ctx context.Context, record model.Record, locale model.Locale) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.ids[locale]
	if !ok {
		byID = make(map[model.NodeID]int)
		m.ids[locale] = byID
	}
	if i, ok := byID[record.RecordID()]; ok {
		m.records[i] = record
		return nil
	}
	byID[record.RecordID()] = len(m.records)
	m.records = append(m.records, record)
	return nil
}

// Records returns the stored records in first-write order.
func (m *MemorySink) Records() []model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Record(nil), m.records...)
}

// IDs returns the string IDs of the stored records in first-write order.
func (m *MemorySink) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for _, r := range m.records {
		ids = append(ids, r.RecordID().String())
	}
	return ids
}

func unsupported(record model.Record) error {
	return fmt.Errorf("%w: %T", ErrUnsupportedRecord, record)
}
