package state

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/nao1215/vutcrawl/internal/model"
)

// entry is the progress record of a single discovered node.
type entry struct {
	node      model.Node
	done      bool
	children  []model.NodeID
	failures  int
	lastError string
}

// CrawlState is the progress of a crawl for one locale.
// It is owned by a single walker and is not safe for concurrent use.
type CrawlState struct {
	locale    model.Locale
	entries   map[model.NodeID]*entry
	order     []model.NodeID
	resumed   bool
	updatedAt time.Time
}

// Failure describes a pending node with recorded failed attempts.
type Failure struct {
	ID        model.NodeID
	Kind      model.NodeKind
	URL       string
	Attempts  int
	LastError string
}

// Progress summarizes done and pending nodes by kind.
type Progress struct {
	Done    model.Counts
	Pending model.Counts
	Failing int
}

// New returns an empty state for locale.
func New(locale model.Locale) *CrawlState {
	return &CrawlState{
		locale:  locale,
		entries: make(map[model.NodeID]*entry),
	}
}

// Load returns the persisted state for locale, or an empty state when resume
// is false or no snapshot exists. A corrupt snapshot is an error, never a
// silent reset.
//
// Without resume the old snapshot is deleted, so a fresh crawl interrupted
// before its first save does not resume the discarded one later.
func Load(ctx context.Context, store Store, locale model.Locale, resume bool) (*CrawlState, error) {
	if !resume {
		if err := store.Delete(ctx, locale); err != nil {
			return nil, fmt.Errorf("failed to discard state for %s: %w", locale, err)
		}
		return New(locale), nil
	}

	st, err := store.Load(ctx, locale)
	if errors.Is(err, ErrNotFound) {
		return New(locale), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state for %s: %w", locale, err)
	}
	st.resumed = true
	return st, nil
}

// Locale returns the locale this state belongs to.
func (s *CrawlState) Locale() model.Locale { return s.locale }

// Resumed reports whether the state was restored from a snapshot.
func (s *CrawlState) Resumed() bool { return s.resumed }

// UpdatedAt returns the time of the last persisted snapshot.
func (s *CrawlState) UpdatedAt() time.Time { return s.updatedAt }

// Len returns the number of discovered nodes.
func (s *CrawlState) Len() int { return len(s.order) }

// IsDone reports whether the node's record has been written.
func (s *CrawlState) IsDone(id model.NodeID) bool {
	e, ok := s.entries[id]
	return ok && e.done
}

// Node returns the discovered node for id.
func (s *CrawlState) Node(id model.NodeID) (model.Node, bool) {
	e, ok := s.entries[id]
	if !ok {
		return model.Node{}, false
	}
	return e.node, true
}

// Children returns the children recorded for id, in discovery order.
func (s *CrawlState) Children(id model.NodeID) []model.NodeID {
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	return append([]model.NodeID(nil), e.children...)
}

// HasProgrammes reports whether the top level has been seeded.
func (s *CrawlState) HasProgrammes() bool {
	for _, id := range s.order {
		if id.Kind() == model.KindProgramme {
			return true
		}
	}
	return false
}

// Seed registers top-level programmes as discovered. Already known nodes are
// left untouched. It returns the number of newly discovered nodes.
func (s *CrawlState) Seed(nodes []model.Node) int {
	added := 0
	for _, n := range nodes {
		if s.discover(n) {
			added++
		}
	}
	return added
}

// MarkDone marks id as written and records its children, which become
// discovered in the given order. Calling it again only appends children not
// yet recorded; the children list never shrinks.
//
// Only discovered nodes can be marked done. For an unknown id MarkDone
// changes nothing and returns false.
func (s *CrawlState) MarkDone(id model.NodeID, children []model.Node) bool {
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.done = true

	for _, child := range children {
		if !slices.Contains(e.children, child.ID) {
			e.children = append(e.children, child.ID)
		}
		s.discover(child)
	}
	return true
}

// DoneNodes yields the IDs of done nodes in discovery order.
func (s *CrawlState) DoneNodes() iter.Seq[model.NodeID] {
	return func(yield func(model.NodeID) bool) {
		for _, id := range s.order {
			if s.entries[id].done && !yield(id) {
				return
			}
		}
	}
}

// PendingNodes yields nodes that are not done, in discovery order. The
// sequence is lazy: nodes discovered while ranging over it are yielded in the
// same pass. Every call starts from the beginning.
func (s *CrawlState) PendingNodes() iter.Seq[model.Node] {
	return func(yield func(model.Node) bool) {
		for i := 0; i < len(s.order); i++ {
			e := s.entries[s.order[i]]
			if e.done {
				continue
			}
			if !yield(e.node) {
				return
			}
		}
	}
}

// RecordFailure notes a failed attempt for id. It never changes whether the
// node is done or pending.
func (s *CrawlState) RecordFailure(id model.NodeID, err error) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.failures++
	if err != nil {
		e.lastError = err.Error()
	}
}

// Failures returns pending nodes with recorded failures, in discovery order.
func (s *CrawlState) Failures() []Failure {
	var out []Failure
	for _, id := range s.order {
		e := s.entries[id]
		if e.done || e.failures == 0 {
			continue
		}
		out = append(out, Failure{
			ID:        id,
			Kind:      id.Kind(),
			URL:       e.node.URL,
			Attempts:  e.failures,
			LastError: e.lastError,
		})
	}
	return out
}

// Progress summarizes the state by kind.
func (s *CrawlState) Progress() Progress {
	var p Progress
	for _, id := range s.order {
		e := s.entries[id]
		if e.done {
			p.Done.Add(id.Kind())
			continue
		}
		p.Pending.Add(id.Kind())
		if e.failures > 0 {
			p.Failing++
		}
	}
	return p
}

// Merge folds other into s: nodes only other knows are discovered,
// children are unioned, and discovery order keeps s first followed by nodes
// only other knows.
//
// A node done in other becomes done in s only when adoptDone reports true for
// it, since other's records may never have reached the sink of s. A nil
// adoptDone adopts none. Nodes done in s stay done.
func (s *CrawlState) Merge(other *CrawlState, adoptDone func(model.NodeID) bool) error {
	if other.locale != s.locale {
		return fmt.Errorf("%w: %s and %s", ErrLocaleMismatch, s.locale, other.locale)
	}

	adopt := func(id model.NodeID, oe *entry) bool {
		return oe.done && adoptDone != nil && adoptDone(id)
	}

	for _, id := range other.order {
		oe := other.entries[id]
		e, ok := s.entries[id]
		if !ok {
			s.entries[id] = &entry{
				node:      oe.node,
				done:      adopt(id, oe),
				children:  append([]model.NodeID(nil), oe.children...),
				failures:  oe.failures,
				lastError: oe.lastError,
			}
			s.order = append(s.order, id)
			continue
		}

		e.done = e.done || adopt(id, oe)
		for _, child := range oe.children {
			if !slices.Contains(e.children, child) {
				e.children = append(e.children, child)
			}
		}
		if e.node.Name == "" && oe.node.Name != "" {
			e.node = oe.node
		}
		e.failures = max(e.failures, oe.failures)
		if e.lastError == "" {
			e.lastError = oe.lastError
		}
	}
	if other.updatedAt.After(s.updatedAt) {
		s.updatedAt = other.updatedAt
	}
	return nil
}

// discover registers n if unknown and reports whether it was added.
func (s *CrawlState) discover(n model.Node) bool {
	if _, ok := s.entries[n.ID]; ok {
		return false
	}
	s.entries[n.ID] = &entry{node: n}
	s.order = append(s.order, n.ID)
	return true
}
