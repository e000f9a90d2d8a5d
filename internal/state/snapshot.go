package state

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/nao1215/vutcrawl/internal/model"
)

// snapshotVersion is bumped on incompatible format changes.
const snapshotVersion = 1

// snapshot is the persisted form of a CrawlState.
type snapshot struct {
	Version   int            `json:"version"`
	Locale    model.Locale   `json:"locale"`
	UpdatedAt time.Time      `json:"updated_at"`
	Nodes     []snapshotNode `json:"nodes"`
	Checksum  string         `json:"checksum"`
}

// snapshotNode is one node in discovery order.
type snapshotNode struct {
	model.Node

	Done      bool           `json:"done"`
	Children  []model.NodeID `json:"children,omitempty"`
	Failures  int            `json:"failures,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// encode serializes s, stamping the update time and checksum.
func encode(s *CrawlState, now time.Time) ([]byte, error) {
	snap := snapshot{
		Version:   snapshotVersion,
		Locale:    s.locale,
		UpdatedAt: now.UTC(),
		Nodes:     make([]snapshotNode, 0, len(s.order)),
	}
	for _, id := range s.order {
		e := s.entries[id]
		snap.Nodes = append(snap.Nodes, snapshotNode{
			Node:      e.node,
			Done:      e.done,
			Children:  e.children,
			Failures:  e.failures,
			LastError: e.lastError,
		})
	}

	sum, err := checksum(snap.Nodes)
	if err != nil {
		return nil, err
	}
	snap.Checksum = sum

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

// decode parses a snapshot for locale and verifies its integrity.
func decode(data []byte, locale model.Locale) (*CrawlState, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptState, snap.Version)
	}
	if snap.Locale != locale {
		return nil, fmt.Errorf("%w: snapshot locale %q, want %q", ErrCorruptState, snap.Locale, locale)
	}

	sum, err := checksum(snap.Nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	if sum != snap.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptState)
	}

	s := New(locale)
	s.updatedAt = snap.UpdatedAt
	for _, n := range snap.Nodes {
		if err := n.ID.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
		}
		if _, dup := s.entries[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %s", ErrCorruptState, n.ID)
		}
		s.entries[n.ID] = &entry{
			node:      n.Node,
			done:      n.Done,
			children:  n.Children,
			failures:  n.Failures,
			lastError: n.LastError,
		}
		s.order = append(s.order, n.ID)
	}
	return s, nil
}

// checksum returns the hex BLAKE2b-256 digest of the encoded node list.
func checksum(nodes []snapshotNode) (string, error) {
	data, err := json.Marshal(nodes)
	if err != nil {
		return "", fmt.Errorf("failed to encode nodes: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
