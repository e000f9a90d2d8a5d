package model

import (
	"errors"
	"fmt"
	"strings"
)

// NodeKind identifies the level of a node in the catalog hierarchy.
type NodeKind int

const (
	// KindListing is the top-level programme listing page. It is never stored
	// in the crawl state; it only seeds the programmes.
	KindListing NodeKind = iota

	// KindProgramme is a study programme.
	KindProgramme

	// KindSpecialization is a specialization of a programme.
	KindSpecialization

	// KindSubject is a subject of a programme or specialization study plan.
	KindSubject
)

// String returns the lower-case name of the kind.
func (k NodeKind) String() string {
	switch k {
	case KindListing:
		return "listing"
	case KindProgramme:
		return "programme"
	case KindSpecialization:
		return "specialization"
	case KindSubject:
		return "subject"
	default:
		return "unknown"
	}
}

// idSeparator joins the code segments in the string form of a NodeID.
const idSeparator = "/"

// ErrInvalidNodeID is returned when a node identifier cannot be parsed or
// contains an invalid code.
var ErrInvalidNodeID = errors.New("invalid node id")

// NodeID identifies a node within one locale.
//
// Programmes set only Programme, specializations add Specialization and
// subjects add Subject. A subject of a programme without specializations
// leaves Specialization empty. In JSON a NodeID is encoded as its string form.
type NodeID struct {
	Programme      string
	Specialization string
	Subject        string
}

// ProgrammeID returns the identifier of a programme.
func ProgrammeID(programme string) NodeID {
	return NodeID{Programme: programme}
}

// SpecializationID returns the identifier of a specialization.
func SpecializationID(programme, specialization string) NodeID {
	return NodeID{Programme: programme, Specialization: specialization}
}

// SubjectID returns the identifier of a subject. specialization may be empty.
func SubjectID(programme, specialization, subject string) NodeID {
	return NodeID{Programme: programme, Specialization: specialization, Subject: subject}
}

// Kind returns the hierarchy level of the identifier.
// The zero NodeID is the listing.
func (id NodeID) Kind() NodeKind {
	switch {
	case id.Subject != "":
		return KindSubject
	case id.Specialization != "":
		return KindSpecialization
	case id.Programme != "":
		return KindProgramme
	default:
		return KindListing
	}
}

// IsZero reports whether id is the zero identifier.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

// String returns "PROG", "PROG/SPEC", "PROG/SPEC/SUBJ" or "PROG//SUBJ".
func (id NodeID) String() string {
	switch id.Kind() {
	case KindSubject:
		return id.Programme + idSeparator + id.Specialization + idSeparator + id.Subject
	case KindSpecialization:
		return id.Programme + idSeparator + id.Specialization
	default:
		return id.Programme
	}
}

// Validate checks that the identifier is well formed.
func (id NodeID) Validate() error {
	if id.Programme == "" {
		return fmt.Errorf("%w: missing programme code", ErrInvalidNodeID)
	}
	for _, code := range []string{id.Programme, id.Specialization, id.Subject} {
		if strings.Contains(code, idSeparator) {
			return fmt.Errorf("%w: code %q contains %q", ErrInvalidNodeID, code, idSeparator)
		}
	}
	return nil
}

// Parent returns the identifier of the node that discovered id.
// Programmes have the zero NodeID (the listing) as parent.
func (id NodeID) Parent() NodeID {
	switch id.Kind() {
	case KindSubject:
		return NodeID{Programme: id.Programme, Specialization: id.Specialization}
	case KindSpecialization:
		return NodeID{Programme: id.Programme}
	default:
		return NodeID{}
	}
}

// ParseNodeID is the inverse of NodeID.String.
func ParseNodeID(s string) (NodeID, error) {
	parts := strings.Split(s, idSeparator)
	var id NodeID
	switch len(parts) {
	case 1:
		id = NodeID{Programme: parts[0]}
	case 2:
		id = NodeID{Programme: parts[0], Specialization: parts[1]}
		if id.Specialization == "" {
			return NodeID{}, fmt.Errorf("%w: %q", ErrInvalidNodeID, s)
		}
	case 3:
		id = NodeID{Programme: parts[0], Specialization: parts[1], Subject: parts[2]}
		if id.Subject == "" {
			return NodeID{}, fmt.Errorf("%w: %q", ErrInvalidNodeID, s)
		}
	default:
		return NodeID{}, fmt.Errorf("%w: %q", ErrInvalidNodeID, s)
	}
	if err := id.Validate(); err != nil {
		return NodeID{}, err
	}
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so NodeID can be used as a
// JSON string and map key.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Faculty identifies the faculty that owns a programme.
type Faculty struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// PlanRow holds the study-plan attributes of a subject as listed in the
// plan table of its programme or specialization.
type PlanRow struct {
	Credits    string   `json:"credits,omitempty"`
	Obligation string   `json:"obligation,omitempty"`
	Completion string   `json:"completion,omitempty"`
	Group      string   `json:"group,omitempty"`
	Semesters  []string `json:"semesters,omitempty"`
	Year       string   `json:"year,omitempty"`
}

// Node is a discovered node: everything known about it before its own page
// is fetched. Nodes are persisted in the crawl state so a resumed run can
// fetch them without revisiting the parent.
type Node struct {
	ID       NodeID   `json:"id"`
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Faculty  *Faculty `json:"faculty,omitempty"`
	Duration string   `json:"duration,omitempty"`
	PlanRow  *PlanRow `json:"plan_row,omitempty"`
}

// Kind returns the hierarchy level of the node.
func (n Node) Kind() NodeKind {
	return n.ID.Kind()
}
