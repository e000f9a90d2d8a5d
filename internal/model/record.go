package model

// Record is a typed catalog record written to a data sink.
// Each record is keyed by its place in the hierarchy.
type Record interface {
	// RecordID returns the hierarchy key of the record.
	RecordID() NodeID
}

// ProgrammeNode is a study programme.
type ProgrammeNode struct {
	// Code is the programme abbreviation (e.g. "MITAI"), unique within a locale.
	Code string `json:"code"`

	// Name is the display name of the programme.
	Name string `json:"name"`

	// Faculty is the faculty that runs the programme.
	Faculty Faculty `json:"faculty"`

	// Duration is the standard study duration as written on the site.
	Duration string `json:"duration,omitempty"`

	// Credits is the credit total of the study plan, empty when unknown.
	Credits string `json:"credits,omitempty"`

	// URL is the absolute source URL of the programme page.
	URL string `json:"url"`

	// Specializations lists the specialization codes in page order.
	// It is empty for programmes whose subjects hang directly below them.
	Specializations []string `json:"specializations"`

	Locale Locale `json:"locale"`
}

// RecordID implements Record.
func (p *ProgrammeNode) RecordID() NodeID {
	return ProgrammeID(p.Code)
}

// SpecializationNode is a specialization of a programme.
type SpecializationNode struct {
	ProgrammeCode string `json:"programme_code"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Duration      string `json:"duration,omitempty"`
	Credits       string `json:"credits,omitempty"`
	URL           string `json:"url"`
	Locale        Locale `json:"locale"`
}

// RecordID implements Record.
func (s *SpecializationNode) RecordID() NodeID {
	return SpecializationID(s.ProgrammeCode, s.Code)
}

// SubjectRecord is a subject of a study plan. It is a leaf of the hierarchy.
type SubjectRecord struct {
	ProgrammeCode string `json:"programme_code"`

	// SpecializationCode is empty for subjects of programmes without
	// specializations.
	SpecializationCode string `json:"specialization_code,omitempty"`

	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Credits    string   `json:"credits,omitempty"`
	Obligation string   `json:"obligation,omitempty"`
	Completion string   `json:"completion,omitempty"`
	Group      string   `json:"group,omitempty"`
	Semesters  []string `json:"semesters,omitempty"`
	Year       string   `json:"year,omitempty"`
	URL        string   `json:"url"`
	Locale     Locale   `json:"locale"`
}

// RecordID implements Record.
func (s *SubjectRecord) RecordID() NodeID {
	return SubjectID(s.ProgrammeCode, s.SpecializationCode, s.Code)
}
