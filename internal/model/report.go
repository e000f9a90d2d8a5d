package model

import (
	"time"
)

// FailedNode is a node that could not be fetched during a traversal.
// It stays pending in the crawl state so a resumed run retries it.
type FailedNode struct {
	ID       NodeID         `json:"id"`
	Kind     string         `json:"kind"`
	URL      string         `json:"url"`
	Class    FetchErrorKind `json:"class"`
	Error    string         `json:"error"`
	Attempts int            `json:"attempts"`
}

// Counts holds the number of nodes fetched per kind.
type Counts struct {
	Programmes      int `json:"programmes"`
	Specializations int `json:"specializations"`
	Subjects        int `json:"subjects"`
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	return c.Programmes + c.Specializations + c.Subjects
}

// Add increments the counter of the given kind.
func (c *Counts) Add(kind NodeKind) {
	switch kind {
	case KindProgramme:
		c.Programmes++
	case KindSpecialization:
		c.Specializations++
	case KindSubject:
		c.Subjects++
	}
}

// CrawlReport summarizes one traversal of a locale.
type CrawlReport struct {
	Locale Locale `json:"locale"`

	// Resumed is true when the run continued a persisted state.
	Resumed bool `json:"resumed"`

	// Seeded is true when the programme listing was fetched in this run.
	Seeded bool `json:"seeded"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Fetched counts the nodes fetched and written in this run.
	Fetched Counts `json:"fetched"`

	// Skipped counts nodes that were already done when the run started.
	Skipped int `json:"skipped"`

	// Pending is the number of nodes still pending after the run.
	Pending int `json:"pending"`

	// Failed lists nodes that failed permanently or exhausted their retries.
	Failed []FailedNode `json:"failed"`

	// Interrupted is true when the run was cancelled before completion.
	Interrupted bool `json:"interrupted"`

	// Error holds the fatal error message, if the run aborted.
	Error string `json:"error,omitempty"`
}

// NewCrawlReport creates an empty report for locale.
func NewCrawlReport(locale Locale) *CrawlReport {
	return &CrawlReport{
		Locale:    locale,
		StartedAt: time.Now(),
		Failed:    make([]FailedNode, 0),
	}
}

// AddFailure records a failed node.
func (r *CrawlReport) AddFailure(f FailedNode) {
	r.Failed = append(r.Failed, f)
}

// Succeeded reports whether the run completed without failed nodes.
func (r *CrawlReport) Succeeded() bool {
	return len(r.Failed) == 0 && !r.Interrupted && r.Error == ""
}

// Duration returns the wall time of the run.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
