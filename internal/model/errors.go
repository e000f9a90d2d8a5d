package model

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies a fetch failure by whether retrying can help.
type FetchErrorKind int

const (
	// FetchTransient covers network errors, timeouts and server-side
	// failures. The node is retried.
	FetchTransient FetchErrorKind = iota

	// FetchPermanent covers client errors and pages that cannot be parsed.
	// The node is not retried.
	FetchPermanent
)

// String returns "transient" or "permanent".
func (k FetchErrorKind) String() string {
	if k == FetchPermanent {
		return "permanent"
	}
	return "transient"
}

// MarshalText implements encoding.TextMarshaler.
func (k FetchErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the textual form produced by MarshalText.
func (k *FetchErrorKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "permanent":
		*k = FetchPermanent
	case "transient":
		*k = FetchTransient
	default:
		return fmt.Errorf("unknown fetch error kind %q", text)
	}
	return nil
}

// FetchError is returned by page fetchers.
type FetchError struct {
	Kind FetchErrorKind

	// URL is the page that failed.
	URL string

	// Status is the HTTP status code, 0 when no response was received.
	Status int

	// Detail is a short human-readable description.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s fetch error for %s", e.Kind, e.URL)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewTransientError returns a FetchError of kind FetchTransient.
func NewTransientError(url, detail string, err error) *FetchError {
	return &FetchError{Kind: FetchTransient, URL: url, Detail: detail, Err: err}
}

// NewPermanentError returns a FetchError of kind FetchPermanent.
func NewPermanentError(url, detail string, err error) *FetchError {
	return &FetchError{Kind: FetchPermanent, URL: url, Detail: detail, Err: err}
}

// IsPermanent reports whether err is a permanent fetch failure.
// Errors that are not FetchErrors are not permanent.
func IsPermanent(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchPermanent
}
