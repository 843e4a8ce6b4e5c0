// Package apperr defines typed errors with categories for user-facing reporting.
//
// Every failure a command can hit is classified by Kind so hosts can decide how
// to surface it. Errors from query execution also carry the job ID when one is
// known, which lets users correlate a failure with the job in the console.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// Input indicates a missing editor, selection or query text.
	Input Kind = "input"
	// Config indicates unreadable or invalid settings.
	Config Kind = "config"
	// Submission indicates the remote service rejected the job.
	Submission Kind = "submission"
	// Shape indicates the remote service answered with an unexpected response.
	Shape Kind = "shape"
	// Retrieval indicates a submitted job whose results could not be read.
	Retrieval Kind = "retrieval"
	// Format indicates an output backend failure.
	Format Kind = "format"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	JobID   string
	Err     error
}

func (e *E) Error() string {
	msg := e.Message
	if e.JobID != "" {
		msg = fmt.Sprintf("%s (job %s)", msg, e.JobID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// WithJob returns a copy of e that carries jobID.
func (e *E) WithJob(jobID string) *E {
	cp := *e
	cp.JobID = jobID
	return &cp
}

// KindOf returns the kind of the first *E in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// JobIDOf returns the job ID recorded on err, if any.
func JobIDOf(err error) string {
	var e *E
	if errors.As(err, &e) {
		return e.JobID
	}
	return ""
}

// Is reports whether err is an *E of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
