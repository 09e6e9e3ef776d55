package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. The orchestrator maps kinds to
// link-state transitions; politeness failures do not count toward the
// blocked promotion threshold.
type ErrorKind string

// Error kinds, matching the error-handling taxonomy.
const (
	ErrKindPoliteness ErrorKind = "politeness"
	ErrKindTransport  ErrorKind = "transport"
	ErrKindExtraction ErrorKind = "low-quality"
	ErrKindRelevance  ErrorKind = "off-topic"
	ErrKindDuplicate  ErrorKind = "duplicate"
	ErrKindStore      ErrorKind = "store-write"
	ErrKindConfig     ErrorKind = "config"
	ErrKindFatal      ErrorKind = "fatal"
)

// PipelineError carries an error kind alongside the underlying cause.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError builds a PipelineError of the given kind.
func NewPipelineError(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the error kind from err, returning ErrKindTransport for
// plain errors (the most common external failure mode).
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrKindTransport
}

// CountsTowardBlocked reports whether failures of this kind increment
// error_count for the FAILED -> BLOCKED promotion.
func (k ErrorKind) CountsTowardBlocked() bool {
	switch k {
	case ErrKindPoliteness, ErrKindRelevance, ErrKindDuplicate:
		return false
	default:
		return true
	}
}
