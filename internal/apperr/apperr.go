// Package apperr defines the error taxonomy shared by the import pipeline,
// the repository and the HTTP layer. Each failure class is a concrete type
// that also matches a sentinel through errors.Is, so callers can branch on
// the class without caring about the details.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable matches any *UpstreamUnavailableError.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedRecord matches any *MalformedRecordError.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidQuery matches any *InvalidQueryError.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotFound matches any *NotFoundError.
	ErrNotFound = errors.New("not found")
)

// UpstreamUnavailableError is returned when the upstream catalog cannot be
// reached or answers with a non-success status.
type UpstreamUnavailableError struct {
	Kind       string
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream unavailable for %s (status %d): %s", e.Kind, e.StatusCode, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream unavailable for %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("upstream unavailable for %s", e.Kind)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

func (e *UpstreamUnavailableError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// MalformedRecordError reports an upstream record that is missing a required
// field or carries it with the wrong shape.
type MalformedRecordError struct {
	Kind   string
	Key    string
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("malformed %s record %s: field %q %s", e.Kind, e.Key, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed %s record: field %q %s", e.Kind, e.Field, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidQueryError reports bad pagination or search parameters.
type InvalidQueryError struct {
	Fields []FieldError
}

func (e *InvalidQueryError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid query"
	}
	return e.Fields[0].Message
}

func (e *InvalidQueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}

// NotFoundError reports a detail lookup miss.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewInvalidQuery builds an InvalidQueryError for a single field.
func NewInvalidQuery(field, message string) *InvalidQueryError {
	return &InvalidQueryError{Fields: []FieldError{{Field: field, Message: message}}}
}

// NewNotFound builds a NotFoundError.
func NewNotFound(kind string, id int64) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// NewMalformed builds a MalformedRecordError.
func NewMalformed(kind, key, field, reason string) *MalformedRecordError {
	return &MalformedRecordError{Kind: kind, Key: key, Field: field, Reason: reason}
}
