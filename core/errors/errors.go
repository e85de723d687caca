// Package errors provides standardized error types and helpers for the
// catma-go codebase, including the parse-time error taxonomy of the
// annotation extractors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")

	// ErrMalformedMarker indicates a syntactically invalid span marker
	ErrMalformedMarker = errors.New("malformed span marker")
	// ErrUnmatchedSpanMarker indicates an unbalanced open/close marker pair
	ErrUnmatchedSpanMarker = errors.New("unmatched span marker")
	// ErrMalformedRow indicates a token row with missing columns
	ErrMalformedRow = errors.New("malformed token row")
)

// MalformedMarkerError reports a span marker that does not follow the
// bracket-coded syntax "(N", "N)" or "(N)". Sentence and Line locate the
// token row, Column is the zero-based annotation column index.
type MalformedMarkerError struct {
	Sentence int    // zero-based sentence (line block) index
	Line     int    // one-based line number in the input
	Column   int    // zero-based annotation column index
	Value    string // the offending marker text
	Err      error  // underlying error, if any
}

func (e *MalformedMarkerError) Error() string {
	return fmt.Sprintf("malformed span marker %q at line %d, column %d (sentence %d)",
		e.Value, e.Line, e.Column, e.Sentence)
}

// Unwrap exposes the sentinel and, when present, the attached cause,
// so errors.Is matches ErrMalformedMarker either way.
func (e *MalformedMarkerError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedMarker, e.Err}
	}
	return []error{ErrMalformedMarker}
}

// UnmatchedSpanMarkerError reports a span marker without a counterpart:
// either a chain left open at sentence end or a close with no prior open.
type UnmatchedSpanMarkerError struct {
	Chain    int    // the chain id of the unmatched marker
	Sentence int    // zero-based sentence (line block) index
	Line     int    // one-based line number, the sentence's last line for unclosed opens
	Reason   string // "open without close" or "close without open"
}

func (e *UnmatchedSpanMarkerError) Error() string {
	return fmt.Sprintf("unmatched span marker for chain %d at line %d (sentence %d): %s",
		e.Chain, e.Line, e.Sentence, e.Reason)
}

func (e *UnmatchedSpanMarkerError) Unwrap() error {
	return ErrUnmatchedSpanMarker
}

// MalformedRowError reports a token row that does not carry the expected
// number of columns.
type MalformedRowError struct {
	Sentence int // zero-based sentence (line block) index
	Line     int // one-based line number in the input
	Want     int // minimum number of columns required
	Got      int // number of columns found
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed token row at line %d (sentence %d): got %d columns, want at least %d",
		e.Line, e.Sentence, e.Got, e.Want)
}

func (e *MalformedRowError) Unwrap() error {
	return ErrMalformedRow
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "collection", "tag", "job")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNotFound, e.Err}
	}
	return []error{ErrNotFound}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "CoNLL-2012", "TEI")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUnsupported, e.Err}
	}
	return []error{ErrUnsupported}
}

// Helper functions for creating common errors

// NewMalformedMarker creates a MalformedMarkerError
func NewMalformedMarker(sentence, line, column int, value string, err error) *MalformedMarkerError {
	return &MalformedMarkerError{
		Sentence: sentence,
		Line:     line,
		Column:   column,
		Value:    value,
		Err:      err,
	}
}

// NewUnmatchedSpanMarker creates an UnmatchedSpanMarkerError
func NewUnmatchedSpanMarker(chain, sentence, line int, reason string) *UnmatchedSpanMarkerError {
	return &UnmatchedSpanMarkerError{
		Chain:    chain,
		Sentence: sentence,
		Line:     line,
		Reason:   reason,
	}
}

// NewMalformedRow creates a MalformedRowError
func NewMalformedRow(sentence, line, want, got int) *MalformedRowError {
	return &MalformedRowError{
		Sentence: sentence,
		Line:     line,
		Want:     want,
		Got:      got,
	}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsParse reports whether err is or wraps a ParseError.
func IsParse(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsUnsupported reports whether err is or wraps an UnsupportedError.
func IsUnsupported(err error) bool {
	var target *UnsupportedError
	return errors.As(err, &target)
}
