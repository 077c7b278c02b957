// Package apperr defines the error taxonomy shared across the backend.
// Every failure surfaced to a caller is one of these types so the API
// layer can map it to a distinct HTTP status instead of collapsing
// everything into a generic 500.
package apperr

import "fmt"

// NotFoundError reports an unknown profile or sample id.
type NotFoundError struct {
	Resource string // "profile", "sample"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NotFound builds a NotFoundError for the given resource and id.
func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError reports malformed or unusable client input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for the given field.
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports an operation rejected because of concurrent state,
// e.g. a training job already in flight for the profile.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// Conflict builds a ConflictError.
func Conflict(reason string) *ConflictError {
	return &ConflictError{Reason: reason}
}

// TranscriptionError reports a transcription backend failure. Callers must
// never receive partial or garbage text silently; they get this instead.
type TranscriptionError struct {
	Backend string
	Err     error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed (%s): %v", e.Backend, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// ExternalServiceError reports a non-2xx response from an external
// provider (synthesis, training).
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// StorageError reports a filesystem failure persisting a profile, sample
// or audio file.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
