package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexNotFound signals a missing index.
	ErrIndexNotFound = errors.New("index not found")
	// ErrUnsupportedFeature signals an operation the index type or version does not support.
	ErrUnsupportedFeature = errors.New("unsupported feature")
	// ErrTooManyFields signals that a schema category hit its configured field limit.
	ErrTooManyFields = errors.New("too many fields")
	// ErrDocumentParsing signals an invalid field or identifier in a single document.
	ErrDocumentParsing = errors.New("document parsing error")
	// ErrModel signals an embedding model failure (unknown model, bad properties, load or download failure).
	ErrModel = errors.New("model error")
	// ErrInference signals a generic inference failure while vectorising document content.
	ErrInference = errors.New("inference error")
	// ErrLockTimeout signals that the schema lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock acquisition timed out")
	// ErrInternal signals an unrecognized index variant or another invariant violation.
	ErrInternal = errors.New("internal error")
)

// CapacityError reports a rejected schema growth attempt. It names the field,
// the current count, the limit and the configuration knob that raises it.
type CapacityError struct {
	Index    string
	Field    string
	Category string
	Count    int
	Limit    int
	EnvVar   string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(
		"index %s has %d %s fields. Your request to add %s as a %s field is rejected "+
			"since it exceeds the limit of %d. Please set a larger limit in the %s environment variable",
		e.Index, e.Count, e.Category, e.Field, e.Category, e.Limit, e.EnvVar,
	)
}

func (e *CapacityError) Unwrap() error { return ErrTooManyFields }

// DocumentError is a failure scoped to a single document in a batch. The
// ingestion pipeline converts it into a per-document outcome instead of
// aborting the batch.
type DocumentError struct {
	ID      string
	Status  int
	Message string
	Cause   error
}

func (e *DocumentError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("doc %s: %s", e.ID, e.Message)
	}
	return e.Message
}

func (e *DocumentError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrDocumentParsing
}

// NewDocumentError creates a document-scoped validation failure (status 400).
func NewDocumentError(id, message string) *DocumentError {
	return &DocumentError{ID: id, Status: 400, Message: message}
}

// ModelError wraps an embedding capability failure that is terminal for the
// whole operation (unknown model, invalid properties, load/download failure).
type ModelError struct {
	Reason error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("problem vectorising content. Reason: %v", e.Reason)
}

func (e *ModelError) Unwrap() error { return ErrModel }
