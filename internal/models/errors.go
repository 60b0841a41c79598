package models

import (
	"errors"
	"fmt"
)

// Storage errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
)

// ErrorKind classifies prediction failures so callers can map them without
// parsing messages.
type ErrorKind string

const (
	KindRaceNotFound          ErrorKind = "race_not_found"
	KindEmptyEntries          ErrorKind = "empty_entries"
	KindModelError            ErrorKind = "model_error"
	KindEmptyResult           ErrorKind = "empty_result"
	KindTimeout               ErrorKind = "timeout"
	KindInvalidEntryReference ErrorKind = "invalid_entry_reference"
	KindPersistence           ErrorKind = "persistence_error"
	KindInvalidRequest        ErrorKind = "invalid_request"
	KindOrchestration         ErrorKind = "orchestration_error"
)

// Failure categories a transport layer maps to status codes
const (
	CategoryNotFound      = "not_found"
	CategoryUnprocessable = "unprocessable"
	CategoryUnavailable   = "unavailable"
	CategoryTimeout       = "timeout"
	CategoryInternal      = "internal"
	CategoryBadRequest    = "bad_request"
)

// Category returns the failure category for the kind
func (k ErrorKind) Category() string {
	switch k {
	case KindRaceNotFound:
		return CategoryNotFound
	case KindEmptyEntries:
		return CategoryUnprocessable
	case KindModelError, KindEmptyResult:
		return CategoryUnavailable
	case KindTimeout:
		return CategoryTimeout
	case KindInvalidRequest:
		return CategoryBadRequest
	default:
		return CategoryInternal
	}
}

// PredictionError is the typed error produced by every stage of a prediction run.
type PredictionError struct {
	Kind      ErrorKind
	Retryable bool
	Message   string
	Err       error
}

func (e *PredictionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// Is matches another PredictionError of the same kind, so sentinel-style
// comparisons like errors.Is(err, &PredictionError{Kind: KindTimeout}) work.
func (e *PredictionError) Is(target error) bool {
	t, ok := target.(*PredictionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// AsPredictionError extracts a PredictionError from an error chain
func AsPredictionError(err error) (*PredictionError, bool) {
	var perr *PredictionError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// KindOf returns the kind of a prediction error, or "" for foreign errors
func KindOf(err error) ErrorKind {
	if perr, ok := AsPredictionError(err); ok {
		return perr.Kind
	}
	return ""
}

// IsRetryable reports whether the orchestrator may retry after err
func IsRetryable(err error) bool {
	if perr, ok := AsPredictionError(err); ok {
		return perr.Retryable
	}
	return false
}

func newPredictionError(kind ErrorKind, retryable bool, err error, format string, args ...interface{}) *PredictionError {
	return &PredictionError{
		Kind:      kind,
		Retryable: retryable,
		Message:   fmt.Sprintf(format, args...),
		Err:       err,
	}
}

// NewRaceNotFoundError reports a missing race
func NewRaceNotFoundError(raceID int64) *PredictionError {
	return newPredictionError(KindRaceNotFound, false, nil, "race %d not found", raceID)
}

// NewEmptyEntriesError reports a race without runners
func NewEmptyEntriesError(raceID int64) *PredictionError {
	return newPredictionError(KindEmptyEntries, false, nil, "race %d has no runner entries", raceID)
}

// NewModelError wraps a gateway failure
func NewModelError(retryable bool, err error, format string, args ...interface{}) *PredictionError {
	return newPredictionError(KindModelError, retryable, err, format, args...)
}

// NewEmptyResultError reports a gateway that returned no rankings
func NewEmptyResultError(modelVersion string) *PredictionError {
	return newPredictionError(KindEmptyResult, false, nil, "model %q returned no rankings", modelVersion)
}

// NewTimeoutError reports an inference that ran past its budget
func NewTimeoutError(retryable bool, err error, format string, args ...interface{}) *PredictionError {
	return newPredictionError(KindTimeout, retryable, err, format, args...)
}

// NewInvalidEntryReferenceError reports a ranking for an entry outside the race
func NewInvalidEntryReferenceError(raceID, entryID int64) *PredictionError {
	return newPredictionError(KindInvalidEntryReference, false, nil, "entry %d does not belong to race %d", entryID, raceID)
}

// NewPersistenceError wraps a storage failure
func NewPersistenceError(err error, format string, args ...interface{}) *PredictionError {
	return newPredictionError(KindPersistence, false, err, format, args...)
}

// NewInvalidRequestError reports a request that failed validation
func NewInvalidRequestError(err error) *PredictionError {
	return newPredictionError(KindInvalidRequest, false, err, "invalid prediction request")
}

// NewOrchestrationError wraps an error of unknown kind
func NewOrchestrationError(err error) *PredictionError {
	return newPredictionError(KindOrchestration, false, err, "unexpected prediction failure")
}
