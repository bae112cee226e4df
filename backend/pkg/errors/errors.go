package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound marks absent players, servers or pairs
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeInsufficientData marks lookups with too little history to answer
	ErrorTypeInsufficientData ErrorType = "insufficient_data"
	// ErrorTypeStoreUnavailable marks graph, session or cache store outages
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
	// ErrorTypeBatch marks a failed ETL flush
	ErrorTypeBatch ErrorType = "batch"
	// ErrorTypeInvalidArgument marks caller mistakes
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// base lets IsErrorType find the BaseError inside any typed wrapper.
func (e *BaseError) base() *BaseError {
	return e
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// ErrNotFound is returned by store adapters when an entity is absent.
// The core converts it into an empty result.
type ErrNotFound struct {
	*BaseError
	Kind string // player, server, pair, community
	Key  string
}

func NewNotFound(kind, key string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", kind, key), nil),
		Kind:      kind,
		Key:       key,
	}
}

// ErrInsufficientData is returned when a player has no recorded history
type ErrInsufficientData struct {
	*BaseError
	Subject string
	Reason  string
}

func NewInsufficientData(subject, reason string) *ErrInsufficientData {
	return &ErrInsufficientData{
		BaseError: NewBaseError(ErrorTypeInsufficientData, fmt.Sprintf("%s: %s", subject, reason), nil),
		Subject:   subject,
		Reason:    reason,
	}
}

// ErrStoreUnavailable is returned when a backing store cannot be reached
type ErrStoreUnavailable struct {
	*BaseError
	Store     string // graph, sessions, cache
	Operation string
}

func NewStoreUnavailable(store, operation string, err error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeStoreUnavailable, fmt.Sprintf("%s store unavailable during %s", store, operation), err),
		Store:     store,
		Operation: operation,
	}
}

// ErrBatchFailure is returned when one ETL flush fails. Flushes before
// FlushIndex are committed; the round range identifies where to resume.
type ErrBatchFailure struct {
	*BaseError
	RunID           string
	FlushIndex      int
	PairCount       int
	FirstRoundID    string
	LastRoundID     string
	FirstRoundStart time.Time
	LastRoundStart  time.Time
}

func NewBatchFailure(runID string, flushIndex, pairCount int, firstRoundID, lastRoundID string, firstStart, lastStart time.Time, err error) *ErrBatchFailure {
	msg := fmt.Sprintf("flush %d of run %s failed (%d pairs, rounds %s..%s)", flushIndex, runID, pairCount, firstRoundID, lastRoundID)
	return &ErrBatchFailure{
		BaseError:       NewBaseError(ErrorTypeBatch, msg, err),
		RunID:           runID,
		FlushIndex:      flushIndex,
		PairCount:       pairCount,
		FirstRoundID:    firstRoundID,
		LastRoundID:     lastRoundID,
		FirstRoundStart: firstStart,
		LastRoundStart:  lastStart,
	}
}

// ErrInvalidArgument is returned when a caller passes an unusable argument
type ErrInvalidArgument struct {
	*BaseError
	Field  string
	Reason string
}

func NewInvalidArgument(field, reason string) *ErrInvalidArgument {
	return &ErrInvalidArgument{
		BaseError: NewBaseError(ErrorTypeInvalidArgument, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Helper functions

type baser interface {
	base() *BaseError
}

// IsErrorType checks if an error (or anything it wraps) is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if b, ok := err.(baser); ok && b.base().Type == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err marks an absent entity
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsStoreUnavailable reports whether err marks a store outage
func IsStoreUnavailable(err error) bool {
	return IsErrorType(err, ErrorTypeStoreUnavailable)
}

// IsInvalidArgument reports whether err marks a caller mistake
func IsInvalidArgument(err error) bool {
	return IsErrorType(err, ErrorTypeInvalidArgument)
}

// IsBatchFailure reports whether err is a failed ETL flush
func IsBatchFailure(err error) bool {
	return IsErrorType(err, ErrorTypeBatch)
}

// AsBatchFailure extracts the batch failure context, if any
func AsBatchFailure(err error) (*ErrBatchFailure, bool) {
	var bf *ErrBatchFailure
	if stderrors.As(err, &bf) {
		return bf, true
	}
	return nil, false
}
