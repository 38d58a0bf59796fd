package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrIngestionBusy indicates another caller currently holds the burst for an ingestion.
	ErrIngestionBusy = errors.New("ingestion is already bursting")

	// ErrBurstSuperseded indicates the ingestion left the burst it was in,
	// through a cancellation or a newer burst claiming an expired lease.
	ErrBurstSuperseded = errors.New("burst superseded")

	// ErrMarkOutOfOrder indicates a mark whose sequence does not directly follow the last mark.
	ErrMarkOutOfOrder = errors.New("mark sequence out of order")

	// ErrBurstCanceled indicates a burst was stopped on request.
	// Errors of this kind route the ingestion to the cancel action instead of backoff.
	ErrBurstCanceled = errors.New("burst canceled")
)

// CancelError carries the reason a burst was canceled.
// It matches ErrBurstCanceled with errors.Is.
type CancelError struct {
	Reason string
}

func (e *CancelError) Error() string {
	if e.Reason == "" {
		return ErrBurstCanceled.Error()
	}
	return fmt.Sprintf("%s: %s", ErrBurstCanceled, e.Reason)
}

// Is reports whether target is ErrBurstCanceled.
func (e *CancelError) Is(target error) bool {
	return target == ErrBurstCanceled
}

// SourceError wraps a failure raised by a source adapter.
type SourceError struct {
	Provider string
	Op       string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// StoreError wraps a failure raised by the ingestion store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// TargetError wraps a failure raised while applying a mutation to the target store.
type TargetError struct {
	Sequence int
	Err      error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("target: apply mutation for mark %d: %v", e.Sequence, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether err is a cancellation rather than an ordinary failure.
// Classification is by error kind only; context.Canceled counts as a cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrBurstCanceled) || errors.Is(err, context.Canceled)
}

// CancelReason extracts a human-readable reason from a cancellation error.
func CancelReason(err error) string {
	var ce *CancelError
	if errors.As(err, &ce) && ce.Reason != "" {
		return ce.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
