// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/store"
)

// ErrPublisherClosed is returned when publishing on a closed publisher.
var ErrPublisherClosed = errors.New("publisher is closed")

// ErrStreamNotFound is returned when the NATS stream doesn't exist.
var ErrStreamNotFound = errors.New("stream not found")

// ErrInvalidConfig is returned when configuration is invalid.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrorCategory categorizes errors for DLQ routing and metrics.
type ErrorCategory int

const (
	// ErrorCategoryUnknown is the default category for unclassified errors.
	ErrorCategoryUnknown ErrorCategory = iota
	// ErrorCategoryConnection indicates network or connection failures.
	ErrorCategoryConnection
	// ErrorCategoryTimeout indicates operation timeout.
	ErrorCategoryTimeout
	// ErrorCategoryValidation indicates a malformed event.
	ErrorCategoryValidation
	// ErrorCategoryDatabase indicates aggregate store failures.
	ErrorCategoryDatabase
	// ErrorCategoryCapacity indicates resource capacity issues.
	ErrorCategoryCapacity
)

// String returns the string representation of the error category.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryConnection:
		return "connection"
	case ErrorCategoryTimeout:
		return "timeout"
	case ErrorCategoryValidation:
		return "validation"
	case ErrorCategoryDatabase:
		return "database"
	case ErrorCategoryCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// RetryableError is a processing failure worth redelivering: the store or
// the broker was unreachable, a transaction kept conflicting, a deadline
// passed.
type RetryableError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewRetryableError creates a new retryable error.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{
		Message:  message,
		Cause:    cause,
		Category: categorize(message, cause),
	}
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// PermanentError is a processing failure that can never succeed on retry.
// The router acknowledges the message and routes it to the dead-letter topic.
type PermanentError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, cause error) *PermanentError {
	category := categorize(message, cause)
	if category == ErrorCategoryUnknown {
		category = ErrorCategoryValidation
	}
	return &PermanentError{
		Message:  message,
		Cause:    cause,
		Category: category,
	}
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// ExhaustedError wraps the last failure of an event that used up its
// delivery attempts.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Classify converts a handler failure into a RetryableError or
// PermanentError. Malformed events are permanent; store transient errors and
// anything unknown are retryable, so nothing is dropped on a guess.
func Classify(message string, err error) error {
	if err == nil {
		return nil
	}
	var perm *PermanentError
	var retry *RetryableError
	if errors.As(err, &perm) || errors.As(err, &retry) {
		return err
	}
	if models.IsMalformedEvent(err) || errors.Is(err, store.ErrInvalidField) {
		return NewPermanentError(message, err)
	}
	return NewRetryableError(message, err)
}

// categorize picks a category from typed causes first and falls back to the
// message text.
func categorize(message string, cause error) ErrorCategory {
	switch {
	case cause != nil && models.IsMalformedEvent(cause):
		return ErrorCategoryValidation
	case cause != nil && errors.Is(cause, context.DeadlineExceeded):
		return ErrorCategoryTimeout
	case cause != nil && store.IsTransient(cause):
		return ErrorCategoryDatabase
	}

	text := strings.ToLower(message)
	if cause != nil {
		text += " " + strings.ToLower(cause.Error())
	}
	switch {
	case containsAny(text, "connection", "connect", "refused", "reset", "network"):
		return ErrorCategoryConnection
	case containsAny(text, "timeout", "deadline", "timed out"):
		return ErrorCategoryTimeout
	case containsAny(text, "invalid", "validation", "malformed", "parse"):
		return ErrorCategoryValidation
	case containsAny(text, "database", "store", "sql", "badger", "query"):
		return ErrorCategoryDatabase
	case containsAny(text, "capacity", "full", "limit", "exceeded"):
		return ErrorCategoryCapacity
	default:
		return ErrorCategoryUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CategoryOf returns the category carried by err, or unknown.
func CategoryOf(err error) ErrorCategory {
	var retry *RetryableError
	var perm *PermanentError
	switch {
	case errors.As(err, &perm):
		return perm.Category
	case errors.As(err, &retry):
		return retry.Category
	default:
		return categorize("", err)
	}
}

// IsRetryableError checks if the error is retryable.
func IsRetryableError(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// IsPermanentError checks if the error is permanent (non-retryable).
func IsPermanentError(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}

// IsExhausted reports whether err marks an event out of attempts.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}
