// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package models

import (
	"errors"
	"fmt"
	"time"
)

// AuthError means the caller credential was missing, invalid or expired.
// The request never reaches the queue.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError means the request payload was rejected. The request never
// reaches the queue.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// ServiceUnavailableError means the delivery queue could not durably accept
// the event. The caller may retry after RetryAfter.
type ServiceUnavailableError struct {
	Reason     string
	RetryAfter time.Duration
	Err        error
}

func (e *ServiceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service unavailable: %s: %v", e.Reason, e.Err)
	}
	return "service unavailable: " + e.Reason
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// MalformedEventError is returned by EngagementEvent.Validate. The processor
// acknowledges such events and dead-letters them without retrying.
type MalformedEventError struct {
	EventID string
	Field   string
	Reason  string
}

func (e *MalformedEventError) Error() string {
	if e.EventID == "" {
		return fmt.Sprintf("malformed event: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed event %s: %s: %s", e.EventID, e.Field, e.Reason)
}

// IsAuthError reports whether err wraps an *AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsServiceUnavailable reports whether err wraps a *ServiceUnavailableError.
func IsServiceUnavailable(err error) bool {
	var target *ServiceUnavailableError
	return errors.As(err, &target)
}

// IsMalformedEvent reports whether err wraps a *MalformedEventError.
func IsMalformedEvent(err error) bool {
	var target *MalformedEventError
	return errors.As(err, &target)
}
