// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package errs defines the gateway's error-kind taxonomy.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can decide retry, surface, or log policy
// without string-matching messages.
type Kind string

const (
	InvalidParameter      Kind = "invalid-parameter"
	UnsupportedCapability Kind = "unsupported-capability"
	NotFound              Kind = "not-found"
	BackendUnavailable    Kind = "backend-unavailable"
	BackendRejected       Kind = "backend-rejected"
	BackendTransient      Kind = "backend-transient"
	Timeout               Kind = "timeout"
	Cancelled             Kind = "cancelled"
	ToolExecutionFailed   Kind = "tool-execution-failed"
	ParseError            Kind = "parse-error"
	StorageError          Kind = "storage-error"
)

// Error is the gateway's uniform error shape, carrying a Kind, a human
// message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

// New constructs an *Error with the given kind and formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error carrying cause as its Unwrap target.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, or "" otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether an error's kind represents a condition worth
// retrying with backoff (used by adapters, never by the executor itself).
func Retryable(err error) bool {
	switch KindOf(err) {
	case BackendTransient:
		return true
	default:
		return false
	}
}
