// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/vanguard-fleet/commsnet/transport"
)

// Reason is the session error taxonomy. Every failure a caller sees
// carries one of these; raw transport errors never cross the engine
// boundary.
type Reason string

const (
	// ReasonTokenFailure means credential issuance failed. Retryable.
	ReasonTokenFailure Reason = "TOKEN_FAILURE"

	// ReasonTransportUnavailable means the backend was unreachable.
	// Retryable; backoff is the caller's choice.
	ReasonTransportUnavailable Reason = "TRANSPORT_UNAVAILABLE"

	// ReasonTimeout means the connect budget elapsed. Retryable.
	ReasonTimeout Reason = "TIMEOUT"

	// ReasonDenied means policy or approval rejected the request. Not
	// retryable without an external state change.
	ReasonDenied Reason = "DENIED"

	// ReasonTransportInternal is an unexpected transport fault, logged
	// and surfaced verbatim. Retryable at the caller's discretion.
	ReasonTransportInternal Reason = "TRANSPORT_INTERNAL"
)

// Retryable reports whether a retry can plausibly succeed without an
// external state change.
func (r Reason) Retryable() bool {
	return r != ReasonDenied
}

// Error is a classified session failure.
type Error struct {
	Reason  Reason
	Message string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds a classified error with a formatted message.
func newError(reason Reason, format string, args ...any) *Error {
	return &Error{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// classify maps a transport or context error onto the taxonomy.
func classify(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	switch {
	case errors.Is(err, transport.ErrTokenFailure):
		return &Error{Reason: ReasonTokenFailure, Err: err}
	case errors.Is(err, transport.ErrDenied):
		return &Error{Reason: ReasonDenied, Err: err}
	case errors.Is(err, transport.ErrUnavailable):
		return &Error{Reason: ReasonTransportUnavailable, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Reason: ReasonTimeout, Err: err}
	default:
		return &Error{Reason: ReasonTransportInternal, Err: err}
	}
}
