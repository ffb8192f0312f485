// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agenterr defines the error taxonomy shared by every SDK surface and
// its translation to and from Temporal application errors.
package agenterr

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/temporal"
)

// Kind classifies an SDK error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation covers malformed input: bad names, missing fields, bad workflow types.
	KindValidation
	// KindNotFound covers unknown agents, workflows or instances.
	KindNotFound
	// KindTimeout covers RPC and A2A calls whose caller deadline expired.
	KindTimeout
	// KindOperationFailed covers dispatched operations that failed after retries.
	KindOperationFailed
	// KindTerminalState covers mutations attempted on completed resources.
	KindTerminalState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	case KindTimeout:
		return "TimeoutError"
	case KindOperationFailed:
		return "OperationFailed"
	case KindTerminalState:
		return "TerminalStateViolation"
	default:
		return "Unknown"
	}
}

func kindFromString(s string) Kind {
	for _, k := range []Kind{KindValidation, KindNotFound, KindTimeout, KindOperationFailed, KindTerminalState} {
		if k.String() == s {
			return k
		}
	}
	return KindUnknown
}

// Error is the concrete error type returned by the SDK.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, agenterr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrOperationFailed = &Error{Kind: KindOperationFailed}
	ErrTerminalState   = &Error{Kind: KindTerminalState}
)

// New builds an *Error.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around a cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation reports malformed input.
func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, format, args...)
}

// FormatError reports a malformed identity string such as a workflow type.
func FormatError(value, reason string) *Error {
	return &Error{Kind: KindValidation, Op: "naming", Msg: fmt.Sprintf("invalid format %q: %s", value, reason)}
}

// AgentNotFound reports a lookup miss in the agent registry.
func AgentNotFound(name string) *Error {
	return &Error{Kind: KindNotFound, Op: "registry", Msg: fmt.Sprintf("agent %q is not registered", name)}
}

// NotFound reports a lookup miss.
func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

// Timeout reports an expired caller deadline.
func Timeout(op string, err error) *Error {
	return Wrap(KindTimeout, op, err)
}

// OperationFailed reports a dispatched operation that failed.
func OperationFailed(op string, err error) *Error {
	return Wrap(KindOperationFailed, op, err)
}

// TerminalState reports a mutation attempted on a completed resource.
func TerminalState(op, format string, args ...any) *Error {
	return New(KindTerminalState, op, format, args...)
}

// KindOf returns the Kind of the first *Error in the chain, decoding
// Temporal application errors produced by ToApplicationError on the way.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return kindFromString(appErr.Type())
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ToApplicationError converts an SDK error into a Temporal application error
// so its kind survives the activity and workflow boundary. Every kind except
// OperationFailed is deterministic for the given input and is not retried.
func ToApplicationError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Kind == KindOperationFailed || e.Kind == KindUnknown {
		return temporal.NewApplicationError(err.Error(), e.Kind.String())
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), e.Kind.String(), nil)
}

// Decode recovers the kind carried by a Temporal application error anywhere
// in err's chain.
func Decode(op string, err error) (*Error, bool) {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return nil, false
	}
	k := kindFromString(appErr.Type())
	if k == KindUnknown {
		return nil, false
	}
	return &Error{Kind: k, Op: op, Err: err}, true
}

// FromEngine maps a Temporal client or workflow error into the taxonomy.
// Errors without a known mapping are returned unchanged.
func FromEngine(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return Wrap(KindNotFound, op, err)
	}
	var deadline *serviceerror.DeadlineExceeded
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &deadline) || temporal.IsTimeoutError(err) {
		return Timeout(op, err)
	}

	if decoded, ok := Decode(op, err); ok {
		return decoded
	}
	return err
}
