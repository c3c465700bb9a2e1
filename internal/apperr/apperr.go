// Package apperr defines the typed error kinds the scheduler and queue
// raise: ValidationError, SecretMissing, NodeRuntimeError,
// SchedulerInternalError, and ClaimLost. Callers distinguish them with
// errors.Is against the exported sentinels and unwrap the detail message
// with errors.Unwrap/fmt's %w chain.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories callers can switch on.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindSecretMissing     Kind = "secret_missing"
	KindNodeRuntime       Kind = "node_runtime_error"
	KindSchedulerInternal Kind = "scheduler_internal_error"
	KindClaimLost         Kind = "claim_lost"
)

// Error wraps a message with a Kind so callers can branch on category
// without string-matching, while still printing a useful message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, apperr.ErrSecretMissing) etc. match any *Error
// of the same Kind, regardless of message or wrapped detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels to compare against with errors.Is. Only Kind is compared.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrSecretMissing     = &Error{Kind: KindSecretMissing}
	ErrNodeRuntime       = &Error{Kind: KindNodeRuntime}
	ErrSchedulerInternal = &Error{Kind: KindSchedulerInternal}
	ErrClaimLost         = &Error{Kind: KindClaimLost}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func SecretMissing(ref string) error {
	return &Error{Kind: KindSecretMissing, Message: fmt.Sprintf("secret %q not found in execution secrets", ref)}
}

func NodeRuntime(nodeID string, err error) error {
	return &Error{Kind: KindNodeRuntime, Message: fmt.Sprintf("node %q failed", nodeID), Err: err}
}

func SchedulerInternal(format string, args ...any) error {
	return &Error{Kind: KindSchedulerInternal, Message: fmt.Sprintf(format, args...)}
}

func ClaimLost(executionID string) error {
	return &Error{Kind: KindClaimLost, Message: fmt.Sprintf("execution %q already claimed by another worker", executionID)}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Message returns the user-visible string for err. Per spec.md §7, a
// NodeRuntimeError preserves the failing node's own message verbatim —
// the kind/node-id wrapper added by NodeRuntime is for internal
// logging, not for what callers see — so it unwraps straight to the
// node's error. Every other kind's Error() is already the user-facing
// message.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindNodeRuntime && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}
