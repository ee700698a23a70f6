// Package ywherr implements the error taxonomy from spec §7: a small set
// of error kinds (not error types per kind — a flat Kind enum attached to
// a wrapped error) and a cause-chain walker. The CLI's error printer
// (internal/cli/errors.go) uses both to print one "kind: message" line
// per cause, causes indented; it prints no source file:line.
//
// The wrapping idiom (fmt.Errorf("...: %w", err)) mirrors the teacher's
// own style throughout internal/service and internal/store; this package
// only adds the Kind tag. The CLI's exit code does not depend on Kind.
package ywherr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation-policy purposes (spec §7).
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindAuthentication
	KindNotFound
	KindProtocol
	KindTransport
	KindAdapterInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not-found"
	case KindProtocol:
		return "protocol"
	case KindTransport:
		return "transport"
	case KindAdapterInternal:
		return "adapter-internal"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged wrapped error. Fatal reports whether this error
// should abort the whole orchestration run (configuration and
// platform-level errors) as opposed to being caught and converted to an
// end-event at the Report synchronizer boundary (spec §7 "Propagation
// policy").
type Error struct {
	Kind    Kind
	Op      string
	Fatal   bool
	Wrapped error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Wrapped)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New wraps err with kind and op. Op is a short description of the
// operation that failed (e.g. "get_issue", "put tracking-status").
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Wrapped: err}
}

// Fatal wraps err the same way but marks it as fatal for the current
// (report, tracker) pair or the whole run, per spec §7 propagation
// policy.
func Fatal(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Fatal: true, Wrapped: err}
}

// KindOf extracts the Kind from err if it (or something in its chain) is
// an *Error; otherwise KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsFatal reports whether err (or something in its chain) was marked
// Fatal.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal
	}
	return false
}

// Chain unwraps err into its full cause chain, outermost first.
func Chain(err error) []error {
	var out []error
	for err != nil {
		out = append(out, err)
		err = errors.Unwrap(err)
	}
	return out
}
