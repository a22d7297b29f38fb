// Package colerr defines the error taxonomy shared by every core
// component: ResourcesExhausted, Codec, Accumulator, Internal, and
// External. Errors are constructed with github.com/pkg/errors so a
// stack trace survives wrapping across package boundaries, and remain
// unwrappable with the standard errors package via Unwrap.
package colerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind int

const (
	// ResourcesExhausted indicates a denied memory grant or a refused
	// spill request.
	ResourcesExhausted Kind = iota
	// Codec indicates a failure in take/slice/concat/cast/encode/decode.
	Codec
	// Accumulator indicates a failure propagated unchanged from an
	// Accumulator method.
	Accumulator
	// Internal indicates an unsupported data type, a schema lookup
	// failure, or an invalid argument count — a programming error.
	Internal
	// External wraps a foreign error surfaced through a batch stream.
	External
)

func (k Kind) String() string {
	switch k {
	case ResourcesExhausted:
		return "resources_exhausted"
	case Codec:
		return "codec"
	case Accumulator:
		return "accumulator"
	case Internal:
		return "internal"
	case External:
		return "external"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every core component.
// It satisfies errors.As/errors.Is via Unwrap.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.err }

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind, wrapping cause with
// pkg/errors so a stack trace is captured at the wrap site.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: errors.WithStack(cause)}
}

// ResourcesExhaustedf is shorthand for New(ResourcesExhausted, ...).
func ResourcesExhaustedf(format string, args ...any) *Error {
	return New(ResourcesExhausted, format, args...)
}

// Codecf is shorthand for New(Codec, ...).
func Codecf(format string, args ...any) *Error {
	return New(Codec, format, args...)
}

// Internalf is shorthand for New(Internal, ...).
func Internalf(format string, args ...any) *Error {
	return New(Internal, format, args...)
}

// WrapAccumulator wraps an error returned from an Accumulator method
// unchanged in kind, per spec: "Accumulator: propagated unchanged."
func WrapAccumulator(cause error) *Error {
	if cause == nil {
		return nil
	}
	var existing *Error
	if errors.As(cause, &existing) {
		return existing
	}
	return Wrap(Accumulator, cause, "accumulator")
}

// WrapExternal wraps a foreign error surfaced through a batch stream.
func WrapExternal(cause error) *Error {
	if cause == nil {
		return nil
	}
	return Wrap(External, cause, "external")
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
