package worker

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes handler code is expected to
// branch on with errors.Is. The typed errors below unwrap to these.
var (
	// ErrAffinityViolation reports that a guarded foreign handle was
	// dereferenced off its origin goroutine. This is a programming error
	// in the caller, fatal to the operation but not to the invocation.
	ErrAffinityViolation = errors.New("foreign handle accessed off its origin goroutine")

	// ErrBindingNotFound reports that an environment has no binding with
	// the requested name.
	ErrBindingNotFound = errors.New("binding not found")

	// ErrBindingKindMismatch reports that a binding exists under the
	// requested name but is of a different kind.
	ErrBindingKindMismatch = errors.New("binding kind mismatch")

	// ErrFetchNotConfigured reports that the host offers no outbound
	// network channel.
	ErrFetchNotConfigured = errors.New("outbound fetch not configured")

	// ErrBodyConsumed reports a second read of a single-consumption body.
	ErrBodyConsumed = errors.New("body has already been consumed")

	// ErrRouteNotFound reports that no registered route matched a request.
	// The router never fabricates an HTTP status; converting this into a
	// 404 is the caller's choice.
	ErrRouteNotFound = errors.New("no route matched")

	// ErrParamMismatch reports a statement executed with the wrong number
	// of positional parameters. Raised before any host call.
	ErrParamMismatch = errors.New("statement parameter mismatch")

	// ErrDeserialization reports a payload that does not match the
	// requested target shape.
	ErrDeserialization = errors.New("payload does not match target shape")
)

// AffinityError carries the goroutine identities involved in an affinity
// violation. Unwraps to ErrAffinityViolation.
type AffinityError struct {
	Owner  uint64
	Caller uint64
}

func (e *AffinityError) Error() string {
	return fmt.Sprintf("handle owned by goroutine %d accessed from goroutine %d", e.Owner, e.Caller)
}

func (e *AffinityError) Unwrap() error { return ErrAffinityViolation }

// BindingError describes a failed environment binding lookup. Unwraps to
// ErrBindingNotFound or ErrBindingKindMismatch.
type BindingError struct {
	Name string
	Want BindingKind
	Got  BindingKind // KindNone when the name is absent
}

func (e *BindingError) Error() string {
	if e.Got == KindNone {
		return fmt.Sprintf("binding %q not found", e.Name)
	}
	return fmt.Sprintf("binding %q is a %s, not a %s", e.Name, e.Got, e.Want)
}

func (e *BindingError) Unwrap() error {
	if e.Got == KindNone {
		return ErrBindingNotFound
	}
	return ErrBindingKindMismatch
}

// DeserializationError reports a payload that could not be decoded into the
// requested shape. It names the target shape and the raw payload size so the
// failure is diagnosable without echoing the payload itself.
type DeserializationError struct {
	Shape string // description of the target type
	Size  int    // raw payload size in bytes
	Err   error  // underlying decode error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("cannot decode %d-byte payload into %s: %v", e.Size, e.Shape, e.Err)
}

func (e *DeserializationError) Unwrap() error { return ErrDeserialization }

// ParamMismatchError reports a positional-parameter arity failure for a
// prepared statement. Unwraps to ErrParamMismatch.
type ParamMismatchError struct {
	Query string
	Want  int
	Got   int
}

func (e *ParamMismatchError) Error() string {
	return fmt.Sprintf("statement declares %d parameter(s), %d bound", e.Want, e.Got)
}

func (e *ParamMismatchError) Unwrap() error { return ErrParamMismatch }
