// Package corerr defines the infrastructure error taxonomy shared across the
// runtime: lock poisoning, port wiring mistakes, ask-registry violations, and
// shutdown rejection. Handler-internal errors are the component author's own
// concern and never appear here.
package corerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra context.
var (
	// ErrLockPoisoned is returned from any attempt to lock a container whose
	// definition lock was poisoned by a prior handler panic.
	ErrLockPoisoned = errors.New("corebus: component definition lock is poisoned")

	// ErrPortUnwired is returned when an event is triggered across a port
	// that has not yet had its parent established via SetParent.
	ErrPortUnwired = errors.New("corebus: port triggered before wiring")

	// ErrPortMissing is returned by dynamic port lookups that find no
	// matching port on a component.
	ErrPortMissing = errors.New("corebus: no port of that type on component")

	// ErrAlreadyReplied is returned when a second Reply (or Fail) is
	// attempted on an ask that already settled.
	ErrAlreadyReplied = errors.New("corebus: ask already replied")

	// ErrAskCancelled is delivered to whichever side of an ask still exists
	// when the other side goes away before a reply is written.
	ErrAskCancelled = errors.New("corebus: ask cancelled")

	// ErrShutdown settles every ask still outstanding when Runtime.Shutdown
	// runs. Enqueue and ask operations attempted after shutdown are not
	// rejected with it.
	ErrShutdown = errors.New("corebus: runtime is shutting down")

	// ErrRateLimited is returned when an admission-control limiter rejects a
	// Tell/Ask before it reaches a mailbox.
	ErrRateLimited = errors.New("corebus: sender rate limited")

	// ErrDestroyed is returned by enqueue operations against a component
	// whose lifecycle has already reached Destroyed.
	ErrDestroyed = errors.New("corebus: component already destroyed")

	// ErrUnknownComponent is returned when a runtime-level operation
	// (Start/Stop/Kill) names a component id the runtime never spawned.
	ErrUnknownComponent = errors.New("corebus: unknown component id")
)

// PanicError wraps a value recovered from a handler panic, poisoning the
// owning container's definition lock.
//
// Grounded on eventloop's PanicError (promisify.go), generalized from
// "a spawned goroutine panicked" to "a handler dispatched during Execute
// panicked".
type PanicError struct {
	// TypeName is the component's declared type name, for diagnostics.
	TypeName string
	// Value is the recovered panic value.
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("corebus: component %q handler panicked: %v", e.TypeName, e.Value)
}

// Unwrap supports errors.Is/errors.As against the panic value, when it is
// itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// SerialisationError is a boundary-only error surfaced to a network
// transport collaborator; the runtime core never constructs payload bytes
// itself, it only reports what the collaborator told it.
type SerialisationError struct {
	// Unknown indicates an unrecognised type id on the wire.
	Unknown bool
	// InvalidData indicates the payload failed to decode.
	InvalidData bool
	Cause       error
}

func (e *SerialisationError) Error() string {
	switch {
	case e.Unknown:
		return fmt.Sprintf("corebus: unknown envelope type id: %v", e.Cause)
	case e.InvalidData:
		return fmt.Sprintf("corebus: invalid envelope payload: %v", e.Cause)
	default:
		return fmt.Sprintf("corebus: serialisation error: %v", e.Cause)
	}
}

func (e *SerialisationError) Unwrap() error { return e.Cause }

// Wrap attaches a message to cause, matching the fmt.Errorf("%w") idiom used
// throughout this module instead of custom error-code enums.
func Wrap(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
