// Package fluxerr defines the fatal error kinds the element runtime raises.
// The framework fails fast: any of these crashes the owning element, and
// the parent observes the crash and tears down (or, for a transient child,
// absorbs it — see parent.RestartPolicy).
package fluxerr

import (
	"fmt"

	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/pad"
)

// ContractError marks a violation of a pad-level invariant: a buffer
// arriving before caps, a caps mismatch against the declared constraint,
// or a demand update that would go negative.
type ContractError struct {
	Pad    pad.Ref
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract violation on pad %s: %s", e.Pad, e.Reason)
}

// BufferBeforeCaps builds the ContractError for a buffer delivered to a pad
// that has not yet had caps negotiated. The message is worded to satisfy
// the testable contract: it must match /buffer.*caps.*not.*sent/.
func BufferBeforeCaps(p pad.Ref) *ContractError {
	return &ContractError{Pad: p, Reason: "buffer rejected, caps were not sent on this pad"}
}

// CapsMismatch builds the ContractError for caps that don't satisfy a
// pad's declared constraint pattern.
func CapsMismatch(p pad.Ref, got fluxcaps.Caps) *ContractError {
	return &ContractError{Pad: p, Reason: fmt.Sprintf("caps %q do not satisfy the pad's declared constraint", got.Kind)}
}

// NegativeDemand builds the ContractError for a demand update that would
// drive a pad's outstanding demand below zero.
func NegativeDemand(p pad.Ref, attempted int64) *ContractError {
	return &ContractError{Pad: p, Reason: fmt.Sprintf("demand update would set demand to %d", attempted)}
}

// DuplicateEvent builds the ContractError for a start/end-of-stream event
// sent twice on the same pad.
func DuplicateEvent(p pad.Ref, kind string) *ContractError {
	return &ContractError{Pad: p, Reason: fmt.Sprintf("%s already sent on this pad", kind)}
}

// CallbackError wraps an error returned by an element's callback. A panic
// inside a callback is not recovered into a CallbackError.
type CallbackError struct {
	Pad   pad.Ref
	Cause error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback error on pad %s: %v", e.Pad, e.Cause)
}

func (e *CallbackError) Unwrap() error { return e.Cause }

// ToiletOverflow marks a push-mode consumer falling behind its producer
// past the configured threshold. The producer observes this on its own
// accounting of the shared counter and terminates itself.
type ToiletOverflow struct {
	Pad       pad.Ref
	Size      int64
	Threshold int64
}

func (e *ToiletOverflow) Error() string {
	return fmt.Sprintf("toilet overflow on pad %s: size %d exceeds threshold %d", e.Pad, e.Size, e.Threshold)
}

// LinkError marks a link request that targets an unknown pad or
// duplicates an existing link.
type LinkError struct {
	From, To pad.Ref
	Reason   string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("cannot link %s -> %s: %s", e.From, e.To, e.Reason)
}

// UnknownPad marks a PadModel access against an unregistered pad
// reference — a programmer error.
type UnknownPad struct {
	Ref pad.Ref
}

func (e *UnknownPad) Error() string {
	return fmt.Sprintf("unknown pad: %s", e.Ref)
}
