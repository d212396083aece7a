// Package control implements the stream controllers: CapsController,
// EventController, BufferController and DemandController. Each validates
// an incoming stream item against pad invariants, updates pad state,
// invokes the owning element's callback, and interprets the actions the
// callback returns.
package control

import (
	"time"

	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/pad"
)

// ActionKind discriminates the action variants an element callback may
// return.
type ActionKind int

const (
	ActionBuffer ActionKind = iota
	ActionCaps
	ActionEvent
	ActionDemand
	ActionRedemand
	ActionForward
	ActionNotify
	ActionPlaybackChangeSuccessful
)

// Action is one action instruction returned by an element callback.
// Exactly the fields relevant to Kind are meaningful.
type Action struct {
	Kind ActionKind
	Pad  pad.Ref

	Buffers []fluxbuf.Buffer
	Caps    fluxcaps.Caps
	Event   fluxevent.Event

	// DemandSize sets demand to an absolute value and takes precedence
	// when non-nil; otherwise DemandFn, if non-nil, computes the new
	// demand from the current one.
	DemandSize *int64
	DemandFn   func(current int64) (int64, error)

	// ForwardAll means "emit the same kind on every pad of the opposite
	// direction"; ForwardPads restricts that to a specific subset.
	ForwardAll  bool
	ForwardPads []pad.Ref

	Notify any
}

// Buffer builds a buffer-emission action.
func Buffer(p pad.Ref, bufs ...fluxbuf.Buffer) Action {
	return Action{Kind: ActionBuffer, Pad: p, Buffers: bufs}
}

// Caps builds a caps-emission action.
func Caps(p pad.Ref, c fluxcaps.Caps) Action {
	return Action{Kind: ActionCaps, Pad: p, Caps: c}
}

// Event builds an event-emission action.
func Event(p pad.Ref, e fluxevent.Event) Action {
	return Action{Kind: ActionEvent, Pad: p, Event: e}
}

// Demand builds a demand-update action that sets demand to an absolute
// size.
func Demand(p pad.Ref, size int64) Action {
	return Action{Kind: ActionDemand, Pad: p, DemandSize: &size}
}

// DemandFunc builds a demand-update action that computes the new demand
// from the current one.
func DemandFunc(p pad.Ref, fn func(current int64) (int64, error)) Action {
	return Action{Kind: ActionDemand, Pad: p, DemandFn: fn}
}

// Redemand builds a redemand action.
func Redemand(p pad.Ref) Action {
	return Action{Kind: ActionRedemand, Pad: p}
}

// ForwardAll builds a "forward to every opposite-direction pad" action.
func ForwardAll() Action {
	return Action{Kind: ActionForward, ForwardAll: true}
}

// ForwardTo builds a "forward to these specific pads" action.
func ForwardTo(pads ...pad.Ref) Action {
	return Action{Kind: ActionForward, ForwardPads: pads}
}

// Notify builds a parent-notification action.
func Notify(payload any) Action {
	return Action{Kind: ActionNotify, Notify: payload}
}

// PlaybackChangeSuccessful builds the action an element returns from a
// playback transition callback once it has finished the transition
// asynchronously.
func PlaybackChangeSuccessful() Action {
	return Action{Kind: ActionPlaybackChangeSuccessful}
}

// Result is what every element callback returns: the element's possibly
// updated private state plus an ordered list of actions to interpret.
type Result struct {
	State   any
	Actions []Action
}

// TimerStarter is the narrow view of timer.Controller a callback needs:
// starting and stopping its own named interval timers. Defined here
// (rather than importing package timer) so control stays a leaf
// dependency.
type TimerStarter interface {
	Start(name string, interval time.Duration)
	Stop(name string)
}

// SelfNotifier is the narrow view of an actor's own parent-facing hooks
// and mailbox re-entry point a callback needs to reach asynchronously,
// outside the normal callback-return Action vocabulary. A nested
// pipeline (Bin) uses it to bubble a descendant's stream-boundary
// events out through its own owning actor, and to signal its own
// deferred playback transition complete once an inner quorum converges.
type SelfNotifier interface {
	NotifyStartOfStream(ref pad.Ref)
	NotifyEndOfStream(ref pad.Ref)
	Notify(payload any)
	TellOther(payload any)
}

// Context is passed to every element callback; it carries the element's
// identity and the hooks a callback needs without exposing the runtime's
// internals (no access to other elements' state, no blocking calls).
type Context struct {
	Element string
	Timers  TimerStarter
	Self    SelfNotifier
}
