// Package element hosts the Actor: the runtime that owns a single
// element's pad model, input buffers, demand handler, playback machine,
// and timers, and sequences every callback invocation on its own private
// mailbox.
package element

import (
	"github.com/fluxgraph/fluxgraph/control"
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/pad"
)

// Result and Context are aliases of the control package's types: element
// callbacks live outside package control, but share its action/result
// vocabulary.
type Result = control.Result
type Context = control.Context

// Behavior is the callback contract a concrete element implements. Every
// method is invoked from the owning Actor's own goroutine; none may
// block.
type Behavior interface {
	// Init runs once, before the actor's mailbox loop starts, and returns
	// the element's initial private state.
	Init(opts any) (any, error)

	HandleStoppedToPrepared(ctx *Context, state any) (PlaybackResult, error)
	HandlePreparedToPlaying(ctx *Context, state any) (PlaybackResult, error)
	HandlePlayingToPrepared(ctx *Context, state any) (PlaybackResult, error)
	HandlePreparedToStopped(ctx *Context, state any) (PlaybackResult, error)

	HandleDemand(ref pad.Ref, size int64, unit pad.DemandUnit, ctx *Context, state any) (Result, error)
	HandleCaps(ref pad.Ref, caps fluxcaps.Caps, ctx *Context, state any) (Result, error)
	HandleProcess(ref pad.Ref, bufs []fluxbuf.Buffer, ctx *Context, state any) (Result, error)
	HandleEvent(ref pad.Ref, ev fluxevent.Event, ctx *Context, state any) (Result, error)
	HandleOther(msg any, ctx *Context, state any) (Result, error)
	HandleShutdown(reason error, state any)

	KnownInputPads() map[string]pad.Spec
	KnownOutputPads() map[string]pad.Spec
}

// PlaybackResult is the return shape of a playback transition callback:
// the same Result every other callback returns, plus a Deferred flag for
// an element completing the transition asynchronously. Defined here
// (not imported from package playback) to keep Behavior's signature free
// of the playback package, which itself depends on control only.
type PlaybackResult struct {
	Result
	Deferred bool
}

// Deferred builds a PlaybackResult that completes later, when a callback
// returns control.PlaybackChangeSuccessful().
func Deferred() PlaybackResult { return PlaybackResult{Deferred: true} }

// Done builds a PlaybackResult that completes synchronously.
func Done(res Result) PlaybackResult { return PlaybackResult{Result: res} }
