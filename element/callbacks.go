package element

import (
	"github.com/fluxgraph/fluxgraph/control"
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxerr"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/inputbuffer"
	"github.com/fluxgraph/fluxgraph/metrics"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/padmodel"
	"github.com/fluxgraph/fluxgraph/playback"
)

// State and SetState implement control.StateHolder and playback's
// equivalent state access.
func (a *Actor) State() any     { return a.state }
func (a *Actor) SetState(s any) { a.state = s }

// dispatchCaps, dispatchEvent and dispatchProcess are the CapsCallback /
// EventCallback / ProcessCallback values wired into the stream
// Controllers; each records what's being forwarded before invoking the
// element's own callback, so a returned ForwardAll action can be
// resolved without the Action type itself carrying the payload twice.
func (a *Actor) dispatchCaps(ref pad.Ref, caps fluxcaps.Caps, ctx *control.Context, state any) (control.Result, error) {
	a.currentForward = forwardItem{kind: control.ActionCaps, caps: caps}
	return a.behavior.HandleCaps(ref, caps, ctx, state)
}

func (a *Actor) dispatchEvent(ref pad.Ref, ev fluxevent.Event, ctx *control.Context, state any) (control.Result, error) {
	a.currentForward = forwardItem{kind: control.ActionEvent, event: ev}
	return a.behavior.HandleEvent(ref, ev, ctx, state)
}

func (a *Actor) dispatchProcess(ref pad.Ref, bufs []fluxbuf.Buffer, ctx *control.Context, state any) (control.Result, error) {
	a.currentForward = forwardItem{kind: control.ActionBuffer, bufs: bufs}
	return a.behavior.HandleProcess(ref, bufs, ctx, state)
}

func (a *Actor) dispatchDemand(ref pad.Ref, size int64, unit pad.DemandUnit, ctx *control.Context, state any) (control.Result, error) {
	return a.behavior.HandleDemand(ref, size, unit, ctx, state)
}

// wrapTransition adapts one of Behavior's playback callbacks (returning
// the element-package PlaybackResult) into a playback.TransitionFunc
// (returning playback.TransitionResult), without the playback package
// needing to import element or vice versa depend on playback's result
// shape at the Behavior boundary.
func (a *Actor) wrapTransition(fn func(ctx *control.Context, state any) (PlaybackResult, error)) playback.TransitionFunc {
	return func(ctx *control.Context, state any) (playback.TransitionResult, error) {
		res, err := fn(ctx, state)
		return playback.TransitionResult{Result: res.Result, Deferred: res.Deferred}, err
	}
}

// NotifyStartOfStream and NotifyEndOfStream implement
// control.ParentNotifier.
func (a *Actor) NotifyStartOfStream(ref pad.Ref) {
	if a.parent != nil {
		a.parent.NotifyStartOfStream(ref)
	}
}

func (a *Actor) NotifyEndOfStream(ref pad.Ref) {
	if a.parent != nil {
		a.parent.NotifyEndOfStream(ref)
	}
}

// Notify implements control.SelfNotifier: a behavior reaching its own
// owning actor's parent-notification hook directly, the same path
// ActionNotify drives from a callback return.
func (a *Actor) Notify(payload any) {
	if a.parent != nil {
		a.parent.Notify(a.name, payload)
	}
}

// ReportPlaybackStateChanged implements playback.Reporter.
func (a *Actor) ReportPlaybackStateChanged(s playback.State) {
	metrics.PlaybackTransitions.WithLabelValues(a.name, s.String()).Inc()
	if a.parent != nil {
		a.parent.ReportPlaybackStateChanged(a.name, s)
	}
}

// ApplyTransitionActions implements playback.Sink.
func (a *Actor) ApplyTransitionActions(actions []control.Action) error {
	return a.Apply(pad.Ref{Element: a.name}, actions)
}

// Apply implements control.ActionSink: it interprets every action kind an
// element callback can return.
func (a *Actor) Apply(origin pad.Ref, actions []control.Action) error {
	for _, act := range actions {
		if err := a.applyOne(origin, act); err != nil {
			return err
		}
	}
	return nil
}

func (a *Actor) applyOne(origin pad.Ref, act control.Action) error {
	switch act.Kind {
	case control.ActionBuffer:
		return a.emitBuffers(act.Pad, act.Buffers)
	case control.ActionCaps:
		return a.emitCaps(act.Pad, act.Caps)
	case control.ActionEvent:
		return a.emitEvent(act.Pad, act.Event)
	case control.ActionDemand:
		return a.demandHandler.SupplyDemand(act.Pad, act.DemandSize, act.DemandFn)
	case control.ActionRedemand:
		return a.demandHandler.HandleRedemand(act.Pad)
	case control.ActionForward:
		return a.forward(origin, act)
	case control.ActionNotify:
		if a.parent != nil {
			a.parent.Notify(a.name, act.Notify)
		}
		return nil
	case control.ActionPlaybackChangeSuccessful:
		return a.machine.CompleteAsync()
	default:
		return nil
	}
}

func (a *Actor) forward(origin pad.Ref, act control.Action) error {
	targets := act.ForwardPads
	if act.ForwardAll {
		targets = a.oppositePads(origin)
	}
	for _, t := range targets {
		var err error
		switch a.currentForward.kind {
		case control.ActionCaps:
			err = a.emitCaps(t, a.currentForward.caps)
		case control.ActionEvent:
			err = a.emitEvent(t, a.currentForward.event)
		case control.ActionBuffer:
			err = a.emitBuffers(t, a.currentForward.bufs)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// oppositePads snapshots every currently-registered pad of the opposite
// direction from origin. Per SPEC_FULL.md §4.11, a dynamic pad added
// after this snapshot is taken does not retroactively receive the
// forwarded item — it starts fresh from its own handle_caps.
func (a *Actor) oppositePads(origin pad.Ref) []pad.Ref {
	rec, err := a.pads.Get(origin)
	if err != nil {
		return nil
	}
	want := rec.Direction.Opposite()
	var out []pad.Ref
	for _, r := range a.pads.All() {
		if r.Direction == want {
			out = append(out, r.Ref)
		}
	}
	return out
}

func (a *Actor) emitBuffers(ref pad.Ref, bufs []fluxbuf.Buffer) error {
	rec, err := a.pads.Get(ref)
	if err != nil {
		return err
	}
	if !rec.CapsSent {
		return fluxerr.BufferBeforeCaps(ref)
	}
	if err := a.demandHandler.AccountOutgoing(ref, bufs); err != nil {
		return err
	}
	if rec.PeerRef != nil {
		if target, ok := a.peerTargets[rec.PeerRef.Element]; ok {
			target.TellBuffers(*rec.PeerRef, bufs)
		}
	}
	return nil
}

func (a *Actor) emitCaps(ref pad.Ref, caps fluxcaps.Caps) error {
	if err := a.pads.Update(ref, func(r *padmodel.Record) error {
		c := caps
		r.Caps = &c
		r.CapsSent = true
		return nil
	}); err != nil {
		return err
	}
	rec, err := a.pads.Get(ref)
	if err != nil {
		return err
	}
	if rec.PeerRef != nil {
		if target, ok := a.peerTargets[rec.PeerRef.Element]; ok {
			target.TellCaps(*rec.PeerRef, caps)
		}
	}
	return nil
}

func (a *Actor) emitEvent(ref pad.Ref, ev fluxevent.Event) error {
	rec, err := a.pads.Get(ref)
	if err != nil {
		return err
	}
	switch ev.Kind {
	case fluxevent.StartOfStream:
		if rec.SOSSent {
			return fluxerr.DuplicateEvent(ref, "start_of_stream")
		}
		if err := a.pads.Update(ref, func(r *padmodel.Record) error { r.SOSSent = true; return nil }); err != nil {
			return err
		}
	case fluxevent.EndOfStream:
		if rec.EOSSent {
			return fluxerr.DuplicateEvent(ref, "end_of_stream")
		}
		if err := a.pads.Update(ref, func(r *padmodel.Record) error { r.EOSSent = true; return nil }); err != nil {
			return err
		}
	}
	if rec.PeerRef != nil {
		if target, ok := a.peerTargets[rec.PeerRef.Element]; ok {
			target.TellEvent(*rec.PeerRef, ev)
		}
	}
	return nil
}

// DispatchDrained implements demand.Dispatcher: it routes each drained
// InputBuffer item to the matching stream Controller.
func (a *Actor) DispatchDrained(ref pad.Ref, items []inputbuffer.DrainedItem) error {
	for _, it := range items {
		var err error
		switch it.Kind {
		case inputbuffer.KindCaps:
			err = a.capsCtrl.Handle(ref, it.Caps)
		case inputbuffer.KindEvent:
			err = a.eventCtrl.Handle(ref, it.Event)
		case inputbuffer.KindBuffers:
			err = a.bufferCtrl.Handle(ref, it.Buffers)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// DispatchDemand implements demand.Dispatcher: re-entering the
// DemandController, the handle_redemand path.
func (a *Actor) DispatchDemand(ref pad.Ref, size int64) error {
	rec, err := a.pads.Get(ref)
	if err != nil {
		return err
	}
	return a.demandCtrl.Handle(ref, size, rec.Unit)
}

// SendDemand implements demand.Dispatcher: notifying a pull-mode peer
// that this input pad's buffer sits below its preferred size.
func (a *Actor) SendDemand(ref pad.Ref, amount uint64) {
	if target, ok := a.peerTargets[ref.Element]; ok {
		target.TellDemand(ref, int64(amount))
	}
}
