package control

import (
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxerr"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/padmodel"
)

// StateHolder gives a controller read/write access to the owning
// element's private callback state.
type StateHolder interface {
	State() any
	SetState(any)
}

// ActionSink interprets the actions a callback returns: sending
// buffers/caps/events to peers, updating demand, notifying the parent,
// and so on. It is implemented by the owning element actor.
type ActionSink interface {
	Apply(origin pad.Ref, actions []Action) error
}

// ParentNotifier is the subset of parent-facing notifications the
// EventController triggers directly (independent of any action the
// element callback itself returns).
type ParentNotifier interface {
	NotifyStartOfStream(ref pad.Ref)
	NotifyEndOfStream(ref pad.Ref)
}

// CapsCallback is an element's handle_caps callback.
type CapsCallback func(ref pad.Ref, caps fluxcaps.Caps, ctx *Context, state any) (Result, error)

// EventCallback is an element's handle_event callback.
type EventCallback func(ref pad.Ref, ev fluxevent.Event, ctx *Context, state any) (Result, error)

// ProcessCallback is an element's handle_process callback.
type ProcessCallback func(ref pad.Ref, bufs []fluxbuf.Buffer, ctx *Context, state any) (Result, error)

// DemandCallback is an element's handle_demand callback.
type DemandCallback func(ref pad.Ref, size int64, unit pad.DemandUnit, ctx *Context, state any) (Result, error)

func apply(sink ActionSink, state StateHolder, ref pad.Ref, res Result, err error) error {
	if err != nil {
		return &fluxerr.CallbackError{Pad: ref, Cause: err}
	}
	state.SetState(res.State)
	return sink.Apply(ref, res.Actions)
}

// CapsController validates and dispatches incoming caps.
type CapsController struct {
	Pads  *padmodel.Model
	Fn    CapsCallback
	State StateHolder
	Sink  ActionSink
	Ctx   *Context
}

func (c *CapsController) Handle(ref pad.Ref, caps fluxcaps.Caps) error {
	rec, err := c.Pads.Get(ref)
	if err != nil {
		return err
	}
	if !rec.CapsPattern.Matches(caps) {
		return fluxerr.CapsMismatch(ref, caps)
	}
	if err := c.Pads.Update(ref, func(r *padmodel.Record) error {
		capsCopy := caps
		r.Caps = &capsCopy
		r.CapsSent = true
		return nil
	}); err != nil {
		return err
	}
	res, err := c.Fn(ref, caps, c.Ctx, c.State.State())
	return apply(c.Sink, c.State, ref, res, err)
}

// EventController validates and dispatches incoming events.
type EventController struct {
	Pads   *padmodel.Model
	Fn     EventCallback
	State  StateHolder
	Sink   ActionSink
	Ctx    *Context
	Parent ParentNotifier
}

func (c *EventController) Handle(ref pad.Ref, ev fluxevent.Event) error {
	switch ev.Kind {
	case fluxevent.StartOfStream:
		rec, err := c.Pads.Get(ref)
		if err != nil {
			return err
		}
		if rec.SOSSent {
			return fluxerr.DuplicateEvent(ref, "start_of_stream")
		}
		if err := c.Pads.Update(ref, func(r *padmodel.Record) error {
			r.SOSSent = true
			return nil
		}); err != nil {
			return err
		}
		if c.Parent != nil {
			c.Parent.NotifyStartOfStream(ref)
		}
	case fluxevent.EndOfStream:
		rec, err := c.Pads.Get(ref)
		if err != nil {
			return err
		}
		if rec.EOSSent {
			return fluxerr.DuplicateEvent(ref, "end_of_stream")
		}
		if err := c.Pads.Update(ref, func(r *padmodel.Record) error {
			r.EOSSent = true
			return nil
		}); err != nil {
			return err
		}
		if c.Parent != nil {
			c.Parent.NotifyEndOfStream(ref)
		}
	}

	res, err := c.Fn(ref, ev, c.Ctx, c.State.State())
	return apply(c.Sink, c.State, ref, res, err)
}

// BufferController validates and dispatches incoming buffers. It rejects
// with ContractError when the pad has not yet had caps negotiated, and
// when the pad has already seen end-of-stream.
type BufferController struct {
	Pads  *padmodel.Model
	Fn    ProcessCallback
	State StateHolder
	Sink  ActionSink
	Ctx   *Context
}

func (c *BufferController) Handle(ref pad.Ref, bufs []fluxbuf.Buffer) error {
	rec, err := c.Pads.Get(ref)
	if err != nil {
		return err
	}
	if rec.Caps == nil {
		return fluxerr.BufferBeforeCaps(ref)
	}
	if rec.EOSSent {
		return &fluxerr.ContractError{Pad: ref, Reason: "buffer received after end-of-stream"}
	}

	res, err := c.Fn(ref, bufs, c.Ctx, c.State.State())
	return apply(c.Sink, c.State, ref, res, err)
}

// DemandController invokes handle_demand and dispatches the resulting
// actions (typically buffer and/or redemand).
type DemandController struct {
	Fn    DemandCallback
	State StateHolder
	Sink  ActionSink
	Ctx   *Context
}

func (c *DemandController) Handle(ref pad.Ref, size int64, unit pad.DemandUnit) error {
	res, err := c.Fn(ref, size, unit, c.Ctx, c.State.State())
	return apply(c.Sink, c.State, ref, res, err)
}
