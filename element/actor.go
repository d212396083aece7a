package element

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/fluxgraph/fluxgraph/control"
	"github.com/fluxgraph/fluxgraph/demand"
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxerr"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/inputbuffer"
	"github.com/fluxgraph/fluxgraph/link"
	"github.com/fluxgraph/fluxgraph/metrics"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/padmodel"
	"github.com/fluxgraph/fluxgraph/playback"
	"github.com/fluxgraph/fluxgraph/timer"
)

// Parent is the subset of the owning pipeline/bin an Actor talks back to:
// the async notifications spec.md's EventController and
// ElementStateMachine send upward, plus user-level notifications.
type Parent interface {
	NotifyStartOfStream(ref pad.Ref)
	NotifyEndOfStream(ref pad.Ref)
	ReportPlaybackStateChanged(child string, state playback.State)
	Notify(child string, payload any)
}

// forwardItem records the stream item currently being dispatched, so a
// "forward: :all" action returned by the element callback handling it
// knows what to re-emit; see SPEC_FULL.md's dynamic-pad forwarding note.
type forwardItem struct {
	kind  control.ActionKind
	caps  fluxcaps.Caps
	event fluxevent.Event
	bufs  []fluxbuf.Buffer
}

const defaultMailboxCapacity = 64

// Actor is the element runtime: it owns a PadModel, a DemandHandler, an
// ElementStateMachine, a TimerController, and the four stream
// Controllers, and sequences every callback invocation from its own
// mailbox loop. Nothing outside the owning goroutine touches its fields
// directly — peers interact only through Tell* calls.
type Actor struct {
	name     string
	behavior Behavior
	state    any
	logger   log.Logger

	pads          *padmodel.Model
	demandHandler *demand.Handler
	machine       *playback.Machine
	timers        *timer.Controller

	capsCtrl   *control.CapsController
	eventCtrl  *control.EventController
	bufferCtrl *control.BufferController
	demandCtrl *control.DemandController

	ctx *control.Context

	parent      Parent
	peerTargets map[string]link.MailboxTarget

	currentForward forwardItem

	mailbox        chan mailboxMsg
	svc            *services.BasicService
	shutdownReason error
}

// New builds an Actor and runs the element's Init callback, registering
// every pad it declares. The returned Actor's Service must be started
// (e.g. via a parent's services.Manager) before it processes messages.
func New(name string, behavior Behavior, parent Parent, opts any, logger log.Logger) (*Actor, error) {
	state, err := behavior.Init(opts)
	if err != nil {
		return nil, err
	}

	a := &Actor{
		name:        name,
		behavior:    behavior,
		state:       state,
		logger:      logger,
		pads:        padmodel.New(name),
		parent:      parent,
		peerTargets: make(map[string]link.MailboxTarget),
		mailbox:     make(chan mailboxMsg, defaultMailboxCapacity),
	}

	for _, spec := range behavior.KnownInputPads() {
		registerPad(a.pads, name, spec)
	}
	for _, spec := range behavior.KnownOutputPads() {
		registerPad(a.pads, name, spec)
	}

	ctx := &control.Context{Element: name}
	a.ctx = ctx
	a.capsCtrl = &control.CapsController{Pads: a.pads, Fn: a.dispatchCaps, State: a, Sink: a, Ctx: ctx}
	a.eventCtrl = &control.EventController{Pads: a.pads, Fn: a.dispatchEvent, State: a, Sink: a, Ctx: ctx, Parent: a}
	a.bufferCtrl = &control.BufferController{Pads: a.pads, Fn: a.dispatchProcess, State: a, Sink: a, Ctx: ctx}
	a.demandCtrl = &control.DemandController{Fn: a.dispatchDemand, State: a, Sink: a, Ctx: ctx}

	a.demandHandler = demand.New(a.pads, a, rand.Int63())
	a.machine = playback.New(playback.Handlers{
		StoppedToPrepared: a.wrapTransition(behavior.HandleStoppedToPrepared),
		PreparedToPlaying: a.wrapTransition(behavior.HandlePreparedToPlaying),
		PlayingToPrepared: a.wrapTransition(behavior.HandlePlayingToPrepared),
		PreparedToStopped: a.wrapTransition(behavior.HandlePreparedToStopped),
	}, a, a, ctx, a)
	a.timers = timer.New(a.onTick)
	ctx.Timers = a.timers
	ctx.Self = a

	a.svc = services.NewBasicService(a.starting, a.running, a.stopping)
	return a, nil
}

func registerPad(pads *padmodel.Model, element string, spec pad.Spec) {
	rec := &padmodel.Record{
		Ref:         pad.Ref{Element: element, Name: spec.Name},
		Direction:   spec.Direction,
		Mode:        spec.Mode,
		Unit:        spec.Unit,
		Metric:      metricFor(spec.Unit),
		CapsPattern: spec.Caps,
	}
	if spec.Direction == pad.Input {
		rec.InputBuffer = inputbuffer.New(rec.Metric, spec.PreferredSize)
		if spec.Mode == pad.Push {
			rec.Toilet = inputbuffer.NewToilet(spec.ToiletThreshold)
		}
	}
	pads.Register(rec)
}

func metricFor(unit pad.DemandUnit) fluxbuf.Metric {
	if unit == pad.Bytes {
		return fluxbuf.BytesMetric
	}
	return fluxbuf.BuffersMetric
}

// Service exposes the actor's dskit/services.Service so a parent's
// services.Manager can supervise it alongside sibling children.
func (a *Actor) Service() services.Service { return a.svc }

// Name returns the element's name, unique within its parent.
func (a *Actor) Name() string { return a.name }

func (a *Actor) starting(context.Context) error { return nil }

func (a *Actor) stopping(_ error) error {
	a.timers.StopAll()
	a.behavior.HandleShutdown(a.shutdownReason, a.state)
	return nil
}

func (a *Actor) running(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-a.mailbox:
			if err := a.handle(msg); err != nil {
				level.Error(a.logger).Log("msg", "element crashed", "element", a.name, "err", err)
				return err
			}
			if msg.kind == msgShutdown {
				return nil
			}
		}
	}
}

func (a *Actor) handle(msg mailboxMsg) error {
	switch msg.kind {
	case msgCaps:
		return a.capsCtrl.Handle(msg.pad, msg.caps)
	case msgEvent:
		return a.eventCtrl.Handle(msg.pad, msg.event)
	case msgBuffers:
		if rec, err := a.pads.Get(msg.pad); err == nil && rec.Toilet != nil {
			rec.Toilet.Sub(int64(rec.Metric.Size(msg.bufs)))
		}
		return a.bufferCtrl.Handle(msg.pad, msg.bufs)
	case msgDemand:
		return a.DispatchDemand(msg.pad, msg.demandSize)
	case msgChangePlaybackState:
		return a.machine.RequestTransition(msg.target)
	case msgLink:
		return a.handleLink(msg.link)
	case msgTimerTick:
		return a.dispatchOther(msg.tick)
	case msgOther:
		return a.dispatchOther(msg.other)
	case msgShutdown:
		a.shutdownReason = msg.reason
		return nil
	default:
		return nil
	}
}

func (a *Actor) dispatchOther(payload any) error {
	res, err := a.behavior.HandleOther(payload, a.ctx, a.state)
	if err != nil {
		return &fluxerr.CallbackError{Pad: pad.Ref{Element: a.name}, Cause: err}
	}
	a.state = res.State
	return a.Apply(pad.Ref{Element: a.name}, res.Actions)
}

func (a *Actor) handleLink(req link.HandshakeRequest) error {
	rec, err := a.pads.Get(req.This)
	if err != nil {
		req.Reply <- link.HandshakeReply{}
		return err
	}

	peer := req.Peer
	if err := a.pads.Update(req.This, func(r *padmodel.Record) error {
		r.PeerRef = &peer
		r.PeerPID = req.Peer.Element
		if req.PeerToilet != nil {
			r.PeerToilet = req.PeerToilet
		}
		return nil
	}); err != nil {
		req.Reply <- link.HandshakeReply{}
		return err
	}
	a.peerTargets[req.Peer.Element] = req.PeerBox

	req.Reply <- link.HandshakeReply{LinkID: "", Toilet: rec.Toilet}
	return nil
}

func (a *Actor) onTick(t timer.Tick) {
	a.tellNonBlocking(mailboxMsg{kind: msgTimerTick, tick: t})
}

func (a *Actor) tellNonBlocking(msg mailboxMsg) {
	select {
	case a.mailbox <- msg:
		metrics.MailboxDepth.WithLabelValues(a.name).Set(float64(len(a.mailbox)))
	case <-time.After(time.Second):
		level.Warn(a.logger).Log("msg", "mailbox send timed out", "element", a.name)
	}
}

// Tell* methods implement link.MailboxTarget and the element-facing half
// of parent messaging; each enqueues onto the actor's own mailbox rather
// than acting inline, preserving single-threaded, sequential processing.

func (a *Actor) TellCaps(ref pad.Ref, caps fluxcaps.Caps) {
	a.tellNonBlocking(mailboxMsg{kind: msgCaps, pad: ref, caps: caps})
}

func (a *Actor) TellEvent(ref pad.Ref, ev fluxevent.Event) {
	a.tellNonBlocking(mailboxMsg{kind: msgEvent, pad: ref, event: ev})
}

func (a *Actor) TellBuffers(ref pad.Ref, bufs []fluxbuf.Buffer) {
	a.tellNonBlocking(mailboxMsg{kind: msgBuffers, pad: ref, bufs: bufs})
}

func (a *Actor) TellDemand(ref pad.Ref, size int64) {
	a.tellNonBlocking(mailboxMsg{kind: msgDemand, pad: ref, demandSize: size})
}

func (a *Actor) TellChangePlaybackState(target playback.State) {
	a.tellNonBlocking(mailboxMsg{kind: msgChangePlaybackState, target: target})
}

func (a *Actor) TellOther(payload any) {
	a.tellNonBlocking(mailboxMsg{kind: msgOther, other: payload})
}

func (a *Actor) TellShutdown(reason error) {
	a.tellNonBlocking(mailboxMsg{kind: msgShutdown, reason: reason})
}

// TellLink implements link.Endpoint.
func (a *Actor) TellLink(req link.HandshakeRequest) {
	a.tellNonBlocking(mailboxMsg{kind: msgLink, link: req})
}
