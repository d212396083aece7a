package parent

import (
	"context"

	"github.com/go-kit/log"

	"github.com/fluxgraph/fluxgraph/control"
	"github.com/fluxgraph/fluxgraph/element"
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/link"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/playback"
)

// GhostPad declares one of a Bin's externally-visible pads: a pass-through
// onto one specific pad of one specific inner child, the same "ghost pad"
// concept spec.md's original bin element used to present an internal
// pipeline as a single opaque node.
type GhostPad struct {
	Spec       pad.Spec
	InnerChild string
	InnerPad   string
}

// BinSpec declares a nested sub-pipeline: its own children, its own
// internal links, and the ghost pads that expose it to its own parent as
// a single element.
type BinSpec struct {
	Name          string
	Children      []ChildSpec
	Links         []LinkSpec
	Ghosts        []GhostPad
	RestartPolicy RestartPolicy
}

// binBehavior is the element.Behavior a Bin presents to its own parent:
// it owns an inner Node supervising the nested children, and relays
// every stream item arriving on a ghost pad to (or from) the
// corresponding inner child pad directly, bypassing the inner node's own
// mailbox (a bin forwards traffic, it does not interpret it).
type binBehavior struct {
	element.BaseBehavior
	spec   BinSpec
	inner  *Node
	ghosts map[string]GhostPad // by external pad name

	// self reaches the outer actor's own parent-facing hooks and
	// mailbox, bridging the inner Node's bubbled notifications and
	// outbound ghost traffic back out through it. Captured from the
	// first playback-transition callback's Context, since Init runs
	// before the owning Actor (and its Context) exists.
	self control.SelfNotifier

	// pendingTarget is the playback.State bridgeTransition is currently
	// waiting on the inner Node to converge on.
	pendingTarget playback.State
}

// NewBin returns a ChildSpec that, once spawned into a parent pipeline,
// builds and starts spec's nested children and links, and relays traffic
// across its ghost pads. The inner Node reports up through binUp, which
// forwards SOS/EOS/notifications and inner-quorum convergence out
// through the Bin's own outer actor once one is wired up via Self.
func NewBin(spec BinSpec, logger log.Logger) ChildSpec {
	b := &binBehavior{spec: spec, ghosts: make(map[string]GhostPad)}
	for _, g := range spec.Ghosts {
		b.ghosts[g.Spec.Name] = g
	}
	b.inner = newNode(spec.Name, binUp{b: b}, logger)
	boundary := &ghostBoundary{b: b}
	b.inner.boundaryEndpoint = boundary
	b.inner.boundaryTarget = boundary
	return ChildSpec{Name: spec.Name, Behavior: b, RestartPolicy: spec.RestartPolicy}
}

func (b *binBehavior) Init(opts any) (any, error) {
	for _, c := range b.spec.Children {
		if err := b.inner.Spawn(c); err != nil {
			return nil, err
		}
	}
	for _, l := range b.spec.Links {
		if err := b.inner.Link(l); err != nil {
			return nil, err
		}
	}
	if err := b.inner.Start(context.Background()); err != nil {
		return nil, err
	}
	return nil, nil
}

func (b *binBehavior) KnownInputPads() map[string]pad.Spec {
	out := make(map[string]pad.Spec)
	for _, g := range b.spec.Ghosts {
		if g.Spec.Direction == pad.Input {
			out[g.Spec.Name] = g.Spec
		}
	}
	return out
}

func (b *binBehavior) KnownOutputPads() map[string]pad.Spec {
	out := make(map[string]pad.Spec)
	for _, g := range b.spec.Ghosts {
		if g.Spec.Direction == pad.Output {
			out[g.Spec.Name] = g.Spec
		}
	}
	return out
}

func (b *binBehavior) innerTarget(name string) *childRecord {
	g, ok := b.ghosts[name]
	if !ok {
		return nil
	}
	return b.inner.children[g.InnerChild]
}

func (b *binBehavior) HandleCaps(ref pad.Ref, caps fluxcaps.Caps, ctx *control.Context, state any) (control.Result, error) {
	if rec := b.innerTarget(ref.Name); rec != nil {
		rec.actor.TellCaps(pad.Ref{Element: rec.actor.Name(), Name: b.ghosts[ref.Name].InnerPad}, caps)
	}
	return control.Result{State: state}, nil
}

func (b *binBehavior) HandleEvent(ref pad.Ref, ev fluxevent.Event, ctx *control.Context, state any) (control.Result, error) {
	if rec := b.innerTarget(ref.Name); rec != nil {
		rec.actor.TellEvent(pad.Ref{Element: rec.actor.Name(), Name: b.ghosts[ref.Name].InnerPad}, ev)
	}
	return control.Result{State: state}, nil
}

func (b *binBehavior) HandleProcess(ref pad.Ref, bufs []fluxbuf.Buffer, ctx *control.Context, state any) (control.Result, error) {
	if rec := b.innerTarget(ref.Name); rec != nil {
		rec.actor.TellBuffers(pad.Ref{Element: rec.actor.Name(), Name: b.ghosts[ref.Name].InnerPad}, bufs)
	}
	return control.Result{State: state}, nil
}

func (b *binBehavior) HandleDemand(ref pad.Ref, size int64, unit pad.DemandUnit, ctx *control.Context, state any) (control.Result, error) {
	if rec := b.innerTarget(ref.Name); rec != nil {
		rec.actor.TellDemand(pad.Ref{Element: rec.actor.Name(), Name: b.ghosts[ref.Name].InnerPad}, size)
	}
	return control.Result{State: state}, nil
}

// binOutbound is relayed through Self.TellOther by ghostBoundary whenever
// an inner child emits on a pad linked to the Bin's own boundary (the
// link.Bin sentinel), so the emission lands on the outer actor's own
// mailbox and is applied against the outer actor's own pad model — the
// named ghost pad, as far as the Bin's real external peer is concerned.
type binOutbound struct {
	ghost   string
	payload any
}

type outboundBuffers struct{ bufs []fluxbuf.Buffer }
type outboundCaps struct{ caps fluxcaps.Caps }
type outboundEvent struct{ event fluxevent.Event }
type outboundDemand struct{ size int64 }

// binInnerConverged is relayed through Self.TellOther by binUp once the
// inner Node's own playback.Machine reports reaching pendingTarget,
// completing bridgeTransition's deferred outer transition.
type binInnerConverged struct{ target playback.State }

func (b *binBehavior) HandleOther(msg any, ctx *control.Context, state any) (control.Result, error) {
	switch m := msg.(type) {
	case binOutbound:
		ref := pad.Ref{Element: ctx.Element, Name: m.ghost}
		switch p := m.payload.(type) {
		case outboundBuffers:
			return control.Result{State: state, Actions: []control.Action{control.Buffer(ref, p.bufs...)}}, nil
		case outboundCaps:
			return control.Result{State: state, Actions: []control.Action{control.Caps(ref, p.caps)}}, nil
		case outboundEvent:
			return control.Result{State: state, Actions: []control.Action{control.Event(ref, p.event)}}, nil
		case outboundDemand:
			return control.Result{State: state, Actions: []control.Action{control.Demand(ref, p.size)}}, nil
		}
	case binInnerConverged:
		if m.target == b.pendingTarget {
			return control.Result{State: state, Actions: []control.Action{control.PlaybackChangeSuccessful()}}, nil
		}
	}
	return control.Result{State: state}, nil
}

func (b *binBehavior) HandleStoppedToPrepared(ctx *control.Context, state any) (element.PlaybackResult, error) {
	return b.bridgeTransition(ctx, state, playback.Prepared)
}
func (b *binBehavior) HandlePreparedToPlaying(ctx *control.Context, state any) (element.PlaybackResult, error) {
	return b.bridgeTransition(ctx, state, playback.Playing)
}
func (b *binBehavior) HandlePlayingToPrepared(ctx *control.Context, state any) (element.PlaybackResult, error) {
	return b.bridgeTransition(ctx, state, playback.Prepared)
}
func (b *binBehavior) HandlePreparedToStopped(ctx *control.Context, state any) (element.PlaybackResult, error) {
	return b.bridgeTransition(ctx, state, playback.Stopped)
}

// bridgeTransition asks the inner Node to walk every nested child to
// target and defers: the outer transition only completes once the inner
// Node's own quorum converges on target and binUp bubbles that back as a
// binInnerConverged message on the outer actor's own mailbox (see
// HandleOther), which returns control.PlaybackChangeSuccessful() to
// complete the outer machine's deferred step. This preserves the
// invariant that a parent reports playback_state_changed(new) only after
// every child — including a Bin's own nested children — has reported it.
func (b *binBehavior) bridgeTransition(ctx *control.Context, state any, target playback.State) (element.PlaybackResult, error) {
	b.self = ctx.Self
	b.pendingTarget = target
	if err := b.inner.ChangePlaybackState(target); err != nil {
		return element.PlaybackResult{}, err
	}
	return element.PlaybackResult{Result: control.Result{State: state}, Deferred: true}, nil
}

// binUp adapts Up (what the Bin's inner Node reports to) onto the
// binBehavior's own outer-facing Self hook, so SOS/EOS/notifications
// from a child nested inside the Bin bubble out past the Bin boundary,
// and the inner Node's own transition completions reach
// bridgeTransition's deferred step.
type binUp struct{ b *binBehavior }

func (u binUp) NotifyStartOfStream(ref pad.Ref) {
	if u.b.self != nil {
		u.b.self.NotifyStartOfStream(ref)
	}
}

func (u binUp) NotifyEndOfStream(ref pad.Ref) {
	if u.b.self != nil {
		u.b.self.NotifyEndOfStream(ref)
	}
}

func (u binUp) Notify(_ string, payload any) {
	if u.b.self != nil {
		u.b.self.Notify(payload)
	}
}

func (u binUp) ReportPlaybackStateChanged(_ string, state playback.State) {
	if u.b.self != nil && state == u.b.pendingTarget {
		u.b.self.TellOther(binInnerConverged{target: state})
	}
}

// ghostBoundary is the Endpoint/MailboxTarget the Bin's inner Node
// resolves for the link.Bin sentinel child name: it lets an internal
// LinkSpec connect a nested child directly to one of the Bin's own ghost
// pads. TellLink only completes the handshake — which inner pad a ghost
// name maps to is the static GhostPad declaration, not anything
// negotiated here. The four Tell* methods carry an inner child's own
// emissions on a boundary-linked pad out through the owning actor's
// mailbox via relayOut, so they are applied against the Bin's own pad
// model, and from there reach the Bin's real external peer exactly as if
// the inner child had emitted directly on the ghost pad itself.
type ghostBoundary struct{ b *binBehavior }

func (g *ghostBoundary) TellLink(req link.HandshakeRequest) {
	req.Reply <- link.HandshakeReply{}
}

func (g *ghostBoundary) TellDemand(ref pad.Ref, size int64) {
	g.b.relayOut(ref.Name, outboundDemand{size: size})
}

func (g *ghostBoundary) TellBuffers(ref pad.Ref, bufs []fluxbuf.Buffer) {
	g.b.relayOut(ref.Name, outboundBuffers{bufs: bufs})
}

func (g *ghostBoundary) TellCaps(ref pad.Ref, caps fluxcaps.Caps) {
	g.b.relayOut(ref.Name, outboundCaps{caps: caps})
}

func (g *ghostBoundary) TellEvent(ref pad.Ref, ev fluxevent.Event) {
	g.b.relayOut(ref.Name, outboundEvent{event: ev})
}

func (b *binBehavior) relayOut(ghostName string, payload any) {
	if b.self == nil {
		return
	}
	b.self.TellOther(binOutbound{ghost: ghostName, payload: payload})
}
