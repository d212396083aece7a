package parent

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/fluxgraph/fluxgraph/control"
	"github.com/fluxgraph/fluxgraph/link"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/playback"
)

// Up is the subset of a Node's own parent it reports to. The root
// Pipeline has no Up; a Bin's inner Node reports to binUp, which relays
// through the Bin's own outer actor.
type Up interface {
	NotifyStartOfStream(ref pad.Ref)
	NotifyEndOfStream(ref pad.Ref)
	ReportPlaybackStateChanged(child string, state playback.State)
	Notify(child string, payload any)
}

type nodeMsgKind int

const (
	nodeMsgPlaybackChanged nodeMsgKind = iota
	nodeMsgStartOfStream
	nodeMsgEndOfStream
	nodeMsgNotification
	nodeMsgOther
	nodeMsgChangePlaybackState
)

type nodeMsg struct {
	kind    nodeMsgKind
	child   string
	state   playback.State
	pad     pad.Ref
	payload any

	// reply is populated only for nodeMsgChangePlaybackState, so the
	// caller's goroutine can block for the RequestTransition error
	// without ever touching the playback.Machine itself.
	reply chan error
}

const defaultNodeMailboxCapacity = 64

// Node is the shared implementation behind Pipeline and Bin: the
// ChildLifeController's bookkeeping, the LifecycleController's
// transition and bubbling logic, and the MessageDispatcher loop that
// serializes both. Pipeline wraps a root Node (Up == nil); a Bin owns an
// inner Node whose Up is binUp, relaying through the Bin's outer actor,
// so the Bin both supervises its children and is itself supervised as
// one.
type Node struct {
	name   string
	logger log.Logger
	up     Up

	children map[string]*childRecord
	order    []string

	linkHandler *link.Handler

	machine      *playback.Machine
	quorumTarget playback.State
	quorumAcked  map[string]bool

	mgr *services.Manager
	svc *services.BasicService

	// failCh carries the crash cause when a RestartTemporary child brings
	// the node down, so running's shutdown path can fail the node's own
	// service with it instead of terminating cleanly. Buffered so
	// failWith never blocks the manager-listener goroutine that calls it.
	failCh chan error

	// boundaryEndpoint and boundaryTarget resolve the link.Bin sentinel
	// child name in resolveChild: set only on a Bin's inner Node, they let
	// an internal LinkSpec connect a nested child straight to one of the
	// Bin's own ghost pads.
	boundaryEndpoint link.Endpoint
	boundaryTarget   link.MailboxTarget

	mailbox chan nodeMsg

	// notifications buffers payloads reported via Notify, for
	// parent.TestHarness.AssertNotified.
	notifications []any
	sos           map[pad.Ref]bool
	eos           map[pad.Ref]bool

	readyCh chan struct{}
}

// newNode builds a Node named name, reporting to up (nil for a root
// Pipeline).
func newNode(name string, up Up, logger log.Logger) *Node {
	n := &Node{
		name:     name,
		logger:   logger,
		up:       up,
		children: make(map[string]*childRecord),
		mailbox:  make(chan nodeMsg, defaultNodeMailboxCapacity),
		failCh:   make(chan error, 1),
		sos:      make(map[pad.Ref]bool),
		eos:      make(map[pad.Ref]bool),
		readyCh:  make(chan struct{}),
	}
	n.linkHandler = link.New(n.resolveChild)

	ctx := &control.Context{Element: name}
	n.machine = playback.New(playback.Handlers{
		StoppedToPrepared: n.transitionTo(playback.Prepared),
		PreparedToPlaying: n.transitionTo(playback.Playing),
		PlayingToPrepared: n.transitionTo(playback.Prepared),
		PreparedToStopped: n.transitionTo(playback.Stopped),
	}, n, n, ctx, selfReporter{n})

	n.svc = services.NewBasicService(n.starting, n.running, n.stopping)
	return n
}

// State and SetState implement control.StateHolder for the node's own
// (unused) playback-transition state.
func (n *Node) State() any     { return nil }
func (n *Node) SetState(any)   {}

// ApplyTransitionActions implements playback.Sink: a parent's own
// transition callbacks never return actions, only Deferred.
func (n *Node) ApplyTransitionActions([]control.Action) error { return nil }

// selfReporter adapts playback.Reporter (ReportPlaybackStateChanged(State))
// to Node.handleSelfTransitionComplete, keeping that single-arg signature
// from colliding with Node's element.Parent-facing
// ReportPlaybackStateChanged(child, state) method.
type selfReporter struct{ n *Node }

func (s selfReporter) ReportPlaybackStateChanged(state playback.State) {
	s.n.handleSelfTransitionComplete(state)
}

func (n *Node) handleSelfTransitionComplete(state playback.State) {
	if state == playback.Playing {
		select {
		case <-n.readyCh:
		default:
			close(n.readyCh)
		}
	}
	if n.up != nil {
		n.up.ReportPlaybackStateChanged(n.name, state)
	}
}

// Service exposes the node's dskit/services.Service, so a Bin can be
// supervised by its own parent's services.Manager the same way an
// element.Actor is.
func (n *Node) Service() services.Service { return n.svc }

func (n *Node) starting(context.Context) error { return nil }

func (n *Node) stopping(_ error) error {
	if n.mgr != nil {
		n.mgr.StopAsync()
	}
	return nil
}

func (n *Node) running(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// failWith is always called before the StopAsync that
			// cancels ctx, so a buffered crash cause, if any, is
			// already waiting here — check it non-blockingly rather
			// than racing ctx.Done() against failCh in the same select.
			select {
			case err := <-n.failCh:
				return err
			default:
				return nil
			}
		case msg := <-n.mailbox:
			n.dispatch(msg)
		}
	}
}

// failWith records cause as the reason the node is about to be torn
// down, so running reports it as the node's own failure rather than a
// clean stop. Call it before requesting shutdown.
func (n *Node) failWith(cause error) {
	select {
	case n.failCh <- cause:
	default:
	}
}

// dispatch is the MessageDispatcher: single entry point routing on
// message kind.
func (n *Node) dispatch(msg nodeMsg) {
	switch msg.kind {
	case nodeMsgPlaybackChanged:
		n.onChildPlaybackChanged(msg.child, msg.state)
	case nodeMsgStartOfStream:
		n.sos[msg.pad] = true
		if n.up != nil {
			n.up.NotifyStartOfStream(msg.pad)
		}
	case nodeMsgEndOfStream:
		n.eos[msg.pad] = true
		if n.up != nil {
			n.up.NotifyEndOfStream(msg.pad)
		}
	case nodeMsgNotification:
		n.notifications = append(n.notifications, msg.payload)
		if n.up != nil {
			n.up.Notify(n.name, msg.payload)
		}
	case nodeMsgOther:
		level.Debug(n.logger).Log("msg", "unhandled parent message", "node", n.name, "payload", msg.payload)
	case nodeMsgChangePlaybackState:
		msg.reply <- n.machine.RequestTransition(msg.state)
	}
}

func (n *Node) tell(msg nodeMsg) {
	select {
	case n.mailbox <- msg:
	case <-time.After(time.Second):
		level.Warn(n.logger).Log("msg", "parent mailbox send timed out", "node", n.name)
	}
}

// NotifyStartOfStream, NotifyEndOfStream, ReportPlaybackStateChanged and
// Notify implement element.Parent: every child actor calls these
// directly from its own goroutine, so each just enqueues onto the node's
// mailbox rather than touching node state inline.
func (n *Node) NotifyStartOfStream(ref pad.Ref) { n.tell(nodeMsg{kind: nodeMsgStartOfStream, pad: ref}) }
func (n *Node) NotifyEndOfStream(ref pad.Ref)   { n.tell(nodeMsg{kind: nodeMsgEndOfStream, pad: ref}) }

func (n *Node) ReportPlaybackStateChanged(child string, state playback.State) {
	n.tell(nodeMsg{kind: nodeMsgPlaybackChanged, child: child, state: state})
}

func (n *Node) Notify(child string, payload any) {
	n.tell(nodeMsg{kind: nodeMsgNotification, payload: payload})
}

// ReadyChan closes once the node first reaches Playing, for an HTTP
// /ready handler to select on without blocking.
func (n *Node) ReadyChan() <-chan struct{} { return n.readyCh }

// Children returns every spawned child's name, in spawn order, for
// status reporting.
func (n *Node) Children() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// ChildState returns the last playback state reported by the named
// child, and whether it is still counted in the playback quorum.
func (n *Node) ChildState(name string) (state playback.State, inQuorum, ok bool) {
	rec, found := n.children[name]
	if !found {
		return playback.Stopped, false, false
	}
	return rec.state, rec.inQuorum, true
}

func (n *Node) resolveChild(name string) (link.Endpoint, link.MailboxTarget, bool) {
	if name == link.Bin {
		if n.boundaryEndpoint == nil {
			return nil, nil, false
		}
		return n.boundaryEndpoint, n.boundaryTarget, true
	}
	rec, ok := n.children[name]
	if !ok {
		return nil, nil, false
	}
	return rec.actor, rec.actor, true
}
