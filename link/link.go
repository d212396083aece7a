// Package link implements the pad-linking handshake: the parent side of
// spec.md's LinkHandler. An element or bin endpoint satisfies Endpoint
// and MailboxTarget structurally — this package never imports the
// element or parent packages, which keeps the dependency graph acyclic.
package link

import (
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/inputbuffer"
	"github.com/fluxgraph/fluxgraph/pad"
)

// MailboxTarget is the subset of an actor's mailbox a linked peer needs
// in order to deliver stream traffic directly, without going through the
// parent.
type MailboxTarget interface {
	TellDemand(ref pad.Ref, size int64)
	TellBuffers(ref pad.Ref, bufs []fluxbuf.Buffer)
	TellCaps(ref pad.Ref, caps fluxcaps.Caps)
	TellEvent(ref pad.Ref, ev fluxevent.Event)
}

// HandshakeRequest is one side of a handle_link delivery: "this is your
// peer; register it." PeerToilet is populated only when linking a
// push-mode output pad to an already-negotiated push-mode input pad,
// letting the producer side account directly against the consumer's
// toilet without a message round-trip.
type HandshakeRequest struct {
	This       pad.Ref
	Peer       pad.Ref
	PeerBox    MailboxTarget
	PeerToilet *inputbuffer.Toilet
	Reply      chan HandshakeReply
}

// HandshakeReply is sent back once an endpoint has registered its peer.
// Toilet carries the endpoint's own toilet handle when This is a
// push-mode input pad, so the handler can hand it to the output side's
// request.
type HandshakeReply struct {
	LinkID string
	Toilet *inputbuffer.Toilet
}

// Endpoint is implemented by anything that owns pads and can receive a
// handle_link delivery on its mailbox: element.Actor, and — for cross-bin
// links that bubble upward — a Bin acting on behalf of an inner child.
type Endpoint interface {
	TellLink(req HandshakeRequest)
}

// Spec is one link the parent was asked to establish: a pair of
// endpoints, each identified by child name and pad ref. Bin is the
// sentinel child name meaning "this bin itself" for a link endpoint that
// crosses the bin boundary.
type Spec struct {
	LinkID      string
	FromChild string
	FromPad   pad.Ref
	ToChild   string
	ToPad     pad.Ref
}

// Bin is the sentinel child name used for a cross-bin endpoint.
const Bin = ""

// Handler runs the two-step linking handshake for a batch of link specs
// against a resolver that maps a child name to its Endpoint/MailboxTarget.
type Handler struct {
	resolve func(child string) (Endpoint, MailboxTarget, bool)
}

// New returns a Handler that looks up endpoints via resolve.
func New(resolve func(child string) (Endpoint, MailboxTarget, bool)) *Handler {
	return &Handler{resolve: resolve}
}

// Establish runs the handshake for one link: both endpoints are sent
// handle_link and must both reply before the link is considered
// established. Cross-bin endpoints (FromChild or ToChild == Bin) are the
// caller's responsibility to resolve into a forwarding Endpoint that
// bubbles the request to its own parent; Establish itself only drives the
// two-sided exchange once both sides resolve.
func (h *Handler) Establish(spec Spec) error {
	fromEP, fromBox, ok := h.resolve(spec.FromChild)
	if !ok {
		return &unknownChildError{child: spec.FromChild}
	}
	toEP, toBox, ok := h.resolve(spec.ToChild)
	if !ok {
		return &unknownChildError{child: spec.ToChild}
	}

	toReplyCh := make(chan HandshakeReply, 1)
	toEP.TellLink(HandshakeRequest{
		This:    spec.ToPad,
		Peer:    spec.FromPad,
		PeerBox: fromBox,
		Reply:   toReplyCh,
	})
	toReply := <-toReplyCh

	fromReplyCh := make(chan HandshakeReply, 1)
	fromEP.TellLink(HandshakeRequest{
		This:       spec.FromPad,
		Peer:       spec.ToPad,
		PeerBox:    toBox,
		PeerToilet: toReply.Toilet,
		Reply:      fromReplyCh,
	})
	<-fromReplyCh

	return nil
}

type unknownChildError struct{ child string }

func (e *unknownChildError) Error() string { return "link: unknown child " + e.child }
