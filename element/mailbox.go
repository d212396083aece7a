package element

import (
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/link"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/playback"
	"github.com/fluxgraph/fluxgraph/timer"
)

type mailboxKind int

const (
	msgCaps mailboxKind = iota
	msgEvent
	msgBuffers
	msgDemand
	msgChangePlaybackState
	msgLink
	msgTimerTick
	msgOther
	msgShutdown
)

// mailboxMsg is the closed sum type delivered over an actor's private
// mailbox channel. Only the fields relevant to kind are populated.
type mailboxMsg struct {
	kind mailboxKind

	pad        pad.Ref
	caps       fluxcaps.Caps
	event      fluxevent.Event
	bufs       []fluxbuf.Buffer
	demandSize int64

	target playback.State

	link link.HandshakeRequest

	tick timer.Tick

	other  any
	reason error
}
