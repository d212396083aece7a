package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/inputbuffer"
	"github.com/fluxgraph/fluxgraph/pad"
)

type fakeEndpoint struct {
	name     string
	received []HandshakeRequest
	toilet   *inputbuffer.Toilet
}

func (f *fakeEndpoint) TellLink(req HandshakeRequest) {
	f.received = append(f.received, req)
	req.Reply <- HandshakeReply{LinkID: f.name, Toilet: f.toilet}
}

func (f *fakeEndpoint) TellDemand(pad.Ref, int64)            {}
func (f *fakeEndpoint) TellBuffers(pad.Ref, []fluxbuf.Buffer) {}
func (f *fakeEndpoint) TellCaps(pad.Ref, fluxcaps.Caps)       {}
func (f *fakeEndpoint) TellEvent(pad.Ref, fluxevent.Event)    {}

func TestEstablishDrivesBothSidesInOrder(t *testing.T) {
	fromPad := pad.Ref{Element: "src", Name: "out"}
	toPad := pad.Ref{Element: "sink", Name: "in"}
	toToilet := inputbuffer.NewToilet(10)

	from := &fakeEndpoint{name: "src"}
	to := &fakeEndpoint{name: "sink", toilet: toToilet}

	h := New(func(child string) (Endpoint, MailboxTarget, bool) {
		switch child {
		case "src":
			return from, from, true
		case "sink":
			return to, to, true
		default:
			return nil, nil, false
		}
	})

	spec := Spec{FromChild: "src", FromPad: fromPad, ToChild: "sink", ToPad: toPad}
	require.NoError(t, h.Establish(spec))

	require.Len(t, to.received, 1)
	assert.Equal(t, toPad, to.received[0].This)
	assert.Equal(t, fromPad, to.received[0].Peer)

	require.Len(t, from.received, 1)
	assert.Equal(t, fromPad, from.received[0].This)
	assert.Equal(t, toPad, from.received[0].Peer)
	assert.Same(t, toToilet, from.received[0].PeerToilet, "the from side's PeerToilet must be the to side's own toilet")
}

func TestEstablishUnknownChildErrors(t *testing.T) {
	h := New(func(child string) (Endpoint, MailboxTarget, bool) { return nil, nil, false })

	err := h.Establish(Spec{FromChild: "missing", ToChild: "also-missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestEstablishUnknownToChildErrors(t *testing.T) {
	from := &fakeEndpoint{name: "src"}
	h := New(func(child string) (Endpoint, MailboxTarget, bool) {
		if child == "src" {
			return from, from, true
		}
		return nil, nil, false
	})

	err := h.Establish(Spec{FromChild: "src", ToChild: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
