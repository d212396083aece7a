package element

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fluxgraph/fluxgraph/control"
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/link"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/playback"
)

type fakeParent struct {
	sos, eos       []pad.Ref
	stateChanges   []playback.State
	notifyPayloads []any
}

func (f *fakeParent) NotifyStartOfStream(ref pad.Ref) { f.sos = append(f.sos, ref) }
func (f *fakeParent) NotifyEndOfStream(ref pad.Ref)   { f.eos = append(f.eos, ref) }
func (f *fakeParent) ReportPlaybackStateChanged(_ string, s playback.State) {
	f.stateChanges = append(f.stateChanges, s)
}
func (f *fakeParent) Notify(_ string, payload any) { f.notifyPayloads = append(f.notifyPayloads, payload) }

type passthroughBehavior struct {
	BaseBehavior
	processed [][]fluxbuf.Buffer
}

func (b *passthroughBehavior) HandleProcess(_ pad.Ref, bufs []fluxbuf.Buffer, _ *Context, state any) (Result, error) {
	b.processed = append(b.processed, bufs)
	return Result{State: state, Actions: []control.Action{control.ForwardAll()}}, nil
}

func (b *passthroughBehavior) KnownInputPads() map[string]pad.Spec {
	return map[string]pad.Spec{"in": {Name: "in", Direction: pad.Input, Mode: pad.Push, Caps: fluxcaps.Any()}}
}

func (b *passthroughBehavior) KnownOutputPads() map[string]pad.Spec {
	return map[string]pad.Spec{"out": {Name: "out", Direction: pad.Output, Mode: pad.Push, Caps: fluxcaps.Any()}}
}

func startActor(t *testing.T, a *Actor) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.Service().StartAsync(ctx))
	require.NoError(t, a.Service().AwaitRunning(ctx))
	t.Cleanup(func() {
		a.Service().StopAsync()
		_ = a.Service().AwaitTerminated(context.Background())
	})
}

func linkDirect(from, to *Actor, fromPad, toPad pad.Ref) {
	toReply := make(chan link.HandshakeReply, 1)
	to.TellLink(link.HandshakeRequest{This: toPad, Peer: fromPad, PeerBox: from, Reply: toReply})
	toReply1 := <-toReply

	fromReply := make(chan link.HandshakeReply, 1)
	from.TellLink(link.HandshakeRequest{This: fromPad, Peer: toPad, PeerBox: to, PeerToilet: toReply1.Toilet, Reply: fromReply})
	<-fromReply
}

func TestActorForwardsBuffersAcrossLink(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	logger := log.NewNopLogger()
	srcParent := &fakeParent{}
	sinkParent := &fakeParent{}

	src, err := New("src", &passthroughBehavior{}, srcParent, nil, logger)
	require.NoError(t, err)
	sink, err := New("sink", &passthroughBehavior{}, sinkParent, nil, logger)
	require.NoError(t, err)

	startActor(t, src)
	startActor(t, sink)

	srcIn := pad.Ref{Element: "src", Name: "in"}
	srcOut := pad.Ref{Element: "src", Name: "out"}
	sinkIn := pad.Ref{Element: "sink", Name: "in"}
	linkDirect(src, sink, srcOut, sinkIn)

	src.TellCaps(srcIn, fluxcaps.New("audio/pcm", nil))
	src.TellBuffers(srcIn, []fluxbuf.Buffer{fluxbuf.New([]byte("hello"))})

	require.Eventually(t, func() bool {
		beh := sink.behavior.(*passthroughBehavior)
		return len(beh.processed) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestActorRejectsBufferBeforeCaps(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	logger := log.NewNopLogger()
	parent := &fakeParent{}
	a, err := New("sink", &passthroughBehavior{}, parent, nil, logger)
	require.NoError(t, err)
	startActor(t, a)

	// Sending a buffer without caps crashes the mailbox loop (contract
	// violation), which surfaces as the service failing.
	a.TellBuffers(pad.Ref{Element: "sink", Name: "in"}, []fluxbuf.Buffer{fluxbuf.New([]byte("x"))})

	require.Eventually(t, func() bool {
		return a.Service().FailureCase() != nil
	}, time.Second, 5*time.Millisecond)
}

func TestActorPlaybackTransitionReportsToParent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	logger := log.NewNopLogger()
	parent := &fakeParent{}
	a, err := New("e", &passthroughBehavior{}, parent, nil, logger)
	require.NoError(t, err)
	startActor(t, a)

	a.TellChangePlaybackState(playback.Playing)

	require.Eventually(t, func() bool {
		return len(parent.stateChanges) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []playback.State{playback.Prepared, playback.Playing}, parent.stateChanges)
}

func TestActorStartOfStreamNotifiesParentOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	logger := log.NewNopLogger()
	parent := &fakeParent{}
	a, err := New("sink", &passthroughBehavior{}, parent, nil, logger)
	require.NoError(t, err)
	startActor(t, a)

	ref := pad.Ref{Element: "sink", Name: "in"}
	a.TellCaps(ref, fluxcaps.New("audio/pcm", nil))
	a.TellEvent(ref, fluxevent.StartOfStreamEvent())
	a.TellEvent(ref, fluxevent.StartOfStreamEvent())

	require.Eventually(t, func() bool {
		return a.Service().FailureCase() != nil
	}, time.Second, 5*time.Millisecond, "duplicate start-of-stream must crash as a contract violation")
	assert.Len(t, parent.sos, 1)
}
