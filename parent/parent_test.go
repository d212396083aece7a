package parent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/control"
	"github.com/fluxgraph/fluxgraph/element"
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/playback"
)

// emittingSourceBehavior emits caps, start-of-stream, one buffer, and
// end-of-stream synchronously as soon as it reaches Playing.
type emittingSourceBehavior struct {
	element.BaseBehavior
}

func (b *emittingSourceBehavior) HandlePreparedToPlaying(_ *element.Context, state any) (element.PlaybackResult, error) {
	out := pad.Ref{Element: "source", Name: "out"}
	return element.Done(control.Result{
		State: state,
		Actions: []control.Action{
			control.Caps(out, fluxcaps.New("audio/pcm", nil)),
			control.Event(out, fluxevent.StartOfStreamEvent()),
			control.Buffer(out, fluxbuf.New([]byte("hi"))),
			control.Event(out, fluxevent.EndOfStreamEvent()),
		},
	}), nil
}

func (b *emittingSourceBehavior) KnownOutputPads() map[string]pad.Spec {
	return map[string]pad.Spec{"out": {Name: "out", Direction: pad.Output, Mode: pad.Push, Caps: fluxcaps.Any()}}
}

type countingSinkBehavior struct {
	element.BaseBehavior
	count int
}

func (b *countingSinkBehavior) HandleProcess(_ pad.Ref, bufs []fluxbuf.Buffer, _ *element.Context, state any) (control.Result, error) {
	b.count += len(bufs)
	return control.Result{State: state}, nil
}

func (b *countingSinkBehavior) KnownInputPads() map[string]pad.Spec {
	return map[string]pad.Spec{"in": {Name: "in", Direction: pad.Input, Mode: pad.Push, Caps: fluxcaps.Any()}}
}

type crashingSinkBehavior struct {
	element.BaseBehavior
}

func (b *crashingSinkBehavior) HandleProcess(pad.Ref, []fluxbuf.Buffer, *element.Context, any) (control.Result, error) {
	return control.Result{}, errors.New("boom")
}

func (b *crashingSinkBehavior) KnownInputPads() map[string]pad.Spec {
	return map[string]pad.Spec{"in": {Name: "in", Direction: pad.Input, Mode: pad.Push, Caps: fluxcaps.Any()}}
}

func buildTwoChildPipeline(t *testing.T, name string, sink element.Behavior, sinkPolicy RestartPolicy) *Pipeline {
	t.Helper()
	p := NewPipeline(name, log.NewNopLogger())
	require.NoError(t, p.Spawn(ChildSpec{Name: "source", Behavior: &emittingSourceBehavior{}, RestartPolicy: RestartTemporary}))
	require.NoError(t, p.Spawn(ChildSpec{Name: "sink", Behavior: sink, RestartPolicy: sinkPolicy}))
	require.NoError(t, p.Link(LinkSpec{FromChild: "source", FromPad: "out", ToChild: "sink", ToPad: "in"}))
	require.NoError(t, p.Start(context.Background()))
	return p
}

func TestPipelinePlayPropagatesStreamBoundaryEvents(t *testing.T) {
	p := buildTwoChildPipeline(t, "pl", &countingSinkBehavior{}, RestartTemporary)
	defer p.Teardown(context.Background())

	h := NewTestHarness(t, p)
	require.NoError(t, p.ChangePlaybackState(playback.Playing))

	in := pad.Ref{Element: "sink", Name: "in"}
	h.AssertStartOfStream(in)
	h.AssertEndOfStream(in)
}

func TestPipelineReachesPlayingQuorum(t *testing.T) {
	p := buildTwoChildPipeline(t, "pl", &countingSinkBehavior{}, RestartTemporary)
	defer p.Teardown(context.Background())

	require.NoError(t, p.Play(context.Background()))
	assert.Equal(t, playback.Playing, p.Current())
}

func TestRestartTemporaryChildCrashTearsDownPipeline(t *testing.T) {
	p := buildTwoChildPipeline(t, "pl", &crashingSinkBehavior{}, RestartTemporary)
	require.NoError(t, p.ChangePlaybackState(playback.Playing))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := p.Service().AwaitTerminated(ctx)
	require.Error(t, err, "a RestartTemporary child crash must fail the whole pipeline, not terminate it cleanly")
	assert.ErrorIs(t, err, ErrChildCrashed)
}

func TestRestartTransientChildCrashDropsFromQuorum(t *testing.T) {
	p := buildTwoChildPipeline(t, "pl", &crashingSinkBehavior{}, RestartTransient)
	require.NoError(t, p.ChangePlaybackState(playback.Playing))

	require.Eventually(t, func() bool {
		_, inQuorum, ok := p.ChildState("sink")
		return ok && !inQuorum
	}, 2*time.Second, 10*time.Millisecond, "crashed transient child must be dropped from quorum")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := p.Service().AwaitTerminated(ctx)
	assert.Error(t, err, "the pipeline itself must keep running after a transient child crash")

	_ = p.Teardown(context.Background())
}

func TestChildrenReturnsSpawnOrder(t *testing.T) {
	p := buildTwoChildPipeline(t, "pl", &countingSinkBehavior{}, RestartTemporary)
	defer p.Teardown(context.Background())

	assert.Equal(t, []string{"source", "sink"}, p.Children())
}
