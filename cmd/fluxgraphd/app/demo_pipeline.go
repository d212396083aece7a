package app

import (
	"time"

	"github.com/go-kit/log"

	"github.com/fluxgraph/fluxgraph/control"
	"github.com/fluxgraph/fluxgraph/element"
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/parent"
)

// buildDemoPipeline wires the smallest chain that exercises the push-mode
// runtime end to end (every pad is push-mode; pull-mode demand is not
// exercised): a ticking source emitting one push-mode
// buffer per timer tick, a passthrough relay (forward: :all on every
// callback), and a sink that counts what it receives. It is a fixture,
// not a product feature — a real deployment builds its own
// ChildSpec/LinkSpec list from its own domain config instead.
func buildDemoPipeline(name string, logger log.Logger) *parent.Pipeline {
	p := parent.NewPipeline(name, logger)

	children := []parent.ChildSpec{
		{Name: "source", Behavior: &tickSourceBehavior{interval: time.Second}, RestartPolicy: parent.RestartTemporary},
		{Name: "relay", Behavior: &relayBehavior{}, RestartPolicy: parent.RestartTemporary},
		{Name: "sink", Behavior: &countingSinkBehavior{}, RestartPolicy: parent.RestartTransient},
	}
	links := []parent.LinkSpec{
		{FromChild: "source", FromPad: "out", ToChild: "relay", ToPad: "in"},
		{FromChild: "relay", FromPad: "out", ToChild: "sink", ToPad: "in"},
	}

	for _, c := range children {
		if err := p.Spawn(c); err != nil {
			panic(err)
		}
	}
	for _, l := range links {
		if err := p.Link(l); err != nil {
			panic(err)
		}
	}
	return p
}

var tickCaps = fluxcaps.New("demo/ticks", map[string]any{"unit": "count"})

// tickSourceBehavior emits one buffer per fired "emit" timer tick, once
// playing. It has a single push-mode output pad.
type tickSourceBehavior struct {
	element.BaseBehavior
	interval time.Duration
	n        int64
	capsSent bool
}

func (s *tickSourceBehavior) KnownOutputPads() map[string]pad.Spec {
	return map[string]pad.Spec{
		"out": {Name: "out", Direction: pad.Output, Mode: pad.Push, Unit: pad.Buffers},
	}
}

func (s *tickSourceBehavior) HandlePreparedToPlaying(ctx *control.Context, state any) (element.PlaybackResult, error) {
	ctx.Timers.Start("emit", s.interval)
	var actions []control.Action
	if !s.capsSent {
		s.capsSent = true
		actions = append(actions, control.Caps(pad.Ref{Element: ctx.Element, Name: "out"}, tickCaps))
		actions = append(actions, control.Event(pad.Ref{Element: ctx.Element, Name: "out"}, fluxevent.StartOfStreamEvent()))
	}
	return element.Done(control.Result{State: state, Actions: actions}), nil
}

func (s *tickSourceBehavior) HandlePlayingToPrepared(ctx *control.Context, state any) (element.PlaybackResult, error) {
	ctx.Timers.Stop("emit")
	return element.Done(control.Result{State: state}), nil
}

func (s *tickSourceBehavior) HandleOther(msg any, ctx *control.Context, state any) (control.Result, error) {
	s.n++
	buf := fluxbuf.New([]byte{byte(s.n)}).WithPTS(time.Duration(s.n) * s.interval)
	return control.Result{
		State:   state,
		Actions: []control.Action{control.Buffer(pad.Ref{Element: ctx.Element, Name: "out"}, buf)},
	}, nil
}

// relayBehavior is a plain passthrough element: BaseBehavior's default
// forward: :all on caps and events already does the job, and
// HandleProcess below forwards buffers the same way.
type relayBehavior struct {
	element.BaseBehavior
}

func (relayBehavior) KnownInputPads() map[string]pad.Spec {
	return map[string]pad.Spec{
		"in": {Name: "in", Direction: pad.Input, Mode: pad.Push, Unit: pad.Buffers},
	}
}

func (relayBehavior) KnownOutputPads() map[string]pad.Spec {
	return map[string]pad.Spec{
		"out": {Name: "out", Direction: pad.Output, Mode: pad.Push, Unit: pad.Buffers},
	}
}

func (relayBehavior) HandleProcess(ref pad.Ref, bufs []fluxbuf.Buffer, ctx *control.Context, state any) (control.Result, error) {
	return control.Result{
		State:   state,
		Actions: []control.Action{control.ForwardAll()},
	}, nil
}

// countingSinkBehavior counts every buffer it receives and reports the
// running count via a Notify action after each processed run, not a shared
// field, since it is only ever touched from the actor's own goroutine.
type countingSinkBehavior struct {
	element.BaseBehavior
	count int64
}

func (countingSinkBehavior) KnownInputPads() map[string]pad.Spec {
	return map[string]pad.Spec{
		"in": {Name: "in", Direction: pad.Input, Mode: pad.Push, Unit: pad.Buffers},
	}
}

func (s *countingSinkBehavior) HandleProcess(ref pad.Ref, bufs []fluxbuf.Buffer, ctx *control.Context, state any) (control.Result, error) {
	s.count += int64(len(bufs))
	return control.Result{State: state, Actions: []control.Action{control.Notify(s.count)}}, nil
}
