package element

import (
	"github.com/fluxgraph/fluxgraph/control"
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/pad"
)

// BaseBehavior supplies a default for every Behavior method, so a
// concrete element can embed it and override only the callbacks it
// cares about — the same partial-interface-via-embedding idiom
// dskit/services.NewBasicService builders use when a caller only needs
// a RunningFn.
//
// HandleCaps and HandleEvent default to forward: :all, matching a plain
// passthrough element. Every playback transition defaults to a no-op
// synchronous success. HandleDemand, HandleProcess and HandleOther
// default to doing nothing.
type BaseBehavior struct{}

func (BaseBehavior) Init(any) (any, error) { return nil, nil }

func (BaseBehavior) HandleStoppedToPrepared(_ *Context, state any) (PlaybackResult, error) {
	return Done(Result{State: state}), nil
}

func (BaseBehavior) HandlePreparedToPlaying(_ *Context, state any) (PlaybackResult, error) {
	return Done(Result{State: state}), nil
}

func (BaseBehavior) HandlePlayingToPrepared(_ *Context, state any) (PlaybackResult, error) {
	return Done(Result{State: state}), nil
}

func (BaseBehavior) HandlePreparedToStopped(_ *Context, state any) (PlaybackResult, error) {
	return Done(Result{State: state}), nil
}

func (BaseBehavior) HandleDemand(_ pad.Ref, _ int64, _ pad.DemandUnit, _ *Context, state any) (Result, error) {
	return Result{State: state}, nil
}

func (BaseBehavior) HandleCaps(_ pad.Ref, _ fluxcaps.Caps, _ *Context, state any) (Result, error) {
	return Result{State: state, Actions: []control.Action{control.ForwardAll()}}, nil
}

func (BaseBehavior) HandleProcess(_ pad.Ref, _ []fluxbuf.Buffer, _ *Context, state any) (Result, error) {
	return Result{State: state}, nil
}

func (BaseBehavior) HandleEvent(_ pad.Ref, _ fluxevent.Event, _ *Context, state any) (Result, error) {
	return Result{State: state, Actions: []control.Action{control.ForwardAll()}}, nil
}

func (BaseBehavior) HandleOther(_ any, _ *Context, state any) (Result, error) {
	return Result{State: state}, nil
}

func (BaseBehavior) HandleShutdown(error, any) {}

func (BaseBehavior) KnownInputPads() map[string]pad.Spec  { return nil }
func (BaseBehavior) KnownOutputPads() map[string]pad.Spec { return nil }
