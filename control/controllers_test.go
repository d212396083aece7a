package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxerr"
	"github.com/fluxgraph/fluxgraph/fluxevent"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/padmodel"
)

type fakeState struct{ v any }

func (f *fakeState) State() any     { return f.v }
func (f *fakeState) SetState(s any) { f.v = s }

type fakeSink struct {
	applied []Action
	err     error
}

func (f *fakeSink) Apply(origin pad.Ref, actions []Action) error {
	f.applied = append(f.applied, actions...)
	return f.err
}

type fakeParent struct {
	sos, eos []pad.Ref
}

func (f *fakeParent) NotifyStartOfStream(ref pad.Ref) { f.sos = append(f.sos, ref) }
func (f *fakeParent) NotifyEndOfStream(ref pad.Ref)   { f.eos = append(f.eos, ref) }

func ref() pad.Ref { return pad.Ref{Element: "e", Name: "in"} }

func newModel(mode pad.Mode) *padmodel.Model {
	m := padmodel.New("e")
	m.Register(&padmodel.Record{
		Ref:         ref(),
		Direction:   pad.Input,
		Mode:        mode,
		CapsPattern: fluxcaps.Any(),
	})
	return m
}

func TestCapsControllerRejectsMismatch(t *testing.T) {
	m := padmodel.New("e")
	m.Register(&padmodel.Record{Ref: ref(), CapsPattern: fluxcaps.Pattern{Kind: "video/raw"}})

	c := &CapsController{Pads: m, Fn: func(pad.Ref, fluxcaps.Caps, *Context, any) (Result, error) {
		return Result{}, nil
	}, State: &fakeState{}, Sink: &fakeSink{}, Ctx: &Context{Element: "e"}}

	err := c.Handle(ref(), fluxcaps.New("audio/pcm", nil))
	require.Error(t, err)
	var mismatch *fluxerr.ContractError
	assert.ErrorAs(t, err, &mismatch)
}

func TestCapsControllerAcceptsAndDispatches(t *testing.T) {
	m := newModel(pad.Push)
	var gotCaps fluxcaps.Caps
	c := &CapsController{Pads: m, Fn: func(_ pad.Ref, caps fluxcaps.Caps, _ *Context, _ any) (Result, error) {
		gotCaps = caps
		return Result{State: "s1"}, nil
	}, State: &fakeState{}, Sink: &fakeSink{}, Ctx: &Context{Element: "e"}}

	require.NoError(t, c.Handle(ref(), fluxcaps.New("audio/pcm", nil)))
	assert.Equal(t, "audio/pcm", gotCaps.Kind)

	rec, err := m.Get(ref())
	require.NoError(t, err)
	assert.True(t, rec.CapsSent)
}

func TestEventControllerRejectsDuplicateStartOfStream(t *testing.T) {
	m := newModel(pad.Push)
	require.NoError(t, m.Update(ref(), func(r *padmodel.Record) error { r.SOSSent = true; return nil }))

	c := &EventController{Pads: m, Fn: func(pad.Ref, fluxevent.Event, *Context, any) (Result, error) {
		return Result{}, nil
	}, State: &fakeState{}, Sink: &fakeSink{}}

	err := c.Handle(ref(), fluxevent.StartOfStreamEvent())
	require.Error(t, err)
	var dup *fluxerr.ContractError
	assert.ErrorAs(t, err, &dup)
}

func TestEventControllerNotifiesParentOnStartOfStream(t *testing.T) {
	m := newModel(pad.Push)
	parent := &fakeParent{}
	c := &EventController{Pads: m, Fn: func(pad.Ref, fluxevent.Event, *Context, any) (Result, error) {
		return Result{}, nil
	}, State: &fakeState{}, Sink: &fakeSink{}, Parent: parent}

	require.NoError(t, c.Handle(ref(), fluxevent.StartOfStreamEvent()))
	assert.Equal(t, []pad.Ref{ref()}, parent.sos)
}

func TestBufferControllerRejectsBeforeCaps(t *testing.T) {
	m := newModel(pad.Push)
	c := &BufferController{Pads: m, Fn: func(pad.Ref, []fluxbuf.Buffer, *Context, any) (Result, error) {
		return Result{}, nil
	}, State: &fakeState{}, Sink: &fakeSink{}}

	err := c.Handle(ref(), []fluxbuf.Buffer{fluxbuf.New([]byte("a"))})
	require.Error(t, err)
	var ce *fluxerr.ContractError
	assert.ErrorAs(t, err, &ce)
}

func TestBufferControllerRejectsAfterEndOfStream(t *testing.T) {
	m := newModel(pad.Push)
	caps := fluxcaps.New("audio/pcm", nil)
	require.NoError(t, m.Update(ref(), func(r *padmodel.Record) error { r.Caps = &caps; r.EOSSent = true; return nil }))

	c := &BufferController{Pads: m, Fn: func(pad.Ref, []fluxbuf.Buffer, *Context, any) (Result, error) {
		return Result{}, nil
	}, State: &fakeState{}, Sink: &fakeSink{}}

	err := c.Handle(ref(), []fluxbuf.Buffer{fluxbuf.New([]byte("a"))})
	require.Error(t, err)
}

func TestBufferControllerDispatchesToCallback(t *testing.T) {
	m := newModel(pad.Push)
	caps := fluxcaps.New("audio/pcm", nil)
	require.NoError(t, m.Update(ref(), func(r *padmodel.Record) error { r.Caps = &caps; return nil }))

	var gotBufs []fluxbuf.Buffer
	sink := &fakeSink{}
	c := &BufferController{Pads: m, Fn: func(_ pad.Ref, bufs []fluxbuf.Buffer, _ *Context, _ any) (Result, error) {
		gotBufs = bufs
		return Result{Actions: []Action{ForwardAll()}}, nil
	}, State: &fakeState{}, Sink: sink}

	bufs := []fluxbuf.Buffer{fluxbuf.New([]byte("a"))}
	require.NoError(t, c.Handle(ref(), bufs))
	assert.Equal(t, bufs, gotBufs)
	require.Len(t, sink.applied, 1)
	assert.True(t, sink.applied[0].ForwardAll)
}

func TestDemandControllerDispatchesAndAppliesActions(t *testing.T) {
	sink := &fakeSink{}
	c := &DemandController{Fn: func(_ pad.Ref, size int64, _ pad.DemandUnit, _ *Context, _ any) (Result, error) {
		return Result{Actions: []Action{Redemand(ref())}}, nil
	}, State: &fakeState{}, Sink: sink}

	require.NoError(t, c.Handle(ref(), 3, pad.Buffers))
	require.Len(t, sink.applied, 1)
	assert.Equal(t, ActionRedemand, sink.applied[0].Kind)
}

func TestCallbackErrorWrapsCause(t *testing.T) {
	m := newModel(pad.Push)
	caps := fluxcaps.New("audio/pcm", nil)
	require.NoError(t, m.Update(ref(), func(r *padmodel.Record) error { r.Caps = &caps; return nil }))

	c := &BufferController{Pads: m, Fn: func(pad.Ref, []fluxbuf.Buffer, *Context, any) (Result, error) {
		return Result{}, assert.AnError
	}, State: &fakeState{}, Sink: &fakeSink{}}

	err := c.Handle(ref(), []fluxbuf.Buffer{fluxbuf.New([]byte("a"))})
	require.Error(t, err)
	var cbErr *fluxerr.CallbackError
	assert.ErrorAs(t, err, &cbErr)
}
