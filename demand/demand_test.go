package demand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxerr"
	"github.com/fluxgraph/fluxgraph/inputbuffer"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/padmodel"
)

type fakeDispatcher struct {
	drained     map[pad.Ref][]inputbuffer.DrainedItem
	demandCalls []pad.Ref
	sentDemand  map[pad.Ref]uint64
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{drained: map[pad.Ref][]inputbuffer.DrainedItem{}, sentDemand: map[pad.Ref]uint64{}}
}

func (f *fakeDispatcher) DispatchDrained(ref pad.Ref, items []inputbuffer.DrainedItem) error {
	f.drained[ref] = append(f.drained[ref], items...)
	return nil
}

func (f *fakeDispatcher) DispatchDemand(ref pad.Ref, size int64) error {
	f.demandCalls = append(f.demandCalls, ref)
	return nil
}

func (f *fakeDispatcher) SendDemand(ref pad.Ref, amount uint64) {
	f.sentDemand[ref] = amount
}

func inputRef() pad.Ref { return pad.Ref{Element: "sink", Name: "in"} }

func newModelWithInput(preferredSize uint64) *padmodel.Model {
	m := padmodel.New("sink")
	ref := inputRef()
	m.Register(&padmodel.Record{
		Ref:         ref,
		Direction:   pad.Input,
		Mode:        pad.Pull,
		Metric:      fluxbuf.BuffersMetric,
		InputBuffer: inputbuffer.New(fluxbuf.BuffersMetric, preferredSize),
	})
	return m
}

func TestSupplyDemandDrainsUpToSize(t *testing.T) {
	m := newModelWithInput(0)
	ref := inputRef()
	rec, err := m.Get(ref)
	require.NoError(t, err)
	rec.InputBuffer.StoreBuffers([]fluxbuf.Buffer{fluxbuf.New([]byte("a"))})
	rec.InputBuffer.StoreBuffers([]fluxbuf.Buffer{fluxbuf.New([]byte("b"))})

	disp := newFakeDispatcher()
	h := New(m, disp, 1)

	size := int64(1)
	require.NoError(t, h.SupplyDemand(ref, &size, nil))

	require.Len(t, disp.drained[ref], 1)
	assert.Equal(t, uint64(1), rec.InputBuffer.Len())
}

func TestSupplyDemandNegativeIsContractError(t *testing.T) {
	m := newModelWithInput(0)
	ref := inputRef()
	disp := newFakeDispatcher()
	h := New(m, disp, 1)

	size := int64(-1)
	err := h.SupplyDemand(ref, &size, nil)
	require.Error(t, err)
	var contractErr *fluxerr.ContractError
	assert.ErrorAs(t, err, &contractErr)
}

func TestHandleRedemandDispatchesWhenIdle(t *testing.T) {
	m := newModelWithInput(0)
	ref := inputRef()
	disp := newFakeDispatcher()
	h := New(m, disp, 1)

	require.NoError(t, h.HandleRedemand(ref))
	assert.Equal(t, []pad.Ref{ref}, disp.demandCalls)
}

func TestAccountOutgoingPullDebitsDemand(t *testing.T) {
	m := padmodel.New("src")
	ref := pad.Ref{Element: "src", Name: "out"}
	m.Register(&padmodel.Record{Ref: ref, Direction: pad.Output, Mode: pad.Pull, Metric: fluxbuf.BuffersMetric, Demand: 3})

	disp := newFakeDispatcher()
	h := New(m, disp, 1)

	require.NoError(t, h.AccountOutgoing(ref, []fluxbuf.Buffer{fluxbuf.New([]byte("a"))}))

	rec, err := m.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Demand)
}

func TestAccountOutgoingPullGoingNegativeIsContractError(t *testing.T) {
	m := padmodel.New("src")
	ref := pad.Ref{Element: "src", Name: "out"}
	m.Register(&padmodel.Record{Ref: ref, Direction: pad.Output, Mode: pad.Pull, Metric: fluxbuf.BuffersMetric, Demand: 0})

	disp := newFakeDispatcher()
	h := New(m, disp, 1)

	err := h.AccountOutgoing(ref, []fluxbuf.Buffer{fluxbuf.New([]byte("a"))})
	require.Error(t, err)
	var contractErr *fluxerr.ContractError
	assert.ErrorAs(t, err, &contractErr)
}

func TestAccountOutgoingPushOverflowsToilet(t *testing.T) {
	m := padmodel.New("src")
	ref := pad.Ref{Element: "src", Name: "out"}
	peerToilet := inputbuffer.NewToilet(1)
	m.Register(&padmodel.Record{Ref: ref, Direction: pad.Output, Mode: pad.Push, Metric: fluxbuf.BuffersMetric, PeerToilet: peerToilet})

	disp := newFakeDispatcher()
	h := New(m, disp, 1)

	err := h.AccountOutgoing(ref, []fluxbuf.Buffer{fluxbuf.New([]byte("a")), fluxbuf.New([]byte("b"))})
	require.Error(t, err)
	var overflow *fluxerr.ToiletOverflow
	assert.ErrorAs(t, err, &overflow)
}
