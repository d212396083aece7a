package inputbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
)

func TestInputBufferDrainsCapsAndEventsUnconditionally(t *testing.T) {
	b := New(fluxbuf.BuffersMetric, 0)
	b.StoreCaps(fluxcaps.New("audio/pcm", nil))
	b.StoreEvent(fluxevent.StartOfStreamEvent())

	status, drained := b.TakeAndDemand(0, nil)
	assert.Equal(t, Drained, status)
	require.Len(t, drained, 2)
	assert.Equal(t, KindCaps, drained[0].Kind)
	assert.Equal(t, KindEvent, drained[1].Kind)
}

func TestInputBufferStopsAtDemand(t *testing.T) {
	b := New(fluxbuf.BuffersMetric, 0)
	b.StoreBuffers([]fluxbuf.Buffer{fluxbuf.New([]byte("a"))})
	b.StoreBuffers([]fluxbuf.Buffer{fluxbuf.New([]byte("b"))})
	b.StoreBuffers([]fluxbuf.Buffer{fluxbuf.New([]byte("c"))})

	status, drained := b.TakeAndDemand(2, nil)
	assert.Equal(t, Drained, status)
	require.Len(t, drained, 2)
	assert.Equal(t, uint64(1), b.Len())
}

func TestInputBufferEmptyWhenDemandExceedsQueue(t *testing.T) {
	b := New(fluxbuf.BuffersMetric, 0)
	b.StoreBuffers([]fluxbuf.Buffer{fluxbuf.New([]byte("a"))})

	status, drained := b.TakeAndDemand(5, nil)
	assert.Equal(t, Empty, status)
	require.Len(t, drained, 1)
	assert.Equal(t, uint64(0), b.Len())
}

func TestInputBufferRequestsDeficit(t *testing.T) {
	b := New(fluxbuf.BuffersMetric, 5)
	b.StoreBuffers([]fluxbuf.Buffer{fluxbuf.New([]byte("a")), fluxbuf.New([]byte("b"))})

	var deficit uint64
	_, _ = b.TakeAndDemand(2, func(d uint64) { deficit = d })
	assert.Equal(t, uint64(5), deficit)
}
