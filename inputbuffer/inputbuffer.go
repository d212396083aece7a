// Package inputbuffer implements the bounded, order-preserving per-input-pad
// queue (InputBuffer) and the push-mode overflow guard (Toilet).
package inputbuffer

import (
	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxevent"
)

// Kind discriminates the items an InputBuffer stores.
type Kind int

const (
	KindCaps Kind = iota
	KindEvent
	KindBuffers
)

// item is one queued entry. Only KindBuffers entries carry a precomputed
// size and count toward the demand budget; caps and events are always
// drained when at the head of the queue.
type item struct {
	kind    Kind
	caps    fluxcaps.Caps
	event   fluxevent.Event
	buffers []fluxbuf.Buffer
	size    uint64
}

// DrainedItem is one item handed back by TakeAndDemand, in the order it
// was stored.
type DrainedItem struct {
	Kind    Kind
	Caps    fluxcaps.Caps
	Event   fluxevent.Event
	Buffers []fluxbuf.Buffer
}

// Status reports whether TakeAndDemand satisfied the requested demand
// before the queue ran dry.
type Status int

const (
	Drained Status = iota
	Empty
)

// DemandFn is invoked when, after draining, the queue sits below its
// preferred size; it requests the deficit from the peer.
type DemandFn func(deficit uint64)

// InputBuffer is the per-input-pad queue. All methods assume single-
// threaded access from the owning element's goroutine; no locking is done.
type InputBuffer struct {
	metric        fluxbuf.Metric
	preferredSize uint64

	items []item
	size  uint64 // sum of size across queued KindBuffers items
}

// New returns an empty InputBuffer that measures buffer runs with metric
// and aims to keep at least preferredSize units queued.
func New(metric fluxbuf.Metric, preferredSize uint64) *InputBuffer {
	return &InputBuffer{metric: metric, preferredSize: preferredSize}
}

// StoreCaps appends a caps item.
func (b *InputBuffer) StoreCaps(c fluxcaps.Caps) {
	b.items = append(b.items, item{kind: KindCaps, caps: c})
}

// StoreEvent appends an event item.
func (b *InputBuffer) StoreEvent(e fluxevent.Event) {
	b.items = append(b.items, item{kind: KindEvent, event: e})
}

// StoreBuffers appends a run of buffers, computing its size eagerly via
// the buffer's declared demand-unit metric.
func (b *InputBuffer) StoreBuffers(bufs []fluxbuf.Buffer) {
	n := b.metric.Size(bufs)
	b.items = append(b.items, item{kind: KindBuffers, buffers: bufs, size: n})
	b.size += n
}

// Len reports the current buffer-unit occupancy (caps/events don't count).
func (b *InputBuffer) Len() uint64 { return b.size }

// TakeAndDemand drains items from the head of the queue until either the
// queue is empty or the cumulative size of drained buffer runs reaches
// currentDemand. Caps and event items are always drained when at the head
// and never count toward the budget. If, after draining, the remaining
// occupancy sits below preferredSize, onDeficit is called with the
// shortfall so the caller can request more from the peer.
func (b *InputBuffer) TakeAndDemand(currentDemand uint64, onDeficit DemandFn) (Status, []DrainedItem) {
	var drained []DrainedItem
	var took uint64

	i := 0
	for i < len(b.items) {
		it := b.items[i]
		if it.kind == KindBuffers && took >= currentDemand {
			break
		}
		drained = append(drained, toDrained(it))
		if it.kind == KindBuffers {
			took += it.size
			b.size -= it.size
		}
		i++
	}
	b.items = b.items[i:]

	status := Drained
	if took < currentDemand {
		status = Empty
	}

	if onDeficit != nil && b.size < b.preferredSize {
		onDeficit(b.preferredSize - b.size)
	}

	return status, drained
}

func toDrained(it item) DrainedItem {
	return DrainedItem{Kind: it.kind, Caps: it.caps, Event: it.event, Buffers: it.buffers}
}
