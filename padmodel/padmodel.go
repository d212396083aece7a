// Package padmodel is the per-element keyed store of pad records: the
// PadModel component of the element runtime. Every access is made from the
// owning element's own goroutine, so the store needs no locking.
package padmodel

import (
	"strconv"
	"sync/atomic"

	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxcaps"
	"github.com/fluxgraph/fluxgraph/fluxerr"
	"github.com/fluxgraph/fluxgraph/inputbuffer"
	"github.com/fluxgraph/fluxgraph/pad"
)

// Record is the full per-pad state: everything spec.md's data model lists
// as a Pad attribute, plus a free-form data map for element-defined
// per-pad bookkeeping (get_data/set_data/update_data).
type Record struct {
	Ref       pad.Ref
	Direction pad.Direction
	Mode      pad.Mode
	Unit      pad.DemandUnit
	Metric    fluxbuf.Metric

	CapsPattern fluxcaps.Pattern
	Caps        *fluxcaps.Caps

	PeerRef *pad.Ref
	PeerPID string

	Demand int64

	InputBuffer *inputbuffer.InputBuffer
	Toilet      *inputbuffer.Toilet
	PeerToilet  *inputbuffer.Toilet

	CapsSent bool
	SOSSent  bool
	EOSSent  bool

	data map[string]any
}

// Model is the keyed pad record store owned by a single element.
type Model struct {
	element  string
	pads     map[string]*Record
	order    []string // insertion order, for deterministic iteration in tests/status output
	dynCount atomic.Uint64
}

// New returns an empty pad model for the given element name.
func New(element string) *Model {
	return &Model{element: element, pads: make(map[string]*Record)}
}

// Register adds a new pad record. Re-registering the same ref replaces the
// existing record.
func (m *Model) Register(rec *Record) {
	key := rec.Ref.String()
	if _, exists := m.pads[key]; !exists {
		m.order = append(m.order, key)
	}
	m.pads[key] = rec
}

// Get returns the record for ref, or UnknownPad if it isn't registered.
func (m *Model) Get(ref pad.Ref) (*Record, error) {
	rec, ok := m.pads[ref.String()]
	if !ok {
		return nil, &fluxerr.UnknownPad{Ref: ref}
	}
	return rec, nil
}

// Update applies fn to the record for ref under a single lookup, the
// "atomic multi-field update" operation spec.md's PadModel exposes. fn may
// return an error to abort without side effects beyond what it already
// mutated — callers that need rollback semantics should copy fields they
// intend to touch before mutating.
func (m *Model) Update(ref pad.Ref, fn func(*Record) error) error {
	rec, err := m.Get(ref)
	if err != nil {
		return err
	}
	return fn(rec)
}

// GetData reads a single element-defined key from a pad's free-form data
// bag.
func (m *Model) GetData(ref pad.Ref, key string) (any, error) {
	rec, err := m.Get(ref)
	if err != nil {
		return nil, err
	}
	return rec.data[key], nil
}

// SetData writes a single key in a pad's free-form data bag.
func (m *Model) SetData(ref pad.Ref, key string, value any) error {
	rec, err := m.Get(ref)
	if err != nil {
		return err
	}
	if rec.data == nil {
		rec.data = map[string]any{}
	}
	rec.data[key] = value
	return nil
}

// UpdateData applies fn to the current value stored under key (nil if
// absent) and stores the result.
func (m *Model) UpdateData(ref pad.Ref, key string, fn func(any) any) error {
	rec, err := m.Get(ref)
	if err != nil {
		return err
	}
	if rec.data == nil {
		rec.data = map[string]any{}
	}
	rec.data[key] = fn(rec.data[key])
	return nil
}

// All returns every registered record in registration order.
func (m *Model) All() []*Record {
	out := make([]*Record, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.pads[key])
	}
	return out
}

// NewInstance allocates a dynamic pad reference from an on_request
// template, e.g. NewInstance("output") -> {Element, "output", "3"}. Ids
// are a per-element monotonic counter, not random, so test fixtures that
// enumerate dynamic pads get stable, sortable names.
func (m *Model) NewInstance(template string) pad.Ref {
	id := m.dynCount.Add(1)
	return pad.Ref{Element: m.element, Name: template, Instance: strconv.FormatUint(id, 10)}
}
