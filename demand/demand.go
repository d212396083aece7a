// Package demand implements the pull-protocol heart of the element
// runtime: re-entrant demand supply, the delayed-demand queue that
// prevents reordering under re-entrance, and outgoing-buffer accounting
// (pull-mode demand debit, push-mode toilet credit).
package demand

import (
	"math/rand"

	"github.com/fluxgraph/fluxgraph/fluxbuf"
	"github.com/fluxgraph/fluxgraph/fluxerr"
	"github.com/fluxgraph/fluxgraph/inputbuffer"
	"github.com/fluxgraph/fluxgraph/metrics"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/padmodel"
)

// Action discriminates a delayed-demand entry.
type Action int

const (
	ActionSupply Action = iota
	ActionRedemand
)

type delayedEntry struct {
	pad    pad.Ref
	action Action
}

// Dispatcher is implemented by the owning element actor. It performs the
// controller dispatch for items drained from an input pad's buffer, and
// the DemandController re-entry handle_redemand triggers.
type Dispatcher interface {
	DispatchDrained(ref pad.Ref, items []inputbuffer.DrainedItem) error
	DispatchDemand(ref pad.Ref, size int64) error
	SendDemand(ref pad.Ref, amount uint64)
}

// Handler is the DemandHandler: one per element, shared across all of the
// element's pads (the supplying flag and delayed set are global to
// the element, matching spec.md's "re-entrance is deferred" invariant,
// which is about one element's dispatch loop, not one pad).
type Handler struct {
	pads       *padmodel.Model
	dispatcher Dispatcher
	rng        *rand.Rand

	supplying bool
	delayed   []delayedEntry
}

// New returns a Handler bound to an element's pad model and dispatcher.
// seed should come from a real entropy source in production; tests may
// pass a fixed seed for determinism.
func New(pads *padmodel.Model, dispatcher Dispatcher, seed int64) *Handler {
	return &Handler{pads: pads, dispatcher: dispatcher, rng: rand.New(rand.NewSource(seed))}
}

// SupplyDemand implements supply_demand/2. When size is non-nil it is set
// as the pad's new outstanding demand; otherwise fn (if non-nil) computes
// the new demand from the current one. A negative result is a
// ContractError. If the element is already supplying demand on some pad,
// the drain is deferred into the delayed set instead of running inline,
// which is what prevents a re-entrant drain from interleaving with (and
// reordering) an in-flight one.
func (h *Handler) SupplyDemand(ref pad.Ref, size *int64, fn func(current int64) (int64, error)) error {
	if size != nil || fn != nil {
		if err := h.setDemand(ref, size, fn); err != nil {
			return err
		}
	}

	if h.supplying {
		h.addDelayed(delayedEntry{pad: ref, action: ActionSupply})
		return nil
	}

	h.supplying = true
	err := h.runSupply(ref)
	h.supplying = false
	if err != nil {
		return err
	}
	return h.drainDelayed()
}

// HandleRedemand implements handle_redemand/1: if supplying, the redemand
// is deferred; otherwise the DemandController is re-entered with size 0,
// letting the element recompute its demand via handle_demand.
func (h *Handler) HandleRedemand(ref pad.Ref) error {
	if h.supplying {
		h.addDelayed(delayedEntry{pad: ref, action: ActionRedemand})
		return nil
	}
	return h.dispatcher.DispatchDemand(ref, 0)
}

func (h *Handler) setDemand(ref pad.Ref, size *int64, fn func(int64) (int64, error)) error {
	return h.pads.Update(ref, func(r *padmodel.Record) error {
		var next int64
		if size != nil {
			next = *size
		} else {
			var err error
			next, err = fn(r.Demand)
			if err != nil {
				return err
			}
		}
		if next < 0 {
			return fluxerr.NegativeDemand(ref, next)
		}
		r.Demand = next
		return nil
	})
}

func (h *Handler) runSupply(ref pad.Ref) error {
	rec, err := h.pads.Get(ref)
	if err != nil {
		return err
	}
	if rec.InputBuffer == nil {
		return &fluxerr.UnknownPad{Ref: ref}
	}

	demand := rec.Demand
	if demand < 0 {
		demand = 0
	}

	_, items := rec.InputBuffer.TakeAndDemand(uint64(demand), func(deficit uint64) {
		if rec.PeerRef != nil {
			h.dispatcher.SendDemand(*rec.PeerRef, deficit)
		}
	})

	return h.dispatcher.DispatchDrained(ref, items)
}

func (h *Handler) addDelayed(e delayedEntry) {
	for _, existing := range h.delayed {
		if existing == e {
			return
		}
	}
	h.delayed = append(h.delayed, e)
}

// drainDelayed repeatedly picks a uniformly random pending entry and
// executes it until the set is empty, folding in any newly delayed
// entries as it goes. The random pick is load-bearing: a deterministic
// iteration order would starve whichever pad always sorts last under
// sustained asymmetric pressure.
func (h *Handler) drainDelayed() error {
	for len(h.delayed) > 0 {
		idx := h.rng.Intn(len(h.delayed))
		entry := h.delayed[idx]
		h.delayed = append(h.delayed[:idx], h.delayed[idx+1:]...)

		switch entry.action {
		case ActionSupply:
			h.supplying = true
			err := h.runSupply(entry.pad)
			h.supplying = false
			if err != nil {
				return err
			}
		case ActionRedemand:
			if err := h.dispatcher.DispatchDemand(entry.pad, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

// AccountOutgoing implements the DemandHandler's outgoing-buffers
// accounting: subtracting from a pull-mode output pad's demand, or
// crediting a push-mode peer's toilet and reporting overflow.
func (h *Handler) AccountOutgoing(ref pad.Ref, bufs []fluxbuf.Buffer) error {
	rec, err := h.pads.Get(ref)
	if err != nil {
		return err
	}
	size := rec.Metric.Size(bufs)

	metrics.DemandServed.WithLabelValues(ref.Element, ref.Name).Add(float64(size))

	switch rec.Mode {
	case pad.Pull:
		return h.pads.Update(ref, func(r *padmodel.Record) error {
			next := r.Demand - int64(size)
			if next < 0 {
				return fluxerr.NegativeDemand(ref, next)
			}
			r.Demand = next
			return nil
		})
	case pad.Push:
		if rec.PeerToilet == nil {
			return nil
		}
		newVal := rec.PeerToilet.Add(int64(size))
		metrics.ToiletOutstanding.WithLabelValues(ref.Element, ref.Name).Set(float64(newVal))
		if newVal > rec.PeerToilet.Threshold() {
			metrics.ToiletOverflows.WithLabelValues(ref.Element, ref.Name).Inc()
			return &fluxerr.ToiletOverflow{Pad: ref, Size: newVal, Threshold: rec.PeerToilet.Threshold()}
		}
		return nil
	default:
		return nil
	}
}
