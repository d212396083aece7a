package inputbuffer

import "go.uber.org/atomic"

// DefaultOverflowThreshold is T_overflow from spec.md: the default
// outstanding-unit threshold at which a push-mode producer is killed.
// spec.md leaves "should this be per-pad configurable" as an open
// question; this package resolves it by making the threshold a
// constructor argument (pad.Spec.ToiletThreshold, zero meaning "use this
// default") rather than a single hard-coded constant.
const DefaultOverflowThreshold = 200

// Toilet is the shared atomic counter guarding a push-mode input pad
// against producer overrun. Exactly one producer goroutine calls Add and
// exactly one consumer goroutine calls Sub, so no CAS loop is needed.
type Toilet struct {
	count     atomic.Int64
	threshold int64
}

// NewToilet returns a zeroed Toilet with the given overflow threshold. A
// threshold <= 0 falls back to DefaultOverflowThreshold.
func NewToilet(threshold int64) *Toilet {
	if threshold <= 0 {
		threshold = DefaultOverflowThreshold
	}
	return &Toilet{threshold: threshold}
}

// Add records n more outstanding units and returns the new total. Called
// by the producer after emitting a push-mode buffer run.
func (t *Toilet) Add(n int64) int64 { return t.count.Add(n) }

// Sub records n units drained. Called by the consumer; the counter must
// never go negative.
func (t *Toilet) Sub(n int64) int64 { return t.count.Sub(n) }

// Load returns the current outstanding-unit count.
func (t *Toilet) Load() int64 { return t.count.Load() }

// Threshold returns the configured overflow threshold.
func (t *Toilet) Threshold() int64 { return t.threshold }

// Overflowed reports whether the counter currently exceeds its threshold.
func (t *Toilet) Overflowed() bool { return t.count.Load() > t.threshold }
