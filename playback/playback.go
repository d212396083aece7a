// Package playback implements the ElementStateMachine: the
// stopped/prepared/playing sub-state every element walks through under
// its parent's change_playback_state commands, independent of the
// element's underlying dskit/services process lifecycle.
package playback

import "github.com/fluxgraph/fluxgraph/control"

// State is one of an element's three playback states.
type State int

const (
	Stopped State = iota
	Prepared
	Playing
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Prepared:
		return "prepared"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// TransitionResult is what a transition callback returns. Deferred marks a
// transition the element is completing asynchronously (e.g. it spawned
// work and will report back later via CompleteAsync); when Deferred is
// true the machine suspends advancing its pending queue until that call
// arrives.
type TransitionResult struct {
	control.Result
	Deferred bool
}

// TransitionFunc is one of an element's four transition callbacks:
// handle_stopped_to_prepared, handle_prepared_to_playing,
// handle_playing_to_prepared, handle_prepared_to_stopped.
type TransitionFunc func(ctx *control.Context, state any) (TransitionResult, error)

// Handlers bundles the four transition callbacks an element implements.
type Handlers struct {
	StoppedToPrepared TransitionFunc
	PreparedToPlaying TransitionFunc
	PlayingToPrepared TransitionFunc
	PreparedToStopped TransitionFunc
}

// Reporter is notified every time the machine completes a step, so the
// owning element can forward playback_state_changed to its parent.
type Reporter interface {
	ReportPlaybackStateChanged(State)
}

// Sink interprets the actions a transition callback returns, the same
// action-dispatch machinery stream controllers use.
type Sink interface {
	ApplyTransitionActions(actions []control.Action) error
}

// Machine is the ElementStateMachine. It is not safe for concurrent use;
// like every other piece of per-element state it is only ever touched
// from the owning element's own goroutine.
type Machine struct {
	current  State
	pending  []State
	deferred *State // non-nil while awaiting CompleteAsync for this target

	handlers Handlers
	state    control.StateHolder
	sink     Sink
	ctx      *control.Context
	reporter Reporter
}

// New returns a Machine starting in Stopped, the state every element
// begins in when its parent spawns it.
func New(h Handlers, state control.StateHolder, sink Sink, ctx *control.Context, reporter Reporter) *Machine {
	return &Machine{current: Stopped, handlers: h, state: state, sink: sink, ctx: ctx, reporter: reporter}
}

// Current reports the machine's current playback state.
func (m *Machine) Current() State { return m.current }

// RequestTransition implements change_playback_state(target): it computes
// the adjacent-step walk from the current state to target and queues it.
// If a transition is already pending (including an in-flight deferred
// one), the new steps are appended rather than run inline — "skipping a
// state queues intermediate transitions."
func (m *Machine) RequestTransition(target State) error {
	m.pending = append(m.pending, pathBetween(m.current, target)...)
	if m.deferred != nil || len(m.pending) == 0 {
		return nil
	}
	return m.advance()
}

// CompleteAsync is called once an element finishes a deferred transition
// (it returned Deferred: true from its callback and is now reporting
// completion, typically by returning control.PlaybackChangeSuccessful()
// from a later callback). It finalizes the in-flight step and resumes
// draining the pending queue.
func (m *Machine) CompleteAsync() error {
	if m.deferred == nil {
		return nil
	}
	m.current = *m.deferred
	m.deferred = nil
	m.reporter.ReportPlaybackStateChanged(m.current)
	return m.advance()
}

func (m *Machine) advance() error {
	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]

		fn := m.handlerFor(m.current, next)
		var res TransitionResult
		var err error
		if fn != nil {
			res, err = fn(m.ctx, m.state.State())
			if err != nil {
				return err
			}
			m.state.SetState(res.State)
			if err := m.sink.ApplyTransitionActions(res.Actions); err != nil {
				return err
			}
		}

		if res.Deferred {
			target := next
			m.deferred = &target
			return nil
		}

		m.current = next
		m.reporter.ReportPlaybackStateChanged(m.current)
	}
	return nil
}

func (m *Machine) handlerFor(from, to State) TransitionFunc {
	switch {
	case from == Stopped && to == Prepared:
		return m.handlers.StoppedToPrepared
	case from == Prepared && to == Playing:
		return m.handlers.PreparedToPlaying
	case from == Playing && to == Prepared:
		return m.handlers.PlayingToPrepared
	case from == Prepared && to == Stopped:
		return m.handlers.PreparedToStopped
	default:
		return nil
	}
}

// pathBetween returns the ordered sequence of adjacent states to walk
// from 'from' to reach 'to', exclusive of 'from' and inclusive of 'to'.
func pathBetween(from, to State) []State {
	if from == to {
		return nil
	}
	step := State(1)
	if to < from {
		step = -1
	}
	var path []State
	for s := from; s != to; s += step {
		path = append(path, s+step)
	}
	return path
}
