package parent

import (
	"github.com/fluxgraph/fluxgraph/control"
	"github.com/fluxgraph/fluxgraph/playback"
)

// transitionTo builds the playback.TransitionFunc for one of the node's
// four adjacent playback steps: it tells every still-running child to
// walk to target and always defers, completing only once every child in
// the quorum has reported reaching it. A parent with no children
// completes its own transition inline.
func (n *Node) transitionTo(target playback.State) playback.TransitionFunc {
	return func(*control.Context, any) (playback.TransitionResult, error) {
		n.quorumTarget = target
		n.quorumAcked = make(map[string]bool)

		pending := 0
		for _, name := range n.order {
			rec := n.children[name]
			if !rec.inQuorum {
				continue
			}
			pending++
			rec.actor.TellChangePlaybackState(target)
		}
		if pending == 0 {
			return playback.TransitionResult{Deferred: false}, nil
		}
		return playback.TransitionResult{Deferred: true}, nil
	}
}

// onChildPlaybackChanged handles a playback_state_changed report from one
// child, run on the node's own mailbox goroutine. Once every child still
// in the quorum has reached the target state, it completes the node's
// own deferred transition.
func (n *Node) onChildPlaybackChanged(child string, state playback.State) {
	rec, ok := n.children[child]
	if !ok {
		return
	}
	rec.state = state

	if state != n.quorumTarget {
		return
	}
	n.quorumAcked[child] = true

	for _, name := range n.order {
		r := n.children[name]
		if r.inQuorum && !n.quorumAcked[name] {
			return
		}
	}
	if err := n.machine.CompleteAsync(); err != nil {
		n.dispatch(nodeMsg{kind: nodeMsgOther, payload: err})
	}
}

// ChangePlaybackState requests the node (and transitively, its children)
// walk to target. Unlike element.Actor.TellChangePlaybackState, this is a
// synchronous call from outside the node's own goroutine (a test, or
// cmd/fluxgraphd/app), so it is routed through the mailbox like every
// other parent-facing mutation rather than touching the playback.Machine
// directly — the Machine is only ever safe to touch from the node's own
// running() goroutine, which is also where onChildPlaybackChanged's
// CompleteAsync call lands.
func (n *Node) ChangePlaybackState(target playback.State) error {
	reply := make(chan error, 1)
	n.tell(nodeMsg{kind: nodeMsgChangePlaybackState, state: target, reply: reply})
	return <-reply
}

// Current reports the node's own current playback state.
func (n *Node) Current() playback.State { return n.machine.Current() }
