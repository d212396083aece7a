package parent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/pad"
)

// TestHarness wraps a Pipeline with polling assertions for the
// asynchronous, actor-driven events tests need to observe: stream
// boundary notifications bubbling to the root, user notifications, and
// the absence of a matching user notification for a given wait.
type TestHarness struct {
	t        *testing.T
	pipeline *Pipeline
	timeout  time.Duration
}

// NewTestHarness returns a harness polling pipeline's root node with a
// default one-second deadline per assertion.
func NewTestHarness(t *testing.T, pipeline *Pipeline) *TestHarness {
	return &TestHarness{t: t, pipeline: pipeline, timeout: time.Second}
}

func (h *TestHarness) poll(check func() bool) bool {
	deadline := time.Now().Add(h.timeout)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return check()
}

// AssertStartOfStream fails the test unless ref reports start-of-stream
// within the harness's deadline.
func (h *TestHarness) AssertStartOfStream(ref pad.Ref) {
	h.t.Helper()
	ok := h.poll(func() bool {
		n := h.pipeline.Node
		return n.sos[ref]
	})
	require.True(h.t, ok, "expected start_of_stream on %s", ref)
}

// AssertEndOfStream fails the test unless ref reports end-of-stream
// within the harness's deadline.
func (h *TestHarness) AssertEndOfStream(ref pad.Ref) {
	h.t.Helper()
	ok := h.poll(func() bool {
		n := h.pipeline.Node
		return n.eos[ref]
	})
	require.True(h.t, ok, "expected end_of_stream on %s", ref)
}

// AssertNotified fails the test unless some child's Notify action
// reported a payload for which match returns true, within the harness's
// deadline.
func (h *TestHarness) AssertNotified(match func(payload any) bool) {
	h.t.Helper()
	ok := h.poll(func() bool {
		for _, p := range h.pipeline.Node.notifications {
			if match(p) {
				return true
			}
		}
		return false
	})
	require.True(h.t, ok, "expected a matching notification")
}

// RefuteDown asserts that, for the full wait duration, no notification
// matched by match arrives — used to confirm a crash was absorbed rather
// than silently propagated.
func (h *TestHarness) RefuteDown(match func(payload any) bool, wait time.Duration) {
	h.t.Helper()
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		for _, p := range h.pipeline.Node.notifications {
			require.False(h.t, match(p), "unexpected notification matched RefuteDown predicate")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
