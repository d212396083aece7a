package parent

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/fluxgraph/fluxgraph/element"
	"github.com/fluxgraph/fluxgraph/link"
	"github.com/fluxgraph/fluxgraph/metrics"
)

// ErrChildCrashed is the sentinel wrapped into a node's own failure when a
// RestartTemporary child's service fails, so a grandparent's
// serviceFailed listener can tell a genuine child crash apart from a
// locally-initiated stop.
var ErrChildCrashed = errors.New("child element crashed")

// Spawn builds one child actor from spec and registers it, but does not
// yet start it — call Start once every child for this node has been
// spawned and every LinkSpec applied.
func (n *Node) Spawn(spec ChildSpec) error {
	if _, exists := n.children[spec.Name]; exists {
		return fmt.Errorf("parent: duplicate child name %q", spec.Name)
	}
	actor, err := element.New(spec.Name, spec.Behavior, n, spec.Opts, n.logger)
	if err != nil {
		return fmt.Errorf("parent: spawning child %q: %w", spec.Name, err)
	}
	n.children[spec.Name] = &childRecord{actor: actor, spec: spec, inQuorum: true}
	n.order = append(n.order, spec.Name)
	return nil
}

// Link establishes one pad-to-pad connection between two already-spawned
// children.
func (n *Node) Link(spec LinkSpec) error {
	return n.linkHandler.Establish(link.Spec{
		FromChild: spec.FromChild,
		FromPad:   padRef(spec.FromChild, spec.FromPad),
		ToChild:   spec.ToChild,
		ToPad:     padRef(spec.ToChild, spec.ToPad),
	})
}

// Start builds a dskit/services.Manager over every spawned child's
// Service, wires a ManagerListener that distinguishes a RestartTemporary
// child's crash (torn down as the node's own failure) from a
// RestartTransient child's crash (logged, dropped from the playback
// quorum, the rest of the pipeline carries on), and starts every child
// concurrently.
func (n *Node) Start(ctx context.Context) error {
	if err := n.svc.StartAsync(ctx); err != nil {
		return fmt.Errorf("parent: starting node mailbox: %w", err)
	}
	if err := n.svc.AwaitRunning(ctx); err != nil {
		return fmt.Errorf("parent: node mailbox failed to start: %w", err)
	}

	servs := make([]services.Service, 0, len(n.order))
	for _, name := range n.order {
		servs = append(servs, n.children[name].actor.Service())
	}
	if len(servs) == 0 {
		return nil
	}

	mgr, err := services.NewManager(servs...)
	if err != nil {
		return fmt.Errorf("parent: building service manager: %w", err)
	}
	n.mgr = mgr

	healthy := func() { level.Info(n.logger).Log("msg", "pipeline started", "node", n.name) }
	stopped := func() { level.Info(n.logger).Log("msg", "pipeline stopped", "node", n.name) }
	serviceFailed := func(svc services.Service) {
		for _, name := range n.order {
			rec := n.children[name]
			if rec.actor.Service() != svc {
				continue
			}
			cause := svc.FailureCase()
			if errors.Is(cause, context.Canceled) {
				return
			}
			if rec.spec.RestartPolicy == RestartTransient {
				metrics.ChildCrashes.WithLabelValues(n.name, name, "transient").Inc()
				level.Warn(n.logger).Log("msg", "child crashed, dropped from quorum", "node", n.name, "child", name, "err", cause)
				rec.inQuorum = false
				n.onChildPlaybackChanged(name, n.quorumTarget)
				return
			}
			metrics.ChildCrashes.WithLabelValues(n.name, name, "temporary").Inc()
			level.Error(n.logger).Log("msg", "child crashed, tearing down", "node", n.name, "child", name, "err", cause)
			n.failWith(fmt.Errorf("%w: %s: %v", ErrChildCrashed, name, cause))
			mgr.StopAsync()
			n.svc.StopAsync()
			return
		}
	}
	mgr.AddListener(services.NewManagerListener(healthy, stopped, serviceFailed))

	if err := mgr.StartAsync(ctx); err != nil {
		return fmt.Errorf("parent: starting children: %w", err)
	}
	return mgr.AwaitHealthy(ctx)
}

// Stop tears down every child and the node's own mailbox loop, and awaits
// completion.
func (n *Node) Stop(ctx context.Context) error {
	if n.mgr != nil {
		n.mgr.StopAsync()
		if err := n.mgr.AwaitStopped(ctx); err != nil {
			return err
		}
	}
	n.svc.StopAsync()
	return n.svc.AwaitTerminated(ctx)
}
