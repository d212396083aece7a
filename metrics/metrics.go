// Package metrics exposes the prometheus instrumentation emitted by the
// element runtime: demand served, toilet overflow kills, and playback
// transitions completed, each labeled by element so a dashboard can
// break a pipeline down node by node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DemandServed counts the buffer/byte units an output pad has sent
	// downstream, labeled by element and pad.
	DemandServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fluxgraph",
		Name:      "demand_served_total",
		Help:      "Total units of demand served on an output pad.",
	}, []string{"element", "pad"})

	// ToiletOverflows counts the times a push-mode producer has
	// self-terminated after exceeding a peer's toilet threshold.
	ToiletOverflows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fluxgraph",
		Name:      "toilet_overflow_total",
		Help:      "Total number of push-mode producers killed by toilet overflow.",
	}, []string{"element", "pad"})

	// ToiletOutstanding reports the current outstanding-unit count on a
	// push-mode input pad's toilet.
	ToiletOutstanding = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fluxgraph",
		Name:      "toilet_outstanding",
		Help:      "Current outstanding units recorded against a push-mode input pad's toilet.",
	}, []string{"element", "pad"})

	// PlaybackTransitions counts completed element-level playback state
	// transitions, labeled by the state reached.
	PlaybackTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fluxgraph",
		Name:      "playback_transitions_total",
		Help:      "Total number of completed playback state transitions.",
	}, []string{"element", "state"})

	// ChildCrashes counts child actor crashes observed by a parent's
	// service manager, labeled by the restart policy applied.
	ChildCrashes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fluxgraph",
		Name:      "child_crashes_total",
		Help:      "Total number of child element crashes observed by a parent.",
	}, []string{"node", "child", "restart_policy"})

	// MailboxDepth reports the current number of queued messages on an
	// element or node's mailbox channel.
	MailboxDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fluxgraph",
		Name:      "mailbox_depth",
		Help:      "Current number of queued messages on an actor's mailbox.",
	}, []string{"element"})
)
