// Package parent implements the pipeline/bin side of the runtime: child
// spawning and crash supervision (ChildLifeController), parent-level
// playback transitions and stream-event bubbling (LifecycleController),
// the single-entry message dispatcher, and the pad-linking orchestration
// that sits on top of package link.
package parent

import (
	"github.com/fluxgraph/fluxgraph/element"
	"github.com/fluxgraph/fluxgraph/pad"
	"github.com/fluxgraph/fluxgraph/playback"
)

// RestartPolicy governs what a parent does when a monitored child's
// service fails. RestartTemporary (the default, and spec.md's only
// documented behavior) propagates the crash and tears the parent down.
// RestartTransient absorbs it: the child is logged and dropped from the
// playback-state quorum instead.
type RestartPolicy int

const (
	RestartTemporary RestartPolicy = iota
	RestartTransient
)

// ChildSpec declares one child to spawn: its name (unique within the
// parent), its behavior, constructor options, its static pad
// declarations (read from the behavior itself), and its restart policy.
type ChildSpec struct {
	Name          string
	Behavior      element.Behavior
	Opts          any
	RestartPolicy RestartPolicy
}

// LinkSpec is one link the caller wants established between two
// children's pads, by name.
type LinkSpec struct {
	FromChild string
	FromPad   string
	ToChild   string
	ToPad     string
}

func padRef(child, name string) pad.Ref { return pad.Ref{Element: child, Name: name} }

type childRecord struct {
	actor    *element.Actor
	spec     ChildSpec
	state    playback.State
	inQuorum bool
}
