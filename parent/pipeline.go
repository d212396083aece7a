package parent

import (
	"context"

	"github.com/go-kit/log"

	"github.com/fluxgraph/fluxgraph/playback"
)

// Pipeline is the root of a fluxgraph runtime: a Node with no Up, owning
// a flat or nested tree of children. Build one with NewPipeline, Spawn
// every child, Link every connection, then Start and ChangePlaybackState
// it to Playing.
type Pipeline struct {
	*Node
}

// NewPipeline returns an empty, unstarted pipeline named name.
func NewPipeline(name string, logger log.Logger) *Pipeline {
	return &Pipeline{Node: newNode(name, nil, logger)}
}

// Build spawns every child, establishes every link, and starts the
// resulting service tree, in that order — link targets must already be
// registered pads before Establish can resolve them.
func (p *Pipeline) Build(ctx context.Context, children []ChildSpec, links []LinkSpec) error {
	for _, c := range children {
		if err := p.Spawn(c); err != nil {
			return err
		}
	}
	for _, l := range links {
		if err := p.Link(l); err != nil {
			return err
		}
	}
	return p.Start(ctx)
}

// Play is shorthand for walking the pipeline to Playing and blocking
// until the quorum of children confirms it (or the context is done).
func (p *Pipeline) Play(ctx context.Context) error {
	if err := p.ChangePlaybackState(playback.Playing); err != nil {
		return err
	}
	select {
	case <-p.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Teardown stops playback and the underlying service tree.
func (p *Pipeline) Teardown(ctx context.Context) error {
	_ = p.ChangePlaybackState(playback.Stopped)
	return p.Stop(ctx)
}
