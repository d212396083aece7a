// Package pad defines pad identity, direction, mode, and the static pad
// declarations elements advertise.
package pad

import (
	"fmt"

	"github.com/fluxgraph/fluxgraph/fluxcaps"
)

// Direction is the flow direction of a pad.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Opposite returns the other direction, used when interpreting
// "forward: :all" actions.
func (d Direction) Opposite() Direction {
	if d == Input {
		return Output
	}
	return Input
}

// Mode is the pull/push discipline a pad operates under.
type Mode int

const (
	Pull Mode = iota
	Push
)

func (m Mode) String() string {
	if m == Pull {
		return "pull"
	}
	return "push"
}

// Availability describes when a pad instance comes into existence.
type Availability int

const (
	Always Availability = iota
	OnRequest
)

// DemandUnit names the accounting unit an output pad's demand is measured
// in: buffers, bytes, or an element-defined custom unit.
type DemandUnit struct {
	kind string
}

var (
	Buffers = DemandUnit{kind: "buffers"}
	Bytes   = DemandUnit{kind: "bytes"}
)

// Custom names a user-defined demand unit.
func Custom(name string) DemandUnit { return DemandUnit{kind: "custom:" + name} }

func (u DemandUnit) String() string { return u.kind }

// Ref identifies a pad: the owning element's name, the pad's declared
// name, and — for pads created from an on_request template — a dynamic
// instance id. Static pads leave Instance empty.
type Ref struct {
	Element  string
	Name     string
	Instance string
}

func (r Ref) String() string {
	if r.Instance == "" {
		return fmt.Sprintf("%s:%s", r.Element, r.Name)
	}
	return fmt.Sprintf("%s:%s_%s", r.Element, r.Name, r.Instance)
}

// IsDynamic reports whether r was created from an on_request template.
func (r Ref) IsDynamic() bool { return r.Instance != "" }

// Spec is a static pad declaration, one entry of an element's
// known_input_pads / known_output_pads table.
type Spec struct {
	Name         string
	Direction    Direction
	Availability Availability
	Mode         Mode
	Unit         DemandUnit
	Caps         fluxcaps.Pattern
	// PreferredSize bounds the input buffer's target occupancy (input pads
	// only); zero means no target, so the buffer never requests a deficit
	// from its peer.
	PreferredSize uint64
	// ToiletThreshold overrides the default overflow threshold for a
	// push-mode input pad; zero means the package default (200 units).
	ToiletThreshold int64
}
