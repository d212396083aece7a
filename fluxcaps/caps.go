// Package fluxcaps defines the stream-format descriptor (Caps) pads
// negotiate before any buffer may flow, and the constraint patterns a pad
// declares against incoming caps.
package fluxcaps

import (
	"reflect"
	"sort"
)

// Caps is an opaque structured descriptor of a stream's format, e.g. audio
// sample rate or frame layout. Two Caps are equal iff their Kind and Fields
// are structurally equal.
type Caps struct {
	Kind   string
	Fields map[string]any
}

// New builds a Caps value. The returned value owns a shallow copy of fields
// so later mutation of the caller's map does not alter the Caps.
func New(kind string, fields map[string]any) Caps {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Caps{Kind: kind, Fields: cp}
}

// Equal reports structural equality between two Caps values.
func (c Caps) Equal(other Caps) bool {
	if c.Kind != other.Kind {
		return false
	}
	return reflect.DeepEqual(sortedFields(c.Fields), sortedFields(other.Fields))
}

// sortedFields exists only so reflect.DeepEqual compares by key rather than
// by the map's internal (unordered) iteration, which DeepEqual already
// handles correctly for maps — kept for clarity and to centralize any
// future field-level normalization (e.g. float tolerance).
func sortedFields(f map[string]any) map[string]any {
	if f == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(f))
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = f[k]
	}
	return out
}

// Pattern expresses the caps constraint a pad declares in its static spec:
// an accepted Kind ("" matches any kind) plus an optional extra predicate
// for fields a pattern alone can't express (e.g. "sample_rate in {44100,
// 48000}").
type Pattern struct {
	Kind  string
	Match func(Caps) bool
}

// Any returns a pattern that accepts every Caps value.
func Any() Pattern {
	return Pattern{}
}

// Matches reports whether c satisfies the pattern.
func (p Pattern) Matches(c Caps) bool {
	if p.Kind != "" && p.Kind != c.Kind {
		return false
	}
	if p.Match != nil {
		return p.Match(c)
	}
	return true
}
