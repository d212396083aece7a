// Package fluxbuf defines the immutable Buffer payload type that flows
// along links, and the size Metric abstraction used to account demand.
package fluxbuf

import "time"

// Buffer is an immutable payload unit. Once constructed it cannot be
// mutated; With* methods return a modified copy.
type Buffer struct {
	payload  []byte
	hasPTS   bool
	pts      time.Duration
	metadata map[string]map[string]any // namespace -> key -> value
}

// New constructs a Buffer wrapping payload. The slice is not copied;
// callers must not mutate it after handing the Buffer to the framework.
func New(payload []byte) Buffer {
	return Buffer{payload: payload}
}

// WithPTS returns a copy of b carrying the given presentation timestamp.
func (b Buffer) WithPTS(pts time.Duration) Buffer {
	b.hasPTS = true
	b.pts = pts
	return b
}

// WithMetadata returns a copy of b with metadata[namespace][key] set to
// value. Namespacing keeps independent elements from clobbering each
// other's metadata on a buffer that passes through several of them.
func (b Buffer) WithMetadata(namespace, key string, value any) Buffer {
	cp := make(map[string]map[string]any, len(b.metadata)+1)
	for ns, kv := range b.metadata {
		inner := make(map[string]any, len(kv))
		for k, v := range kv {
			inner[k] = v
		}
		cp[ns] = inner
	}
	inner, ok := cp[namespace]
	if !ok {
		inner = map[string]any{}
		cp[namespace] = inner
	}
	inner[key] = value
	b.metadata = cp
	return b
}

// Payload returns the buffer's payload bytes.
func (b Buffer) Payload() []byte { return b.payload }

// PTS returns the presentation timestamp, if one was set.
func (b Buffer) PTS() (time.Duration, bool) { return b.pts, b.hasPTS }

// MetadataFor returns the metadata stored under namespace, or nil.
func (b Buffer) MetadataFor(namespace string) map[string]any {
	return b.metadata[namespace]
}

// Metric computes the size, in demand units, of a run of buffers. Pads
// declare which Metric their demand-unit uses.
type Metric interface {
	Size(bufs []Buffer) uint64
}

type buffersMetric struct{}

func (buffersMetric) Size(bufs []Buffer) uint64 { return uint64(len(bufs)) }

type bytesMetric struct{}

func (bytesMetric) Size(bufs []Buffer) uint64 {
	var n uint64
	for _, b := range bufs {
		n += uint64(len(b.payload))
	}
	return n
}

// BuffersMetric counts buffers, one unit each.
var BuffersMetric Metric = buffersMetric{}

// BytesMetric sums payload bytes.
var BytesMetric Metric = bytesMetric{}

// CustomMetric adapts a function to the Metric interface for user-defined
// demand units.
type CustomMetric func(bufs []Buffer) uint64

func (f CustomMetric) Size(bufs []Buffer) uint64 { return f(bufs) }
