package fluxbuf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferWithPTSIsImmutable(t *testing.T) {
	b := New([]byte("hello"))
	_, ok := b.PTS()
	assert.False(t, ok)

	stamped := b.WithPTS(5 * time.Second)
	pts, ok := stamped.PTS()
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, pts)

	// The original, unstamped copy is untouched.
	_, ok = b.PTS()
	assert.False(t, ok)
}

func TestBufferWithMetadataNamespaces(t *testing.T) {
	b := New([]byte("x")).WithMetadata("ns1", "k", 1).WithMetadata("ns2", "k", 2)

	assert.Equal(t, 1, b.MetadataFor("ns1")["k"])
	assert.Equal(t, 2, b.MetadataFor("ns2")["k"])
	assert.Nil(t, b.MetadataFor("ns3"))
}

func TestBufferWithMetadataDoesNotMutatePrior(t *testing.T) {
	b1 := New([]byte("x")).WithMetadata("ns", "k", "v1")
	b2 := b1.WithMetadata("ns", "k", "v2")

	assert.Equal(t, "v1", b1.MetadataFor("ns")["k"])
	assert.Equal(t, "v2", b2.MetadataFor("ns")["k"])
}

func TestMetricSize(t *testing.T) {
	bufs := []Buffer{New([]byte("ab")), New([]byte("cde"))}

	assert.Equal(t, uint64(2), BuffersMetric.Size(bufs))
	assert.Equal(t, uint64(5), BytesMetric.Size(bufs))

	custom := CustomMetric(func(bs []Buffer) uint64 { return uint64(len(bs)) * 10 })
	assert.Equal(t, uint64(20), custom.Size(bufs))
}
