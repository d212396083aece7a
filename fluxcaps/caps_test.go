package fluxcaps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapsEqualIsStructural(t *testing.T) {
	a := New("audio/pcm", map[string]any{"rate": 48000, "channels": 2})
	b := New("audio/pcm", map[string]any{"channels": 2, "rate": 48000})
	c := New("audio/pcm", map[string]any{"rate": 44100, "channels": 2})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestCapsNewCopiesFields(t *testing.T) {
	src := map[string]any{"rate": 48000}
	caps := New("audio/pcm", src)
	src["rate"] = 44100

	assert.Equal(t, 48000, caps.Fields["rate"])
}

func TestPatternAnyMatchesEverything(t *testing.T) {
	p := Any()
	assert.True(t, p.Matches(New("audio/pcm", nil)))
	assert.True(t, p.Matches(New("video/raw", nil)))
}

func TestPatternKindAndPredicate(t *testing.T) {
	p := Pattern{
		Kind: "audio/pcm",
		Match: func(c Caps) bool {
			rate, _ := c.Fields["rate"].(int)
			return rate == 48000 || rate == 44100
		},
	}

	assert.True(t, p.Matches(New("audio/pcm", map[string]any{"rate": 48000})))
	assert.False(t, p.Matches(New("audio/pcm", map[string]any{"rate": 22050})))
	assert.False(t, p.Matches(New("video/raw", map[string]any{"rate": 48000})))
}
