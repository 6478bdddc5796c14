package atom

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Accessors(t *testing.T) {
	t.Parallel()

	cfg := Config{
		"query":     "quick brown",
		"k1":        1.5,
		"topK":      float64(10), // JSON numbers decode as float64
		"intish":    7,
		"stringNum": "42",
		"jsonNum":   json.Number("2.5"),
		"strict":    true,
		"strictStr": "false",
		"window":    "30s",
		"windowNum": 1.5,
		"fields":    []any{"a", "b"},
		"csv":       "x, y ,z",
		"weights":   []any{0.5, 0.3, float64(0.2)},
		"mixed":     []any{"a", 1},
	}

	t.Run("string", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "quick brown", cfg.String("query", ""))
		assert.Equal(t, "fallback", cfg.String("missing", "fallback"))
		assert.Equal(t, "fallback", cfg.String("k1", "fallback"), "non-strings fall back")
	})

	t.Run("numbers", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 10, cfg.Int("topK", 0))
		assert.Equal(t, 7, cfg.Int("intish", 0))
		assert.Equal(t, 42, cfg.Int("stringNum", 0))
		assert.Equal(t, 3, cfg.Int("missing", 3))

		assert.InDelta(t, 1.5, cfg.Float("k1", 0), 1e-9)
		assert.InDelta(t, 2.5, cfg.Float("jsonNum", 0), 1e-9)
		assert.InDelta(t, 9.9, cfg.Float("query", 9.9), 1e-9)
	})

	t.Run("bool", func(t *testing.T) {
		t.Parallel()

		assert.True(t, cfg.Bool("strict", false))
		assert.False(t, cfg.Bool("strictStr", true))
		assert.True(t, cfg.Bool("missing", true))
		assert.False(t, cfg.Bool("k1", false), "numbers are not booleans")
	})

	t.Run("duration", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 30*time.Second, cfg.Duration("window", 0))
		assert.Equal(t, 1500*time.Millisecond, cfg.Duration("windowNum", 0),
			"bare numbers mean seconds")
		assert.Equal(t, time.Minute, cfg.Duration("missing", time.Minute))
		assert.Equal(t, time.Minute, cfg.Duration("query", time.Minute))
	})

	t.Run("string_slice", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("fields", nil))
		assert.Equal(t, []string{"x", "y", "z"}, cfg.StringSlice("csv", nil))
		assert.Equal(t, []string{"d"}, cfg.StringSlice("missing", []string{"d"}))
		assert.Equal(t, []string{"d"}, cfg.StringSlice("mixed", []string{"d"}),
			"a non-string element falls back whole")
	})

	t.Run("float_slice", func(t *testing.T) {
		t.Parallel()

		got := cfg.FloatSlice("weights", nil)
		require.Len(t, got, 3)
		assert.InDelta(t, 0.5, got[0], 1e-9)
		assert.InDelta(t, 0.2, got[2], 1e-9)

		assert.Nil(t, cfg.FloatSlice("missing", nil))
	})

	t.Run("has", func(t *testing.T) {
		t.Parallel()

		assert.True(t, cfg.Has("query"))
		assert.False(t, cfg.Has("missing"))
	})
}

func TestConfig_RoundTripsThroughJSON(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"threshold": 0.9, "limit": 5, "names": ["u1", "u2"], "debug": true}`)

	var cfg Config
	require.NoError(t, json.Unmarshal(raw, &cfg))

	assert.InDelta(t, 0.9, cfg.Float("threshold", 0), 1e-9)
	assert.Equal(t, 5, cfg.Int("limit", 0))
	assert.Equal(t, []string{"u1", "u2"}, cfg.StringSlice("names", nil))
	assert.True(t, cfg.Bool("debug", false))
}
