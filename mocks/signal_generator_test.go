package mocks

import (
	"math"
	"testing"

	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalGenerator_Generate(t *testing.T) {
	config := DefaultConfig()
	config.Count = 200

	steps := NewSignalGenerator(42).Generate(config)
	require.Len(t, steps, 200)

	for i, step := range steps {
		assert.Greater(t, step.Price, 0.0, "step %d", i)

		ticks := step.Price / config.TickSize
		assert.InDelta(t, math.Round(ticks), ticks, 1e-9, "step %d price %f is off tick", i, step.Price)

		if i > 0 {
			assert.Equal(t, config.Interval, step.Time.Sub(steps[i-1].Time))
		}
	}
}

func TestSignalGenerator_Reproducibility(t *testing.T) {
	first := Generate1K(7)
	second := Generate1K(7)
	other := Generate1K(8)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}

func TestSignalGenerator_MixesSignals(t *testing.T) {
	counts := map[types.Signal]int{}

	for _, step := range Generate1K(42) {
		counts[types.ParseSignal(step.Raw)]++
	}

	for _, signal := range []types.Signal{
		types.SignalLongEntry, types.SignalShortEntry,
		types.SignalLongExit, types.SignalShortExit,
		types.SignalInvalid,
	} {
		assert.Positive(t, counts[signal], "no %q generated", signal)
	}
}

func TestSpell(t *testing.T) {
	assert.Equal(t, "long entry", spell("long entry", 0))
	assert.Equal(t, "LONG_ENTRY", spell("long entry", 1))
	assert.Equal(t, " long entry ", spell("long entry", 2))
	assert.Equal(t, types.SignalShortExit, types.ParseSignal(spell("short exit", 1)))
}
