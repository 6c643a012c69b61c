package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
)

// SignalStep is one generated webhook delivery together with the market
// state the paper broker should show when it is processed.
type SignalStep struct {
	// Raw is the signal string as delivered to the webhook.
	Raw string
	// Time is when the signal arrives.
	Time time.Time
	// Price is the last price at arrival, rounded to the tick size.
	Price float64
	// StopOut asks the scenario driver to trigger the most recent resting stop
	// before the signal is processed.
	StopOut bool
}

// SignalGenerator produces reproducible signal scenarios for exercising the
// engine's invariants.
type SignalGenerator struct {
	rng *rand.Rand
}

// NewSignalGenerator creates a new SignalGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewSignalGenerator(seed int64) *SignalGenerator {
	return &SignalGenerator{
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec // test data only
	}
}

// GeneratorConfig configures how scenarios are generated.
type GeneratorConfig struct {
	// StartTime is the arrival time of the first signal.
	StartTime time.Time
	// Interval is the duration between signals.
	Interval time.Duration
	// Count is the number of signals to generate.
	Count int
	// InitialPrice is the starting price.
	InitialPrice float64
	// TickSize is the price increment prices are rounded to.
	TickSize float64
	// Volatility controls price movement per step (0.001 = 0.1%).
	Volatility float64
	// EntryBias is the probability that a valid signal is an entry.
	EntryBias float64
	// InvalidRatio is the probability of an unrecognized signal.
	InvalidRatio float64
	// StopOutRatio is the probability of an exchange-side stop-out before a step.
	StopOutRatio float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		StartTime:    time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC),
		Interval:     time.Minute,
		Count:        500,
		InitialPrice: 20000,
		TickSize:     0.25,
		Volatility:   0.001,
		EntryBias:    0.6,
		InvalidRatio: 0.05,
		StopOutRatio: 0.05,
	}
}

var (
	validSignals = []types.Signal{types.SignalLongEntry, types.SignalShortEntry, types.SignalLongExit, types.SignalShortExit}
	noise        = []string{"hold", "", "long", "close all", "LONG ENTRY NOW"}
)

// Generate creates a scenario. Prices follow a geometric Brownian motion;
// valid signals are emitted in randomly chosen spellings.
func (g *SignalGenerator) Generate(config GeneratorConfig) []SignalStep {
	steps := make([]SignalStep, config.Count)
	price := config.InitialPrice
	at := config.StartTime

	for i := 0; i < config.Count; i++ {
		// Box-Muller
		u1 := 1 - g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		next := price * (1 + config.Volatility*z)
		if next <= 0 {
			next = price * 0.99
		}

		price = next

		steps[i] = SignalStep{
			Raw:     g.raw(config),
			Time:    at,
			Price:   roundToTick(price, config.TickSize),
			StopOut: g.rng.Float64() < config.StopOutRatio,
		}

		at = at.Add(config.Interval)
	}

	return steps
}

func (g *SignalGenerator) raw(config GeneratorConfig) string {
	if g.rng.Float64() < config.InvalidRatio {
		return noise[g.rng.Intn(len(noise))]
	}

	var signal types.Signal
	if g.rng.Float64() < config.EntryBias {
		signal = validSignals[g.rng.Intn(2)]
	} else {
		signal = validSignals[2+g.rng.Intn(2)]
	}

	return spell(string(signal), g.rng.Intn(3))
}

// spell renders a signal in one of the spellings senders use.
func spell(signal string, variant int) string {
	switch variant {
	case 1:
		upper := []byte(signal)
		for i, c := range upper {
			switch {
			case c == ' ':
				upper[i] = '_'
			case c >= 'a' && c <= 'z':
				upper[i] = c - 'a' + 'A'
			}
		}

		return string(upper)
	case 2:
		return " " + signal + " "
	default:
		return signal
	}
}

// Generate1K is a convenience function to generate 1,000 steps with default
// settings.
func Generate1K(seed int64) []SignalStep {
	config := DefaultConfig()
	config.Count = 1000

	return NewSignalGenerator(seed).Generate(config)
}

func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return math.Round(price*100) / 100
	}

	return math.Round(price/tick) * tick
}
