// Package reconcile maps a signal, the ledger and the broker position into an
// order plan and a ledger delta, and turns plans into submitted orders.
package reconcile

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signal-bridge/internal/ledger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"github.com/shopspring/decimal"
)

// Default risk parameters.
const (
	DefaultTickSize  = 0.25
	DefaultStopTicks = 120
)

// pricePlaces is the number of decimals stop and target prices are rounded to.
const pricePlaces = 2

// Outcome classifies a reconciliation decision.
type Outcome string

const (
	OutcomeBracketEntry      Outcome = "bracket_entry"
	OutcomeMarketExit        Outcome = "market_exit"
	OutcomeCatchUp           Outcome = "catch_up"
	OutcomeInvalidSignal     Outcome = "invalid_signal"
	OutcomeCapExceeded       Outcome = "cap_exceeded"
	OutcomeMarketDataMissing Outcome = "market_data_missing"
)

// Params are the fixed risk parameters, set once at start-up.
type Params struct {
	// Cap bounds the absolute net position (ledger and broker).
	Cap int
	// TickSize is the instrument's minimum price increment.
	TickSize decimal.Decimal
	// StopTicks is the stop-loss distance in ticks from the reference price.
	StopTicks int
	// TakeProfitTicks is the profit target distance in ticks; 0 disables the leg.
	TakeProfitTicks int
}

// DefaultParams returns cap 6, tick 0.25 and a 120 tick stop (30 points).
func DefaultParams() Params {
	return Params{
		Cap:             ledger.DefaultCap,
		TickSize:        decimal.NewFromFloat(DefaultTickSize),
		StopTicks:       DefaultStopTicks,
		TakeProfitTicks: 0,
	}
}

// StopDistance is TickSize × StopTicks.
func (p Params) StopDistance() decimal.Decimal {
	return p.TickSize.Mul(decimal.NewFromInt(int64(p.StopTicks)))
}

// TakeProfitDistance is TickSize × TakeProfitTicks.
func (p Params) TakeProfitDistance() decimal.Decimal {
	return p.TickSize.Mul(decimal.NewFromInt(int64(p.TakeProfitTicks)))
}

// Input is everything a decision depends on.
type Input struct {
	Signal types.Signal
	// Ledger is the committed net contract count.
	Ledger int
	// Broker is the fresh broker snapshot for the instrument.
	Broker types.PositionSnapshot
	// Quote is only consulted for entries.
	Quote types.Quote
}

// Decision is the result of Reconcile. Err is set (with a rejection code) when
// the signal is dropped; in that case Delta is 0 and Plan is empty.
type Decision struct {
	Delta   int
	Plan    Plan
	Outcome Outcome
	Err     error
}

// Accepted reports whether the decision changes the ledger.
func (d Decision) Accepted() bool {
	return d.Err == nil && d.Delta != 0
}

// Reconcile decides what a signal does given the ledger and broker position.
// It performs no I/O.
func Reconcile(params Params, in Input) Decision {
	switch in.Signal {
	case types.SignalLongEntry, types.SignalShortEntry:
		return reconcileEntry(params, in)
	case types.SignalLongExit, types.SignalShortExit:
		return reconcileExit(in)
	case types.SignalInvalid:
	}

	return reject(OutcomeInvalidSignal, errors.Newf(errors.ErrCodeInvalidSignal, "invalid signal: %q", in.Signal))
}

func reconcileEntry(params Params, in Input) Decision {
	long := in.Signal == types.SignalLongEntry
	qty := in.Broker.Quantity

	if long && (in.Ledger >= params.Cap || qty >= params.Cap) {
		return reject(OutcomeCapExceeded, errors.Newf(errors.ErrCodeCapExceeded,
			"long entry refused: ledger %d, broker %d, cap %d", in.Ledger, qty, params.Cap))
	}

	if !long && (in.Ledger <= -params.Cap || qty <= -params.Cap) {
		return reject(OutcomeCapExceeded, errors.Newf(errors.ErrCodeCapExceeded,
			"short entry refused: ledger %d, broker %d, cap -%d", in.Ledger, qty, params.Cap))
	}

	ref, ok := in.Quote.Reference()
	if !ok {
		return reject(OutcomeMarketDataMissing, errors.New(errors.ErrCodeMarketDataMissing,
			"entry refused: quote has neither last nor close price"))
	}

	side, delta := types.SideBuy, 1
	stop := ref.Sub(params.StopDistance())
	target := ref.Add(params.TakeProfitDistance())

	if !long {
		side, delta = types.SideSell, -1
		stop = ref.Add(params.StopDistance())
		target = ref.Sub(params.TakeProfitDistance())
	}

	takeProfit := optional.None[decimal.Decimal]()
	if params.TakeProfitTicks > 0 {
		takeProfit = optional.Some(target.Round(pricePlaces))
	}

	return Decision{
		Delta: delta,
		Plan: Plan{
			Kind:       PlanBracketEntry,
			Side:       side,
			StopPrice:  stop.Round(pricePlaces),
			TakeProfit: takeProfit,
		},
		Outcome: OutcomeBracketEntry,
		Err:     nil,
	}
}

// reconcileExit checks the exact-match row before the catch-up row for each
// direction; the inequality includes equality so the order decides which fires.
func reconcileExit(in Input) Decision {
	qty := in.Broker.Quantity

	switch {
	case in.Signal == types.SignalLongExit && in.Ledger == qty && qty > 0:
		return Decision{Delta: -1, Plan: Plan{Kind: PlanMarketExit, Side: types.SideSell}, Outcome: OutcomeMarketExit}
	case in.Signal == types.SignalLongExit && in.Ledger >= qty && qty > 0:
		return Decision{Delta: -1, Plan: NoPlan(), Outcome: OutcomeCatchUp}
	case in.Signal == types.SignalShortExit && in.Ledger == qty && qty < 0:
		return Decision{Delta: 1, Plan: Plan{Kind: PlanMarketExit, Side: types.SideBuy}, Outcome: OutcomeMarketExit}
	case in.Signal == types.SignalShortExit && in.Ledger <= qty && qty < 0:
		return Decision{Delta: 1, Plan: NoPlan(), Outcome: OutcomeCatchUp}
	}

	if !in.Broker.Found {
		return reject(OutcomeInvalidSignal, errors.Newf(errors.ErrCodeInvalidSignal,
			"%s refused: broker reports no position for the instrument (ledger %d)", in.Signal, in.Ledger))
	}

	return reject(OutcomeInvalidSignal, errors.Newf(errors.ErrCodeInvalidSignal,
		"%s refused: ledger %d does not match broker %d", in.Signal, in.Ledger, qty))
}

func reject(outcome Outcome, err error) Decision {
	return Decision{Delta: 0, Plan: NoPlan(), Outcome: outcome, Err: err}
}
