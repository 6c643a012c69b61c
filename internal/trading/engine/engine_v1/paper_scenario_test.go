package engine_v1

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/reconcile"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine"
	tradingprovider "github.com/rxtech-lab/argo-signal-bridge/internal/trading/provider"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/mocks"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// PaperScenarioTestSuite drives the engine against the in-process paper
// broker so fills, resting stops and cancellations are real.
type PaperScenarioTestSuite struct {
	suite.Suite
	paper  *tradingprovider.PaperBroker
	engine *SignalEngineV1
	cancel context.CancelFunc
	done   chan error
}

func TestPaperScenarioSuite(t *testing.T) {
	suite.Run(t, new(PaperScenarioTestSuite))
}

func (suite *PaperScenarioTestSuite) SetupTest() {
	suite.startEngine(reconcile.DefaultParams())
}

// startEngine runs a fresh engine with params against a fresh paper broker,
// stopping the previous one if any.
func (suite *PaperScenarioTestSuite) startEngine(params reconcile.Params) {
	if suite.cancel != nil {
		suite.cancel()
		suite.Require().NoError(<-suite.done)
	}

	suite.paper = tradingprovider.NewPaperBroker(tradingprovider.PaperProviderConfig{Price: 20000}, logger.NewNopLogger())

	e, err := NewSignalEngineV1(engine.SignalEngineConfig{
		Instrument: types.Instrument{Symbol: "MNQ", ContractMonth: "202612", Exchange: "CME", Currency: "USD", TickSize: 0.25},
		Params:     params,
		QueueSize:  128,
	}, suite.paper, logger.NewNopLogger())
	suite.Require().NoError(err)

	suite.engine = e

	ctx, cancel := context.WithCancel(context.Background())
	suite.cancel = cancel
	suite.done = make(chan error, 1)

	go func() { suite.done <- e.Run(ctx, engine.SignalEngineCallbacks{}) }()
}

func (suite *PaperScenarioTestSuite) TearDownTest() {
	suite.cancel()
	suite.NoError(<-suite.done)
	suite.cancel = nil
}

func (suite *PaperScenarioTestSuite) process(raw string) engine.Result {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return suite.engine.Process(ctx, raw)
}

func (suite *PaperScenarioTestSuite) restingStops() []types.OpenOrder {
	orders, err := suite.paper.GetOpenOrders(context.Background(), types.Instrument{})
	suite.Require().NoError(err)

	var stops []types.OpenOrder

	for _, order := range orders {
		if order.Type == types.OrderTypeStop {
			stops = append(stops, order)
		}
	}

	return stops
}

func (suite *PaperScenarioTestSuite) TestEntryThenExit_RoundTrip() {
	entry := suite.process("long entry")
	suite.Require().NoError(entry.Err)

	stops := suite.restingStops()
	suite.Require().Len(stops, 1)
	suite.InDelta(19970, stops[0].StopPrice, 0)
	suite.Equal(types.SideSell, stops[0].Side)

	exit := suite.process("long exit")
	suite.Require().NoError(exit.Err)
	suite.Equal(reconcile.OutcomeMarketExit, exit.Outcome)

	suite.Equal(0, suite.engine.Ledger())
	suite.Equal(0, suite.paper.Position())
	suite.Empty(suite.restingStops())
	// one market entry and one market exit
	suite.Len(suite.paper.Fills(), 2)
}

func (suite *PaperScenarioTestSuite) TestShortBracketStopAbove() {
	result := suite.process("short entry")
	suite.Require().NoError(result.Err)

	stops := suite.restingStops()
	suite.Require().Len(stops, 1)
	suite.InDelta(20030, stops[0].StopPrice, 0)
	suite.Equal(types.SideBuy, stops[0].Side)
	suite.Equal(-1, suite.paper.Position())
}

func (suite *PaperScenarioTestSuite) TestStopOutThenExits_CatchUp() {
	suite.Require().NoError(suite.process("long entry").Err)
	suite.Require().NoError(suite.process("long entry").Err)

	stops := suite.restingStops()
	suite.Require().Len(stops, 2)
	suite.Require().NoError(suite.paper.TriggerStop(stops[0].OrderID))
	suite.Equal(1, suite.paper.Position())

	first := suite.process("long exit")
	suite.Require().NoError(first.Err)
	suite.Equal(reconcile.OutcomeCatchUp, first.Outcome)
	suite.Equal(1, first.LedgerAfter)
	suite.Equal(1, suite.paper.Position())
	suite.Empty(first.Report.Submitted)

	second := suite.process("long exit")
	suite.Require().NoError(second.Err)
	suite.Equal(reconcile.OutcomeMarketExit, second.Outcome)
	suite.Equal(0, suite.engine.Ledger())
	suite.Equal(0, suite.paper.Position())
	suite.Equal([]int64{stops[1].OrderID}, second.Report.Cancelled)
	suite.Empty(suite.restingStops())
}

func (suite *PaperScenarioTestSuite) openOrders() []types.OpenOrder {
	orders, err := suite.paper.GetOpenOrders(context.Background(), types.Instrument{})
	suite.Require().NoError(err)

	return orders
}

func (suite *PaperScenarioTestSuite) withTakeProfit() {
	params := reconcile.DefaultParams()
	params.TakeProfitTicks = 40
	suite.startEngine(params)
}

func (suite *PaperScenarioTestSuite) TestTakeProfit_StopOutCatchUpLeavesNoOrders() {
	suite.withTakeProfit()

	suite.Require().NoError(suite.process("long entry").Err)
	suite.Require().NoError(suite.process("long entry").Err)
	suite.Require().Len(suite.openOrders(), 4)

	stops := suite.restingStops()
	suite.Require().NoError(suite.paper.TriggerStop(stops[0].OrderID))

	first := suite.process("long exit")
	suite.Require().NoError(first.Err)
	suite.Equal(reconcile.OutcomeCatchUp, first.Outcome)
	suite.Equal(1, first.LedgerAfter)
	suite.Empty(first.Report.Submitted)
	// the take-profit of the stopped-out bracket is gone
	suite.Len(first.Report.Cancelled, 1)
	suite.Len(suite.openOrders(), 2)

	second := suite.process("long exit")
	suite.Require().NoError(second.Err)
	suite.Equal(reconcile.OutcomeMarketExit, second.Outcome)
	suite.Len(second.Report.Cancelled, 2)

	suite.Equal(0, suite.engine.Ledger())
	suite.Equal(0, suite.paper.Position())
	suite.Empty(suite.openOrders())
}

func (suite *PaperScenarioTestSuite) TestTakeProfit_FillCatchUpCancelsStop() {
	suite.withTakeProfit()

	suite.Require().NoError(suite.process("short entry").Err)
	first := suite.openOrders()
	suite.Require().Len(first, 2)
	suite.Require().NoError(suite.process("short entry").Err)

	var stop, target types.OpenOrder

	for _, order := range first {
		switch order.Type {
		case types.OrderTypeStop:
			stop = order
		case types.OrderTypeLimit:
			target = order
		case types.OrderTypeMarket:
		}
	}

	suite.Equal(types.SideBuy, target.Side)
	suite.Require().NoError(suite.paper.TriggerTakeProfit(target.OrderID))
	suite.Equal(-1, suite.paper.Position())

	result := suite.process("short exit")
	suite.Require().NoError(result.Err)
	suite.Equal(reconcile.OutcomeCatchUp, result.Outcome)
	suite.Equal(-1, result.LedgerAfter)
	suite.Equal([]int64{stop.OrderID}, result.Report.Cancelled)
	// only the second bracket is still working
	suite.Len(suite.openOrders(), 2)
	suite.Len(suite.restingStops(), 1)
}

func (suite *PaperScenarioTestSuite) TestExitCancelsOnlyMostRecentStop() {
	for range 3 {
		suite.Require().NoError(suite.process("short entry").Err)
	}

	before := suite.restingStops()
	suite.Require().Len(before, 3)

	result := suite.process("short exit")
	suite.Require().NoError(result.Err)
	suite.Equal([]int64{before[2].OrderID}, result.Report.Cancelled)

	after := suite.restingStops()
	suite.Len(after, 2)
	suite.Equal(-2, suite.paper.Position())
	suite.Equal(-2, suite.engine.Ledger())
}

func (suite *PaperScenarioTestSuite) TestConcurrentEntriesNeverExceedCap() {
	const senders = 40

	var wg sync.WaitGroup

	results := make(chan engine.Result, senders)

	for range senders {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results <- suite.process("long entry")
		}()
	}

	wg.Wait()
	close(results)

	accepted, capped := 0, 0

	for result := range results {
		switch {
		case result.Err == nil:
			accepted++
		case errors.HasCode(result.Err, errors.ErrCodeCapExceeded):
			capped++
		default:
			suite.Failf("unexpected error", "%v", result.Err)
		}
	}

	suite.Equal(6, accepted)
	suite.Equal(senders-6, capped)
	suite.Equal(6, suite.engine.Ledger())
	suite.Equal(6, suite.paper.Position())
	suite.Len(suite.restingStops(), 6)
}

// TestGeneratedSession replays a generated session with random stop-outs and
// checks the invariants that must hold after every signal.
func (suite *PaperScenarioTestSuite) TestGeneratedSession() {
	steps := mocks.Generate1K(42)
	limit := suite.engine.Status().Cap

	for i, step := range steps {
		suite.paper.SetPrice(step.Price)

		if step.StopOut {
			if stops := suite.restingStops(); len(stops) > 0 {
				suite.Require().NoError(suite.paper.TriggerStop(stops[len(stops)-1].OrderID))
			}
		}

		result := suite.process(step.Raw)

		suite.LessOrEqual(result.LedgerAfter, limit, "step %d", i)
		suite.GreaterOrEqual(result.LedgerAfter, -limit, "step %d", i)
		suite.Zero(suite.engine.ledger.Pending(), "step %d", i)

		if errors.IsRejection(result.Err) {
			suite.Equal(result.LedgerBefore, result.LedgerAfter, "step %d: rejection moved the ledger", i)
			suite.Empty(result.Report.Submitted, "step %d: rejection reached the broker", i)
		}

		switch result.Outcome {
		case reconcile.OutcomeBracketEntry:
			suite.Require().NoError(result.Err, "step %d", i)
			suite.Len(result.Report.Submitted, 2, "step %d", i)
			if result.Signal == types.SignalLongEntry {
				suite.Less(result.Broker.Quantity, limit, "step %d", i)
			} else {
				suite.Greater(result.Broker.Quantity, -limit, "step %d", i)
			}

			suite.Equal(1, abs(result.LedgerAfter-result.LedgerBefore), "step %d", i)
		case reconcile.OutcomeMarketExit:
			suite.Require().NoError(result.Err, "step %d", i)
			suite.Equal(result.LedgerBefore, result.Broker.Quantity, "step %d", i)
			suite.Len(result.Report.Submitted, 1, "step %d", i)
		case reconcile.OutcomeCatchUp:
			suite.Empty(result.Report.Submitted, "step %d", i)
		case reconcile.OutcomeInvalidSignal, reconcile.OutcomeCapExceeded, reconcile.OutcomeMarketDataMissing:
			suite.Error(result.Err, "step %d", i)
		}
	}

	status := suite.engine.Status()
	suite.Equal(len(steps), status.Processed)
	suite.Zero(status.Failures)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
