package tradingprovider

import (
	"context"
	"testing"

	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaperBrokerTestSuite struct {
	suite.Suite
	broker     *PaperBroker
	instrument types.Instrument
	ctx        context.Context
}

func TestPaperBrokerSuite(t *testing.T) {
	suite.Run(t, new(PaperBrokerTestSuite))
}

func (suite *PaperBrokerTestSuite) SetupTest() {
	suite.broker = NewPaperBroker(PaperProviderConfig{Price: 20000, StartingPosition: 0, FirstOrderID: 100}, logger.NewNopLogger())
	suite.instrument = types.Instrument{Symbol: "MNQ", TickSize: 0.25}
	suite.ctx = context.Background()
}

func (suite *PaperBrokerTestSuite) submit(side types.Side, orderType types.OrderType, stop string) types.SubmittedOrder {
	order := types.Order{Role: types.OrderRoleEntry, Side: side, Type: orderType, Quantity: 1}
	if stop != "" {
		order.StopPrice = decimal.RequireFromString(stop)
		order.LimitPrice = decimal.RequireFromString(stop)
	}

	submitted, err := suite.broker.SubmitOrder(suite.ctx, suite.instrument, order)
	suite.Require().NoError(err)

	return submitted
}

func (suite *PaperBrokerTestSuite) TestQuoteAndConnect() {
	suite.NoError(suite.broker.Connect(suite.ctx))

	quote, err := suite.broker.GetQuote(suite.ctx, suite.instrument)
	suite.NoError(err)
	suite.InDelta(20000.0, quote.Last, 1e-9)

	suite.broker.SetPrice(20100)
	quote, _ = suite.broker.GetQuote(suite.ctx, suite.instrument)
	suite.InDelta(20100.0, quote.Last, 1e-9)
}

func (suite *PaperBrokerTestSuite) TestMarketOrdersMovePosition() {
	first := suite.submit(types.SideBuy, types.OrderTypeMarket, "")
	suite.Equal(int64(100), first.OrderID)
	suite.Equal(1, suite.broker.Position())

	suite.submit(types.SideBuy, types.OrderTypeMarket, "")
	suite.submit(types.SideSell, types.OrderTypeMarket, "")

	pos, err := suite.broker.GetPosition(suite.ctx, suite.instrument)
	suite.NoError(err)
	suite.Equal(types.PositionSnapshot{Quantity: 1, Found: true}, pos)
	suite.Len(suite.broker.Fills(), 3)
}

func (suite *PaperBrokerTestSuite) TestStopsRestAndIDsIncrease() {
	a := suite.submit(types.SideSell, types.OrderTypeStop, "19970")
	b := suite.submit(types.SideSell, types.OrderTypeStop, "19980")
	suite.Greater(b.OrderID, a.OrderID)

	orders, err := suite.broker.GetOpenOrders(suite.ctx, suite.instrument)
	suite.NoError(err)
	suite.Require().Len(orders, 2)
	suite.Equal(a.OrderID, orders[0].OrderID)
	suite.InDelta(19970.0, orders[0].StopPrice, 1e-9)
	suite.Equal(0, suite.broker.Position())
}

func (suite *PaperBrokerTestSuite) TestCancelOrder() {
	stop := suite.submit(types.SideSell, types.OrderTypeStop, "19970")

	suite.NoError(suite.broker.CancelOrder(suite.ctx, suite.instrument, stop.OrderID))

	err := suite.broker.CancelOrder(suite.ctx, suite.instrument, stop.OrderID)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderNotFound))
}

func (suite *PaperBrokerTestSuite) TestTriggerStop() {
	suite.submit(types.SideBuy, types.OrderTypeMarket, "")
	stop := suite.submit(types.SideSell, types.OrderTypeStop, "19970")

	suite.NoError(suite.broker.TriggerStop(stop.OrderID))
	suite.Equal(0, suite.broker.Position())

	orders, _ := suite.broker.GetOpenOrders(suite.ctx, suite.instrument)
	suite.Empty(orders)

	suite.Error(suite.broker.TriggerStop(stop.OrderID))
}

func (suite *PaperBrokerTestSuite) TestTriggerStopRejectsLimit() {
	limit := suite.submit(types.SideSell, types.OrderTypeLimit, "20100")
	suite.Error(suite.broker.TriggerStop(limit.OrderID))
}

func (suite *PaperBrokerTestSuite) TestTriggerTakeProfit() {
	suite.submit(types.SideBuy, types.OrderTypeMarket, "")
	stop := suite.submit(types.SideSell, types.OrderTypeStop, "19970")
	target := suite.submit(types.SideSell, types.OrderTypeLimit, "20010")

	suite.Error(suite.broker.TriggerTakeProfit(stop.OrderID))
	suite.NoError(suite.broker.TriggerTakeProfit(target.OrderID))
	suite.Equal(0, suite.broker.Position())

	orders, _ := suite.broker.GetOpenOrders(suite.ctx, suite.instrument)
	suite.Require().Len(orders, 1)
	suite.Equal(stop.OrderID, orders[0].OrderID)
}

func (suite *PaperBrokerTestSuite) TestParsePaperConfig() {
	config, err := parsePaperConfig(`{"price": 18000.5, "starting_position": -2}`)
	suite.NoError(err)
	suite.InDelta(18000.5, config.Price, 1e-9)
	suite.Equal(-2, config.StartingPosition)

	_, err = parsePaperConfig(`{"price": 0}`)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
