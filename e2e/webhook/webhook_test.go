package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/argo-signal-bridge/e2e/ibkr/mockgateway"
	"github.com/rxtech-lab/argo-signal-bridge/internal/config"
	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/server"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine"
	engine_v1 "github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/session"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/writers"
	tradingprovider "github.com/rxtech-lab/argo-signal-bridge/internal/trading/provider"
	"github.com/stretchr/testify/suite"
)

const conID int64 = 750150196

// WebhookE2ETestSuite runs webhook → engine → ibkr provider → mock gateway,
// with the decision journal enabled.
type WebhookE2ETestSuite struct {
	suite.Suite
	gateway *mockgateway.MockIBKRGateway
	engine  *engine_v1.SignalEngineV1
	journal *writers.DecisionsWriter
	webhook *httptest.Server
	results chan engine.Result
	cancel  context.CancelFunc
	done    chan error
}

func TestWebhookE2ESuite(t *testing.T) {
	suite.Run(t, new(WebhookE2ETestSuite))
}

func (s *WebhookE2ETestSuite) SetupTest() {
	log := logger.NewNopLogger()

	s.gateway = mockgateway.NewMockIBKRGateway(mockgateway.ServerConfig{
		AccountID: "DU7654321",
		Prices:    map[int64]mockgateway.Price{conID: {Last: 20000, Close: 19990}},
	})
	s.Require().NoError(s.gateway.Start("127.0.0.1:0"))

	cfg, err := config.Parse([]byte(`
version: main
instrument:
  symbol: MNQ
  contract_month: "202506"
  exchange: CME
  currency: USD
  conid: 750150196
  tick_size: 0.25
broker:
  provider: ibkr
  request_timeout: 2s
  settings:
    base_url: ` + s.gateway.BaseURL() + `
    account_id: DU7654321
`))
	s.Require().NoError(err)

	settings, err := cfg.ProviderSettings()
	s.Require().NoError(err)

	providerConfig, err := tradingprovider.ParseProviderConfig(cfg.Broker.Provider, settings)
	s.Require().NoError(err)

	broker, err := tradingprovider.NewBroker(tradingprovider.ProviderType(cfg.Broker.Provider), providerConfig, log)
	s.Require().NoError(err)

	s.engine, err = engine_v1.NewSignalEngineV1(cfg.EngineConfig(), broker, log)
	s.Require().NoError(err)

	sessionManager := session.NewSessionManager(log)
	s.Require().NoError(sessionManager.Initialize(s.T().TempDir()))

	s.journal = writers.NewDecisionsWriter(sessionManager, log)
	s.Require().NoError(s.journal.Initialize())
	s.Require().NoError(s.engine.SetJournal(s.journal))

	registry := prometheus.NewRegistry()
	s.Require().NoError(s.engine.SetMetrics(engine_v1.NewMetrics(registry)))

	s.webhook = httptest.NewServer(server.NewServer(s.engine, registry, log).Handler())

	s.results = make(chan engine.Result, 16)
	onResult := engine.OnResultCallback(func(result engine.Result) { s.results <- result })

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)

	go func() { s.done <- s.engine.Run(ctx, engine.SignalEngineCallbacks{OnResult: &onResult}) }()
}

func (s *WebhookE2ETestSuite) TearDownTest() {
	s.webhook.Close()
	s.cancel()
	s.NoError(<-s.done)
	s.NoError(s.journal.Close())
	s.NoError(s.gateway.Stop())
}

// send posts a signal and waits for its reconciliation result.
func (s *WebhookE2ETestSuite) send(signal string) engine.Result {
	resp, err := http.Post(s.webhook.URL+"/webhook", "application/json", strings.NewReader(`{"signal":"`+signal+`"}`))
	s.Require().NoError(err)

	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body map[string]string
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("Order for "+signal+" received", body["status"])

	select {
	case result := <-s.results:
		s.Equal(body["request_id"], result.RequestID)

		return result
	case <-time.After(5 * time.Second):
		s.FailNow("no result for " + signal)
	}

	return engine.Result{}
}

func (s *WebhookE2ETestSuite) TestBracketEntryThenExit() {
	entry := s.send("long entry")
	s.Require().NoError(entry.Err)

	submissions := s.gateway.Submissions()
	s.Require().Len(submissions, 2)
	s.Equal("MKT", submissions[0].OrderType)
	s.Equal("BUY", submissions[0].Side)
	s.Equal("STP", submissions[1].OrderType)
	s.Equal("SELL", submissions[1].Side)
	s.Require().NotNil(submissions[1].Price)
	s.InDelta(19970, *submissions[1].Price, 0)
	s.True(submissions[1].OutsideRTH)
	s.InDelta(1, s.gateway.Position(conID), 0)

	exit := s.send("long exit")
	s.Require().NoError(exit.Err)

	s.InDelta(0, s.gateway.Position(conID), 0)
	s.Len(s.gateway.Cancellations(), 1)
	s.Empty(s.gateway.WorkingOrders())
	s.Equal(0, s.engine.Ledger())

	records, err := s.journal.Records()
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("bracket_entry", records[0].Outcome)
	s.Equal("market_exit", records[1].Outcome)
	s.Equal(exit.Report.Cancelled, records[1].Cancelled)
}

func (s *WebhookE2ETestSuite) TestStopOutAbsorbedByCatchUp() {
	s.Require().NoError(s.send("long entry").Err)
	s.Require().NoError(s.send("long entry").Err)

	stops := s.gateway.WorkingOrders()
	s.Require().Len(stops, 2)
	s.Require().NoError(s.gateway.TriggerStop(stops[0].OrderID))

	catchUp := s.send("long exit")
	s.Require().NoError(catchUp.Err)
	s.Equal("catch_up", string(catchUp.Outcome))
	s.Len(s.gateway.Submissions(), 4)

	exit := s.send("long exit")
	s.Require().NoError(exit.Err)
	s.Equal([]int64{stops[1].OrderID}, exit.Report.Cancelled)
	s.InDelta(0, s.gateway.Position(conID), 0)
}

func (s *WebhookE2ETestSuite) TestGatewayDownFailsClosed() {
	s.gateway.SetAuthenticated(false)

	result := s.send("short entry")

	s.Error(result.Err)
	s.Empty(s.gateway.Submissions())
	s.Equal(0, s.engine.Ledger())

	s.gateway.SetAuthenticated(true)

	result = s.send("short entry")
	s.Require().NoError(result.Err)
	s.InDelta(-1, s.gateway.Position(conID), 0)
}

func (s *WebhookE2ETestSuite) TestRejectedStopLeavesUnprotectedPosition() {
	s.gateway.RejectOrderType("STP", "stop price too far from market")

	result := s.send("short entry")

	s.Error(result.Err)
	s.Equal(-1, s.engine.Ledger())
	s.InDelta(-1, s.gateway.Position(conID), 0)
	s.Empty(s.gateway.WorkingOrders())
}

func (s *WebhookE2ETestSuite) TestHoldChangesNothing() {
	result := s.send("hold")

	s.Error(result.Err)
	s.Empty(s.gateway.Submissions())
	s.Equal(0, s.engine.Ledger())
}
