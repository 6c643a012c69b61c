package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-signal-bridge/internal/config"
	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/session"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/stats"
	tradingprovider "github.com/rxtech-lab/argo-signal-bridge/internal/trading/provider"
	"github.com/rxtech-lab/argo-signal-bridge/internal/version"
	"github.com/stretchr/testify/suite"
	"github.com/urfave/cli/v3"
)

type MainTestSuite struct {
	suite.Suite
}

func TestMainSuite(t *testing.T) {
	suite.Run(t, new(MainTestSuite))
}

func (suite *MainTestSuite) runCLI(args ...string) string {
	var out bytes.Buffer

	cmd := newCommand()
	cmd.Writer = &out

	suite.Require().NoError(cmd.Run(context.Background(), append([]string{"signal-bridge"}, args...)))

	return out.String()
}

func (suite *MainTestSuite) TestVersionCommand() {
	suite.Equal(version.GetVersion()+"\n", suite.runCLI("version"))
}

func (suite *MainTestSuite) TestProvidersCommand() {
	out := suite.runCLI("providers")
	for _, name := range tradingprovider.GetSupportedProviders() {
		suite.Contains(out, name)
	}

	var infos []tradingprovider.ProviderInfo
	suite.Require().NoError(json.Unmarshal([]byte(suite.runCLI("providers", "--json")), &infos))
	suite.Len(infos, len(tradingprovider.GetSupportedProviders()))
}

func (suite *MainTestSuite) TestSchemaCommand() {
	out := suite.runCLI("schema")
	suite.Contains(out, "stop_ticks")

	out = suite.runCLI("--provider", "ibkr", "schema")
	suite.Contains(out, "account_id")
}

func (suite *MainTestSuite) TestLoadConfig_FlagsOverrideFile() {
	path := filepath.Join(suite.T().TempDir(), "bridge.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte("version: main\nserver:\n  listen: :9000\nlog:\n  level: error\n"), 0o600))

	var loaded *config.Config

	cmd := newCommand()
	cmd.Action = func(_ context.Context, cmd *cli.Command) error {
		var err error
		loaded, err = loadConfig(cmd)

		return err
	}

	suite.Require().NoError(cmd.Run(context.Background(), []string{"signal-bridge", "--config", path, "--listen", "127.0.0.1:0"}))
	suite.Equal("127.0.0.1:0", loaded.Server.Listen)
	suite.Equal("error", loaded.Log.Level)
}

// TestAppServesWebhook wires the whole bridge against the paper broker and
// checks that a webhook signal reaches the broker and the journal.
func (suite *MainTestSuite) TestAppServesWebhook() {
	cfg := config.Default()
	journalDir := suite.T().TempDir()
	cfg.Journal.Dir = journalDir
	suite.Require().NoError(cfg.Apply(config.Overrides{Listen: "127.0.0.1:0"}))

	bridge, err := newApp(cfg, logger.NewNopLogger())
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- bridge.run(ctx) }()

	suite.Require().Eventually(func() bool { return bridge.server.Address() != "" }, 5*time.Second, 10*time.Millisecond)
	baseURL := "http://" + bridge.server.Address()

	resp, err := http.Post(baseURL+"/webhook", "application/json", strings.NewReader(`{"signal":"long entry"}`))
	suite.Require().NoError(err)
	resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)

	paper, ok := bridge.broker.(*tradingprovider.PaperBroker)
	suite.Require().True(ok)
	suite.Eventually(func() bool { return paper.Position() == 1 }, 5*time.Second, 10*time.Millisecond)
	suite.Eventually(func() bool { return bridge.engine.Status().Processed == 1 }, 5*time.Second, 10*time.Millisecond)

	statusResp, err := http.Get(baseURL + "/status")
	suite.Require().NoError(err)

	var status engine.Status
	suite.Require().NoError(json.NewDecoder(statusResp.Body).Decode(&status))
	statusResp.Body.Close()
	suite.Equal(1, status.Ledger)
	suite.True(status.Running)

	metricsResp, err := http.Get(baseURL + "/metrics")
	suite.Require().NoError(err)

	var metrics bytes.Buffer
	_, err = metrics.ReadFrom(metricsResp.Body)
	suite.Require().NoError(err)
	metricsResp.Body.Close()
	suite.Contains(metrics.String(), `signal_bridge_decisions_total{outcome="bracket_entry"} 1`)

	cancel()
	suite.Require().NoError(<-done)

	statsFiles, err := filepath.Glob(filepath.Join(journalDir, "*", "run_1", statsFileName))
	suite.Require().NoError(err)
	suite.Require().Len(statsFiles, 1)

	saved, err := stats.ReadStatsYAML(statsFiles[0])
	suite.Require().NoError(err)
	suite.Equal(1, saved.Ledger)
	suite.Equal(2, saved.Counters.OrdersSubmitted)

	parquetFiles, err := filepath.Glob(filepath.Join(journalDir, "*", "run_1", "decisions.parquet"))
	suite.Require().NoError(err)
	suite.Len(parquetFiles, 1)

	manifest, err := session.ReadManifest(filepath.Dir(statsFiles[0]))
	suite.Require().NoError(err)
	suite.Equal("run_1", manifest.RunID)
	suite.Equal("paper", manifest.Provider)
	suite.Equal(6, manifest.Cap)
	suite.Equal(os.Getpid(), manifest.PID)
}

func (suite *MainTestSuite) TestAppRejectsBadProviderSettings() {
	cfg := config.Default()
	cfg.Broker.Settings = map[string]any{"price": -1}

	_, err := newApp(cfg, logger.NewNopLogger())
	suite.Error(err)
}
