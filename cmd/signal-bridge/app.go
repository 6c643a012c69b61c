package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rxtech-lab/argo-signal-bridge/internal/config"
	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/server"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine"
	enginev1 "github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/session"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/stats"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/writers"
	tradingprovider "github.com/rxtech-lab/argo-signal-bridge/internal/trading/provider"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/internal/version"
	"go.uber.org/zap"
)

const statsFileName = "stats.yaml"

// app is a fully wired bridge: broker, engine, journal and HTTP server.
type app struct {
	cfg      *config.Config
	broker   trading.Broker
	engine   *enginev1.SignalEngineV1
	journal  writers.Journal
	server   *server.Server
	registry *prometheus.Registry
	log      *logger.Logger
}

func newApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	settings, err := cfg.ProviderSettings()
	if err != nil {
		return nil, err
	}

	providerConfig, err := tradingprovider.ParseProviderConfig(cfg.Broker.Provider, settings)
	if err != nil {
		return nil, err
	}

	broker, err := tradingprovider.NewBroker(tradingprovider.ProviderType(cfg.Broker.Provider), providerConfig, log)
	if err != nil {
		return nil, err
	}

	signalEngine, err := enginev1.NewSignalEngineV1(cfg.EngineConfig(), broker, log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := signalEngine.SetMetrics(enginev1.NewMetrics(registry)); err != nil {
		return nil, err
	}

	var journal writers.Journal = writers.NopJournal{}

	if cfg.Journal.Enabled {
		journal, err = openJournal(cfg, broker, signalEngine, log)
		if err != nil {
			return nil, err
		}
	}

	return &app{
		cfg:      cfg,
		broker:   broker,
		engine:   signalEngine,
		journal:  journal,
		server:   server.NewServer(signalEngine, registry, log),
		registry: registry,
		log:      log,
	}, nil
}

// openJournal creates the run folder, the decisions writer and the stats
// file, and attaches them to the engine.
func openJournal(cfg *config.Config, broker trading.Broker, signalEngine *enginev1.SignalEngineV1, log *logger.Logger) (writers.Journal, error) {
	sessionManager := session.NewSessionManager(log)
	if err := sessionManager.Initialize(cfg.Journal.Dir); err != nil {
		return nil, err
	}

	startedAt := time.Now()

	err := sessionManager.WriteManifest(session.Manifest{
		Version:    version.GetVersion(),
		Instrument: cfg.Instrument.String(),
		Provider:   broker.Name(),
		Cap:        cfg.Risk.Cap,
		StopTicks:  cfg.Risk.StopTicks,
		TickSize:   cfg.Instrument.TickSize,
		StartedAt:  startedAt,
		PID:        os.Getpid(),
	})
	if err != nil {
		return nil, err
	}

	decisions := writers.NewDecisionsWriter(sessionManager, log)
	if err := decisions.Initialize(); err != nil {
		return nil, err
	}

	tracker := stats.NewStatsTracker(log)
	tracker.Initialize(sessionManager.GetRunID(), startedAt, cfg.Instrument.String(), broker.Name())
	tracker.SetFilePaths(decisions.GetOutputPath(), sessionManager.GetFilePath(statsFileName))

	// stats.yaml moves with the decisions export when the date changes
	sessionManager.OnRotate(func(string) {
		tracker.SetFilePaths(decisions.GetOutputPath(), sessionManager.GetFilePath(statsFileName))
	})

	if err := signalEngine.SetJournal(decisions); err != nil {
		return nil, err
	}

	if err := signalEngine.SetStatsTracker(tracker); err != nil {
		return nil, err
	}

	log.Info("Journal enabled",
		zap.String("run_path", sessionManager.GetCurrentRunPath()),
		zap.String("decisions", decisions.GetOutputPath()),
	)

	return decisions, nil
}

// run serves until ctx is cancelled or the engine stops on its own. The HTTP
// server starts once the engine worker is up and is shut down before the
// engine, so no signal is accepted that the engine would then drop.
func (a *app) run(ctx context.Context) error {
	onStart := engine.OnEngineStartCallback(func(instrument types.Instrument, provider string) error {
		a.log.Info("Bridge ready",
			zap.String("instrument", instrument.String()),
			zap.String("provider", provider),
			zap.String("listen", a.cfg.Server.Listen),
		)

		return a.server.Start(a.cfg.Server.Listen)
	})
	onStop := engine.OnEngineStopCallback(func(err error) {
		if err != nil {
			a.log.Error("Engine stopped with error", zap.Error(err))
		}
	})
	onError := engine.OnErrorCallback(func(err error) {
		a.log.Warn("Engine reported an error", zap.Error(err))
	})

	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()

	done := make(chan error, 1)

	go func() {
		done <- a.engine.Run(engineCtx, engine.SignalEngineCallbacks{
			OnEngineStart: &onStart,
			OnEngineStop:  &onStop,
			OnResult:      nil,
			OnError:       &onError,
		})
	}()

	var runErr error

	select {
	case <-ctx.Done():
		a.log.Info("Shutting down")
	case runErr = <-done:
		done = nil
	}

	if err := a.server.Shutdown(context.Background()); err != nil {
		a.log.Warn("HTTP server shutdown failed", zap.Error(err))
	}

	stopEngine()

	if done != nil {
		runErr = <-done
	}

	if err := a.journal.Close(); err != nil {
		a.log.Warn("Failed to close journal", zap.Error(err))
	}

	return runErr
}
