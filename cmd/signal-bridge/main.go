package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-signal-bridge/internal/config"
	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	tradingprovider "github.com/rxtech-lab/argo-signal-bridge/internal/trading/provider"
	"github.com/rxtech-lab/argo-signal-bridge/internal/version"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// loadConfig reads the config file named by --config and applies the flag
// overrides on top of it.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	err = cfg.Apply(config.Overrides{
		Listen:   cmd.String("listen"),
		Provider: cmd.String("provider"),
		LogLevel: cmd.String("log-level"),
	})
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// serveAction runs the bridge until SIGINT or SIGTERM.
func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	appLog, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer func() { _ = appLog.Sync() }()

	appLog.Info("Starting signal bridge",
		zap.String("version", version.GetVersion()),
		zap.String("instrument", cfg.Instrument.String()),
		zap.String("provider", cfg.Broker.Provider),
		zap.Int("cap", cfg.Risk.Cap),
		zap.Int("stop_ticks", cfg.Risk.StopTicks),
		zap.Int("take_profit_ticks", cfg.Risk.TakeProfitTicks),
	)

	bridge, err := newApp(cfg, appLog)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return bridge.run(ctx)
}

// schemaAction prints the config schema, or a provider's settings schema
// when --provider is set.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	var (
		schema string
		err    error
	)

	if provider := cmd.String("provider"); provider != "" {
		schema, err = tradingprovider.GetProviderConfigSchema(provider)
	} else {
		schema, err = config.Schema()
	}

	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, schema)

	return nil
}

// providersAction lists the supported broker providers.
func providersAction(_ context.Context, cmd *cli.Command) error {
	infos := make([]tradingprovider.ProviderInfo, 0)

	for _, name := range tradingprovider.GetSupportedProviders() {
		info, err := tradingprovider.GetProviderInfo(name)
		if err != nil {
			return err
		}

		infos = append(infos, info)
	}

	if cmd.Bool("json") {
		encoder := json.NewEncoder(cmd.Root().Writer)
		encoder.SetIndent("", "  ")

		return encoder.Encode(infos)
	}

	for _, info := range infos {
		mode := "live"
		if info.IsPaperTrading {
			mode = "paper"
		}

		fmt.Fprintf(cmd.Root().Writer, "%-26s %-6s %s\n", info.Name, mode, info.Description)
	}

	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "signal-bridge",
		Usage:   "Turn trading signals into broker orders for one futures contract",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config `FILE` (defaults apply when omitted)",
				Sources: cli.EnvVars("SIGNAL_BRIDGE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Webhook listen address, overrides server.listen",
				Sources: cli.EnvVars("SIGNAL_BRIDGE_LISTEN"),
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Broker provider (%s), overrides broker.provider", strings.Join(tradingprovider.GetSupportedProviders(), ", ")),
				Sources: cli.EnvVars("SIGNAL_BRIDGE_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error), overrides log.level",
				Sources: cli.EnvVars("SIGNAL_BRIDGE_LOG_LEVEL"),
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the webhook server and signal engine (default)",
				Action: serveAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the config JSON schema, or a provider's settings schema with --provider",
				Action: schemaAction,
			},
			{
				Name:  "providers",
				Usage: "List supported broker providers",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print as JSON"},
				},
				Action: providersAction,
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					fmt.Fprintln(cmd.Root().Writer, version.GetVersion())

					return nil
				},
			},
		},
	}
}

func main() {
	// SIGNAL_BRIDGE_* variables may come from a .env file; a missing file is fine
	_ = godotenv.Load()

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
