// Package config loads the signal bridge YAML configuration.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-signal-bridge/internal/ledger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/reconcile"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine"
	tradingprovider "github.com/rxtech-lab/argo-signal-bridge/internal/trading/provider"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/internal/version"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/utils"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Default values applied before a file is decoded.
const (
	DefaultListen     = ":5001"
	DefaultProvider   = string(tradingprovider.ProviderPaper)
	DefaultPaperPrice = 20000.0
	DefaultJournalDir = "journal"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
)

// Config is the root of the YAML configuration file.
type Config struct {
	// Version is the binary version the file was written for.
	Version    string           `yaml:"version" json:"version" jsonschema:"title=Version,description=Binary version the file targets; major and minor must match" validate:"required"`
	Server     ServerConfig     `yaml:"server" json:"server" jsonschema:"title=Server"`
	Instrument types.Instrument `yaml:"instrument" json:"instrument" jsonschema:"title=Instrument"`
	Risk       RiskConfig       `yaml:"risk" json:"risk" jsonschema:"title=Risk"`
	Broker     BrokerConfig     `yaml:"broker" json:"broker" jsonschema:"title=Broker"`
	Engine     EngineConfig     `yaml:"engine" json:"engine" jsonschema:"title=Engine"`
	Journal    JournalConfig    `yaml:"journal" json:"journal" jsonschema:"title=Journal"`
	Log        LogConfig        `yaml:"log" json:"log" jsonschema:"title=Log"`
}

type ServerConfig struct {
	Listen string `yaml:"listen" json:"listen" jsonschema:"title=Listen address,default=:5001" validate:"required"`
}

// RiskConfig holds the fixed risk parameters. The tick size comes from the
// instrument.
type RiskConfig struct {
	Cap             int `yaml:"cap" json:"cap" jsonschema:"title=Position cap,description=Maximum absolute net contracts,default=6" validate:"gt=0"`
	StopTicks       int `yaml:"stop_ticks" json:"stop_ticks" jsonschema:"title=Stop ticks,description=Stop-loss distance in ticks,default=120" validate:"gt=0"`
	TakeProfitTicks int `yaml:"take_profit_ticks" json:"take_profit_ticks" jsonschema:"title=Take-profit ticks,description=Profit target distance in ticks; 0 disables the leg,default=0" validate:"gte=0"`
}

type BrokerConfig struct {
	Provider string `yaml:"provider" json:"provider" jsonschema:"title=Provider,enum=paper,enum=ibkr,enum=binance-futures,enum=binance-futures-testnet,default=paper" validate:"required"`
	// RequestTimeout bounds every broker call, e.g. "5s".
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" jsonschema:"title=Request timeout,description=Bound for each broker call in nanoseconds (YAML accepts 5s)" validate:"gt=0"`
	// Settings is the provider specific block, see `signal-bridge providers`.
	Settings map[string]any `yaml:"settings" json:"settings" jsonschema:"title=Provider settings"`
}

type EngineConfig struct {
	QueueSize int `yaml:"queue_size" json:"queue_size" jsonschema:"title=Queue size,default=64" validate:"gt=0"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" jsonschema:"title=Enabled,default=true"`
	Dir     string `yaml:"dir" json:"dir" jsonschema:"title=Directory,default=journal" validate:"required_if=Enabled true"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error,default=info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" jsonschema:"title=Format,enum=json,enum=console,default=json" validate:"oneof=json console"`
}

// Overrides are values set from CLI flags or the environment. Empty fields
// leave the file value alone.
type Overrides struct {
	Listen   string
	Provider string
	LogLevel string
}

// Default returns the configuration used when no file is given: paper
// trading MNQ on CME with the default risk parameters.
func Default() *Config {
	return &Config{
		Version: version.GetVersion(),
		Server:  ServerConfig{Listen: DefaultListen},
		Instrument: types.Instrument{
			Symbol:        "MNQ",
			ContractMonth: "",
			Exchange:      "CME",
			Currency:      "USD",
			ConID:         0,
			TickSize:      reconcile.DefaultTickSize,
		},
		Risk: RiskConfig{
			Cap:             ledger.DefaultCap,
			StopTicks:       reconcile.DefaultStopTicks,
			TakeProfitTicks: 0,
		},
		Broker: BrokerConfig{
			Provider:       DefaultProvider,
			RequestTimeout: engine.DefaultRequestTimeout,
			Settings:       map[string]any{"price": DefaultPaperPrice},
		},
		Engine:  EngineConfig{QueueSize: engine.DefaultQueueSize},
		Journal: JournalConfig{Enabled: true, Dir: DefaultJournalDir},
		Log:     LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load reads and validates the file at path. ${VAR} references in the file are
// replaced from the environment before decoding, so broker credentials can stay
// out of the file. An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()

		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes YAML on top of the defaults and validates the result. A
// broker section naming a different provider than the default replaces the
// default paper settings instead of merging with them.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	var peek struct {
		Broker struct {
			Provider string `yaml:"provider"`
		} `yaml:"broker"`
	}

	if err := yaml.Unmarshal(data, &peek); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if peek.Broker.Provider != "" && peek.Broker.Provider != DefaultProvider {
		cfg.Broker.Settings = nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Apply copies the non-empty overrides into c and validates again.
func (c *Config) Apply(overrides Overrides) error {
	if overrides.Listen != "" {
		c.Server.Listen = overrides.Listen
	}

	if overrides.Provider != "" && overrides.Provider != c.Broker.Provider {
		c.Broker.Provider = overrides.Provider
		if overrides.Provider == DefaultProvider {
			c.Broker.Settings = map[string]any{"price": DefaultPaperPrice}
		}
	}

	if overrides.LogLevel != "" {
		c.Log.Level = overrides.LogLevel
	}

	return c.Validate()
}

// Validate checks struct constraints, the version and the provider name.
// Provider settings are checked when the broker is built.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if err := version.CheckConfigCompatibility(version.GetVersion(), c.Version); err != nil {
		return err
	}

	if _, err := tradingprovider.GetProviderInfo(c.Broker.Provider); err != nil {
		return err
	}

	return nil
}

// Params returns the reconciliation parameters.
func (c *Config) Params() reconcile.Params {
	return reconcile.Params{
		Cap:             c.Risk.Cap,
		TickSize:        decimal.NewFromFloat(c.Instrument.TickSize),
		StopTicks:       c.Risk.StopTicks,
		TakeProfitTicks: c.Risk.TakeProfitTicks,
	}
}

// EngineConfig returns the signal engine configuration.
func (c *Config) EngineConfig() engine.SignalEngineConfig {
	return engine.SignalEngineConfig{
		Instrument:     c.Instrument,
		Params:         c.Params(),
		QueueSize:      c.Engine.QueueSize,
		RequestTimeout: c.Broker.RequestTimeout,
	}
}

// ProviderSettings returns the broker settings as the JSON document expected
// by tradingprovider.ParseProviderConfig.
func (c *Config) ProviderSettings() (string, error) {
	settings := c.Broker.Settings
	if settings == nil {
		settings = map[string]any{}
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "broker settings are not JSON encodable", err)
	}

	return string(data), nil
}

// Schema returns the JSON schema of the configuration file.
func Schema() (string, error) {
	return utils.GetSchemaFromConfig(Config{},
		utils.WithID("https://github.com/rxtech-lab/argo-signal-bridge/config.schema.json"),
		utils.WithTitle("Signal bridge configuration"))
}
