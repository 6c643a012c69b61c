package tradingprovider

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
)

const (
	defaultIBKRBaseURL       = "https://localhost:5000/v1/api"
	defaultIBKRMaxReplies    = 5
	defaultIBKRTimeInForce   = "GTC"
	defaultIBKRSnapshotTries = 2
	// defaultIBKRRateLimit keeps under the gateway's global request pacing.
	defaultIBKRRateLimit = 10
)

// IBKRProviderConfig configures the Client Portal Web API gateway.
type IBKRProviderConfig struct {
	BaseURL   string `json:"base_url,omitempty" jsonschema:"title=Base URL,description=Client Portal gateway API root,default=https://localhost:5000/v1/api" validate:"omitempty,url"`
	AccountID string `json:"account_id" jsonschema:"title=Account ID,description=IBKR account used for positions and orders" validate:"required"`
	// InsecureSkipVerify accepts the gateway's self-signed certificate.
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty" jsonschema:"title=Skip TLS Verification"`
	TimeInForce        string `json:"time_in_force,omitempty" jsonschema:"title=Time In Force,default=GTC" validate:"omitempty,oneof=DAY GTC"`
	// MaxReplies bounds the order confirmation loop.
	MaxReplies int `json:"max_replies,omitempty" jsonschema:"title=Max Replies,default=5" validate:"gte=0,lte=20"`
	// RateLimit is the maximum number of gateway requests per second.
	RateLimit float64 `json:"rate_limit,omitempty" jsonschema:"title=Rate Limit,description=Gateway requests per second,default=10" validate:"gte=0"`
}

func (c *IBKRProviderConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultIBKRBaseURL
	}

	if c.TimeInForce == "" {
		c.TimeInForce = defaultIBKRTimeInForce
	}

	if c.MaxReplies == 0 {
		c.MaxReplies = defaultIBKRMaxReplies
	}

	if c.RateLimit == 0 {
		c.RateLimit = defaultIBKRRateLimit
	}
}

// Validate validates the IBKRProviderConfig struct.
func (c *IBKRProviderConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid ibkr provider config", err)
	}

	return nil
}

func parseIBKRConfig(jsonConfig string) (*IBKRProviderConfig, error) {
	var config IBKRProviderConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse ibkr config", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
