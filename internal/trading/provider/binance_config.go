package tradingprovider

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
)

const (
	defaultBinanceContractSize      = 1.0
	defaultBinanceQuantityPrecision = 3
	defaultBinancePricePrecision    = 2
)

// BinanceProviderConfig contains configuration for Binance USDⓈ-M futures.
type BinanceProviderConfig struct {
	ApiKey    string `json:"api_key" jsonschema:"title=API Key,description=Binance API key" validate:"required"`
	SecretKey string `json:"secret_key" jsonschema:"title=Secret Key,description=Binance API secret key" validate:"required"`
	// BaseURL overrides the futures endpoint (mainly for tests).
	BaseURL string `json:"base_url,omitempty" jsonschema:"title=Base URL,description=Override for the futures REST endpoint" validate:"omitempty,url"`
	// ContractSize is the venue quantity of one signal contract.
	ContractSize      float64 `json:"contract_size,omitempty" jsonschema:"title=Contract Size,description=Venue quantity per contract,default=1" validate:"gt=0"`
	QuantityPrecision int     `json:"quantity_precision,omitempty" jsonschema:"title=Quantity Precision,default=3" validate:"gte=0,lte=8"`
	PricePrecision    int     `json:"price_precision,omitempty" jsonschema:"title=Price Precision,default=2" validate:"gte=0,lte=8"`
}

func (c *BinanceProviderConfig) applyDefaults() {
	if c.ContractSize == 0 {
		c.ContractSize = defaultBinanceContractSize
	}

	if c.QuantityPrecision == 0 {
		c.QuantityPrecision = defaultBinanceQuantityPrecision
	}

	if c.PricePrecision == 0 {
		c.PricePrecision = defaultBinancePricePrecision
	}
}

// Validate validates the BinanceProviderConfig struct.
func (c *BinanceProviderConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid binance provider config", err)
	}

	return nil
}

// parseBinanceConfig parses a JSON configuration string into a BinanceProviderConfig.
func parseBinanceConfig(jsonConfig string) (*BinanceProviderConfig, error) {
	var config BinanceProviderConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse binance config", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
