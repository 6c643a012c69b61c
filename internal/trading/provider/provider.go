package tradingprovider

import (
	"slices"

	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/utils"
)

type ProviderType string

const (
	ProviderPaper                 ProviderType = "paper"
	ProviderIBKR                  ProviderType = "ibkr"
	ProviderBinanceFutures        ProviderType = "binance-futures"
	ProviderBinanceFuturesTestnet ProviderType = "binance-futures-testnet"
)

type ProviderInfo struct {
	Name           string `json:"name"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description"`
	IsPaperTrading bool   `json:"isPaperTrading"`
}

var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderPaper: {
		Name:           string(ProviderPaper),
		DisplayName:    "Paper",
		Description:    "In-memory simulated exchange for dry runs",
		IsPaperTrading: true,
	},
	ProviderIBKR: {
		Name:           string(ProviderIBKR),
		DisplayName:    "Interactive Brokers",
		Description:    "Interactive Brokers through the Client Portal Web API gateway",
		IsPaperTrading: false,
	},
	ProviderBinanceFutures: {
		Name:           string(ProviderBinanceFutures),
		DisplayName:    "Binance Futures",
		Description:    "Binance USDⓈ-M futures with real funds",
		IsPaperTrading: false,
	},
	ProviderBinanceFuturesTestnet: {
		Name:           string(ProviderBinanceFuturesTestnet),
		DisplayName:    "Binance Futures Testnet",
		Description:    "Binance USDⓈ-M futures testnet without real funds",
		IsPaperTrading: true,
	},
}

// GetSupportedProviders returns the registered provider names in sorted order.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	slices.Sort(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported trading provider: %s", providerName)
	}

	return info, nil
}

// GetProviderConfigSchema returns the JSON schema for a provider's configuration.
func GetProviderConfigSchema(providerName string) (string, error) {
	switch ProviderType(providerName) {
	case ProviderPaper:
		return utils.GetSchemaFromConfig(PaperProviderConfig{}, utils.WithTitle("Paper broker settings"))
	case ProviderIBKR:
		return utils.GetSchemaFromConfig(IBKRProviderConfig{}, utils.WithTitle("IBKR Client Portal settings"))
	case ProviderBinanceFutures, ProviderBinanceFuturesTestnet:
		return utils.GetSchemaFromConfig(BinanceProviderConfig{}, utils.WithTitle("Binance USDⓈ-M futures settings"))
	default:
		return "", errors.Newf(errors.ErrCodeInvalidProvider, "unsupported trading provider: %s", providerName)
	}
}

// ParseProviderConfig parses a JSON configuration string for the given provider.
func ParseProviderConfig(providerName string, jsonConfig string) (any, error) {
	switch ProviderType(providerName) {
	case ProviderPaper:
		return parsePaperConfig(jsonConfig)
	case ProviderIBKR:
		return parseIBKRConfig(jsonConfig)
	case ProviderBinanceFutures, ProviderBinanceFuturesTestnet:
		return parseBinanceConfig(jsonConfig)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported trading provider: %s", providerName)
	}
}

// NewBroker creates a broker for the provider type from a config returned by
// ParseProviderConfig.
func NewBroker(providerType ProviderType, config any, log *logger.Logger) (trading.Broker, error) {
	switch providerType {
	case ProviderPaper:
		cfg, ok := config.(*PaperProviderConfig)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "invalid config type for paper provider")
		}

		return NewPaperBroker(*cfg, log), nil

	case ProviderIBKR:
		cfg, ok := config.(*IBKRProviderConfig)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "invalid config type for ibkr provider")
		}

		return NewIBKRBroker(*cfg, log), nil

	case ProviderBinanceFutures, ProviderBinanceFuturesTestnet:
		cfg, ok := config.(*BinanceProviderConfig)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "invalid config type for binance futures provider")
		}

		return NewBinanceFuturesBroker(*cfg, providerType == ProviderBinanceFuturesTestnet, log), nil

	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported trading provider: %s", providerType)
	}
}
