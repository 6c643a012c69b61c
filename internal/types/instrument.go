package types

import "fmt"

// Instrument identifies the single futures contract the bridge trades.
type Instrument struct {
	Symbol        string  `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,description=Root or exchange symbol (e.g. MNQ or BTCUSDT)" validate:"required"`
	ContractMonth string  `yaml:"contract_month" json:"contract_month" jsonschema:"title=Contract month,description=Last trade date or contract month (YYYYMM)"`
	Exchange      string  `yaml:"exchange" json:"exchange" jsonschema:"title=Exchange"`
	Currency      string  `yaml:"currency" json:"currency" jsonschema:"title=Currency"`
	ConID         int64   `yaml:"conid" json:"conid" jsonschema:"title=Contract id,description=Broker contract id when the broker needs one"`
	TickSize      float64 `yaml:"tick_size" json:"tick_size" jsonschema:"title=Tick size,default=0.25" validate:"gt=0"`
}

// String returns a compact human readable identifier.
func (i Instrument) String() string {
	if i.ContractMonth == "" {
		return i.Symbol
	}

	return fmt.Sprintf("%s %s", i.Symbol, i.ContractMonth)
}
