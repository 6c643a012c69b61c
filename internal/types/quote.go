package types

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a price snapshot for the tracked instrument.
type Quote struct {
	Last  float64   `yaml:"last" json:"last"`
	Close float64   `yaml:"close" json:"close"`
	Time  time.Time `yaml:"time" json:"time"`
}

// Reference returns the price used to anchor stops: Last when it is set,
// otherwise Close. ok is false when neither is a positive finite price.
func (q Quote) Reference() (price decimal.Decimal, ok bool) {
	if usablePrice(q.Last) {
		return decimal.NewFromFloat(q.Last), true
	}

	if usablePrice(q.Close) {
		return decimal.NewFromFloat(q.Close), true
	}

	return decimal.Zero, false
}

func usablePrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
