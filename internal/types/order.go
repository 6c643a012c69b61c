package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"github.com/shopspring/decimal"
)

type Side string

type OrderType string

type OrderRole string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket OrderType = "MKT"
	OrderTypeStop   OrderType = "STP"
	OrderTypeLimit  OrderType = "LMT"
)

const (
	// OrderRoleEntry is the parent leg of a bracket.
	OrderRoleEntry OrderRole = "entry"
	// OrderRoleStopLoss is the protective stop of a bracket.
	OrderRoleStopLoss OrderRole = "stop_loss"
	// OrderRoleTakeProfit is the optional profit target of a bracket.
	OrderRoleTakeProfit OrderRole = "take_profit"
	// OrderRoleExit is a standalone market exit.
	OrderRoleExit OrderRole = "exit"
)

// Opposite returns the closing side for s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}

	return SideBuy
}

// Order is a single order leg handed to the order sink.
type Order struct {
	Role     OrderRole `yaml:"role" json:"role" validate:"required,oneof=entry stop_loss take_profit exit"`
	Side     Side      `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Type     OrderType `yaml:"type" json:"type" validate:"required,oneof=MKT STP LMT"`
	Quantity int       `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	// StopPrice is the trigger price, only meaningful for STP orders.
	StopPrice decimal.Decimal `yaml:"stop_price" json:"stop_price"`
	// LimitPrice is only meaningful for LMT orders.
	LimitPrice decimal.Decimal `yaml:"limit_price" json:"limit_price"`
	// OutsideRTH allows the order to work outside regular trading hours.
	OutsideRTH bool `yaml:"outside_rth" json:"outside_rth"`
	// Reference is a client-side correlation id.
	Reference string `yaml:"reference" json:"reference"`
}

// SubmittedOrder is an order accepted by the sink together with its broker id.
type SubmittedOrder struct {
	OrderID int64 `yaml:"order_id" json:"order_id"`
	Order   Order `yaml:"order" json:"order"`
}

// OpenOrder is a working order reported by the broker.
type OpenOrder struct {
	OrderID   int64     `yaml:"order_id" json:"order_id"`
	Type      OrderType `yaml:"type" json:"type"`
	Side      Side      `yaml:"side" json:"side"`
	Quantity  int       `yaml:"quantity" json:"quantity"`
	StopPrice float64   `yaml:"stop_price" json:"stop_price"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	switch o.Type {
	case OrderTypeStop:
		if !o.StopPrice.IsPositive() {
			return errors.Newf(errors.ErrCodeInvalidOrder, "stop order requires a positive stop price, got %s", o.StopPrice)
		}
	case OrderTypeLimit:
		if !o.LimitPrice.IsPositive() {
			return errors.Newf(errors.ErrCodeInvalidOrder, "limit order requires a positive limit price, got %s", o.LimitPrice)
		}
	case OrderTypeMarket:
	}

	return nil
}
