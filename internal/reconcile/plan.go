package reconcile

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/shopspring/decimal"
)

// OrderQuantity is the number of contracts per signal.
const OrderQuantity = 1

// PlanKind tags the Plan variant.
type PlanKind string

const (
	PlanNone         PlanKind = "none"
	PlanBracketEntry PlanKind = "bracket_entry"
	PlanMarketExit   PlanKind = "market_exit"
)

// Plan is the order intent produced by a decision.
type Plan struct {
	Kind PlanKind
	// Side is the entry side for brackets and the closing side for exits.
	Side types.Side
	// StopPrice is set for brackets only.
	StopPrice decimal.Decimal
	// TakeProfit is set for brackets when a profit target is configured.
	TakeProfit optional.Option[decimal.Decimal]
}

// NoPlan is the empty plan.
func NoPlan() Plan {
	return Plan{
		Kind:       PlanNone,
		Side:       "",
		StopPrice:  decimal.Zero,
		TakeProfit: optional.None[decimal.Decimal](),
	}
}

// HasOrders reports whether the plan results in any order.
func (p Plan) HasOrders() bool {
	return p.Kind == PlanBracketEntry || p.Kind == PlanMarketExit
}

// BuildOrders expands a plan into order legs in submission order. Bracket legs
// are entry, stop loss and (if present) take profit; an exit is one market
// order. Every leg may work outside regular trading hours.
func BuildOrders(plan Plan, reference string) []types.Order {
	switch plan.Kind {
	case PlanBracketEntry:
		closing := plan.Side.Opposite()
		orders := []types.Order{
			{
				Role:       types.OrderRoleEntry,
				Side:       plan.Side,
				Type:       types.OrderTypeMarket,
				Quantity:   OrderQuantity,
				StopPrice:  decimal.Zero,
				LimitPrice: decimal.Zero,
				OutsideRTH: true,
				Reference:  reference,
			},
			{
				Role:       types.OrderRoleStopLoss,
				Side:       closing,
				Type:       types.OrderTypeStop,
				Quantity:   OrderQuantity,
				StopPrice:  plan.StopPrice,
				LimitPrice: decimal.Zero,
				OutsideRTH: true,
				Reference:  reference,
			},
		}

		if plan.TakeProfit.IsSome() {
			orders = append(orders, types.Order{
				Role:       types.OrderRoleTakeProfit,
				Side:       closing,
				Type:       types.OrderTypeLimit,
				Quantity:   OrderQuantity,
				StopPrice:  decimal.Zero,
				LimitPrice: plan.TakeProfit.Unwrap(),
				OutsideRTH: true,
				Reference:  reference,
			})
		}

		return orders
	case PlanMarketExit:
		return []types.Order{{
			Role:       types.OrderRoleExit,
			Side:       plan.Side,
			Type:       types.OrderTypeMarket,
			Quantity:   OrderQuantity,
			StopPrice:  decimal.Zero,
			LimitPrice: decimal.Zero,
			OutsideRTH: true,
			Reference:  reference,
		}}
	case PlanNone:
	}

	return nil
}

// SelectMostRecent returns the open order of the given type with the highest
// id. Nothing is returned when no order matches or the highest id is shared.
func SelectMostRecent(orders []types.OpenOrder, orderType types.OrderType) optional.Option[types.OpenOrder] {
	var (
		best  types.OpenOrder
		found bool
		tied  bool
	)

	for _, o := range orders {
		if o.Type != orderType {
			continue
		}

		switch {
		case !found || o.OrderID > best.OrderID:
			best, found, tied = o, true, false
		case o.OrderID == best.OrderID:
			tied = true
		}
	}

	if !found || tied {
		return optional.None[types.OpenOrder]()
	}

	return optional.Some(best)
}
