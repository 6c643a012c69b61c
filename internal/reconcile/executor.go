package reconcile

import (
	"context"
	"slices"
	"time"

	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"go.uber.org/zap"
)

// ExecutionReport describes what reached the broker for one plan.
type ExecutionReport struct {
	// Submitted lists accepted legs in submission order.
	Submitted []types.SubmittedOrder
	// Cancelled lists stale protective orders cancelled after an exit.
	Cancelled []int64
	// PositionChanged is true once the leg that moves the position (entry or
	// exit) has been accepted. The ledger follows this flag.
	PositionChanged bool
}

// Executor submits plans to an order sink.
type Executor struct {
	sink             trading.OrderSink
	instrument       types.Instrument
	callTimeout      time.Duration
	cancelTakeProfit bool
	// siblings maps the stop id of each working bracket to its take-profit id.
	// Only the engine worker touches it.
	siblings map[int64]int64
	log      *logger.Logger
}

// NewExecutor creates an Executor. callTimeout bounds each sink call (0 means
// no extra bound). cancelTakeProfit makes exits also cancel the most recent
// take-profit order, which only exists when profit targets are enabled.
func NewExecutor(sink trading.OrderSink, instrument types.Instrument, callTimeout time.Duration, cancelTakeProfit bool, log *logger.Logger) *Executor {
	return &Executor{
		sink:             sink,
		instrument:       instrument,
		callTimeout:      callTimeout,
		cancelTakeProfit: cancelTakeProfit,
		siblings:         make(map[int64]int64),
		log:              log.Named("executor"),
	}
}

// Execute submits the legs of plan. The returned error is non-nil whenever a
// leg was rejected; PositionChanged in the report says whether the position
// moved anyway (entry accepted but stop rejected, or exit accepted but the
// stale stop could not be cancelled).
func (e *Executor) Execute(ctx context.Context, plan Plan, reference string) (ExecutionReport, error) {
	report := ExecutionReport{Submitted: nil, Cancelled: nil, PositionChanged: false}

	switch plan.Kind {
	case PlanBracketEntry:
		return e.executeBracket(ctx, plan, reference, report)
	case PlanMarketExit:
		return e.executeExit(ctx, plan, reference, report)
	case PlanNone:
	}

	return report, nil
}

func (e *Executor) executeBracket(ctx context.Context, plan Plan, reference string, report ExecutionReport) (ExecutionReport, error) {
	orders := BuildOrders(plan, reference)

	// every leg is checked before the entry goes out
	for i := range orders {
		if err := orders[i].Validate(); err != nil {
			return report, err
		}
	}

	var stopID, takeProfitID int64

	for _, order := range orders {
		submitted, err := e.submit(ctx, order)
		if err != nil {
			switch order.Role {
			case types.OrderRoleEntry:
				return report, err
			case types.OrderRoleStopLoss:
				e.log.Error("Entry filled without protective stop",
					zap.String("reference", reference),
					zap.String("stop_price", order.StopPrice.String()),
					zap.Error(err),
				)

				return report, errors.Wrapf(errors.ErrCodeUnprotectedPosition, err,
					"entry accepted but stop at %s was rejected", order.StopPrice)
			default:
				e.log.Warn("Take-profit leg rejected",
					zap.String("reference", reference),
					zap.String("limit_price", order.LimitPrice.String()),
					zap.Error(err),
				)

				return report, err
			}
		}

		report.Submitted = append(report.Submitted, submitted)

		switch order.Role {
		case types.OrderRoleEntry:
			report.PositionChanged = true
		case types.OrderRoleStopLoss:
			stopID = submitted.OrderID
		case types.OrderRoleTakeProfit:
			takeProfitID = submitted.OrderID
		case types.OrderRoleExit:
		}
	}

	if stopID != 0 && takeProfitID != 0 {
		e.siblings[stopID] = takeProfitID
	}

	return report, nil
}

func (e *Executor) executeExit(ctx context.Context, plan Plan, reference string, report ExecutionReport) (ExecutionReport, error) {
	exit := BuildOrders(plan, reference)[0]
	if err := exit.Validate(); err != nil {
		return report, err
	}

	submitted, err := e.submit(ctx, exit)
	if err != nil {
		return report, err
	}

	report.Submitted = append(report.Submitted, submitted)
	report.PositionChanged = true

	callCtx, cancel := e.callContext(ctx)
	openOrders, err := e.sink.GetOpenOrders(callCtx, e.instrument)

	cancel()

	if err != nil {
		e.log.Warn("Could not list open orders after exit", zap.String("reference", reference), zap.Error(err))

		return report, errors.Wrap(errors.ErrCodeCancelFailed, "failed to list open orders for stale stop cancellation", err)
	}

	targets := e.staleAfterExit(openOrders, reference)
	targets = append(targets, e.orphans(openOrders, targets)...)

	return report, e.cancelAll(ctx, targets, reference, &report)
}

// Sweep cancels the surviving leg of every bracket whose stop or take-profit
// is no longer working. It runs after a catch-up, when the exchange has
// closed a bracket on its own.
func (e *Executor) Sweep(ctx context.Context, reference string) (ExecutionReport, error) {
	report := ExecutionReport{Submitted: nil, Cancelled: nil, PositionChanged: false}
	if len(e.siblings) == 0 {
		return report, nil
	}

	callCtx, cancel := e.callContext(ctx)
	openOrders, err := e.sink.GetOpenOrders(callCtx, e.instrument)

	cancel()

	if err != nil {
		return report, errors.Wrap(errors.ErrCodeCancelFailed, "failed to list open orders for bracket cleanup", err)
	}

	return report, e.cancelAll(ctx, e.orphans(openOrders, nil), reference, &report)
}

// Brackets returns the number of stop and take-profit pairs still linked.
func (e *Executor) Brackets() int {
	return len(e.siblings)
}

// staleAfterExit picks the protective orders an exit closes: the most recent
// stop and its own take-profit. An unlinked stop falls back to the most recent
// take-profit that belongs to no other bracket.
func (e *Executor) staleAfterExit(openOrders []types.OpenOrder, reference string) []int64 {
	var targets []int64

	stop := SelectMostRecent(openOrders, types.OrderTypeStop)
	if stop.IsNone() {
		e.log.Info("No open stop to cancel after exit", zap.String("reference", reference))
	} else {
		stopID := stop.Unwrap().OrderID
		targets = append(targets, stopID)

		if takeProfitID, ok := e.siblings[stopID]; ok {
			delete(e.siblings, stopID)

			if isWorking(openOrders, takeProfitID) {
				targets = append(targets, takeProfitID)
			}

			return targets
		}
	}

	if !e.cancelTakeProfit {
		return targets
	}

	var unlinked []types.OpenOrder

	for _, o := range openOrders {
		if !e.isLinkedTakeProfit(o.OrderID) {
			unlinked = append(unlinked, o)
		}
	}

	if takeProfit := SelectMostRecent(unlinked, types.OrderTypeLimit); takeProfit.IsSome() {
		targets = append(targets, takeProfit.Unwrap().OrderID)
	}

	return targets
}

// orphans unlinks every bracket that lost a leg and returns the leg still
// working. Ids in skip are treated as gone.
func (e *Executor) orphans(openOrders []types.OpenOrder, skip []int64) []int64 {
	working := func(id int64) bool {
		return !slices.Contains(skip, id) && isWorking(openOrders, id)
	}

	var targets []int64

	for stopID, takeProfitID := range e.siblings {
		stopWorking, takeProfitWorking := working(stopID), working(takeProfitID)
		if stopWorking && takeProfitWorking {
			continue
		}

		delete(e.siblings, stopID)

		switch {
		case stopWorking:
			targets = append(targets, stopID)
		case takeProfitWorking:
			targets = append(targets, takeProfitID)
		}
	}

	slices.Sort(targets)

	return targets
}

func (e *Executor) isLinkedTakeProfit(orderID int64) bool {
	for _, takeProfitID := range e.siblings {
		if takeProfitID == orderID {
			return true
		}
	}

	return false
}

func (e *Executor) cancelAll(ctx context.Context, targets []int64, reference string, report *ExecutionReport) error {
	for _, id := range targets {
		if err := e.cancel(ctx, id); err != nil {
			e.log.Warn("Failed to cancel stale order", zap.Int64("order_id", id), zap.Error(err))

			return err
		}

		report.Cancelled = append(report.Cancelled, id)
		e.log.Info("Cancelled stale order", zap.String("reference", reference), zap.Int64("order_id", id))
	}

	return nil
}

func isWorking(openOrders []types.OpenOrder, orderID int64) bool {
	return slices.ContainsFunc(openOrders, func(o types.OpenOrder) bool { return o.OrderID == orderID })
}

func (e *Executor) submit(ctx context.Context, order types.Order) (types.SubmittedOrder, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	submitted, err := e.sink.SubmitOrder(callCtx, e.instrument, order)
	if err != nil {
		return types.SubmittedOrder{}, errors.Wrapf(errors.ErrCodeSubmissionFailed, err,
			"failed to submit %s %s %s order", order.Role, order.Side, order.Type)
	}

	e.log.Info("Order submitted",
		zap.Int64("order_id", submitted.OrderID),
		zap.String("role", string(order.Role)),
		zap.String("side", string(order.Side)),
		zap.String("type", string(order.Type)),
		zap.String("stop_price", order.StopPrice.String()),
		zap.String("limit_price", order.LimitPrice.String()),
	)

	return submitted, nil
}

func (e *Executor) cancel(ctx context.Context, orderID int64) error {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	if err := e.sink.CancelOrder(callCtx, e.instrument, orderID); err != nil {
		return errors.Wrapf(errors.ErrCodeCancelFailed, err, "failed to cancel order %d", orderID)
	}

	return nil
}

func (e *Executor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, e.callTimeout)
}
