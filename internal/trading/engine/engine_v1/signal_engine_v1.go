package engine_v1

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-signal-bridge/internal/ledger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/reconcile"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/stats"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/writers"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"go.uber.org/zap"
)

type engineState int

const (
	stateIdle engineState = iota
	stateRunning
	stateStopped
)

type request struct {
	id         string
	raw        string
	receivedAt time.Time
	// reply is nil for fire-and-forget requests; otherwise buffered(1).
	reply chan engine.Result
}

// SignalEngineV1 implements engine.SignalEngine. It owns the ledger; a single
// worker goroutine (Run) takes requests off a buffered queue, so connect,
// snapshot, reconcile, submit and commit never overlap between signals.
type SignalEngineV1 struct {
	config   engine.SignalEngineConfig
	broker   trading.Broker
	ledger   *ledger.Ledger
	executor *reconcile.Executor
	journal  writers.Journal
	stats    *stats.StatsTracker
	metrics  *Metrics
	queue    chan request
	state    engineState
	mu       sync.RWMutex
	now      func() time.Time
	log      *logger.Logger
}

var _ engine.SignalEngine = (*SignalEngineV1)(nil)

// NewSignalEngineV1 creates an engine trading config.Instrument on broker.
// Zero values in config fall back to the engine defaults.
func NewSignalEngineV1(config engine.SignalEngineConfig, broker trading.Broker, log *logger.Logger) (*SignalEngineV1, error) {
	if broker == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "signal engine requires a broker")
	}

	if config.QueueSize <= 0 {
		config.QueueSize = engine.DefaultQueueSize
	}

	if config.RequestTimeout <= 0 {
		config.RequestTimeout = engine.DefaultRequestTimeout
	}

	if config.Params.Cap == 0 && config.Params.StopTicks == 0 && config.Params.TickSize.IsZero() {
		config.Params = reconcile.DefaultParams()
	}

	if err := validateParams(config.Params); err != nil {
		return nil, err
	}

	log = log.Named("engine").With(zap.String("instrument", config.Instrument.String()))

	statsTracker := stats.NewStatsTracker(log)
	statsTracker.Initialize("", time.Now(), config.Instrument.String(), broker.Name())

	return &SignalEngineV1{
		config: config,
		broker: broker,
		ledger: ledger.New(config.Params.Cap),
		executor: reconcile.NewExecutor(broker, config.Instrument, config.RequestTimeout,
			config.Params.TakeProfitTicks > 0, log),
		journal: writers.NopJournal{},
		stats:   statsTracker,
		metrics: NewMetrics(nil),
		queue:   make(chan request, config.QueueSize),
		state:   stateIdle,
		mu:      sync.RWMutex{},
		now:     time.Now,
		log:     log,
	}, nil
}

func validateParams(params reconcile.Params) error {
	switch {
	case params.Cap <= 0:
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "position cap must be positive, got %d", params.Cap)
	case !params.TickSize.IsPositive():
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "tick size must be positive, got %s", params.TickSize)
	case params.StopTicks <= 0:
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "stop ticks must be positive, got %d", params.StopTicks)
	case params.TakeProfitTicks < 0:
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "take profit ticks must not be negative, got %d", params.TakeProfitTicks)
	}

	return nil
}

// SetJournal replaces the default no-op journal. Must be called before Run.
func (e *SignalEngineV1) SetJournal(journal writers.Journal) error {
	return e.configure(func() { e.journal = journal })
}

// SetMetrics replaces the default unregistered metrics. Must be called before Run.
func (e *SignalEngineV1) SetMetrics(metrics *Metrics) error {
	return e.configure(func() { e.metrics = metrics })
}

// SetStatsTracker replaces the default in-memory tracker. Must be called before Run.
func (e *SignalEngineV1) SetStatsTracker(tracker *stats.StatsTracker) error {
	return e.configure(func() { e.stats = tracker })
}

func (e *SignalEngineV1) configure(apply func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateIdle {
		return errors.New(errors.ErrCodeEngineNotReady, "engine already started")
	}

	apply()

	return nil
}

// Enqueue implements engine.SignalEngine. Requests accepted before Run starts
// wait in the queue.
func (e *SignalEngineV1) Enqueue(_ context.Context, raw string) (string, error) {
	req := e.newRequest(raw, nil)
	if err := e.push(req); err != nil {
		return "", err
	}

	return req.id, nil
}

// Process implements engine.SignalEngine. When ctx ends first the result is
// ErrCodeResultTimeout; the request stays queued and is still reconciled.
func (e *SignalEngineV1) Process(ctx context.Context, raw string) engine.Result {
	req := e.newRequest(raw, make(chan engine.Result, 1))

	if err := e.push(req); err != nil {
		return e.newResult(req, err)
	}

	select {
	case result := <-req.reply:
		return result
	case <-ctx.Done():
		return e.newResult(req, errors.Wrap(errors.ErrCodeResultTimeout, "stopped waiting for result, request is still queued", ctx.Err()))
	}
}

func (e *SignalEngineV1) newRequest(raw string, reply chan engine.Result) request {
	return request{
		id:         uuid.New().String(),
		raw:        raw,
		receivedAt: e.now(),
		reply:      reply,
	}
}

func (e *SignalEngineV1) push(req request) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state == stateStopped {
		return errors.New(errors.ErrCodeEngineStopped, "signal engine is stopped")
	}

	select {
	case e.queue <- req:
		e.metrics.SetQueueDepth(len(e.queue))

		return nil
	default:
		return errors.Newf(errors.ErrCodeQueueFull, "signal queue is full (%d requests)", cap(e.queue))
	}
}

func (e *SignalEngineV1) newResult(req request, err error) engine.Result {
	value := e.ledger.Read()

	return engine.Result{
		RequestID:    req.id,
		RawSignal:    req.raw,
		Signal:       types.ParseSignal(req.raw),
		ReceivedAt:   req.receivedAt,
		Outcome:      "",
		LedgerBefore: value,
		LedgerAfter:  value,
		Broker:       types.PositionSnapshot{Quantity: 0, Found: false},
		Report:       reconcile.ExecutionReport{Submitted: nil, Cancelled: nil, PositionChanged: false},
		Err:          err,
	}
}

// Run implements engine.SignalEngine. A request that is being reconciled when
// ctx is cancelled is finished first (each broker call stays bounded by the
// request timeout).
func (e *SignalEngineV1) Run(ctx context.Context, callbacks engine.SignalEngineCallbacks) (runErr error) {
	e.mu.Lock()
	if e.state != stateIdle {
		e.mu.Unlock()

		return errors.New(errors.ErrCodeEngineNotReady, "engine already started")
	}

	e.state = stateRunning
	e.mu.Unlock()

	defer func() {
		e.shutdown()

		if callbacks.OnEngineStop != nil {
			(*callbacks.OnEngineStop)(runErr)
		}

		e.log.Info("Signal engine stopped", zap.Int("ledger", e.ledger.Read()))
	}()

	if callbacks.OnEngineStart != nil {
		if err := (*callbacks.OnEngineStart)(e.config.Instrument, e.broker.Name()); err != nil {
			return err
		}
	}

	e.log.Info("Signal engine started",
		zap.String("instrument", e.config.Instrument.String()),
		zap.String("provider", e.broker.Name()),
		zap.Int("cap", e.config.Params.Cap),
		zap.String("stop_distance", e.config.Params.StopDistance().String()),
		zap.Int("take_profit_ticks", e.config.Params.TakeProfitTicks),
		zap.Int("queue_size", cap(e.queue)),
	)

	work := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-e.queue:
			e.metrics.SetQueueDepth(len(e.queue))

			started := time.Now()
			result := e.reconcile(work, req)
			e.finish(req, result, time.Since(started), callbacks)
		}
	}
}

// shutdown rejects new requests and fails the ones still queued.
func (e *SignalEngineV1) shutdown() {
	e.mu.Lock()
	e.state = stateStopped
	e.mu.Unlock()

	for {
		select {
		case req := <-e.queue:
			result := e.newResult(req, errors.New(errors.ErrCodeEngineStopped, "signal engine stopped before the request was processed"))
			e.log.Warn("Dropped queued signal at shutdown",
				zap.String("request_id", req.id),
				zap.String("signal", req.raw),
			)

			if req.reply != nil {
				req.reply <- result
			}
		default:
			e.metrics.SetQueueDepth(0)

			return
		}
	}
}

// reconcile runs one request end to end. The ledger only moves when the
// position-changing leg was accepted, or immediately for a catch-up.
func (e *SignalEngineV1) reconcile(ctx context.Context, req request) engine.Result {
	result := e.newResult(req, nil)
	signal := result.Signal

	if !signal.IsValid() {
		decision := reconcile.Reconcile(e.config.Params, reconcile.Input{
			Signal: signal,
			Ledger: result.LedgerBefore,
			Broker: types.PositionSnapshot{Quantity: 0, Found: false},
			Quote:  types.Quote{},
		})
		result.Outcome = decision.Outcome
		result.Err = decision.Err

		return result
	}

	if err := e.withTimeout(ctx, e.broker.Connect); err != nil {
		result.Err = errors.Wrap(errors.ErrCodeConnectivity, "broker connect failed", err)

		return result
	}

	var position types.PositionSnapshot

	err := e.withTimeout(ctx, func(callCtx context.Context) error {
		var err error
		position, err = e.broker.GetPosition(callCtx, e.config.Instrument)

		return err
	})
	if err != nil {
		result.Err = errors.Wrap(errors.ErrCodeConnectivity, "broker position fetch failed", err)

		return result
	}

	result.Broker = position

	var quote types.Quote

	if signal.IsEntry() {
		err := e.withTimeout(ctx, func(callCtx context.Context) error {
			var err error
			quote, err = e.broker.GetQuote(callCtx, e.config.Instrument)

			return err
		})
		if err != nil {
			result.Err = errors.Wrap(errors.ErrCodeConnectivity, "quote fetch failed", err)

			return result
		}
	}

	decision := reconcile.Reconcile(e.config.Params, reconcile.Input{
		Signal: signal,
		Ledger: result.LedgerBefore,
		Broker: position,
		Quote:  quote,
	})
	result.Outcome = decision.Outcome

	if decision.Err != nil {
		result.Err = decision.Err

		return result
	}

	reservation := e.ledger.Reserve(decision.Delta)

	if !decision.Plan.HasOrders() {
		result.LedgerAfter = reservation.Commit()

		// the exchange closed a bracket on its own; its other leg must go too
		if decision.Outcome == reconcile.OutcomeCatchUp {
			result.Report, result.Err = e.executor.Sweep(ctx, req.id)
		}

		return result
	}

	report, err := e.executor.Execute(ctx, decision.Plan, req.id)
	result.Report = report
	result.Err = err

	if report.PositionChanged {
		result.LedgerAfter = reservation.Commit()
	} else {
		reservation.Rollback()
	}

	return result
}

func (e *SignalEngineV1) withTimeout(ctx context.Context, call func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	return call(callCtx)
}

// finish publishes a result: log line, metrics, stats, journal, callbacks and
// the synchronous reply, in that order.
func (e *SignalEngineV1) finish(req request, result engine.Result, elapsed time.Duration, callbacks engine.SignalEngineCallbacks) {
	e.logResult(result)
	e.metrics.Observe(result, elapsed)

	e.stats.Record(stats.Observation{
		At:          result.ReceivedAt,
		Outcome:     string(result.Outcome),
		Submitted:   len(result.Report.Submitted),
		Cancelled:   len(result.Report.Cancelled),
		Failed:      result.Err != nil && !errors.IsRejection(result.Err),
		Unprotected: errors.HasCode(result.Err, errors.ErrCodeUnprotectedPosition),
		LedgerAfter: result.LedgerAfter,
	})

	if err := e.stats.WriteStatsYAML(); err != nil {
		e.reportError(err, callbacks)
	}

	if err := e.journal.Write(toRecord(result)); err != nil {
		e.reportError(err, callbacks)
	}

	if callbacks.OnResult != nil {
		(*callbacks.OnResult)(result)
	}

	if req.reply != nil {
		req.reply <- result
	}
}

func (e *SignalEngineV1) reportError(err error, callbacks engine.SignalEngineCallbacks) {
	e.log.Error("Failed to record reconciliation", zap.Error(err))

	if callbacks.OnError != nil {
		(*callbacks.OnError)(err)
	}
}

func (e *SignalEngineV1) logResult(result engine.Result) {
	fields := []zap.Field{
		zap.String("request_id", result.RequestID),
		zap.String("signal", result.RawSignal),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("ledger_before", result.LedgerBefore),
		zap.Int("ledger_after", result.LedgerAfter),
		zap.Int("broker_qty", result.Broker.Quantity),
		zap.Bool("broker_found", result.Broker.Found),
		zap.Any("orders", result.Report.Submitted),
		zap.Int64s("cancelled", result.Report.Cancelled),
	}

	switch {
	case result.Err == nil:
		e.log.Info("Signal reconciled", fields...)
	case errors.IsRejection(result.Err):
		e.log.Warn("Signal rejected", append(fields, zap.Error(result.Err))...)
	case errors.IsBrokerFailure(result.Err):
		e.log.Error("Signal failed at broker, exchange state may have changed",
			append(fields, zap.Stringer("code", errors.GetCode(result.Err)), zap.Error(result.Err))...)
	default:
		e.log.Error("Signal failed", append(fields, zap.Stringer("code", errors.GetCode(result.Err)), zap.Error(result.Err))...)
	}
}

func toRecord(result engine.Result) writers.Record {
	record := writers.Record{
		ID:             0,
		RequestID:      result.RequestID,
		ReceivedAt:     result.ReceivedAt,
		RawSignal:      result.RawSignal,
		Signal:         result.Signal,
		Outcome:        string(result.Outcome),
		LedgerBefore:   result.LedgerBefore,
		LedgerAfter:    result.LedgerAfter,
		BrokerQuantity: result.Broker.Quantity,
		BrokerFound:    result.Broker.Found,
		Orders:         result.Report.Submitted,
		Cancelled:      result.Report.Cancelled,
		Error:          "",
	}

	if result.Err != nil {
		record.Error = result.Err.Error()
	}

	return record
}

// Status implements engine.SignalEngine.
func (e *SignalEngineV1) Status() engine.Status {
	e.mu.RLock()
	running := e.state == stateRunning
	e.mu.RUnlock()

	cumulative := e.stats.GetCumulativeStats()

	return engine.Status{
		Running:    running,
		Provider:   e.broker.Name(),
		Instrument: e.config.Instrument,
		Ledger:     e.ledger.Read(),
		Cap:        e.ledger.Cap(),
		QueueDepth: len(e.queue),
		QueueSize:  cap(e.queue),
		Processed:  cumulative.Counters.Signals,
		Outcomes:   cumulative.Counters.Outcomes,
		Failures:   cumulative.Counters.Failures,
	}
}

// Ledger returns the committed ledger value.
func (e *SignalEngineV1) Ledger() int {
	return e.ledger.Read()
}
