package engine

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-signal-bridge/internal/reconcile"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
)

// Default configuration values.
const (
	DefaultQueueSize      = 64
	DefaultRequestTimeout = 5 * time.Second
)

// Lifecycle callback types for the signal engine.

// OnEngineStartCallback is called when the worker starts. Returning an error
// stops the engine before any signal is processed.
type OnEngineStartCallback func(instrument types.Instrument, provider string) error

// OnEngineStopCallback is called when the engine stops (always called via defer).
type OnEngineStopCallback func(err error)

// OnResultCallback is called after every reconciliation, accepted or not.
type OnResultCallback func(result Result)

// OnErrorCallback is called when a non-fatal error occurs outside a
// reconciliation, such as a journal write failure.
type OnErrorCallback func(err error)

// SignalEngineCallbacks holds all lifecycle callback functions for the signal engine.
// All fields are pointers - nil means no callback will be invoked.
type SignalEngineCallbacks struct {
	// OnEngineStart is called when the worker starts.
	OnEngineStart *OnEngineStartCallback

	// OnEngineStop is called when the engine stops (always called via defer).
	OnEngineStop *OnEngineStopCallback

	// OnResult is called after every reconciliation.
	OnResult *OnResultCallback

	// OnError is called when a non-fatal error occurs.
	OnError *OnErrorCallback
}

// SignalEngineConfig holds the configuration for the signal engine.
type SignalEngineConfig struct {
	// Instrument is the single contract the engine trades.
	Instrument types.Instrument

	// Params are the risk parameters handed to every reconciliation.
	Params reconcile.Params

	// QueueSize is the capacity of the request queue.
	QueueSize int

	// RequestTimeout bounds every broker call.
	RequestTimeout time.Duration
}

// Result is the outcome of one reconciliation.
type Result struct {
	RequestID  string
	RawSignal  string
	Signal     types.Signal
	ReceivedAt time.Time

	// Outcome is empty when the reconciliation was aborted before a decision
	// (broker unreachable, engine stopped).
	Outcome      reconcile.Outcome
	LedgerBefore int
	LedgerAfter  int
	Broker       types.PositionSnapshot
	Report       reconcile.ExecutionReport

	// Err is nil only when the signal was fully acted on.
	Err error
}

// Status is a point-in-time view of the engine for status endpoints.
type Status struct {
	Running    bool             `json:"running"`
	Provider   string           `json:"provider"`
	Instrument types.Instrument `json:"instrument"`
	Ledger     int              `json:"ledger"`
	Cap        int              `json:"cap"`
	QueueDepth int              `json:"queue_depth"`
	QueueSize  int              `json:"queue_size"`
	Processed  int              `json:"processed"`
	Outcomes   map[string]int   `json:"outcomes"`
	Failures   int              `json:"failures"`
}

// SignalEngine serializes signal reconciliation against one broker.
type SignalEngine interface {
	// Enqueue schedules raw for reconciliation and returns its request id
	// without waiting for the outcome.
	Enqueue(ctx context.Context, raw string) (string, error)

	// Process schedules raw and blocks until its result is available or ctx
	// is done. A request that was queued keeps its place when ctx ends early.
	Process(ctx context.Context, raw string) Result

	// Run starts the worker. Blocks until ctx is cancelled; requests still
	// queued at that point complete with an engine stopped error.
	Run(ctx context.Context, callbacks SignalEngineCallbacks) error

	// Status returns the current engine status.
	Status() Status
}
