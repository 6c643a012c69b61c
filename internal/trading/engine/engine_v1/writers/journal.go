package writers

import (
	"time"

	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
)

// Record is one journaled reconciliation.
type Record struct {
	ID             int64                  `json:"id"`
	RequestID      string                 `json:"request_id"`
	ReceivedAt     time.Time              `json:"received_at"`
	RawSignal      string                 `json:"raw_signal"`
	Signal         types.Signal           `json:"signal"`
	Outcome        string                 `json:"outcome"`
	LedgerBefore   int                    `json:"ledger_before"`
	LedgerAfter    int                    `json:"ledger_after"`
	BrokerQuantity int                    `json:"broker_quantity"`
	BrokerFound    bool                   `json:"broker_found"`
	Orders         []types.SubmittedOrder `json:"orders"`
	Cancelled      []int64                `json:"cancelled"`
	Error          string                 `json:"error"`
}

// Journal is an append-only audit trail of reconciliation decisions. It is
// never read back into the ledger.
type Journal interface {
	// Write appends a record.
	Write(record Record) error
	// Close flushes and releases resources.
	Close() error
}

// NopJournal discards every record.
type NopJournal struct{}

var _ Journal = NopJournal{}

func (NopJournal) Write(Record) error { return nil }

func (NopJournal) Close() error { return nil }
