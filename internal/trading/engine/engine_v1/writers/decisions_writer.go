package writers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/session"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"go.uber.org/zap"
)

// DecisionsFileName is the parquet file written in every run folder.
const DecisionsFileName = "decisions.parquet"

var decisionColumns = []string{
	"id", "request_id", "received_at", "raw_signal", "signal", "outcome",
	"ledger_before", "ledger_after", "broker_quantity", "broker_found",
	"orders", "cancelled", "error",
}

// DecisionsWriter keeps the decisions of the current run in an in-memory
// DuckDB table and re-exports them to parquet after every write.
type DecisionsWriter struct {
	db      *sql.DB
	sq      squirrel.StatementBuilderType
	session *session.SessionManager
	mu      sync.Mutex
	log     *logger.Logger
}

var _ Journal = (*DecisionsWriter)(nil)

// NewDecisionsWriter creates a writer exporting into the run folders of sm.
// sm must already be initialized.
func NewDecisionsWriter(sm *session.SessionManager, log *logger.Logger) *DecisionsWriter {
	return &DecisionsWriter{
		db:      nil,
		sq:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		session: sm,
		mu:      sync.Mutex{},
		log:     log.Named("journal"),
	}
}

// Initialize opens DuckDB and creates the decisions table.
func (w *DecisionsWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalInitFailed, "failed to open DuckDB connection", err)
	}

	_, err = db.Exec(`CREATE SEQUENCE IF NOT EXISTS decision_id_seq START 1`)
	if err != nil {
		db.Close()

		return errors.Wrap(errors.ErrCodeJournalInitFailed, "failed to create sequence", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS decisions (
			id BIGINT PRIMARY KEY,
			request_id TEXT,
			received_at TIMESTAMP,
			raw_signal TEXT,
			signal TEXT,
			outcome TEXT,
			ledger_before INTEGER,
			ledger_after INTEGER,
			broker_quantity INTEGER,
			broker_found BOOLEAN,
			orders TEXT,
			cancelled TEXT,
			error TEXT
		)
	`)
	if err != nil {
		db.Close()

		return errors.Wrap(errors.ErrCodeJournalInitFailed, "failed to create decisions table", err)
	}

	w.db = db

	return nil
}

// Write inserts record and exports the table. A record on a new date moves
// the export to that date's folder and restarts the table empty; the previous
// folder keeps its last export.
func (w *DecisionsWriter) Write(record Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeJournalWriteFailed, "writer not initialized")
	}

	if err := w.rotate(record); err != nil {
		return err
	}

	var id int64
	if err := w.db.QueryRow("SELECT nextval('decision_id_seq')").Scan(&id); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to get next decision id", err)
	}

	orders, err := json.Marshal(record.Orders)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to encode orders", err)
	}

	cancelled, err := json.Marshal(record.Cancelled)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to encode cancelled orders", err)
	}

	_, err = w.sq.
		Insert("decisions").
		Columns(decisionColumns...).
		Values(id, record.RequestID, record.ReceivedAt, record.RawSignal, string(record.Signal), record.Outcome,
			record.LedgerBefore, record.LedgerAfter, record.BrokerQuantity, record.BrokerFound,
			string(orders), string(cancelled), record.Error).
		RunWith(w.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to insert decision %s", record.RequestID)
	}

	return w.exportToParquet()
}

// Records returns the decisions of the current date in id order.
func (w *DecisionsWriter) Records() ([]Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return nil, errors.New(errors.ErrCodeJournalWriteFailed, "writer not initialized")
	}

	rows, err := w.sq.
		Select(decisionColumns...).
		From("decisions").
		OrderBy("id ASC").
		RunWith(w.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to query decisions", err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		var (
			record    Record
			signal    string
			orders    string
			cancelled string
		)

		err := rows.Scan(
			&record.ID, &record.RequestID, &record.ReceivedAt, &record.RawSignal, &signal, &record.Outcome,
			&record.LedgerBefore, &record.LedgerAfter, &record.BrokerQuantity, &record.BrokerFound,
			&orders, &cancelled, &record.Error,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to scan decision", err)
		}

		record.Signal = types.Signal(signal)

		if err := json.Unmarshal([]byte(orders), &record.Orders); err != nil {
			return nil, errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to decode orders", err)
		}

		if err := json.Unmarshal([]byte(cancelled), &record.Cancelled); err != nil {
			return nil, errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to decode cancelled orders", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to iterate decisions", err)
	}

	return records, nil
}

// Count returns the number of decisions of the current date.
func (w *DecisionsWriter) Count() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return 0, errors.New(errors.ErrCodeJournalWriteFailed, "writer not initialized")
	}

	var count int

	err := w.sq.Select("COUNT(*)").From("decisions").RunWith(w.db).QueryRow().Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to count decisions", err)
	}

	return count, nil
}

// GetOutputPath returns the parquet file of the current run folder.
func (w *DecisionsWriter) GetOutputPath() string {
	return w.session.GetFilePath(DecisionsFileName)
}

// Close releases database resources.
func (w *DecisionsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return nil
	}

	err := w.db.Close()
	w.db = nil

	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to close database", err)
	}

	return nil
}

//nolint:funcorder // helper method used by Write
func (w *DecisionsWriter) rotate(record Record) error {
	previous := w.session.GetFilePath(DecisionsFileName)

	crossed, err := w.session.HandleDateBoundary(record.ReceivedAt)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to rotate journal folder", err)
	}

	if !crossed {
		return nil
	}

	if _, err := w.db.Exec(`DELETE FROM decisions`); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to reset decisions table", err)
	}

	w.log.Info("Decision journal rotated",
		zap.String("previous", previous),
		zap.String("current", w.session.GetFilePath(DecisionsFileName)),
	)

	return nil
}

//nolint:funcorder // helper method used by Write
func (w *DecisionsWriter) exportToParquet() error {
	path := strings.ReplaceAll(w.session.GetFilePath(DecisionsFileName), "'", "''")

	_, err := w.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM decisions ORDER BY id ASC)
		TO '%s' (FORMAT PARQUET)
	`, path))
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to export decisions to parquet", err)
	}

	return nil
}
