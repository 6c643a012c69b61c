package writers

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/session"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type DecisionsWriterTestSuite struct {
	suite.Suite
	tempDir string
	session *session.SessionManager
	writer  *DecisionsWriter
	day     time.Time
}

func (s *DecisionsWriterTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.day = time.Now().Truncate(time.Second)

	log := logger.NewNopLogger()
	s.session = session.NewSessionManager(log)
	s.Require().NoError(s.session.Initialize(s.tempDir))

	s.writer = NewDecisionsWriter(s.session, log)
	s.Require().NoError(s.writer.Initialize())
}

func (s *DecisionsWriterTestSuite) TearDownTest() {
	s.Require().NoError(s.writer.Close())
}

func TestDecisionsWriterTestSuite(t *testing.T) {
	suite.Run(t, new(DecisionsWriterTestSuite))
}

func (s *DecisionsWriterTestSuite) bracketRecord(requestID string, at time.Time) Record {
	return Record{
		ID:             0,
		RequestID:      requestID,
		ReceivedAt:     at,
		RawSignal:      "long entry",
		Signal:         types.SignalLongEntry,
		Outcome:        "bracket_entry",
		LedgerBefore:   0,
		LedgerAfter:    1,
		BrokerQuantity: 0,
		BrokerFound:    false,
		Orders: []types.SubmittedOrder{
			{OrderID: 1, Order: types.Order{Role: types.OrderRoleEntry, Side: types.SideBuy, Type: types.OrderTypeMarket, Quantity: 1, OutsideRTH: true}},
			{OrderID: 2, Order: types.Order{Role: types.OrderRoleStopLoss, Side: types.SideSell, Type: types.OrderTypeStop, Quantity: 1, StopPrice: decimal.RequireFromString("19970"), OutsideRTH: true}},
		},
		Cancelled: nil,
		Error:     "",
	}
}

func (s *DecisionsWriterTestSuite) parquetCount(path string) int {
	db, err := sql.Open("duckdb", ":memory:")
	s.Require().NoError(err)

	defer db.Close()

	var count int

	err = db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM read_parquet('%s')", path)).Scan(&count)
	s.Require().NoError(err)

	return count
}

func (s *DecisionsWriterTestSuite) TestWrite_ExportsParquet() {
	s.Require().NoError(s.writer.Write(s.bracketRecord("req-1", s.day)))

	path := s.writer.GetOutputPath()
	s.Equal(filepath.Join(s.session.GetCurrentRunPath(), DecisionsFileName), path)
	s.FileExists(path)
	s.Equal(1, s.parquetCount(path))

	s.Require().NoError(s.writer.Write(s.bracketRecord("req-2", s.day)))
	s.Equal(2, s.parquetCount(path))
}

func (s *DecisionsWriterTestSuite) TestRecords_RoundTrip() {
	exit := Record{
		RequestID:      "req-2",
		ReceivedAt:     s.day.Add(time.Second),
		RawSignal:      "LONG_EXIT",
		Signal:         types.SignalLongExit,
		Outcome:        "market_exit",
		LedgerBefore:   1,
		LedgerAfter:    0,
		BrokerQuantity: 1,
		BrokerFound:    true,
		Orders: []types.SubmittedOrder{
			{OrderID: 3, Order: types.Order{Role: types.OrderRoleExit, Side: types.SideSell, Type: types.OrderTypeMarket, Quantity: 1, OutsideRTH: true}},
		},
		Cancelled: []int64{2},
	}

	s.Require().NoError(s.writer.Write(s.bracketRecord("req-1", s.day)))
	s.Require().NoError(s.writer.Write(exit))

	records, err := s.writer.Records()
	s.Require().NoError(err)
	s.Require().Len(records, 2)

	s.Equal(int64(1), records[0].ID)
	s.Equal(int64(2), records[1].ID)

	first := records[0]
	s.Equal("req-1", first.RequestID)
	s.Equal(types.SignalLongEntry, first.Signal)
	s.True(s.day.Equal(first.ReceivedAt))
	s.Require().Len(first.Orders, 2)
	s.Equal(types.OrderTypeStop, first.Orders[1].Order.Type)
	s.True(decimal.RequireFromString("19970").Equal(first.Orders[1].Order.StopPrice))
	s.Empty(first.Cancelled)

	second := records[1]
	s.Equal("LONG_EXIT", second.RawSignal)
	s.Equal(1, second.BrokerQuantity)
	s.True(second.BrokerFound)
	s.Equal([]int64{2}, second.Cancelled)
	s.Equal(0, second.LedgerAfter)
}

func (s *DecisionsWriterTestSuite) TestWrite_RejectionKeepsError() {
	record := Record{
		RequestID:    "req-9",
		ReceivedAt:   s.day,
		RawSignal:    "hold",
		Signal:       types.SignalInvalid,
		Outcome:      "invalid_signal",
		LedgerBefore: 3,
		LedgerAfter:  3,
		Error:        "[200] invalid signal",
	}

	s.Require().NoError(s.writer.Write(record))

	records, err := s.writer.Records()
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal("[200] invalid signal", records[0].Error)
	s.Nil(records[0].Orders)
}

func (s *DecisionsWriterTestSuite) TestWrite_DateBoundaryStartsNewFile() {
	s.Require().NoError(s.writer.Write(s.bracketRecord("req-1", s.day)))
	s.Require().NoError(s.writer.Write(s.bracketRecord("req-2", s.day)))

	firstPath := s.writer.GetOutputPath()

	s.Require().NoError(s.writer.Write(s.bracketRecord("req-3", s.day.AddDate(0, 0, 1))))

	secondPath := s.writer.GetOutputPath()
	s.NotEqual(firstPath, secondPath)
	s.Equal(2, s.parquetCount(firstPath))
	s.Equal(1, s.parquetCount(secondPath))

	count, err := s.writer.Count()
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *DecisionsWriterTestSuite) TestNotInitialized() {
	w := NewDecisionsWriter(s.session, logger.NewNopLogger())

	err := w.Write(s.bracketRecord("req-1", s.day))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeJournalWriteFailed))

	_, err = w.Records()
	s.True(errors.HasCode(err, errors.ErrCodeJournalWriteFailed))

	_, err = w.Count()
	s.True(errors.HasCode(err, errors.ErrCodeJournalWriteFailed))

	s.NoError(w.Close())
}

func (s *DecisionsWriterTestSuite) TestNopJournal() {
	var journal Journal = NopJournal{}

	s.NoError(journal.Write(s.bracketRecord("req-1", s.day)))
	s.NoError(journal.Close())
}
