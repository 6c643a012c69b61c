package stats

import (
	"os"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Observation is what the tracker needs to know about one reconciliation.
type Observation struct {
	At          time.Time
	Outcome     string
	Submitted   int
	Cancelled   int
	Failed      bool
	Unprotected bool
	LedgerAfter int
}

// Counters are running totals over a period.
type Counters struct {
	Signals         int            `yaml:"signals" json:"signals"`
	Outcomes        map[string]int `yaml:"outcomes" json:"outcomes"`
	OrdersSubmitted int            `yaml:"orders_submitted" json:"orders_submitted"`
	OrdersCancelled int            `yaml:"orders_cancelled" json:"orders_cancelled"`
	Failures        int            `yaml:"failures" json:"failures"`
	Unprotected     int            `yaml:"unprotected" json:"unprotected"`
}

// SessionStats is the content of stats.yaml.
type SessionStats struct {
	RunID        string    `yaml:"run_id" json:"run_id"`
	Date         string    `yaml:"date" json:"date"`
	SessionStart time.Time `yaml:"session_start" json:"session_start"`
	LastUpdated  time.Time `yaml:"last_updated" json:"last_updated"`
	LastSignalAt time.Time `yaml:"last_signal_at" json:"last_signal_at"`
	Instrument   string    `yaml:"instrument" json:"instrument"`
	Provider     string    `yaml:"provider" json:"provider"`
	Ledger       int       `yaml:"ledger" json:"ledger"`
	JournalPath  string    `yaml:"journal_path" json:"journal_path"`
	Counters     Counters  `yaml:"counters" json:"counters"`
}

// StatsTracker keeps daily and cumulative reconciliation counters.
type StatsTracker struct {
	runID        string
	sessionStart time.Time
	currentDate  string
	instrument   string
	provider     string
	ledger       int
	lastSignalAt time.Time

	// Daily counters (reset on date boundary)
	daily *Counters

	// Cumulative counters (from session start)
	cumulative *Counters

	journalPath     string
	statsOutputPath string

	mu     sync.Mutex
	logger *logger.Logger
}

// NewStatsTracker creates a new StatsTracker instance.
func NewStatsTracker(log *logger.Logger) *StatsTracker {
	return &StatsTracker{
		runID:           "",
		sessionStart:    time.Time{},
		currentDate:     "",
		instrument:      "",
		provider:        "",
		ledger:          0,
		lastSignalAt:    time.Time{},
		daily:           newCounters(),
		cumulative:      newCounters(),
		journalPath:     "",
		statsOutputPath: "",
		mu:              sync.Mutex{},
		logger:          log.Named("stats"),
	}
}

func newCounters() *Counters {
	return &Counters{
		Signals:         0,
		Outcomes:        map[string]int{},
		OrdersSubmitted: 0,
		OrdersCancelled: 0,
		Failures:        0,
		Unprotected:     0,
	}
}

// Initialize sets up the tracker with session information.
func (s *StatsTracker) Initialize(runID string, sessionStart time.Time, instrument, provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runID = runID
	s.sessionStart = sessionStart
	s.currentDate = sessionStart.Format(dateLayout)
	s.instrument = instrument
	s.provider = provider

	s.logger.Info("Stats tracker initialized",
		zap.String("run_id", runID),
		zap.String("instrument", instrument),
		zap.String("provider", provider),
	)
}

// SetFilePaths sets where stats.yaml is written and the journal it refers to.
// An empty statsPath disables WriteStatsYAML.
func (s *StatsTracker) SetFilePaths(journalPath, statsPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journalPath = journalPath
	s.statsOutputPath = statsPath
}

// Record adds one reconciliation. An observation on a new date resets the
// daily counters first.
func (s *StatsTracker) Record(obs Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if date := obs.At.Format(dateLayout); s.currentDate != "" && date != s.currentDate {
		s.resetDaily(date)
	} else if s.currentDate == "" {
		s.currentDate = date
	}

	s.update(s.daily, obs)
	s.update(s.cumulative, obs)

	s.ledger = obs.LedgerAfter
	s.lastSignalAt = obs.At

	s.logger.Debug("Reconciliation recorded",
		zap.String("outcome", obs.Outcome),
		zap.Int("signals", s.cumulative.Signals),
	)
}

//nolint:funcorder // helper method used by Record
func (s *StatsTracker) update(acc *Counters, obs Observation) {
	acc.Signals++
	acc.OrdersSubmitted += obs.Submitted
	acc.OrdersCancelled += obs.Cancelled

	if obs.Outcome != "" {
		acc.Outcomes[obs.Outcome]++
	}

	if obs.Failed {
		acc.Failures++
	}

	if obs.Unprotected {
		acc.Unprotected++
	}
}

// HandleDateBoundary resets daily counters while keeping cumulative ones.
func (s *StatsTracker) HandleDateBoundary(newDate string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetDaily(newDate)
}

//nolint:funcorder // helper method used by Record and HandleDateBoundary
func (s *StatsTracker) resetDaily(newDate string) {
	oldDate := s.currentDate
	s.currentDate = newDate
	s.daily = newCounters()

	s.logger.Info("Date boundary handled, daily stats reset",
		zap.String("old_date", oldDate),
		zap.String("new_date", newDate),
	)
}

// GetDailyStats returns the statistics of the current date.
func (s *StatsTracker) GetDailyStats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.build(s.daily, s.currentDate)
}

// GetCumulativeStats returns the statistics since session start.
func (s *StatsTracker) GetCumulativeStats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.build(s.cumulative, s.sessionStart.Format(dateLayout))
}

//nolint:funcorder // helper method used by the getters and WriteStatsYAML
func (s *StatsTracker) build(acc *Counters, date string) SessionStats {
	outcomes := make(map[string]int, len(acc.Outcomes))
	for k, v := range acc.Outcomes {
		outcomes[k] = v
	}

	counters := *acc
	counters.Outcomes = outcomes

	return SessionStats{
		RunID:        s.runID,
		Date:         date,
		SessionStart: s.sessionStart,
		LastUpdated:  time.Now(),
		LastSignalAt: s.lastSignalAt,
		Instrument:   s.instrument,
		Provider:     s.provider,
		Ledger:       s.ledger,
		JournalPath:  s.journalPath,
		Counters:     counters,
	}
}

// WriteStatsYAML writes the cumulative statistics to stats.yaml.
func (s *StatsTracker) WriteStatsYAML() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statsOutputPath == "" {
		return nil
	}

	data, err := yaml.Marshal(s.build(s.cumulative, s.currentDate))
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to marshal stats", err)
	}

	if err := os.WriteFile(s.statsOutputPath, data, 0644); err != nil {
		return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to write %s", s.statsOutputPath)
	}

	return nil
}

// ReadStatsYAML loads a stats file written by WriteStatsYAML.
func ReadStatsYAML(path string) (SessionStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SessionStats{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "failed to read %s", path)
	}

	var stats SessionStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return SessionStats{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "failed to parse %s", path)
	}

	return stats, nil
}

// GetStatsOutputPath returns the stats output path.
func (s *StatsTracker) GetStatsOutputPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.statsOutputPath
}

// GetCurrentDate returns the current date.
func (s *StatsTracker) GetCurrentDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentDate
}

// GetRunID returns the run ID.
func (s *StatsTracker) GetRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runID
}
