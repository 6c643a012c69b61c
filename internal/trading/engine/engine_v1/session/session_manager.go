package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// ManifestFileName is written in every run folder once a manifest is set.
const ManifestFileName = "session.yaml"

var runPattern = regexp.MustCompile(`^run_(\d+)$`)

// Manifest describes the bridge process that owns a run folder.
type Manifest struct {
	RunID      string    `yaml:"run_id"`
	Version    string    `yaml:"version"`
	Instrument string    `yaml:"instrument"`
	Provider   string    `yaml:"provider"`
	Cap        int       `yaml:"cap"`
	StopTicks  int       `yaml:"stop_ticks"`
	TickSize   float64   `yaml:"tick_size"`
	StartedAt  time.Time `yaml:"started_at"`
	PID        int       `yaml:"pid"`
}

// RotateFunc is told the new run folder after a date boundary.
type RotateFunc func(runPath string)

// SessionManager owns the journal folder of one bridge process:
//
//	{journalDir}/{YYYY-MM-DD}/run_N/
//
// N is chosen at start-up as one more than the highest run of the day. When a
// decision is recorded on a later date the same run id is reused under the
// new date folder.
type SessionManager struct {
	journalDir   string
	runNumber    int
	sessionStart time.Time
	date         string
	runPath      string
	manifest     *Manifest
	listeners    []RotateFunc
	now          func() time.Time
	mu           sync.Mutex
	logger       *logger.Logger
}

// NewSessionManager creates a new SessionManager instance.
func NewSessionManager(log *logger.Logger) *SessionManager {
	return &SessionManager{
		journalDir:   "",
		runNumber:    0,
		sessionStart: time.Time{},
		date:         "",
		runPath:      "",
		manifest:     nil,
		listeners:    nil,
		now:          time.Now,
		mu:           sync.Mutex{},
		logger:       log.Named("session"),
	}
}

// Initialize picks the run number for today under journalDir and creates the
// run folder.
func (s *SessionManager) Initialize(journalDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if journalDir == "" {
		return errors.New(errors.ErrCodeJournalInitFailed, "journal directory is empty")
	}

	s.journalDir = journalDir
	s.sessionStart = s.now()
	s.date = s.sessionStart.Format(dateLayout)

	runNumber, err := highestRun(filepath.Join(journalDir, s.date))
	if err != nil {
		return err
	}

	s.runNumber = runNumber + 1

	if err := s.enterRunFolder(); err != nil {
		return err
	}

	s.logger.Info("Journal session initialized",
		zap.String("run_id", s.runID()),
		zap.String("date", s.date),
		zap.String("path", s.runPath),
	)

	return nil
}

// WriteManifest stores m (with the run id filled in) and writes it to the
// current run folder. The manifest is written again into every folder the
// session rotates to.
func (s *SessionManager) WriteManifest(m Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runPath == "" {
		return errors.New(errors.ErrCodeJournalInitFailed, "session not initialized")
	}

	m.RunID = s.runID()
	s.manifest = &m

	return s.writeManifest()
}

// OnRotate registers fn to be called after every date boundary.
func (s *SessionManager) OnRotate(fn RotateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

// HandleDateBoundary moves the run folder to timestamp's date if it differs
// from the current one and reports whether it did. Rotation listeners run
// after the move, outside the manager's lock.
func (s *SessionManager) HandleDateBoundary(timestamp time.Time) (bool, error) {
	s.mu.Lock()

	date := timestamp.Format(dateLayout)
	if date == s.date {
		s.mu.Unlock()

		return false, nil
	}

	previous := s.date
	s.date = date

	if err := s.enterRunFolder(); err != nil {
		s.mu.Unlock()

		return false, err
	}

	runPath := s.runPath
	listeners := append([]RotateFunc(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Info("Date boundary crossed, journal moved to new folder",
		zap.String("old_date", previous),
		zap.String("new_date", date),
		zap.String("new_path", runPath),
	)

	for _, fn := range listeners {
		fn(runPath)
	}

	return true, nil
}

// GetCurrentRunPath returns the current run folder path.
func (s *SessionManager) GetCurrentRunPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runPath
}

// GetRunID returns the session run ID (e.g., "run_1").
func (s *SessionManager) GetRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runID()
}

// GetRunNumber returns the numeric run number.
func (s *SessionManager) GetRunNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runNumber
}

// GetCurrentDate returns the current date in YYYY-MM-DD format.
func (s *SessionManager) GetCurrentDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.date
}

// GetFilePath returns the full path for a file in the current run folder.
func (s *SessionManager) GetFilePath(filename string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filepath.Join(s.runPath, filename)
}

// ReadManifest loads the manifest of a run folder.
func ReadManifest(runPath string) (Manifest, error) {
	path := filepath.Join(runPath, ManifestFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "failed to read %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "failed to parse %s", path)
	}

	return m, nil
}

//nolint:funcorder // helper used under the lock
func (s *SessionManager) runID() string {
	return fmt.Sprintf("run_%d", s.runNumber)
}

// enterRunFolder creates the folder for the current date and run and writes
// the manifest into it when one is set. Callers hold the lock.
//
//nolint:funcorder // helper used by Initialize and HandleDateBoundary
func (s *SessionManager) enterRunFolder() error {
	s.runPath = filepath.Join(s.journalDir, s.date, s.runID())

	if err := os.MkdirAll(s.runPath, 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeJournalInitFailed, err, "failed to create run folder %s", s.runPath)
	}

	if s.manifest == nil {
		return nil
	}

	return s.writeManifest()
}

//nolint:funcorder // helper used under the lock
func (s *SessionManager) writeManifest() error {
	data, err := yaml.Marshal(s.manifest)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to encode session manifest", err)
	}

	path := filepath.Join(s.runPath, ManifestFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to write %s", path)
	}

	return nil
}

// highestRun returns the highest N among the run_N folders of datePath, 0
// when there are none.
func highestRun(datePath string) (int, error) {
	entries, err := os.ReadDir(datePath)
	if os.IsNotExist(err) {
		return 0, nil
	}

	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeJournalInitFailed, err, "failed to read %s", datePath)
	}

	highest := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		matches := runPattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}

		if n, err := strconv.Atoi(matches[1]); err == nil {
			highest = max(highest, n)
		}
	}

	return highest, nil
}
