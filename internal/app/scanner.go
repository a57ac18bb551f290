package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/internal/domain"
	"github.com/yourusername/yuna-go/pkg/logger"
)

// ErrScanInProgress is returned when a pass is requested while one runs
var ErrScanInProgress = fmt.Errorf("%w: scan already running", domain.ErrSyncInProgress)

// EntrySyncer is the part of the orchestrator the scanner drives
type EntrySyncer interface {
	Sync(ctx context.Context, entry *domain.LibraryEntry) ([]*domain.DownloadTask, error)
}

// ScanReport summarizes one scanner pass
type ScanReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Entries    int       `json:"entries"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	Tasks      int       `json:"tasks"`
	Succeeded  int       `json:"succeeded"`
}

// Scanner periodically syncs every library entry
type Scanner struct {
	repo   domain.LibraryRepository
	syncer EntrySyncer
	config domain.ScannerConfig
	log    *logger.LoggerAdapter

	mu      sync.RWMutex
	running bool
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc

	pass sync.Mutex
	last *ScanReport
}

// NewScanner creates a new scanner
func NewScanner(repo domain.LibraryRepository, syncer EntrySyncer, config domain.ScannerConfig, log *logger.LoggerAdapter) *Scanner {
	return &Scanner{
		repo:   repo,
		syncer: syncer,
		config: config,
		log:    log,
	}
}

// Start schedules a pass every configured interval and runs the first one
// right away
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scanner already running")
	}
	if s.config.Interval <= 0 {
		return fmt.Errorf("invalid scan interval: %s", s.config.Interval)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	cronLog := cronLogger{log: s.log.Scan().Sugar()}
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))

	schedule := fmt.Sprintf("@every %s", s.config.Interval)
	if _, err := s.cron.AddFunc(schedule, s.scheduled); err != nil {
		s.cancel()
		return fmt.Errorf("failed to schedule scan: %w", err)
	}
	s.cron.Start()
	s.running = true

	s.log.Scan().Info("scanner_started", zap.Duration("interval", s.config.Interval))
	go s.scheduled()
	return nil
}

// Stop stops scheduling and cancels a running pass
func (s *Scanner) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scanner not running")
	}
	s.running = false
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	cancel()
	<-c.Stop().Done()

	// a pass started outside cron exits once it sees the cancelled context
	s.pass.Lock()
	s.pass.Unlock()

	s.log.Scan().Info("scanner_stopped")
	return nil
}

// IsRunning returns whether the scanner is scheduled
func (s *Scanner) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// LastReport returns the summary of the last finished pass, nil before the
// first one
func (s *Scanner) LastReport() *ScanReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	report := *s.last
	return &report
}

// Trigger starts a pass in the background
func (s *Scanner) Trigger() error {
	if !s.pass.TryLock() {
		return ErrScanInProgress
	}

	ctx := context.Background()
	s.mu.RLock()
	if s.running {
		ctx = s.ctx
	}
	s.mu.RUnlock()

	go func() {
		defer s.pass.Unlock()
		s.runPass(ctx)
	}()
	return nil
}

// RunOnce runs a full pass and waits for it
func (s *Scanner) RunOnce(ctx context.Context) (*ScanReport, error) {
	if !s.pass.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.pass.Unlock()
	return s.runPass(ctx), nil
}

func (s *Scanner) scheduled() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Scan().Debug("scan_skipped", zap.Error(err))
	}
}

// runPass walks the library kind by kind in ScanOrder and syncs each entry
// sequentially. Errors are logged and the pass moves on.
func (s *Scanner) runPass(ctx context.Context) *ScanReport {
	report := &ScanReport{StartedAt: time.Now()}
	s.log.Scan().Info("scan_started")

kinds:
	for _, kind := range domain.ScanOrder {
		entries, err := s.repo.List(kind)
		if err != nil {
			report.Errors++
			s.log.LogError("Failed to list library", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				break
			}
			report.Entries++

			tasks, err := s.syncer.Sync(ctx, entry)
			report.Tasks += len(tasks)
			report.Succeeded += countSucceeded(tasks)

			switch {
			case errors.Is(err, ErrOrchestratorStopped):
				s.log.Scan().Info("scan_aborted", zap.String("entry", entry.Key().String()))
				break kinds
			case errors.Is(err, domain.ErrSyncInProgress):
				report.Skipped++
				s.log.Scan().Debug("entry_in_flight", zap.String("entry", entry.Key().String()))
			case err != nil:
				report.Errors++
				s.log.LogError("Sync failed during scan",
					zap.String("entry", entry.Key().String()),
					zap.Error(err))
			case len(tasks) > 0:
				s.log.Scan().Info("entry_synced",
					zap.String("entry", entry.Key().String()),
					zap.Int("tasks", len(tasks)),
					zap.Int("succeeded", countSucceeded(tasks)))
			}
		}
	}

	report.FinishedAt = time.Now()
	s.log.Scan().Info("scan_finished",
		zap.Int("entries", report.Entries),
		zap.Int("tasks", report.Tasks),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	return report
}

// cronLogger sends cron's own messages to the scan log
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
