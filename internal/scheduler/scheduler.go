// Package scheduler runs the hourly portfolio snapshot job.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tomasdev42/crypto-portfolio/internal/metrics"
	"github.com/tomasdev42/crypto-portfolio/internal/portfolio"
)

// HourlySchedule fires at minute zero of every hour.
const HourlySchedule = "0 * * * *"

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// UserLister enumerates the users to snapshot.
type UserLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Snapshotter records one user's valuation.
type Snapshotter interface {
	RecordSnapshot(ctx context.Context, userID string) (portfolio.Snapshot, error)
}

// Result summarises one run over every user.
type Result struct {
	Users   int
	Failed  int
	Elapsed time.Duration
}

// Scheduler owns the single repeating snapshot task. A run that is still in
// progress when the next one is due causes that firing to be skipped. A
// stopped scheduler can be started again.
type Scheduler struct {
	users     UserLister
	snapshots Snapshotter
	metrics   *metrics.Collectors
	logger    *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// New builds a stopped scheduler.
func New(users UserLister, snapshots Snapshotter, m *metrics.Collectors, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		users:     users,
		snapshots: snapshots,
		metrics:   m,
		logger:    logger,
	}
}

// Start registers the hourly job on a fresh cron loop and starts it.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrAlreadyStarted
	}

	clog := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := c.AddFunc(HourlySchedule, func() { s.RunOnce(ctx) }); err != nil {
		cancel()
		return err
	}
	c.Start()
	s.cron = c
	s.cancel = cancel
	s.logger.Info("snapshot scheduler started", slog.String("schedule", HourlySchedule))
	return nil
}

// Stop cancels any running job and waits for it to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	cancel()
	select {
	case <-c.Stop().Done():
		s.logger.Info("snapshot scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// entries reports the jobs registered on the running cron loop.
func (s *Scheduler) entries() []cron.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	return s.cron.Entries()
}

// RunOnce snapshots every user sequentially. A failing user is logged and
// counted; the remaining users are still processed.
func (s *Scheduler) RunOnce(ctx context.Context) Result {
	start := time.Now()
	var res Result

	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		s.logger.Error("snapshot run could not list users", slog.Any("error", err))
		res.Elapsed = time.Since(start)
		s.metrics.SnapshotRun(res.Elapsed, 0)
		return res
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			s.logger.Warn("snapshot run interrupted", slog.Int("remaining", len(ids)-res.Users))
			break
		}
		res.Users++
		if _, err := s.snapshots.RecordSnapshot(ctx, id); err != nil {
			res.Failed++
			s.logger.Warn("snapshot failed", slog.String("user_id", id), slog.Any("error", err))
		}
	}

	res.Elapsed = time.Since(start)
	s.metrics.SnapshotRun(res.Elapsed, res.Failed)
	s.logger.Info("snapshot run completed",
		slog.Int("users", res.Users),
		slog.Int("failed", res.Failed),
		slog.Duration("elapsed", res.Elapsed))
	return res
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
