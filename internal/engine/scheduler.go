package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"stock_dash/internal/service"
)

const DefaultRefreshInterval = 30 * time.Second

// Refresher runs one refresh cycle. service.StockDataManager implements it.
type Refresher interface {
	RefreshAll(ctx context.Context) service.RefreshReport
}

// Scheduler drives periodic refresh cycles. A cycle that is still running when
// the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron       *cron.Cron
	entry      cron.EntryID
	refresher  Refresher
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	started  bool
	inflight sync.WaitGroup

	cycles atomic.Uint64
	last   atomic.Pointer[service.RefreshReport]
}

// NewScheduler registers the refresh job. It does not start ticking until Start.
func NewScheduler(refresher Refresher, interval time.Duration, runOnStart bool, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "scheduler")
	cl := cronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		refresher:  refresher,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.cycle)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("register refresh job: %w", err)
	}
	s.entry = id
	return s, nil
}

// Start begins ticking. With run-on-start one cycle is triggered immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("⏱️ Scheduler started", "interval", s.interval.String())

	if s.runOnStart {
		go s.RunNow()
	}
}

// Stop stops ticking, cancels the running cycle's context and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.cancel()
		return
	}
	s.started = false
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	s.inflight.Wait()
	s.logger.Info("🛑 Scheduler stopped", "cycles", s.cycles.Load())
}

// RunNow runs one cycle through the same skip-if-running guard as the timer.
func (s *Scheduler) RunNow() {
	s.cron.Entry(s.entry).WrappedJob.Run()
}

func (s *Scheduler) cycle() {
	s.inflight.Add(1)
	defer s.inflight.Done()
	if s.ctx.Err() != nil {
		return
	}
	report := s.refresher.RefreshAll(s.ctx)
	s.cycles.Add(1)
	s.last.Store(&report)
}

// Cycles returns how many refresh cycles completed.
func (s *Scheduler) Cycles() uint64 {
	return s.cycles.Load()
}

// LastReport returns the report of the most recent cycle.
func (s *Scheduler) LastReport() (service.RefreshReport, bool) {
	r := s.last.Load()
	if r == nil {
		return service.RefreshReport{}, false
	}
	return *r, true
}

// NextRun returns when the timer fires next. Zero before Start.
func (s *Scheduler) NextRun() time.Time {
	return s.cron.Entry(s.entry).Next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
