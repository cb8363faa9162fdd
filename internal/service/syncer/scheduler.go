package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"bytepad-backend/internal/config"
	"bytepad-backend/internal/infrastructure/observability"
)

// SmartSyncer runs one smart sync.
type SmartSyncer interface {
	SmartSync(ctx context.Context) (*Result, error)
}

// Scheduler runs smart sync on a fixed interval while auto-sync is enabled
// and credentials are present.
type Scheduler struct {
	syncer      SmartSyncer
	intervalFor func(config.SyncConfig) time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration

	collector *observability.Collector
	logger    *zap.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithIntervalFunc overrides how the tick interval is derived from the
// sync configuration.
func WithIntervalFunc(fn func(config.SyncConfig) time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.intervalFor = fn }
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(syncer SmartSyncer, collector *observability.Collector, logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		syncer:      syncer,
		intervalFor: config.SyncConfig.Interval,
		collector:   collector,
		logger:      logger.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Running reports whether the scheduler has an active timer.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start begins periodic syncing when cfg enables it. It returns whether the
// scheduler is running afterwards. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(cfg config.SyncConfig) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(cfg)
}

// Stop halts periodic syncing and waits for an in-flight tick to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Reconfigure stops the scheduler and starts it again if cfg allows.
func (s *Scheduler) Reconfigure(cfg config.SyncConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.startLocked(cfg)
}

// Run starts the scheduler with cfg and stops it when ctx is done.
func (s *Scheduler) Run(ctx context.Context, cfg config.SyncConfig) error {
	s.Start(cfg)
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Scheduler) startLocked(cfg config.SyncConfig) bool {
	if s.cancel != nil {
		return true
	}
	if !cfg.AutoSyncReady() {
		s.logger.Debug("Auto-sync not started",
			zap.Bool("auto_sync", cfg.AutoSync),
			zap.Bool("has_credentials", cfg.HasCredentials()),
		)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.interval = s.intervalFor(cfg)

	go s.loop(ctx, s.interval, s.done)
	s.logger.Info("Auto-sync started", zap.Duration("interval", s.interval))
	return true
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.logger.Info("Auto-sync stopped")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one smart sync. Failures are logged and never stop the loop.
func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.syncer.SmartSync(ctx)
	if err != nil {
		s.collector.RecordSchedulerTick("error")
		s.logger.Warn("Scheduled sync failed", zap.Error(err))
		return
	}
	s.collector.RecordSchedulerTick("success")
	s.logger.Debug("Scheduled sync finished",
		zap.String("action", string(res.Action)),
		zap.Int("local_items", res.LocalItems),
		zap.Int("remote_items", res.RemoteItems),
	)
}
