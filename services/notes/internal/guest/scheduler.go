package guest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper is the work a Scheduler runs on every tick.
type Sweeper interface {
	RunMaintenanceSweepOnce(ctx context.Context) error
}

// Scheduler runs the maintenance sweep once at start and then on a fixed
// interval. A tick that fires while a sweep is still running is dropped.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics

	cron     *cron.Cron
	job      cron.Job
	running  atomic.Bool
	inflight sync.WaitGroup
	start    sync.Once
}

// NewScheduler builds a stopped scheduler. Zero interval means the default.
func NewScheduler(sweeper Sweeper, interval time.Duration, logger *slog.Logger, metrics *Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	s := &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With("component", "guest_scheduler"),
		metrics:  metrics,
	}
	clog := cronLogger{logger: s.logger}
	s.cron = cron.New(cron.WithLogger(clog))
	s.job = cron.NewChain(cron.Recover(clog), s.skipIfRunning()).Then(cron.FuncJob(s.sweep))
	return s
}

// Start runs one sweep right away and arms the recurring schedule.
func (s *Scheduler) Start() {
	s.start.Do(func() {
		s.cron.Schedule(cron.Every(s.interval), s.job)
		s.cron.Start()
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.job.Run()
		}()
		s.logger.Info("guest maintenance scheduled", "interval", s.interval.String())
	})
}

// trigger runs a tick synchronously, subject to the same overlap rule. It must
// not race with Stop.
func (s *Scheduler) trigger() {
	s.inflight.Add(1)
	defer s.inflight.Done()
	s.job.Run()
}

// Stop disarms the schedule and waits for an in-flight sweep to finish or
// ctx to expire. The sweep itself is never cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) sweep() {
	_ = s.sweeper.RunMaintenanceSweepOnce(context.Background())
}

func (s *Scheduler) skipIfRunning() cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			if !s.running.CompareAndSwap(false, true) {
				s.metrics.sweeps.WithLabelValues("skipped").Inc()
				s.logger.Info("guest sweep still running, skipping tick")
				return
			}
			defer s.running.Store(false)
			j.Run()
		})
	}
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
