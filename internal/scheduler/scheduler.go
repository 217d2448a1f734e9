// Package scheduler runs periodic background jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"lms-backend/internal/usecase"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

func New(log *zap.Logger) *Scheduler {
	log = log.With(zap.String("component", "scheduler"))
	cl := cronLogger{log.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// AddReconciler schedules the pending-enrollment sweep. Each run is bounded
// by timeout.
func (s *Scheduler) AddReconciler(spec string, svc usecase.ReconcileService, timeout time.Duration) error {
	if _, err := s.cron.AddFunc(spec, s.reconcileJob(svc, timeout)); err != nil {
		return fmt.Errorf("schedule reconciler %q: %w", spec, err)
	}
	s.log.Info("Reconciler scheduled", zap.String("schedule", spec))
	return nil
}

func (s *Scheduler) reconcileJob(svc usecase.ReconcileService, timeout time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()

		if _, err := svc.ReconcilePending(ctx); err != nil {
			s.log.Error("Reconciliation run failed", zap.Error(err))
		}
	}
}

// Run starts the cron loop and blocks until ctx is done, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()

	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
