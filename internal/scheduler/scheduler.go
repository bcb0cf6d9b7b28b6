package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"dasa-hub/internal/metrics"
)

const (
	DefaultReconcileSpec = "0 */15 * * * *"
	DefaultSweepSpec     = "0 30 2 * * *"
	DefaultBackfillSpec  = "0 0 3 * * *"

	defaultLockTTL    = 5 * time.Minute
	defaultJobTimeout = 2 * time.Minute
)

type AnnouncementTask interface {
	Reconcile(ctx context.Context) error
	SweepUnlinked(ctx context.Context) error
	Backfill(ctx context.Context) error
}

type Config struct {
	ReconcileSpec string
	SweepSpec     string
	BackfillSpec  string
	// LockTTL bounds how long a replica holds a job lock if it dies
	// mid-run.
	LockTTL time.Duration
}

type Deps struct {
	AnnouncementJob AnnouncementTask
	// Locker is optional; without it every replica runs every job.
	Locker Locker
}

func NewScheduler(cfg Config, deps Deps, logger *zap.Logger) (*cron.Cron, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	if deps.AnnouncementJob == nil {
		return c, nil
	}

	jobs := []struct {
		name string
		spec string
		def  string
		fn   func(context.Context) error
	}{
		{"announcement.reconcile", cfg.ReconcileSpec, DefaultReconcileSpec, deps.AnnouncementJob.Reconcile},
		{"announcement.sweep_unlinked", cfg.SweepSpec, DefaultSweepSpec, deps.AnnouncementJob.SweepUnlinked},
		{"announcement.backfill", cfg.BackfillSpec, DefaultBackfillSpec, deps.AnnouncementJob.Backfill},
	}
	for _, job := range jobs {
		spec := job.spec
		if spec == "" {
			spec = job.def
		}
		runner := &jobRunner{name: job.name, fn: job.fn, locker: deps.Locker, lockTTL: cfg.LockTTL, logger: logger}
		if _, err := c.AddFunc(spec, runner.Run); err != nil {
			return nil, fmt.Errorf("register scheduler job %s (%q): %w", job.name, spec, err)
		}
	}

	return c, nil
}

type jobRunner struct {
	name    string
	fn      func(context.Context) error
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
	timeout time.Duration
}

// Run executes one tick: take the lock when configured, run with a timeout,
// record the outcome. A panic is logged and counted, never propagated.
func (r *jobRunner) Run() {
	status := "ok"
	defer func() {
		if recovered := recover(); recovered != nil {
			status = "panic"
			r.logger.Error("scheduler job panic recovered",
				zap.String("job", r.name),
				zap.Any("panic", recovered),
			)
		}
		metrics.IncSchedulerRun(r.name, status)
	}()

	timeout := r.timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if r.locker != nil {
		release, acquired, err := r.locker.TryLock(ctx, "scheduler:"+r.name, r.lockTTL)
		if err != nil {
			status = "lock_error"
			r.logger.Warn("scheduler lock failed", zap.String("job", r.name), zap.Error(err))
			return
		}
		if !acquired {
			status = "skipped"
			r.logger.Debug("scheduler job held by another replica", zap.String("job", r.name))
			return
		}
		defer release()
	}

	start := time.Now()
	if err := r.fn(ctx); err != nil {
		status = "error"
		r.logger.Warn("scheduler job failed",
			zap.String("job", r.name),
			zap.Duration("cost", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("scheduler job finished", zap.String("job", r.name), zap.Duration("cost", time.Since(start)))
}
