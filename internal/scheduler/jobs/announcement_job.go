package jobs

import (
	"context"

	"go.uber.org/zap"

	"dasa-hub/internal/service"
)

// AnnouncementJob adapts the maintenance service to the scheduler. Scheduled
// runs carry no operator, so they are not written to the audit trail.
type AnnouncementJob struct {
	maintenance *service.MaintenanceService
	logger      *zap.Logger
}

func NewAnnouncementJob(maintenance *service.MaintenanceService, logger *zap.Logger) *AnnouncementJob {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AnnouncementJob{
		maintenance: maintenance,
		logger:      logger,
	}
}

func (j *AnnouncementJob) Reconcile(ctx context.Context) error {
	report, err := j.maintenance.ReconcileLinked(ctx)
	if err != nil {
		return err
	}
	if total := report.Total(); total > 0 || report.Dangling > 0 || report.UnknownKind > 0 {
		j.logger.Info("scheduled reconcile finished",
			zap.Int64("deactivated", total),
			zap.Int("dangling", report.Dangling),
			zap.Int("unknown_kind", report.UnknownKind),
		)
	}
	return nil
}

func (j *AnnouncementJob) SweepUnlinked(ctx context.Context) error {
	deactivated, err := j.maintenance.SweepUnlinked(ctx, "")
	if err != nil {
		return err
	}
	j.logger.Info("scheduled sweep finished", zap.Int64("deactivated", deactivated))
	return nil
}

func (j *AnnouncementJob) Backfill(ctx context.Context) error {
	created, err := j.maintenance.Backfill(ctx, "")
	if created > 0 {
		j.logger.Warn("backfill created missing announcements", zap.Int("created", created))
	}
	return err
}
