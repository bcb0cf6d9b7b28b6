package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dasa-hub/internal/metrics"
	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/sse"
)

const (
	DefaultLostFoundMaxAge = 7 * 24 * time.Hour
	DefaultEventMaxAge     = 30 * 24 * time.Hour
	DefaultGenericMaxAge   = 60 * 24 * time.Hour
)

type SweepClass string

const (
	SweepClassLostFound SweepClass = "lost_found"
	SweepClassEvent     SweepClass = "event"
	SweepClassGeneric   SweepClass = "generic"
)

var (
	lostFoundTitlePrefixes = []string{"LOST:", "FOUND:", "Lost:", "Found:"}
	eventTitlePrefixes     = []string{"New Event:", "Upcoming Event:"}
)

// ClassifyTitle buckets an unlinked announcement by the title prefixes the
// automatic templates have produced over time.
func ClassifyTitle(title string) SweepClass {
	title = strings.TrimSpace(title)
	for _, prefix := range lostFoundTitlePrefixes {
		if strings.HasPrefix(title, prefix) {
			return SweepClassLostFound
		}
	}
	for _, prefix := range eventTitlePrefixes {
		if strings.HasPrefix(title, prefix) {
			return SweepClassEvent
		}
	}
	return SweepClassGeneric
}

type SweepPolicy struct {
	LostFoundMaxAge time.Duration
	EventMaxAge     time.Duration
	GenericMaxAge   time.Duration
}

func DefaultSweepPolicy() SweepPolicy {
	return SweepPolicy{
		LostFoundMaxAge: DefaultLostFoundMaxAge,
		EventMaxAge:     DefaultEventMaxAge,
		GenericMaxAge:   DefaultGenericMaxAge,
	}
}

func (p SweepPolicy) MaxAge(class SweepClass) time.Duration {
	defaults := DefaultSweepPolicy()
	switch class {
	case SweepClassLostFound:
		return positiveOr(p.LostFoundMaxAge, defaults.LostFoundMaxAge)
	case SweepClassEvent:
		return positiveOr(p.EventMaxAge, defaults.EventMaxAge)
	default:
		return positiveOr(p.GenericMaxAge, defaults.GenericMaxAge)
	}
}

func positiveOr(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

// AnnouncementCreator is the create path of the lifecycle router.
type AnnouncementCreator interface {
	OnEntityCreated(ctx context.Context, src model.Source) (*model.Announcement, error)
}

type MaintenanceService struct {
	announcements repository.AnnouncementRepository
	reconciler    *VisibilityReconciler
	creator       AnnouncementCreator
	auditRepo     repository.AuditRepository
	broadcaster   Broadcaster
	policy        SweepPolicy
	logger        *zap.Logger
	now           func() time.Time
}

func NewMaintenanceService(
	announcements repository.AnnouncementRepository,
	reconciler *VisibilityReconciler,
	creator AnnouncementCreator,
	auditRepo repository.AuditRepository,
	broadcaster Broadcaster,
	policy SweepPolicy,
	logger *zap.Logger,
) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MaintenanceService{
		announcements: announcements,
		reconciler:    reconciler,
		creator:       creator,
		auditRepo:     auditRepo,
		broadcaster:   broadcaster,
		policy:        policy,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MaintenanceService) WithClock(now func() time.Time) *MaintenanceService {
	if now != nil {
		s.now = now
	}
	return s
}

// SweepUnlinked deactivates active unlinked announcements that outlived
// the age limit of their title class. operatorID is empty for scheduled
// runs.
func (s *MaintenanceService) SweepUnlinked(ctx context.Context, operatorID string) (int64, error) {
	now := s.now()

	candidates, err := s.announcements.ListActiveUnlinked(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unlinked announcements: %w", err)
	}

	expired := make([]uuid.UUID, 0)
	byClass := make(map[SweepClass]int)
	for _, item := range candidates {
		class := ClassifyTitle(item.Title)
		if now.Sub(item.CreatedAt) > s.policy.MaxAge(class) {
			expired = append(expired, item.ID)
			byClass[class]++
		}
	}

	changed, err := s.announcements.DeactivateUnlinked(ctx, expired)
	if err != nil {
		return 0, fmt.Errorf("deactivate unlinked announcements: %w", err)
	}

	metrics.AddAnnouncementsDeactivated("sweep", changed)
	s.logger.Info("unlinked announcement sweep finished",
		zap.Int("candidates", len(candidates)),
		zap.Int64("deactivated", changed),
		zap.Int("lost_found", byClass[SweepClassLostFound]),
		zap.Int("event", byClass[SweepClassEvent]),
		zap.Int("generic", byClass[SweepClassGeneric]),
	)

	s.recordRun(ctx, operatorID, "maintenance.sweep", map[string]interface{}{"deactivated": changed})
	return changed, nil
}

// ReconcileLinked runs one visibility pass outside of a read.
func (s *MaintenanceService) ReconcileLinked(ctx context.Context) (ReconcileReport, error) {
	if s.reconciler == nil {
		return ReconcileReport{}, errors.New("reconciler is nil")
	}
	return s.reconciler.Reconcile(ctx)
}

// Backfill creates the announcement for every open entity that was never
// announced, covering creations whose lifecycle dispatch failed. An entity
// whose announcement an admin deleted counts as announced and is skipped.
func (s *MaintenanceService) Backfill(ctx context.Context, operatorID string) (int, error) {
	if s.reconciler == nil || s.creator == nil {
		return 0, errors.New("backfill dependencies are not configured")
	}

	now := s.now()
	created := 0
	var errs []error

	for _, idx := range s.reconciler.Indexes() {
		kind := idx.Kind()

		open, err := idx.OpenSources(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s sources: %w", kind, err))
			continue
		}
		if len(open) == 0 {
			continue
		}

		announced, err := s.announcements.AnnouncedSourceIDs(ctx, kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("announced %s ids: %w", kind, err))
			continue
		}
		seen := make(map[uuid.UUID]struct{}, len(announced))
		for _, id := range announced {
			seen[id] = struct{}{}
		}

		for _, src := range open {
			ref := src.SourceRef()
			if _, ok := seen[ref.ID]; ok {
				continue
			}
			if _, err := s.creator.OnEntityCreated(ctx, src); err != nil {
				errs = append(errs, fmt.Errorf("backfill %s: %w", ref, err))
				continue
			}
			created++
		}
	}

	if created > 0 {
		s.logger.Info("announcement backfill created missing rows", zap.Int("created", created))
	}
	s.recordRun(ctx, operatorID, "maintenance.backfill", map[string]interface{}{"created": created})

	return created, errors.Join(errs...)
}

func (s *MaintenanceService) recordRun(ctx context.Context, operatorID, action string, result map[string]interface{}) {
	if strings.TrimSpace(operatorID) == "" {
		return
	}

	writeAudit(ctx, s.auditRepo, operatorID, action, model.AuditResourceAnnouncement, "*", nil, result)
	if s.broadcaster != nil {
		payload := map[string]interface{}{"action": action, "ts": s.now().Format(time.RFC3339Nano)}
		for key, value := range result {
			payload[key] = value
		}
		if hub, ok := s.broadcaster.(roleBroadcaster); ok {
			hub.SendToRole(model.RoleAdmin, sse.NewEvent(sse.EventMaintenanceRun, payload))
		}
	}
}

type roleBroadcaster interface {
	SendToRole(role string, event sse.SSEEvent)
}
