package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/sse"
)

const siteSettingsKey = "site"

var academicYearPattern = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

type UpdateSiteSettingsRequest struct {
	MaintenanceMode     *bool   `json:"maintenance_mode,omitempty"`
	AllowRegistration   *bool   `json:"allow_registration,omitempty"`
	CurrentAcademicYear *string `json:"current_academic_year,omitempty"`
	CurrentSemester     *int    `json:"current_semester,omitempty"`
}

// SystemService owns the process-wide site settings. Init must run once
// before Current is read; until then Current returns the defaults.
type SystemService struct {
	repo        repository.SettingsRepository
	auditRepo   repository.AuditRepository
	broadcaster Broadcaster
	logger      *zap.Logger

	current atomic.Pointer[model.SiteSettings]
}

func NewSystemService(
	repo repository.SettingsRepository,
	auditRepo repository.AuditRepository,
	broadcaster Broadcaster,
	logger *zap.Logger,
) *SystemService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SystemService{
		repo:        repo,
		auditRepo:   auditRepo,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Init loads the stored document or persists the defaults when none exists.
func (s *SystemService) Init(ctx context.Context) error {
	raw, err := s.repo.Load(ctx, siteSettingsKey)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		settings := model.DefaultSiteSettings()
		settings.UpdatedAt = time.Now().UTC()
		if err := s.save(ctx, settings); err != nil {
			return fmt.Errorf("persist default site settings: %w", err)
		}
		s.current.Store(&settings)
		s.logger.Info("site settings initialised with defaults")
		return nil
	case err != nil:
		return fmt.Errorf("load site settings: %w", err)
	}

	settings := model.DefaultSiteSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return fmt.Errorf("decode site settings: %w", err)
	}
	s.current.Store(&settings)
	return nil
}

func (s *SystemService) Current() model.SiteSettings {
	if current := s.current.Load(); current != nil {
		return *current
	}
	return model.DefaultSiteSettings()
}

func (s *SystemService) MaintenanceEnabled() bool {
	return s.Current().MaintenanceMode
}

func (s *SystemService) Update(ctx context.Context, operatorID string, req UpdateSiteSettingsRequest) (model.SiteSettings, error) {
	previous := s.Current()
	next := previous

	if err := applySiteSettingsUpdate(&next, req); err != nil {
		return previous, err
	}
	next.UpdatedAt = time.Now().UTC()

	if err := s.save(ctx, next); err != nil {
		return previous, err
	}
	s.current.Store(&next)

	s.writeUpdateAudit(ctx, operatorID, previous, next)
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(sse.NewEvent(sse.EventSystemSettings, map[string]interface{}{
			"maintenance_mode":      next.MaintenanceMode,
			"allow_registration":    next.AllowRegistration,
			"current_academic_year": next.CurrentAcademicYear,
			"current_semester":      next.CurrentSemester,
			"updated_at":            next.UpdatedAt.Format(time.RFC3339Nano),
		}))
	}

	return next, nil
}

func (s *SystemService) save(ctx context.Context, settings model.SiteSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.repo.Save(ctx, siteSettingsKey, raw)
}

func applySiteSettingsUpdate(settings *model.SiteSettings, req UpdateSiteSettingsRequest) error {
	v := &ValidationError{}

	if req.MaintenanceMode != nil {
		settings.MaintenanceMode = *req.MaintenanceMode
	}
	if req.AllowRegistration != nil {
		settings.AllowRegistration = *req.AllowRegistration
	}
	if req.CurrentAcademicYear != nil {
		year := strings.TrimSpace(*req.CurrentAcademicYear)
		if !ValidAcademicYear(year) {
			v.Add("current_academic_year", "must look like 2024/2025 with consecutive years")
		}
		settings.CurrentAcademicYear = year
	}
	if req.CurrentSemester != nil {
		if *req.CurrentSemester != 1 && *req.CurrentSemester != 2 {
			v.Add("current_semester", "must be 1 or 2")
		}
		settings.CurrentSemester = *req.CurrentSemester
	}

	return v.OrNil()
}

func ValidAcademicYear(value string) bool {
	match := academicYearPattern.FindStringSubmatch(value)
	if match == nil {
		return false
	}
	start, _ := strconv.Atoi(match[1])
	end, _ := strconv.Atoi(match[2])
	return end == start+1
}

func (s *SystemService) writeUpdateAudit(ctx context.Context, operatorID string, oldCfg, newCfg model.SiteSettings) {
	oldValue := make(map[string]interface{})
	newValue := make(map[string]interface{})

	if oldCfg.MaintenanceMode != newCfg.MaintenanceMode {
		oldValue["maintenance_mode"] = oldCfg.MaintenanceMode
		newValue["maintenance_mode"] = newCfg.MaintenanceMode
	}
	if oldCfg.AllowRegistration != newCfg.AllowRegistration {
		oldValue["allow_registration"] = oldCfg.AllowRegistration
		newValue["allow_registration"] = newCfg.AllowRegistration
	}
	if oldCfg.CurrentAcademicYear != newCfg.CurrentAcademicYear {
		oldValue["current_academic_year"] = oldCfg.CurrentAcademicYear
		newValue["current_academic_year"] = newCfg.CurrentAcademicYear
	}
	if oldCfg.CurrentSemester != newCfg.CurrentSemester {
		oldValue["current_semester"] = oldCfg.CurrentSemester
		newValue["current_semester"] = newCfg.CurrentSemester
	}

	if len(newValue) == 0 {
		return
	}
	writeAudit(ctx, s.auditRepo, operatorID, "system.settings.update", model.AuditResourceSiteSettings, siteSettingsKey, oldValue, newValue)
}
