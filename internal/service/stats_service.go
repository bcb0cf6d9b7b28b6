package service

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"dasa-hub/internal/repository"
)

type HostProvider interface {
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
}

type gopsutilProvider struct{}

func (gopsutilProvider) CPUPercent(ctx context.Context) (float64, error) {
	values, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil || len(values) == 0 {
		return 0, err
	}
	return values[0], nil
}

func (gopsutilProvider) MemoryPercent(ctx context.Context) (float64, error) {
	stat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}

type HostStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
	Goroutines int     `json:"goroutines"`
}

type DashboardStats struct {
	Announcements      repository.AnnouncementCounts `json:"announcements"`
	UpcomingEvents     int64                         `json:"upcoming_events"`
	UnresolvedLostItem int64                         `json:"unresolved_lost_items"`
	SSEClients         int                           `json:"sse_clients"`
	Host               HostStats                     `json:"host"`
	GeneratedAt        time.Time                     `json:"generated_at"`
}

type clientCounter interface {
	ConnectedCount() int
}

type StatsService struct {
	announcements repository.AnnouncementRepository
	events        *EventService
	lostItems     *LostItemService
	clients       clientCounter
	host          HostProvider
	logger        *zap.Logger
}

func NewStatsService(
	announcements repository.AnnouncementRepository,
	events *EventService,
	lostItems *LostItemService,
	clients clientCounter,
	logger *zap.Logger,
) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StatsService{
		announcements: announcements,
		events:        events,
		lostItems:     lostItems,
		clients:       clients,
		host:          gopsutilProvider{},
		logger:        logger,
	}
}

func (s *StatsService) WithHostProvider(provider HostProvider) *StatsService {
	if provider != nil {
		s.host = provider
	}
	return s
}

// Dashboard gathers record counts and host usage. Host read failures are
// logged and reported as zero.
func (s *StatsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	counts, err := s.announcements.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count announcements: %w", err)
	}
	upcoming, err := s.events.CountUpcoming(ctx)
	if err != nil {
		return nil, fmt.Errorf("count upcoming events: %w", err)
	}
	unresolved, err := s.lostItems.CountUnresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unresolved lost items: %w", err)
	}

	stats := &DashboardStats{
		Announcements:      counts,
		UpcomingEvents:     upcoming,
		UnresolvedLostItem: unresolved,
		Host:               HostStats{Goroutines: runtime.NumGoroutine()},
		GeneratedAt:        time.Now().UTC(),
	}
	if s.clients != nil {
		stats.SSEClients = s.clients.ConnectedCount()
	}

	if value, err := s.host.CPUPercent(ctx); err != nil {
		s.logger.Warn("read cpu usage failed", zap.Error(err))
	} else {
		stats.Host.CPUPercent = value
	}
	if value, err := s.host.MemoryPercent(ctx); err != nil {
		s.logger.Warn("read memory usage failed", zap.Error(err))
	} else {
		stats.Host.MemPercent = value
	}

	return stats, nil
}
