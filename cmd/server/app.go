package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dasa-hub/internal/event"
	"dasa-hub/internal/lifecycle"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/repository/memory"
	"dasa-hub/internal/repository/postgres"
	"dasa-hub/internal/service"
	"dasa-hub/internal/sse"
	systemlog "dasa-hub/pkg/logger"
)

type repositories struct {
	announcements repository.AnnouncementRepository
	events        repository.EventRepository
	lostItems     repository.LostItemRepository
	settings      repository.SettingsRepository
	audit         repository.AuditRepository
}

// app is the fully wired object graph shared by serve and the one-shot
// maintenance commands.
type app struct {
	cfg        Config
	logger     *zap.Logger
	recentLogs *systemlog.RecentLogs
	location   *time.Location

	pool  *pgxpool.Pool
	redis *redis.Client

	repos      repositories
	sseHub     *sse.SSEHub
	bus        *event.Bus
	router     *lifecycle.Router
	reconciler *service.VisibilityReconciler

	announcements *service.AnnouncementService
	events        *service.EventService
	lostItems     *service.LostItemService
	system        *service.SystemService
	maintenance   *service.MaintenanceService
	stats         *service.StatsService
	audit         *service.AuditService
}

func newApp(ctx context.Context, cfg Config, logger *zap.Logger, recentLogs *systemlog.RecentLogs) (*app, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load app.timezone: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, recentLogs: recentLogs, location: location}

	switch cfg.Database.Driver {
	case driverMemory:
		logger.Warn("using in-memory repositories; data is lost on restart")
		a.repos = repositories{
			announcements: memory.NewAnnouncementRepository(),
			events:        memory.NewEventRepository(),
			lostItems:     memory.NewLostItemRepository(),
			settings:      memory.NewSettingsRepository(),
			audit:         memory.NewAuditRepository(),
		}
	default:
		pool, err := newDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.repos = repositories{
			announcements: postgres.NewAnnouncementRepository(pool),
			events:        postgres.NewEventRepository(pool),
			lostItems:     postgres.NewLostItemRepository(pool),
			settings:      postgres.NewSettingsRepository(pool),
			audit:         postgres.NewAuditRepository(pool),
		}
	}

	if strings.TrimSpace(cfg.Redis.URL) != "" {
		client, err := newRedisClient(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
	}

	a.sseHub = sse.NewHub(logger)
	a.bus = event.NewBus()

	a.router = lifecycle.NewRouter(a.repos.announcements, a.sseHub, logger.Named("lifecycle"), lifecycle.DefaultTemplates()...)
	a.router.Subscribe(a.bus)

	a.reconciler = service.NewVisibilityReconciler(a.repos.announcements, a.sseHub, logger.Named("visibility"),
		service.NewEventIndex(a.repos.events, location),
		service.NewLostItemIndex(a.repos.lostItems),
	)

	a.events = service.NewEventService(a.repos.events, a.bus, location, logger)
	a.lostItems = service.NewLostItemService(a.repos.lostItems, a.bus, a.sseHub, logger)
	a.announcements = service.NewAnnouncementService(a.repos.announcements, a.reconciler, a.repos.audit, a.sseHub, logger)
	a.system = service.NewSystemService(a.repos.settings, a.repos.audit, a.sseHub, logger)
	a.maintenance = service.NewMaintenanceService(
		a.repos.announcements,
		a.reconciler,
		a.router,
		a.repos.audit,
		a.sseHub,
		service.SweepPolicy{
			LostFoundMaxAge: cfg.Maintenance.LostFoundMaxAge,
			EventMaxAge:     cfg.Maintenance.EventMaxAge,
			GenericMaxAge:   cfg.Maintenance.GenericMaxAge,
		},
		logger.Named("maintenance"),
	)
	a.stats = service.NewStatsService(a.repos.announcements, a.events, a.lostItems, a.sseHub, logger)
	a.audit = service.NewAuditService(a.repos.audit)

	if err := a.system.Init(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("init site settings: %w", err)
	}

	return a, nil
}

func (a *app) Close() {
	if a.sseHub != nil {
		a.sseHub.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis client failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// ready reports whether the backing stores answer within the ping timeout.
func (a *app) ready(ctx context.Context) error {
	timeout := a.cfg.Database.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return fmt.Errorf("database unavailable: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unavailable: %w", err)
		}
	}
	return nil
}

func newLogger(cfg Config) (*zap.Logger, *systemlog.RecentLogs, error) {
	var zapCfg zap.Config
	if strings.EqualFold(cfg.App.Env, "development") {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			return nil, nil, fmt.Errorf("invalid log.level: %w", err)
		}
	}
	if cfg.Log.Encoding != "" {
		zapCfg.Encoding = cfg.Log.Encoding
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build zap logger failed: %w", err)
	}

	recentLogs := systemlog.NewRecentLogs(1000)
	return recentLogs.Tee(logger), recentLogs, nil
}

func newDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database.url failed: %w", err)
	}

	const maxInt32 = int(^uint32(0) >> 1)
	if cfg.Database.MaxConns > maxInt32 {
		return nil, fmt.Errorf("database.max_conns must be <= %d", maxInt32)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns) // #nosec G115 -- validated upper bound above.

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.PingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database failed: %w", err)
	}
	return pool, nil
}

func newRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis.url failed: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}
	return client, nil
}
