package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	swaggerdocs "dasa-hub/docs/swagger"
	"dasa-hub/internal/api"
	"dasa-hub/internal/api/middleware"
	v1 "dasa-hub/internal/api/v1"
	"dasa-hub/internal/scheduler"
	schedulerjobs "dasa-hub/internal/scheduler/jobs"
	jwtutil "dasa-hub/pkg/jwt"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API, live feed and scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, recentLogs, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	isDebugMode := strings.EqualFold(cfg.App.Env, "development")
	if !isDebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	publicKey, err := jwtutil.LoadPublicKey(cfg.Auth.JWTPublicKey, cfg.Auth.JWTPublicKeyFile)
	if err != nil {
		if !errors.Is(err, jwtutil.ErrPublicKeyMissing) {
			return fmt.Errorf("load jwt public key: %w", err)
		}
		logger.Warn("no jwt public key configured; every caller is anonymous")
	}

	a, err := newApp(ctx, cfg, logger, recentLogs)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Scheduler.Enabled {
		cronRunner, err := newCronRunner(a)
		if err != nil {
			return err
		}
		cronRunner.Start()
		defer func() {
			stopCtx := cronRunner.Stop()
			select {
			case <-stopCtx.Done():
			case <-time.After(2 * time.Second):
			}
		}()
	}

	router := buildRouter(a, middleware.NewAuth(publicKey), isDebugMode)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	logger.Info("server started",
		zap.String("addr", srv.Addr),
		zap.String("driver", cfg.Database.Driver),
		zap.String("timezone", a.location.String()),
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("build_time", BuildTime),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("server exited unexpectedly: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Close SSE streams first so Shutdown is not held open by them.
	a.sseHub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown server failed", zap.Error(err))
	}
	return nil
}

func newCronRunner(a *app) (*cron.Cron, error) {
	deps := scheduler.Deps{
		AnnouncementJob: schedulerjobs.NewAnnouncementJob(a.maintenance, a.logger.Named("scheduler")),
	}
	if a.redis != nil {
		deps.Locker = scheduler.NewRedisLocker(a.redis, "dasa:scheduler:", a.logger.Named("scheduler"))
	}

	cronRunner, err := scheduler.NewScheduler(scheduler.Config{
		ReconcileSpec: a.cfg.Scheduler.ReconcileSpec,
		SweepSpec:     a.cfg.Scheduler.SweepSpec,
		BackfillSpec:  a.cfg.Scheduler.BackfillSpec,
		LockTTL:       a.cfg.Scheduler.LockTTL,
	}, deps, a.logger.Named("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	return cronRunner, nil
}

func buildRouter(a *app, auth *middleware.Auth, isDebugMode bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(buildCORSMiddleware(a.cfg))
	router.Use(middleware.RequestLogger(a.logger))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	readyHandler := func(c *gin.Context) {
		if err := a.ready(c.Request.Context()); err != nil {
			a.logger.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"error":  "dependency unavailable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}

	router.GET("/health", healthHandler)
	router.GET("/health/ready", readyHandler)
	router.GET("/api/v1/health", healthHandler)
	router.GET("/api/v1/health/ready", readyHandler)

	internal := router.Group("/internal")
	internal.Use(middleware.InternalToken(a.cfg.Metrics.Token))
	internal.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if isDebugMode && a.cfg.Debug.PprofEnabled {
		registerPprofRoutes(router)
		a.logger.Info("pprof endpoint enabled", zap.String("path", "/debug/pprof/"))
	}
	if shouldEnableSwaggerDocs(a.cfg.App.Env) {
		swaggerdocs.SwaggerInfo.BasePath = "/"
		router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api.RegisterV1Routes(router, api.Deps{
		Auth:          auth,
		Announcements: a.announcements,
		Events:        a.events,
		LostItems:     a.lostItems,
		System: v1.SystemDeps{
			System:      a.system,
			Maintenance: a.maintenance,
			Stats:       a.stats,
			Audit:       a.audit,
			RecentLogs:  a.recentLogs,
		},
		SSEHub:    a.sseHub,
		AuditRepo: a.repos.audit,
		Logger:    a.logger,
	})

	return router
}

func buildCORSMiddleware(cfg Config) gin.HandlerFunc {
	origins := make([]string, 0, len(cfg.CORS.AllowOrigins))
	for _, origin := range cfg.CORS.AllowOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		origins = append(origins, trimmed)
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func registerPprofRoutes(router *gin.Engine) {
	pprofGroup := router.Group("/debug/pprof")
	pprofGroup.GET("/", gin.WrapF(pprof.Index))
	pprofGroup.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	pprofGroup.GET("/profile", gin.WrapF(pprof.Profile))
	pprofGroup.GET("/symbol", gin.WrapF(pprof.Symbol))
	pprofGroup.POST("/symbol", gin.WrapF(pprof.Symbol))
	pprofGroup.GET("/trace", gin.WrapF(pprof.Trace))
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		pprofGroup.GET("/"+name, gin.WrapH(pprof.Handler(name)))
	}
}

func shouldEnableSwaggerDocs(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "staging":
		return true
	default:
		return false
	}
}
