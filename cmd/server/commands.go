package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configFile)
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			if cfg.Database.Driver != driverPostgres {
				return fmt.Errorf("migrate requires database.driver %q", driverPostgres)
			}
			if err := runMigrateUp(resolveMigrationDir(dir), cfg.Database.URL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migration directory (default /migrations, then ./migrations)")
	return cmd
}

func resolveMigrationDir(dir string) string {
	if dir != "" {
		return dir
	}
	if _, err := os.Stat("/migrations"); err == nil {
		return "/migrations"
	}
	return "./migrations"
}

func runMigrateUp(dir, databaseURL string) error {
	migrator, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer migrator.Close() //nolint:errcheck

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations failed: %w", err)
	}
	return nil
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "deactivate stale unlinked announcements once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				deactivated, err := a.maintenance.SweepUnlinked(ctx, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deactivated %d announcements\n", deactivated)
				return nil
			})
		},
	}
}

func newBackfillCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "create announcements for open entities that never got one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				report, err := a.maintenance.ReconcileLinked(ctx)
				if err != nil {
					return err
				}
				created, err := a.maintenance.Backfill(ctx, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d, created %d announcements\n", report.Total(), created)
				return nil
			})
		},
	}
}

// withApp runs fn against a wired app without starting the HTTP server.
func withApp(ctx context.Context, opts *rootOptions, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, recentLogs, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	a, err := newApp(ctx, cfg, logger, recentLogs)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		logger.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

func newHealthcheckCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:           "healthcheck",
		Short:         "probe the local readiness endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(cmd.Context(), url)
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8080/health/ready", "readiness endpoint")
	return cmd
}

func runHealthcheck(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
