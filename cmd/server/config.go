package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

type Config struct {
	App struct {
		Env      string `mapstructure:"env"`
		Timezone string `mapstructure:"timezone"`
	} `mapstructure:"app"`
	Server struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Database struct {
		Driver      string        `mapstructure:"driver"`
		URL         string        `mapstructure:"url"`
		MaxConns    int           `mapstructure:"max_conns"`
		PingTimeout time.Duration `mapstructure:"ping_timeout"`
	} `mapstructure:"database"`
	Redis struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"redis"`
	Log struct {
		Level    string `mapstructure:"level"`
		Encoding string `mapstructure:"encoding"`
	} `mapstructure:"log"`
	Auth struct {
		JWTPublicKey     string `mapstructure:"jwt_public_key"`
		JWTPublicKeyFile string `mapstructure:"jwt_public_key_file"`
	} `mapstructure:"auth"`
	Metrics struct {
		Token     string `mapstructure:"token"`
		TokenFile string `mapstructure:"token_file"`
	} `mapstructure:"metrics"`
	CORS struct {
		AllowOrigins []string `mapstructure:"allow_origins"`
	} `mapstructure:"cors"`
	Maintenance struct {
		LostFoundMaxAge time.Duration `mapstructure:"lost_found_max_age"`
		EventMaxAge     time.Duration `mapstructure:"event_max_age"`
		GenericMaxAge   time.Duration `mapstructure:"generic_max_age"`
	} `mapstructure:"maintenance"`
	Scheduler struct {
		Enabled       bool          `mapstructure:"enabled"`
		ReconcileSpec string        `mapstructure:"reconcile_spec"`
		SweepSpec     string        `mapstructure:"sweep_spec"`
		BackfillSpec  string        `mapstructure:"backfill_spec"`
		LockTTL       time.Duration `mapstructure:"lock_ttl"`
	} `mapstructure:"scheduler"`
	Debug struct {
		PprofEnabled bool `mapstructure:"pprof_enabled"`
	} `mapstructure:"debug"`
}

func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.App.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func newViper(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DASA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.url", "DASA_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("redis.url", "DASA_REDIS_URL", "REDIS_URL")

	v.SetDefault("app.env", "development")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	// SSE streams outlive any write deadline.
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.driver", driverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.ping_timeout", "3s")
	v.SetDefault("redis.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("auth.jwt_public_key", "")
	v.SetDefault("auth.jwt_public_key_file", "")
	v.SetDefault("metrics.token", "")
	v.SetDefault("metrics.token_file", "")
	v.SetDefault("cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("maintenance.lost_found_max_age", "168h")
	v.SetDefault("maintenance.event_max_age", "720h")
	v.SetDefault("maintenance.generic_max_age", "1440h")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reconcile_spec", "0 */15 * * * *")
	v.SetDefault("scheduler.sweep_spec", "0 30 2 * * *")
	v.SetDefault("scheduler.backfill_spec", "0 0 3 * * *")
	v.SetDefault("scheduler.lock_ttl", "5m")
	v.SetDefault("debug.pprof_enabled", false)
	return v
}

func loadConfig(configFile string) (Config, error) {
	v := newViper(configFile)
	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFoundErr) {
			return Config{}, fmt.Errorf("read config file failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config failed: %w", err)
	}

	if strings.TrimSpace(cfg.Metrics.Token) == "" && strings.TrimSpace(cfg.Metrics.TokenFile) != "" {
		// #nosec G304 -- path is provided by operator config.
		raw, err := os.ReadFile(strings.TrimSpace(cfg.Metrics.TokenFile))
		if err != nil {
			return Config{}, fmt.Errorf("read metrics.token_file failed: %w", err)
		}
		cfg.Metrics.Token = strings.TrimSpace(string(raw))
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case driverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return errors.New("database.url is required for the postgres driver")
		}
		if c.Database.MaxConns <= 0 {
			return errors.New("database.max_conns must be greater than 0")
		}
		if c.Database.PingTimeout <= 0 {
			return errors.New("database.ping_timeout must be greater than 0")
		}
	case driverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", driverPostgres, driverMemory, c.Database.Driver)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid app.timezone: %w", err)
	}

	if len(c.CORS.AllowOrigins) == 0 {
		return errors.New("cors.allow_origins must not be empty")
	}
	for _, origin := range c.CORS.AllowOrigins {
		if strings.TrimSpace(origin) == "*" {
			return errors.New("cors.allow_origins must not contain wildcard *")
		}
	}

	if c.Scheduler.Enabled {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		specs := map[string]string{
			"scheduler.reconcile_spec": c.Scheduler.ReconcileSpec,
			"scheduler.sweep_spec":     c.Scheduler.SweepSpec,
			"scheduler.backfill_spec":  c.Scheduler.BackfillSpec,
		}
		for key, spec := range specs {
			if strings.TrimSpace(spec) == "" {
				continue
			}
			if _, err := parser.Parse(spec); err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
		}
	}

	return nil
}
