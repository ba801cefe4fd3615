package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	API struct {
		Port           int     `yaml:"port"`
		APIKey         string  `yaml:"api_key"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Scheduling struct {
		SlotIntervalMinutes int    `yaml:"slot_interval_minutes"`
		Timezone            string `yaml:"timezone"`
		MinAdvanceMinutes   int    `yaml:"min_advance_minutes"`
		MaxAdvanceDays      int    `yaml:"max_advance_days"`
	} `yaml:"scheduling"`

	ClinicConfigPath string `yaml:"clinic_config_path"`
}

// Load reads .env (if present) and then the YAML config at path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/praxis.db"
	}
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = "data/backups"
	}
	if cfg.ClinicConfigPath == "" {
		cfg.ClinicConfigPath = "configs/clinic.yaml"
	}
	if cfg.Scheduling.Timezone == "" {
		cfg.Scheduling.Timezone = "Europe/Berlin"
	}
	if _, err = time.LoadLocation(cfg.Scheduling.Timezone); err != nil {
		return nil, fmt.Errorf("scheduling.timezone: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadClinic loads the staff/rooms/services file referenced by the config.
func (c *Config) LoadClinic() (*ClinicConfig, error) {
	return LoadClinicConfig(c.ClinicConfigPath)
}

// Location is the clinic's timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduling.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) SlotInterval() int {
	if c.Scheduling.SlotIntervalMinutes <= 0 {
		return 30
	}
	return c.Scheduling.SlotIntervalMinutes
}

func (c *Config) BookingMinAdvance() time.Duration {
	if c.Scheduling.MinAdvanceMinutes < 0 {
		return 0
	}
	return time.Duration(c.Scheduling.MinAdvanceMinutes) * time.Minute
}

func (c *Config) BookingMaxAdvance() time.Duration {
	if c.Scheduling.MaxAdvanceDays <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(c.Scheduling.MaxAdvanceDays) * 24 * time.Hour
}

func (c *Config) ScheduleCacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}
