package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"reservio/internal/slots"
)

type Config struct {
	Server struct {
		Host    string   `yaml:"host"`
		Port    int      `yaml:"port"`
		APIKeys []string `yaml:"api_keys"`
	} `yaml:"server"`

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
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	RateLimit struct {
		RequestsPerWindow int `yaml:"requests_per_window"`
		WindowSeconds     int `yaml:"window_seconds"`
	} `yaml:"rate_limit"`

	Holds struct {
		DefaultTTLSeconds    int `yaml:"default_ttl_seconds"`
		SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
		SweepBatch           int `yaml:"sweep_batch"`
	} `yaml:"holds"`

	Search struct {
		MaxWindowDays int `yaml:"max_window_days"`
		TopN          int `yaml:"top_n"`
	} `yaml:"search"`

	Scoring slots.ScoreWeights `yaml:"scoring"`

	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`

	Audit struct {
		TrailSize int `yaml:"trail_size"`
	} `yaml:"audit"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
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

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/reservio.db"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "configs/catalog.yaml"
	}
	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit.RequestsPerWindow = 60
	}
	if cfg.RateLimit.WindowSeconds == 0 {
		cfg.RateLimit.WindowSeconds = 60
	}
	if cfg.Scoring == (slots.ScoreWeights{}) {
		cfg.Scoring = slots.DefaultScoreWeights()
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) HoldTTL() time.Duration {
	if c.Holds.DefaultTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Holds.DefaultTTLSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	if c.Holds.SweepIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Holds.SweepIntervalSeconds) * time.Second
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
