// Package config loads runtime settings from defaults, an optional YAML file
// and MINDTHECAT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "MINDTHECAT_"

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	ProgressInterval time.Duration
	StatsInterval    time.Duration
	SweepSchedule    string

	// DeviceID identifies this terminal to the mute registry.
	DeviceID string
}

// file mirrors Config in the YAML file. Durations are strings such as "2m".
type file struct {
	Port             string `yaml:"port"`
	DBPath           string `yaml:"db_path"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
	VAPIDPublicKey   string `yaml:"vapid_public_key"`
	VAPIDPrivateKey  string `yaml:"vapid_private_key"`
	VAPIDSubscriber  string `yaml:"vapid_subscriber"`
	ProgressInterval string `yaml:"progress_interval"`
	StatsInterval    string `yaml:"stats_interval"`
	SweepSchedule    string `yaml:"sweep_schedule"`
	DeviceID         string `yaml:"device_id"`
}

func Default() Config {
	return Config{
		Port:             "8080",
		DBPath:           "mindthecat.db",
		LogLevel:         "info",
		LogFormat:        "text",
		VAPIDSubscriber:  "mailto:noreply@mindthecat.app",
		ProgressInterval: 120 * time.Second,
		StatsInterval:    300 * time.Second,
		SweepSchedule:    "@every 5m",
	}
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	var f file
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	overlay := func(dst *string, fromFile, env string) {
		if fromFile != "" {
			*dst = fromFile
		}
		if v := strings.TrimSpace(os.Getenv(envPrefix + env)); v != "" {
			*dst = v
		}
	}

	overlay(&cfg.Port, f.Port, "PORT")
	overlay(&cfg.DBPath, f.DBPath, "DB_PATH")
	overlay(&cfg.LogLevel, f.LogLevel, "LOG_LEVEL")
	overlay(&cfg.LogFormat, f.LogFormat, "LOG_FORMAT")
	overlay(&cfg.VAPIDPublicKey, f.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	overlay(&cfg.VAPIDPrivateKey, f.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")
	overlay(&cfg.VAPIDSubscriber, f.VAPIDSubscriber, "VAPID_SUBSCRIBER")
	overlay(&cfg.SweepSchedule, f.SweepSchedule, "SWEEP_SCHEDULE")
	overlay(&cfg.DeviceID, f.DeviceID, "DEVICE_ID")

	progress, stats := "", ""
	overlay(&progress, f.ProgressInterval, "PROGRESS_INTERVAL")
	overlay(&stats, f.StatsInterval, "STATS_INTERVAL")

	var err error
	if progress != "" {
		if cfg.ProgressInterval, err = parseInterval("progress_interval", progress); err != nil {
			return cfg, err
		}
	}
	if stats != "" {
		if cfg.StatsInterval, err = parseInterval("stats_interval", stats); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks that required values are usable.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.ProgressInterval <= 0 {
		errs = append(errs, errors.New("progress_interval must be positive"))
	}
	if c.StatsInterval <= 0 {
		errs = append(errs, errors.New("stats_interval must be positive"))
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("vapid_public_key and vapid_private_key must be set together"))
	}
	return errors.Join(errs...)
}

func parseInterval(name, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", name, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, raw)
	}
	return d, nil
}
