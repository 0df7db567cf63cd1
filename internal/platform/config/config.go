package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. Every duration knob has a
// default so an empty file (or no file at all) yields a working setup.
type Config struct {
	DataDir        string `yaml:"data_dir"`
	DeviceTag      string `yaml:"device_tag"`
	StatsAuthority bool   `yaml:"stats_authority"`
	TransferDir    string `yaml:"transfer_dir"`

	InactivityThreshold time.Duration `yaml:"inactivity_threshold"`
	CleanupGrace        time.Duration `yaml:"cleanup_grace"`
	DebounceWindow      time.Duration `yaml:"debounce_window"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	DBPath string `yaml:"-"`
}

func Defaults(dataDir string) Config {
	return Config{
		DataDir:             dataDir,
		StatsAuthority:      true,
		InactivityThreshold: 4 * time.Hour,
		CleanupGrace:        2 * time.Second,
		DebounceWindow:      120 * time.Millisecond,
		LogLevel:            "info",
		TransferDir:         filepath.Join(dataDir, "outbox"),
		DBPath:              filepath.Join(dataDir, "readsync.db"),
	}
}

// Load reads an optional YAML config file layered over Defaults.
func Load(dataDir, path string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	cfg := Defaults(dataDir)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, "readsync.db")
	if cfg.TransferDir == "" {
		cfg.TransferDir = filepath.Join(cfg.DataDir, "outbox")
	}
	if cfg.DeviceTag == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "phone"
		}
		cfg.DeviceTag = host
	}
	if cfg.InactivityThreshold <= 0 {
		cfg.InactivityThreshold = 4 * time.Hour
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 120 * time.Millisecond
	}
	if cfg.CleanupGrace < 0 {
		cfg.CleanupGrace = 0
	}
	return cfg, nil
}
