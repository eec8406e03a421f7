package config

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/basket/tasktrack/internal/task"
)

const (
	DefaultWorkerCount    = 4
	MaxWorkerCount        = 64
	DefaultLogLevel       = "info"
	DefaultOverdueRefresh = "* * * * *"
	DBFileName            = "tasks.db"
)

// OTelConfig mirrors otel.Config so config.yaml can carry it.
type OTelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	// DBPath is relative to HomeDir unless absolute.
	DBPath      string `yaml:"db_path"`
	WorkerCount int    `yaml:"worker_count"`
	LogLevel    string `yaml:"log_level"`

	// SeedSampleData fills an empty database with a handful of example tasks.
	SeedSampleData bool `yaml:"seed_sample_data"`

	// OverdueRefresh is a five-field cron expression; the overdue counter is
	// re-evaluated on this schedule.
	OverdueRefresh string `yaml:"overdue_refresh"`

	// DefaultFilter is the view the shell and list start with.
	DefaultFilter string `yaml:"default_filter"`

	Telemetry OTelConfig `yaml:"otel"`

	// FileMissing reports that no config.yaml was found and defaults were used.
	FileMissing bool `yaml:"-"`
}

// settable lists the keys Set accepts.
var settable = []string{
	"db_path",
	"default_filter",
	"log_level",
	"overdue_refresh",
	"seed_sample_data",
	"worker_count",
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// ResolvedDBPath returns the database path with HomeDir applied.
func (c Config) ResolvedDBPath() string {
	if filepath.IsAbs(c.DBPath) {
		return c.DBPath
	}
	return filepath.Join(c.HomeDir, c.DBPath)
}

// Filter parses DefaultFilter. Load has already validated it.
func (c Config) Filter() task.Filter {
	f, _ := task.ParseFilter(c.DefaultFilter)
	return f
}

// Fingerprint returns a stable hash of the settings that affect behaviour.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "db=%s|workers=%d|log=%s|seed=%t|refresh=%s|filter=%s|otel=%t",
		c.DBPath, c.WorkerCount, c.LogLevel, c.SeedSampleData, c.OverdueRefresh, c.DefaultFilter, c.Telemetry.Enabled)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}

func defaultConfig() Config {
	return Config{
		DBPath:         DBFileName,
		WorkerCount:    DefaultWorkerCount,
		LogLevel:       DefaultLogLevel,
		OverdueRefresh: DefaultOverdueRefresh,
		DefaultFilter:  "all",
		Telemetry: OTelConfig{
			SampleRate: 1.0,
		},
	}
}

func HomeDir() string {
	if override := os.Getenv("TASKTRACK_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".tasktrack")
}

func Load() (Config, error) {
	return LoadFrom(HomeDir())
}

// LoadFrom is Load with an explicit home directory.
func LoadFrom(homeDir string) (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = homeDir

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create tasktrack home: %w", err)
	}

	data, err := os.ReadFile(ConfigPath(cfg.HomeDir))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.FileMissing = true
		} else {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = DBFileName
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(cfg.OverdueRefresh) == "" {
		cfg.OverdueRefresh = DefaultOverdueRefresh
	}
	if cfg.DefaultFilter == "" {
		cfg.DefaultFilter = "all"
	}
	if cfg.Telemetry.SampleRate <= 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}

func validate(cfg Config) error {
	if cfg.WorkerCount > MaxWorkerCount {
		return fmt.Errorf("worker_count (%d) must be <= %d", cfg.WorkerCount, MaxWorkerCount)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q: want debug, info, warn or error", cfg.LogLevel)
	}
	if _, err := task.ParseFilter(cfg.DefaultFilter); err != nil {
		return fmt.Errorf("default_filter: %w", err)
	}
	switch cfg.Telemetry.Exporter {
	case "", "otlp-http", "stdout", "none":
	default:
		return fmt.Errorf("otel.exporter %q: want otlp-http, stdout or none", cfg.Telemetry.Exporter)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("TASKTRACK_DB"); raw != "" {
		cfg.DBPath = raw
	}
	if raw := os.Getenv("TASKTRACK_WORKERS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.WorkerCount = v
		}
	}
	if raw := os.Getenv("TASKTRACK_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("TASKTRACK_SEED"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.SeedSampleData = v
		}
	}
	if raw := os.Getenv("TASKTRACK_OTEL_ENABLED"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Telemetry.Enabled = v
		}
	}
}

// loadRawConfig reads config.yaml into a generic map, returning an empty map if the file doesn't exist.
func loadRawConfig(path string) (map[string]interface{}, error) {
	raw := make(map[string]interface{})
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
	}
	return raw, nil
}

// saveRawConfig marshals and writes a generic map back to config.yaml.
func saveRawConfig(path string, raw map[string]interface{}) error {
	out, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal config.yaml: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// Set updates one top-level key in config.yaml, preserving other settings.
// The resulting file must still load.
func Set(homeDir, key, value string) error {
	if !slices.Contains(settable, key) {
		return fmt.Errorf("unknown config key %q (settable: %s)", key, strings.Join(settable, ", "))
	}
	configPath := ConfigPath(homeDir)
	raw, err := loadRawConfig(configPath)
	if err != nil {
		return err
	}

	var typed interface{} = value
	switch key {
	case "worker_count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("worker_count: %w", err)
		}
		typed = n
	case "seed_sample_data":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("seed_sample_data: %w", err)
		}
		typed = b
	}
	raw[key] = typed

	probe := defaultConfig()
	out, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal config.yaml: %w", err)
	}
	if err := yaml.Unmarshal(out, &probe); err != nil {
		return fmt.Errorf("parse config.yaml: %w", err)
	}
	normalize(&probe)
	if err := validate(probe); err != nil {
		return err
	}
	return saveRawConfig(configPath, raw)
}

// WriteDefault writes a config.yaml holding the defaults. It refuses to
// overwrite an existing file.
func WriteDefault(homeDir string) error {
	path := ConfigPath(homeDir)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return fmt.Errorf("create tasktrack home: %w", err)
	}
	out, err := yaml.Marshal(defaultConfig())
	if err != nil {
		return fmt.Errorf("marshal config.yaml: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
