package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort              = 8080
	defaultDataDir           = "downloads"
	defaultBinary            = "yt-dlp"
	defaultMaxConcurrentJobs = 4
	defaultJobTimeoutSecs    = 1800
	defaultRetentionMinutes  = 60
	defaultSweepMinutes      = 10
)

// Config describes runtime configuration for the service.
type Config struct {
	Port              int    `yaml:"port"`
	DataDir           string `yaml:"data_dir"`
	Binary            string `yaml:"binary"`
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
	JobTimeoutSecs    int    `yaml:"job_timeout_seconds"`
	RetentionMinutes  int    `yaml:"retention_minutes"`
	SweepMinutes      int    `yaml:"sweep_interval_minutes"`
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{
		Port:              defaultPort,
		DataDir:           defaultDataDir,
		Binary:            defaultBinary,
		MaxConcurrentJobs: defaultMaxConcurrentJobs,
		JobTimeoutSecs:    defaultJobTimeoutSecs,
		RetentionMinutes:  defaultRetentionMinutes,
		SweepMinutes:      defaultSweepMinutes,
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error. The PORT environment
// variable, when set, overrides the configured listen port.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg)
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) > 0 {
		if err := yaml.Unmarshal(fileData, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	// basic normalization
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.JobTimeoutSecs <= 0 {
		cfg.JobTimeoutSecs = defaultJobTimeoutSecs
	}
	if cfg.RetentionMinutes <= 0 {
		cfg.RetentionMinutes = defaultRetentionMinutes
	}
	if cfg.SweepMinutes <= 0 {
		cfg.SweepMinutes = defaultSweepMinutes
	}
	// validate concurrency explicitly: values < 1 are not allowed
	if cfg.MaxConcurrentJobs < 1 {
		return cfg, fmt.Errorf("invalid max_concurrent_jobs: %d (must be >= 1)", cfg.MaxConcurrentJobs)
	}
	return applyEnv(cfg)
}

// applyEnv overlays environment overrides. Only the listen port is
// environment-configurable.
func applyEnv(cfg Config) (Config, error) {
	raw := os.Getenv("PORT")
	if raw == "" {
		return cfg, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return cfg, fmt.Errorf("invalid PORT value: %q", raw)
	}
	cfg.Port = port
	return cfg, nil
}
