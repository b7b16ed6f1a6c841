// Package config holds the qtop-verifier configuration: YAML file over
// defaults, with QTOP_* environment overrides applied last.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full verifier configuration.
type Config struct {
	Verifier VerifierConfig `yaml:"verifier"`
	Timing   TimingConfig   `yaml:"timing"`
	Quantum  QuantumConfig  `yaml:"quantum"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// VerifierConfig configures the dispatcher and monitor loop.
type VerifierConfig struct {
	// Port for the monitoring-mode status endpoint.
	Port uint16 `yaml:"port"`

	// MonitorInterval is the sweep period, e.g. "10s".
	MonitorInterval string `yaml:"monitor_interval"`
}

// TimingConfig configures the topological timing engine.
type TimingConfig struct {
	// WindingQuantum in radians; one full winding is 2π.
	WindingQuantum float64 `yaml:"winding_quantum"`

	// Delay band in milliseconds.
	MinDelayMs float64 `yaml:"min_delay_ms"`
	MaxDelayMs float64 `yaml:"max_delay_ms"`
}

// QuantumConfig configures the randomness cache.
type QuantumConfig struct {
	CacheSize int    `yaml:"cache_size"`
	Source    string `yaml:"source"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the defaults used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Verifier: VerifierConfig{
			Port:            9090,
			MonitorInterval: "10s",
		},
		Timing: TimingConfig{
			WindingQuantum: 2 * math.Pi,
			MinDelayMs:     0.1,
			MaxDelayMs:     10.0,
		},
		Quantum: QuantumConfig{
			CacheSize: 4096,
			Source:    "simulated",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file if path is
// non-empty, then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Interval returns the parsed monitor sweep interval.
func (c VerifierConfig) Interval() time.Duration {
	d, err := time.ParseDuration(c.MonitorInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// applyEnvOverrides honours QTOP_* variables over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QTOP_PORT"); v != "" {
		if p, err := strconv.ParseUint(v, 10, 16); err == nil {
			c.Verifier.Port = uint16(p)
		}
	}
	if v := os.Getenv("QTOP_MONITOR_INTERVAL"); v != "" {
		c.Verifier.MonitorInterval = v
	}
	if v := os.Getenv("QTOP_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Quantum.CacheSize = n
		}
	}
	if v := os.Getenv("QTOP_QUANTUM_SOURCE"); v != "" {
		c.Quantum.Source = v
	}
	if v := os.Getenv("QTOP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the verifier cannot run with.
func (c *Config) Validate() error {
	if c.Verifier.Port == 0 {
		return fmt.Errorf("verifier.port must be non-zero")
	}
	d, err := time.ParseDuration(c.Verifier.MonitorInterval)
	if err != nil {
		return fmt.Errorf("verifier.monitor_interval %q: %w", c.Verifier.MonitorInterval, err)
	}
	if d <= 0 {
		return fmt.Errorf("verifier.monitor_interval must be positive, got %q", c.Verifier.MonitorInterval)
	}
	if c.Timing.WindingQuantum <= 0 {
		return fmt.Errorf("timing.winding_quantum must be positive, got %v", c.Timing.WindingQuantum)
	}
	if c.Timing.MinDelayMs <= 0 {
		return fmt.Errorf("timing.min_delay_ms must be positive, got %v", c.Timing.MinDelayMs)
	}
	if c.Timing.MaxDelayMs <= c.Timing.MinDelayMs {
		return fmt.Errorf("timing.max_delay_ms (%v) must exceed timing.min_delay_ms (%v)",
			c.Timing.MaxDelayMs, c.Timing.MinDelayMs)
	}
	if c.Quantum.CacheSize <= 0 {
		return fmt.Errorf("quantum.cache_size must be positive, got %d", c.Quantum.CacheSize)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}
