package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	// DefaultMaxDatapoints is the per-attribute history cap.
	DefaultMaxDatapoints = 1000

	// DefaultStalenessTimeoutMs removes devices unseen for this long.
	DefaultStalenessTimeoutMs = 60000

	// DefaultStatsWindowMs is the sliding window for sample-rate stats.
	DefaultStatsWindowMs = 1000

	// DefaultMinTypeFetchRetryMs rate-limits schema-fetch retries per key.
	DefaultMinTypeFetchRetryMs = 10000

	// DefaultMaxFrameBytes bounds one inbound frame.
	DefaultMaxFrameBytes = 65536
)

// Config holds the telemetry engine settings.
type Config struct {
	// MaxDatapoints caps each attribute's stored history.
	MaxDatapoints int `yaml:"maxDatapoints"`

	// StalenessTimeoutMs is how long a device may go without records
	// before the liveness sweep removes it.
	StalenessTimeoutMs int64 `yaml:"stalenessTimeoutMs"`

	// StatsWindowMs is the sliding-window duration for sample rates.
	StatsWindowMs int64 `yaml:"statsWindowMs"`

	// MinTypeFetchRetryMs is the minimum interval between schema-fetch
	// attempts for the same type key.
	MinTypeFetchRetryMs int64 `yaml:"minTypeFetchRetryMs"`

	// MaxFrameBytes bounds one inbound frame.
	MaxFrameBytes int `yaml:"maxFrameBytes"`

	// CaptureFile, when set, enables CBOR protocol capture to this path.
	CaptureFile string `yaml:"captureFile,omitempty"`
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		MaxDatapoints:       DefaultMaxDatapoints,
		StalenessTimeoutMs:  DefaultStalenessTimeoutMs,
		StatsWindowMs:       DefaultStatsWindowMs,
		MinTypeFetchRetryMs: DefaultMinTypeFetchRetryMs,
		MaxFrameBytes:       DefaultMaxFrameBytes,
	}
}

// Normalize corrects zero or negative settings to their defaults.
func (c *Config) Normalize() {
	if c.MaxDatapoints <= 0 {
		c.MaxDatapoints = DefaultMaxDatapoints
	}
	if c.StalenessTimeoutMs <= 0 {
		c.StalenessTimeoutMs = DefaultStalenessTimeoutMs
	}
	if c.StatsWindowMs <= 0 {
		c.StatsWindowMs = DefaultStatsWindowMs
	}
	if c.MinTypeFetchRetryMs <= 0 {
		c.MinTypeFetchRetryMs = DefaultMinTypeFetchRetryMs
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = DefaultMaxFrameBytes
	}
}

// Load reads a YAML config file. A missing file yields DefaultConfig.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, applying defaults for absent fields.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}
