// Package config loads telemetry engine settings from YAML.
//
// All settings have sensible defaults; a missing file or empty document
// yields DefaultConfig. Zero or negative values are corrected to their
// defaults so a partially-filled file never produces a degenerate engine.
package config
