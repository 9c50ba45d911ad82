// Package config loads the YAML configuration file that tunes session
// lifecycle, research, TRD quality gating, node timeouts, and event/
// checkpoint retention: a typed Go struct tagged for go.yaml.in/yaml/v2,
// unmarshalled over the defaults, then validated.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v2"
)

// Duration wraps time.Duration with a YAML scalar codec, since yaml.v2
// has no built-in time.Duration support. Accepts anything
// time.ParseDuration does ("30m", "120s") plus a trailing "d" for days
// ("7d"), matching the unit shorthand the documented defaults use.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

func parseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q: %w", s, err)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	return time.ParseDuration(s)
}

// Config is the root of config.yaml.
type Config struct {
	Session    SessionConfig    `yaml:"session"`
	Research   ResearchConfig   `yaml:"research"`
	TRD        TRDConfig        `yaml:"trd"`
	Node       NodeConfig       `yaml:"node"`
	Event      EventConfig      `yaml:"event"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// SessionConfig controls session expiry and idle reminders.
type SessionConfig struct {
	TTL              Duration `yaml:"ttl"`
	UserIdleReminder Duration `yaml:"user_idle_reminder"`
}

// ResearchConfig bounds the tech-gap research loop.
type ResearchConfig struct {
	MaxGapsPerSession int      `yaml:"max_gaps_per_session"`
	OptionsPerGap     int      `yaml:"options_per_gap"`
	CacheTTL          Duration `yaml:"cache_ttl"`
}

// TRDConfig governs TRD acceptance and retry behavior.
type TRDConfig struct {
	QualityThreshold int `yaml:"quality_threshold"`
	MaxRegenerations int `yaml:"max_regenerations"`
}

// NodeConfig sets the default per-node execution timeout.
type NodeConfig struct {
	DefaultTimeout Duration `yaml:"default_timeout"`
}

// EventConfig bounds the per-session event replay buffer.
type EventConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
}

// CheckpointConfig controls checkpoint chain compaction.
type CheckpointConfig struct {
	CompactAfter int `yaml:"compact_after"`
}

// Defaults returns the documented defaults for every recognized key.
func Defaults() Config {
	return Config{
		Session: SessionConfig{
			TTL:              Duration(7 * 24 * time.Hour),
			UserIdleReminder: Duration(30 * time.Minute),
		},
		Research: ResearchConfig{
			MaxGapsPerSession: 0, // unbounded
			OptionsPerGap:     3,
			CacheTTL:          Duration(24 * time.Hour),
		},
		TRD: TRDConfig{
			QualityThreshold: 90,
			MaxRegenerations: 3,
		},
		Node: NodeConfig{
			DefaultTimeout: Duration(120 * time.Second),
		},
		Event: EventConfig{
			QueueCapacity: 100,
		},
		Checkpoint: CheckpointConfig{
			CompactAfter: 0, // disabled
		},
	}
}

// Load reads path, unmarshals it over the documented defaults (so any key
// the file omits keeps its default rather than zeroing out), and
// validates the result. A missing file is not an error: Load returns
// Defaults() unchanged, matching every key's documented default.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Research.OptionsPerGap < 2 || cfg.Research.OptionsPerGap > 5 {
		return fmt.Errorf("research.options_per_gap must be in [2,5], got %d", cfg.Research.OptionsPerGap)
	}
	if cfg.Research.MaxGapsPerSession < 0 {
		return fmt.Errorf("research.max_gaps_per_session must be >= 0, got %d", cfg.Research.MaxGapsPerSession)
	}
	if cfg.TRD.QualityThreshold < 0 || cfg.TRD.QualityThreshold > 100 {
		return fmt.Errorf("trd.quality_threshold must be in [0,100], got %d", cfg.TRD.QualityThreshold)
	}
	if cfg.TRD.MaxRegenerations != 3 {
		return fmt.Errorf("trd.max_regenerations is structurally fixed at 3 by the iteration_count invariant, got %d", cfg.TRD.MaxRegenerations)
	}
	if cfg.Node.DefaultTimeout <= 0 {
		return fmt.Errorf("node.default_timeout must be positive, got %s", cfg.Node.DefaultTimeout)
	}
	if cfg.Event.QueueCapacity <= 0 {
		return fmt.Errorf("event.queue_capacity must be positive, got %d", cfg.Event.QueueCapacity)
	}
	if cfg.Checkpoint.CompactAfter < 0 {
		return fmt.Errorf("checkpoint.compact_after must be >= 0, got %d", cfg.Checkpoint.CompactAfter)
	}
	return nil
}
