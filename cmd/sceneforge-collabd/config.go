// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML fields written as "30s", "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config is the daemon configuration file.
type Config struct {
	// Listen is the HTTP bind address.
	Listen string `yaml:"listen"`

	// Database is the SQLite file for scene snapshots. Empty disables
	// persistence: scenes live only in memory.
	Database string `yaml:"database"`

	// WebhookURL, when set, receives operation batches and control
	// transitions.
	WebhookURL     string   `yaml:"webhook_url"`
	WebhookTimeout Duration `yaml:"webhook_timeout"`

	// ControlTTL is the default control lock hold time.
	ControlTTL Duration `yaml:"control_ttl"`

	// PingInterval and PongTimeout drive the duplex heartbeat.
	PingInterval Duration `yaml:"ping_interval"`
	PongTimeout  Duration `yaml:"pong_timeout"`

	// PresenceTTL is how long a silent actor stays on the roster;
	// SweepInterval is how often the sweep runs.
	PresenceTTL   Duration `yaml:"presence_ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`

	// FlushInterval is how often dirty rooms persist.
	FlushInterval Duration `yaml:"flush_interval"`

	// RoomIdleTTL is how long a clean, unwatched room survives before
	// eviction; EvictInterval is how often eviction runs.
	RoomIdleTTL   Duration `yaml:"room_idle_ttl"`
	EvictInterval Duration `yaml:"evict_interval"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// Disabled starts the collaboration gate off; an operator flips it
	// on once the rollout is ready.
	Disabled bool `yaml:"disabled"`
}

// DefaultConfig returns the configuration used when fields are absent.
func DefaultConfig() Config {
	return Config{
		Listen:         ":8391",
		WebhookTimeout: Duration{10 * time.Second},
		ControlTTL:     Duration{2 * time.Minute},
		PingInterval:   Duration{25 * time.Second},
		PongTimeout:    Duration{60 * time.Second},
		PresenceTTL:    Duration{90 * time.Second},
		SweepInterval:  Duration{15 * time.Second},
		FlushInterval:  Duration{30 * time.Second},
		RoomIdleTTL:    Duration{30 * time.Minute},
		EvictInterval:  Duration{5 * time.Minute},
		LogLevel:       "info",
	}
}

// LoadConfig reads the file over the defaults. An empty path returns
// the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	for name, d := range map[string]Duration{
		"control_ttl":    c.ControlTTL,
		"ping_interval":  c.PingInterval,
		"pong_timeout":   c.PongTimeout,
		"presence_ttl":   c.PresenceTTL,
		"sweep_interval": c.SweepInterval,
		"flush_interval": c.FlushInterval,
		"room_idle_ttl":  c.RoomIdleTTL,
		"evict_interval": c.EvictInterval,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.PongTimeout.Duration <= c.PingInterval.Duration {
		return fmt.Errorf("pong_timeout must exceed ping_interval")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
