// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides configuration loading for the memory daemon.
//
// Configuration comes from a YAML file with defaults applied for any
// omitted section, then passes go-playground/validator checks before the
// daemon accepts it.
//
// Thread Safety:
//
//	Load and Default are safe for concurrent use. A returned Config is a
//	plain value; callers own it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianMemory/pkg/logging"
	"github.com/AleutianAI/AleutianMemory/services/memory/pending"
	"github.com/AleutianAI/AleutianMemory/services/memory/promotion"
	"github.com/AleutianAI/AleutianMemory/services/memory/scoring"
	"github.com/AleutianAI/AleutianMemory/services/memory/session"
)

const (
	// MaxYAMLFileSize is the maximum allowed config file size (1MB).
	MaxYAMLFileSize = 1024 * 1024

	// DefaultPort is the HTTP listen port.
	DefaultPort = 8080

	// DefaultDataDir holds per-project stores. Supports ~ expansion.
	DefaultDataDir = "~/.aleutian/memoryd/data"

	// DefaultPromotionInterval drives the background promotion ticker.
	DefaultPromotionInterval = 5 * time.Minute

	// DefaultShutdownTimeout bounds graceful HTTP shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// configValidate is the validator instance for daemon configuration.
var configValidate = validator.New()

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m". Bare integers are taken as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("invalid duration %q", value.Value)
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String formats the duration like time.Duration.
func (d Duration) String() string { return time.Duration(d).String() }

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port" validate:"gt=0,lte=65535"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// StoreConfig configures the durable per-project stores.
type StoreConfig struct {
	DataDir    string `yaml:"data_dir" validate:"required"`
	MaxRecords int    `yaml:"max_records" validate:"gte=0"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// ScoringConfig configures the importance scorer weights.
type ScoringConfig struct {
	RecencyWeight    float64 `yaml:"recency_weight" validate:"gte=0"`
	FrequencyWeight  float64 `yaml:"frequency_weight" validate:"gte=0"`
	ConfidenceWeight float64 `yaml:"confidence_weight" validate:"gte=0"`
	SalienceWeight   float64 `yaml:"salience_weight" validate:"gte=0"`
	FrequencyCap     int     `yaml:"frequency_cap" validate:"gt=0"`
}

// StagingConfig configures the pending observation buffer.
type StagingConfig struct {
	Capacity           int     `yaml:"capacity" validate:"gt=0"`
	PromotionThreshold float64 `yaml:"promotion_threshold" validate:"gte=0,lte=1"`
}

// PromotionConfig configures the promotion engine and ticker.
type PromotionConfig struct {
	MaxPerRun int      `yaml:"max_per_run" validate:"gt=0"`
	Interval  Duration `yaml:"interval" validate:"gte=0"`
}

// LoggingConfig configures daemon logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON   bool   `yaml:"json"`
	LogDir string `yaml:"log_dir"`
}

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Staging   StagingConfig   `yaml:"staging"`
	Promotion PromotionConfig `yaml:"promotion"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns the configuration the daemon runs with when no file is
// given.
func Default() Config {
	sc := scoring.DefaultConfig()
	st := pending.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            DefaultPort,
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Store: StoreConfig{
			DataDir:    DefaultDataDir,
			MaxRecords: 0, // store default applies
			SyncWrites: true,
		},
		Scoring: ScoringConfig{
			RecencyWeight:    sc.RecencyWeight,
			FrequencyWeight:  sc.FrequencyWeight,
			ConfidenceWeight: sc.ConfidenceWeight,
			SalienceWeight:   sc.SalienceWeight,
			FrequencyCap:     sc.FrequencyCap,
		},
		Staging: StagingConfig{
			Capacity:           st.Capacity,
			PromotionThreshold: st.PromotionThreshold,
		},
		Promotion: PromotionConfig{
			MaxPerRun: promotion.DefaultMaxPromotionsPerRun,
			Interval:  Duration(DefaultPromotionInterval),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, layers it over defaults, and validates
// the result.
//
// Description:
//
//	Missing sections keep their defaults because unmarshal only
//	overwrites fields the file mentions. Files over MaxYAMLFileSize are
//	rejected before parsing.
//
// Inputs:
//
//	path - YAML file path
//
// Outputs:
//
//	Config - the merged, validated configuration
//	error - read, parse, or validation failure
func Load(path string) (Config, error) {
	cfg := Default()

	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("config file: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return Config{}, fmt.Errorf("config file %s exceeds %d bytes", path, MaxYAMLFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SessionConfig converts daemon configuration into a session manager
// configuration.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		DataDir: logging.ExpandPath(c.Store.DataDir),
		Scoring: scoring.Config{
			RecencyWeight:    c.Scoring.RecencyWeight,
			FrequencyWeight:  c.Scoring.FrequencyWeight,
			ConfidenceWeight: c.Scoring.ConfidenceWeight,
			SalienceWeight:   c.Scoring.SalienceWeight,
			FrequencyCap:     c.Scoring.FrequencyCap,
		},
		Staging: pending.Config{
			Capacity:           c.Staging.Capacity,
			PromotionThreshold: c.Staging.PromotionThreshold,
		},
		Promotion: promotion.Config{
			MaxPerRun: c.Promotion.MaxPerRun,
		},
		PromotionInterval: c.Promotion.Interval.Std(),
		MaxRecords:        c.Store.MaxRecords,
		SyncWrites:        c.Store.SyncWrites,
	}
}

// LoggingConfig converts daemon configuration into a logging config.
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:   logging.ParseLevel(c.Logging.Level),
		JSON:    c.Logging.JSON,
		LogDir:  c.Logging.LogDir,
		Service: "memoryd",
	}
}
