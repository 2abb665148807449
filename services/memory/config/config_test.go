// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMemory/pkg/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultDataDir, cfg.Store.DataDir)
	assert.True(t, cfg.Store.SyncWrites)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, DefaultPromotionInterval, cfg.Promotion.Interval.Std())

	// Default weights must sum to 1 so scores stay in [0, 1].
	sum := cfg.Scoring.RecencyWeight + cfg.Scoring.FrequencyWeight +
		cfg.Scoring.ConfidenceWeight + cfg.Scoring.SalienceWeight
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9191
store:
  data_dir: /tmp/memoryd-test
  sync_writes: false
promotion:
  interval: 30s
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "/tmp/memoryd-test", cfg.Store.DataDir)
	assert.False(t, cfg.Store.SyncWrites)
	assert.Equal(t, 30*time.Second, cfg.Promotion.Interval.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 10, cfg.Scoring.FrequencyCap)
	assert.Equal(t, 500, cfg.Staging.Capacity)
}

func TestLoad_DurationForms(t *testing.T) {
	// Bare integers are seconds; strings go through time.ParseDuration.
	path := writeConfig(t, "promotion:\n  interval: 90\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Promotion.Interval.Std())

	path = writeConfig(t, "promotion:\n  interval: 1h30m\n")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Promotion.Interval.Std())

	path = writeConfig(t, "promotion:\n  interval: soon\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"empty data dir", "store:\n  data_dir: \"\"\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"negative weight", "scoring:\n  recency_weight: -0.1\n"},
		{"threshold above one", "staging:\n  promotion_threshold: 1.5\n"},
		{"zero promotion cap", "promotion:\n  max_per_run: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestLoad_RejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	big := make([]byte, MaxYAMLFileSize+1)
	for i := range big {
		big[i] = '#'
	}
	require.NoError(t, os.WriteFile(path, big, 0600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "exceeds")
}

func TestSessionConfig_Conversion(t *testing.T) {
	cfg := Default()
	cfg.Store.DataDir = "/var/lib/memoryd"
	cfg.Store.MaxRecords = 1234
	cfg.Scoring.FrequencyCap = 7
	cfg.Staging.Capacity = 42
	cfg.Promotion.MaxPerRun = 5
	cfg.Promotion.Interval = Duration(time.Minute)

	sc := cfg.SessionConfig()
	assert.Equal(t, "/var/lib/memoryd", sc.DataDir)
	assert.Equal(t, 1234, sc.MaxRecords)
	assert.Equal(t, 7, sc.Scoring.FrequencyCap)
	assert.Equal(t, 42, sc.Staging.Capacity)
	assert.Equal(t, 5, sc.Promotion.MaxPerRun)
	assert.Equal(t, time.Minute, sc.PromotionInterval)
	assert.True(t, sc.SyncWrites)
}

func TestSessionConfig_ExpandsDataDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	cfg := Default()
	sc := cfg.SessionConfig()
	assert.Equal(t, filepath.Join(home, ".aleutian/memoryd/data"), sc.DataDir)
}

func TestLoggingConfig_Conversion(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warn"
	cfg.Logging.JSON = true
	cfg.Logging.LogDir = "/tmp/logs"

	lc := cfg.LoggingConfig()
	assert.Equal(t, logging.LevelWarn, lc.Level)
	assert.True(t, lc.JSON)
	assert.Equal(t, "/tmp/logs", lc.LogDir)
	assert.Equal(t, "memoryd", lc.Service)
}
