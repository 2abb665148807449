// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
)

func TestScoreBounds(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()

	inputs := []Input{
		{},
		{MemoryType: record.TypeDecision, Confidence: 1.0, AccessCount: 100, LastAccessedAt: now},
		{MemoryType: record.TypeAssumption, Confidence: 0.0, CreatedAt: now.Add(-240 * time.Hour)},
		{MemoryType: record.MemoryType("nonsense"), Confidence: 0.5, AccessCount: 3, LastAccessedAt: now.Add(-time.Hour)},
	}
	for _, in := range inputs {
		got := Score(in, cfg, now)
		if got < 0 || got > 1 {
			t.Errorf("Score(%+v) = %v, outside [0,1]", in, got)
		}
	}
}

func TestRecencyFactor(t *testing.T) {
	now := time.Now()
	cfg := Config{RecencyWeight: 1, FrequencyCap: DefaultFrequencyCap}

	t.Run("fresh access scores 1.0", func(t *testing.T) {
		b := ScoreWithBreakdown(Input{LastAccessedAt: now}, cfg, now)
		if b.Recency != 1.0 {
			t.Errorf("recency at t=0 is %v, want 1.0", b.Recency)
		}
	})

	t.Run("half life at 30 minutes", func(t *testing.T) {
		b := ScoreWithBreakdown(Input{LastAccessedAt: now.Add(-30 * time.Minute)}, cfg, now)
		if math.Abs(b.Recency-0.5) > 1e-9 {
			t.Errorf("recency at 30m is %v, want 0.5", b.Recency)
		}
	})

	t.Run("falls back to created_at", func(t *testing.T) {
		b := ScoreWithBreakdown(Input{CreatedAt: now.Add(-30 * time.Minute)}, cfg, now)
		if math.Abs(b.Recency-0.5) > 1e-9 {
			t.Errorf("recency via created_at is %v, want 0.5", b.Recency)
		}
	})
}

func TestFrequencyFactor(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()

	b := ScoreWithBreakdown(Input{AccessCount: 5, LastAccessedAt: now}, cfg, now)
	if math.Abs(b.Frequency-0.5) > 1e-9 {
		t.Errorf("frequency at 5/10 is %v, want 0.5", b.Frequency)
	}

	b = ScoreWithBreakdown(Input{AccessCount: 50, LastAccessedAt: now}, cfg, now)
	if b.Frequency != 1.0 {
		t.Errorf("frequency should saturate at 1.0, got %v", b.Frequency)
	}
}

func TestSalienceTable(t *testing.T) {
	cases := []struct {
		mt   record.MemoryType
		want float64
	}{
		{record.TypeDecision, 1.0},
		{record.TypeLessonLearned, 1.0},
		{record.TypeConvention, 1.0},
		{record.TypeRisk, 1.0},
		{record.TypeArchitecturalDecision, 1.0},
		{record.TypeCodingStandard, 1.0},
		{record.TypeDiscovery, 0.8},
		{record.TypeFact, 0.7},
		{record.TypeHypothesis, 0.5},
		{record.TypeAssumption, 0.4},
		{record.TypeUnknown, 0.3},
		{record.MemoryType(""), 0.3},
	}
	for _, tc := range cases {
		if got := Salience(tc.mt); got != tc.want {
			t.Errorf("Salience(%q) = %v, want %v", tc.mt, got, tc.want)
		}
	}
}

func TestDefaultWeights(t *testing.T) {
	now := time.Now()
	// Perfect candidate: every factor at 1.0 sums the weights exactly.
	in := Input{
		MemoryType:     record.TypeDecision,
		Confidence:     1.0,
		AccessCount:    DefaultFrequencyCap,
		LastAccessedAt: now,
	}
	got := Score(in, DefaultConfig(), now)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("perfect candidate scored %v, want 1.0", got)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("defaults valid", func(t *testing.T) {
		if err := DefaultConfig().Validate(); err != nil {
			t.Errorf("default config invalid: %v", err)
		}
	})

	t.Run("negative weight rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SalienceWeight = -0.1
		if err := cfg.Validate(); err != ErrNegativeWeight {
			t.Errorf("expected ErrNegativeWeight, got %v", err)
		}
	})

	t.Run("zero cap rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FrequencyCap = 0
		if err := cfg.Validate(); err != ErrInvalidFrequencyCap {
			t.Errorf("expected ErrInvalidFrequencyCap, got %v", err)
		}
	})
}

func TestCell(t *testing.T) {
	t.Run("configure then reset", func(t *testing.T) {
		cell := NewCell()
		custom := DefaultConfig()
		custom.RecencyWeight = 0.5
		if err := cell.Configure(custom); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		if got := cell.Snapshot().RecencyWeight; got != 0.5 {
			t.Errorf("snapshot weight %v, want 0.5", got)
		}
		cell.Reset()
		if got := cell.Snapshot(); got != DefaultConfig() {
			t.Errorf("reset did not restore defaults: %+v", got)
		}
	})

	t.Run("invalid config rejected and old config kept", func(t *testing.T) {
		cell := NewCell()
		bad := DefaultConfig()
		bad.FrequencyWeight = -1
		if err := cell.Configure(bad); err == nil {
			t.Fatal("expected error for invalid config")
		}
		if got := cell.Snapshot(); got != DefaultConfig() {
			t.Errorf("failed configure mutated the cell: %+v", got)
		}
	})
}
