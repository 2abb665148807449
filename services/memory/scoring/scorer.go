// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring implements the multi-factor importance scorer.
//
// The score is a weighted sum of four factors: recency (how recently the
// item was touched), frequency (how often), confidence (the item's own
// confidence), and salience (a fixed weight per memory type). Weights live
// in a Config owned by a Cell so the session collaborator can retune them
// at runtime without ambient global state.
package scoring

import (
	"math"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
)

// Default scorer parameters.
const (
	DefaultRecencyWeight    = 0.2
	DefaultFrequencyWeight  = 0.3
	DefaultConfidenceWeight = 0.25
	DefaultSalienceWeight   = 0.25

	// DefaultFrequencyCap is the access count at which the frequency
	// factor saturates at 1.0.
	DefaultFrequencyCap = 10

	// recencyHalfLifeMinutes is where the recency factor reaches ~0.5.
	recencyHalfLifeMinutes = 30.0
)

// Config holds the scorer weights and the frequency cap.
type Config struct {
	// RecencyWeight is the weight of the recency factor. Must be >= 0.
	RecencyWeight float64 `json:"recency_weight"`

	// FrequencyWeight is the weight of the frequency factor. Must be >= 0.
	FrequencyWeight float64 `json:"frequency_weight"`

	// ConfidenceWeight is the weight of the confidence factor. Must be >= 0.
	ConfidenceWeight float64 `json:"confidence_weight"`

	// SalienceWeight is the weight of the type salience factor. Must be >= 0.
	SalienceWeight float64 `json:"salience_weight"`

	// FrequencyCap is the access count at which frequency saturates.
	// Must be positive.
	FrequencyCap int `json:"frequency_cap"`
}

// DefaultConfig returns the default scorer configuration.
func DefaultConfig() Config {
	return Config{
		RecencyWeight:    DefaultRecencyWeight,
		FrequencyWeight:  DefaultFrequencyWeight,
		ConfidenceWeight: DefaultConfidenceWeight,
		SalienceWeight:   DefaultSalienceWeight,
		FrequencyCap:     DefaultFrequencyCap,
	}
}

// Validate checks that weights are non-negative and the cap is positive.
func (c Config) Validate() error {
	if c.RecencyWeight < 0 || c.FrequencyWeight < 0 ||
		c.ConfidenceWeight < 0 || c.SalienceWeight < 0 {
		return ErrNegativeWeight
	}
	if c.FrequencyCap <= 0 {
		return ErrInvalidFrequencyCap
	}
	return nil
}

// salienceByType is the fixed inherent importance per memory type. The
// table covers the full memory-type enum: implementation decisions weigh
// in with the rest of the decision class at 1.0, and alternatives sit
// between facts and hypotheses since they record roads not taken.
var salienceByType = map[record.MemoryType]float64{
	record.TypeDecision:               1.0,
	record.TypeLessonLearned:          1.0,
	record.TypeConvention:             1.0,
	record.TypeRisk:                   1.0,
	record.TypeArchitecturalDecision:  1.0,
	record.TypeCodingStandard:         1.0,
	record.TypeImplementationDecision: 1.0,
	record.TypeDiscovery:              0.8,
	record.TypeFact:                   0.7,
	record.TypeAlternative:            0.6,
	record.TypeHypothesis:             0.5,
	record.TypeAssumption:             0.4,
}

// defaultSalience applies to unknown or unset types.
const defaultSalience = 0.3

// Salience returns the inherent importance weight for a memory type.
func Salience(t record.MemoryType) float64 {
	if s, ok := salienceByType[t]; ok {
		return s
	}
	return defaultSalience
}

// Input is the scoreable view of a candidate or working-context entry.
type Input struct {
	// MemoryType drives the salience factor.
	MemoryType record.MemoryType

	// Confidence feeds the confidence factor directly.
	Confidence float64

	// AccessCount feeds the frequency factor.
	AccessCount int

	// LastAccessedAt feeds the recency factor. Zero means never accessed;
	// the recency factor is then 0 unless CreatedAt is set.
	LastAccessedAt time.Time

	// CreatedAt is the fallback for recency when LastAccessedAt is zero.
	CreatedAt time.Time
}

// InputFromCandidate adapts a staged candidate for scoring.
func InputFromCandidate(c *record.PendingCandidate) Input {
	return Input{
		MemoryType:     c.SuggestedType,
		Confidence:     c.Confidence,
		AccessCount:    c.AccessCount,
		LastAccessedAt: c.LastAccessedAt,
		CreatedAt:      c.CreatedAt,
	}
}

// Breakdown exposes the per-factor values behind a score.
type Breakdown struct {
	Recency    float64 `json:"recency"`
	Frequency  float64 `json:"frequency"`
	Confidence float64 `json:"confidence"`
	Salience   float64 `json:"salience"`
	Total      float64 `json:"total"`
}

// Score computes the weighted importance of an input at the given time.
//
// Description:
//
//	Pure function of (input, config, now). The result is clamped to
//	[0, 1]; a negative intermediate clamps to 0.
func Score(in Input, cfg Config, now time.Time) float64 {
	return ScoreWithBreakdown(in, cfg, now).Total
}

// ScoreWithBreakdown computes the score and its per-factor components.
func ScoreWithBreakdown(in Input, cfg Config, now time.Time) Breakdown {
	b := Breakdown{
		Recency:    recencyFactor(in, now),
		Frequency:  frequencyFactor(in.AccessCount, cfg.FrequencyCap),
		Confidence: clamp01(in.Confidence),
		Salience:   Salience(in.MemoryType),
	}
	total := cfg.RecencyWeight*b.Recency +
		cfg.FrequencyWeight*b.Frequency +
		cfg.ConfidenceWeight*b.Confidence +
		cfg.SalienceWeight*b.Salience
	b.Total = clamp01(total)
	return b
}

// recencyFactor is 1.0 at t=0 and ~0.5 at the half-life.
func recencyFactor(in Input, now time.Time) float64 {
	last := in.LastAccessedAt
	if last.IsZero() {
		last = in.CreatedAt
	}
	if last.IsZero() {
		return 0
	}
	minutes := now.Sub(last).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	return 1.0 / (1.0 + minutes/recencyHalfLifeMinutes)
}

func frequencyFactor(accessCount, freqCap int) float64 {
	if freqCap <= 0 {
		freqCap = DefaultFrequencyCap
	}
	return math.Min(float64(accessCount)/float64(freqCap), 1.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Cell owns the mutable scorer configuration.
//
// Thread Safety: Safe for concurrent use. Configure replaces the whole
// config atomically; readers always see a complete config.
type Cell struct {
	mu  sync.RWMutex
	cfg Config
}

// NewCell returns a Cell holding the default configuration.
func NewCell() *Cell {
	return &Cell{cfg: DefaultConfig()}
}

// Configure replaces the configuration after validating it.
func (c *Cell) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	return nil
}

// Reset restores the default configuration.
func (c *Cell) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = DefaultConfig()
}

// Snapshot returns a copy of the current configuration.
func (c *Cell) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Score computes the importance of an input under the current config.
func (c *Cell) Score(in Input, now time.Time) float64 {
	return Score(in, c.Snapshot(), now)
}

// ScoreWithBreakdown computes the per-factor breakdown under the current
// config.
func (c *Cell) ScoreWithBreakdown(in Input, now time.Time) Breakdown {
	return ScoreWithBreakdown(in, c.Snapshot(), now)
}
