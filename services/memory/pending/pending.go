// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pending implements the bounded promotion-candidate staging buffer.
//
// Observations land here via two paths: implicit detections get a computed
// importance score and compete for space; explicit agent decisions are
// pinned at score 1.0 and bypass the promotion threshold. The buffer never
// exceeds its capacity: inserting into a full buffer first evicts the
// single lowest-scoring implicit item, oldest first on ties. Agent items
// are only evicted when no implicit item remains.
package pending

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
	"github.com/AleutianAI/AleutianMemory/services/memory/scoring"
)

// Defaults for the staging buffer.
const (
	// DefaultCapacity bounds the number of staged candidates.
	DefaultCapacity = 500

	// DefaultPromotionThreshold is the minimum implicit score for
	// promotion readiness. The boundary is inclusive.
	DefaultPromotionThreshold = 0.6
)

// Config configures a staging buffer.
type Config struct {
	// Capacity is the maximum number of staged candidates. Must be
	// positive.
	Capacity int `json:"capacity"`

	// PromotionThreshold is the inclusive minimum score for implicit
	// candidates to be promotion-ready.
	PromotionThreshold float64 `json:"promotion_threshold"`
}

// DefaultConfig returns the default staging configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:           DefaultCapacity,
		PromotionThreshold: DefaultPromotionThreshold,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if c.PromotionThreshold < 0 || c.PromotionThreshold > 1 {
		return ErrInvalidThreshold
	}
	return nil
}

// Buffer is a per-session staging area for promotion candidates.
//
// Thread Safety: Safe for concurrent use; all mutation goes through one
// internal mutex, which is the session's single-writer discipline for
// staged state.
type Buffer struct {
	mu     sync.Mutex
	cfg    Config
	scorer *scoring.Cell
	logger *slog.Logger

	items map[string]*record.PendingCandidate

	// Stats.
	evictions int64
}

// NewBuffer creates a staging buffer.
//
// Inputs:
//
//	cfg - Buffer configuration; zero values fall back to defaults
//	scorer - Importance scorer cell. Must not be nil.
//	logger - Logger; nil falls back to slog.Default()
func NewBuffer(cfg Config, scorer *scoring.Cell, logger *slog.Logger) (*Buffer, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.PromotionThreshold == 0 {
		cfg.PromotionThreshold = DefaultPromotionThreshold
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scorer == nil {
		return nil, ErrNilScorer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{
		cfg:    cfg,
		scorer: scorer,
		logger: logger,
		items:  make(map[string]*record.PendingCandidate),
	}, nil
}

// AddImplicit stages an implicitly detected observation.
//
// Description:
//
//	Computes the candidate's importance score and inserts it, evicting
//	the lowest-scoring implicit item first when the buffer is full.
//	Content is required; an empty suggested type is allowed and resolves
//	(or is dropped) at promotion time.
//
// Outputs:
//
//	*record.PendingCandidate - The staged candidate with id and score set
//	error - Non-nil for empty content or out-of-range confidence
func (b *Buffer) AddImplicit(content string, suggestedType record.MemoryType, confidence float64) (*record.PendingCandidate, error) {
	return b.add(content, suggestedType, confidence, record.SuggestedImplicit)
}

// AddAgentDecision stages an explicit agent decision.
//
// Description:
//
//	Forces suggested_by=agent and importance 1.0. Agent decisions bypass
//	the promotion threshold but still count against capacity.
func (b *Buffer) AddAgentDecision(content string, suggestedType record.MemoryType, confidence float64) (*record.PendingCandidate, error) {
	return b.add(content, suggestedType, confidence, record.SuggestedAgent)
}

func (b *Buffer) add(content string, suggestedType record.MemoryType, confidence float64, by record.SuggestedBy) (*record.PendingCandidate, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if confidence < 0 || confidence > 1 {
		return nil, record.ErrInvalidConfidence
	}
	if suggestedType != "" && !record.ValidMemoryTypes[suggestedType] {
		return nil, record.ErrInvalidMemoryType
	}

	now := time.Now().UTC()
	cand := &record.PendingCandidate{
		ID:             uuid.NewString(),
		Content:        record.TruncateContent(content),
		SuggestedType:  suggestedType,
		Confidence:     confidence,
		SuggestedBy:    by,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if by == record.SuggestedAgent {
		cand.ImportanceScore = 1.0
	} else {
		cand.ImportanceScore = b.scorer.Score(scoring.InputFromCandidate(cand), now)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) >= b.cfg.Capacity {
		b.evictLocked()
	}
	b.items[cand.ID] = cand
	return cand, nil
}

// evictLocked removes the lowest-scoring implicit item, oldest first on
// ties. When only agent items remain, the oldest agent item goes instead so
// the capacity invariant holds.
func (b *Buffer) evictLocked() {
	var victim *record.PendingCandidate
	for _, item := range b.items {
		if item.SuggestedBy == record.SuggestedAgent {
			continue
		}
		if victim == nil ||
			item.ImportanceScore < victim.ImportanceScore ||
			(item.ImportanceScore == victim.ImportanceScore && item.CreatedAt.Before(victim.CreatedAt)) {
			victim = item
		}
	}
	if victim == nil {
		for _, item := range b.items {
			if victim == nil || item.CreatedAt.Before(victim.CreatedAt) {
				victim = item
			}
		}
	}
	if victim == nil {
		return
	}
	delete(b.items, victim.ID)
	b.evictions++
	b.logger.Debug("Evicted pending candidate",
		"candidate_id", victim.ID,
		"score", victim.ImportanceScore,
		"suggested_by", victim.SuggestedBy)
}

// ReadyForPromotion returns the candidates eligible for promotion.
//
// Description:
//
//	All agent decisions, plus implicit candidates whose score is at or
//	above the promotion threshold. The score boundary is inclusive.
func (b *Buffer) ReadyForPromotion() []record.PendingCandidate {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ready []record.PendingCandidate
	for _, item := range b.items {
		if item.SuggestedBy == record.SuggestedAgent ||
			item.ImportanceScore >= b.cfg.PromotionThreshold {
			ready = append(ready, *item)
		}
	}
	return ready
}

// ClearPromoted removes the given ids and all agent decisions.
//
// Description:
//
//	Agent decisions are transient hand-off records; a promotion cycle
//	always flushes them regardless of the id list. Unknown ids are
//	no-ops, not errors.
func (b *Buffer) ClearPromoted(ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.items, id)
	}
	for id, item := range b.items {
		if item.SuggestedBy == record.SuggestedAgent {
			delete(b.items, id)
		}
	}
}

// Get returns a copy of a staged candidate.
func (b *Buffer) Get(id string) (*record.PendingCandidate, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item, ok := b.items[id]
	if !ok {
		return nil, false
	}
	out := *item
	return &out, true
}

// Len returns the number of staged candidates.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Evictions returns how many candidates capacity pressure has dropped.
func (b *Buffer) Evictions() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evictions
}
