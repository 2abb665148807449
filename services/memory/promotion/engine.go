// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package promotion moves qualifying short-term state into durable storage.
//
// A promotion run gathers candidates from two sources: the staging buffer's
// ready set and the promotable working-context slots. Candidates are ranked
// by importance, capped per run, persisted as fresh durable records, and
// the staging buffer is flushed of everything that made it.
package promotion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/longterm"
	"github.com/AleutianAI/AleutianMemory/services/memory/pending"
	"github.com/AleutianAI/AleutianMemory/services/memory/record"
	"github.com/AleutianAI/AleutianMemory/services/memory/scoring"
	"github.com/AleutianAI/AleutianMemory/services/memory/working"
)

// DefaultMaxPromotionsPerRun caps how many candidates one run persists.
const DefaultMaxPromotionsPerRun = 20

// slotTypes maps each promotable working slot to the memory type its
// contents persist as.
var slotTypes = map[working.Key]record.MemoryType{
	working.KeyRecentDecisions: record.TypeDecision,
	working.KeyKeyFacts:        record.TypeFact,
	working.KeyBlockers:        record.TypeRisk,
}

// CandidateSource names where a promotion candidate came from.
type CandidateSource string

const (
	SourceStaging CandidateSource = "staging"
	SourceWorking CandidateSource = "working"
)

// Candidate is one promotion-ready item with its ranking score.
type Candidate struct {
	// Source is the buffer the candidate came from.
	Source CandidateSource `json:"source"`

	// StagingID is the pending-buffer id for staging candidates, empty
	// for working-context candidates.
	StagingID string `json:"staging_id,omitempty"`

	// Content is the text to persist.
	Content string `json:"content"`

	// MemoryType is the resolved durable type.
	MemoryType record.MemoryType `json:"memory_type"`

	// Confidence is the score the durable record will carry.
	Confidence float64 `json:"confidence"`

	// SuggestedBy is the staging path for staging candidates.
	SuggestedBy record.SuggestedBy `json:"suggested_by,omitempty"`

	// Score ranks candidates within a run.
	Score float64 `json:"score"`
}

// Event summarizes one completed promotion run.
type Event struct {
	// Timestamp is when the run finished.
	Timestamp time.Time `json:"timestamp"`

	// TotalCandidates is how many items qualified before the per-run cap.
	TotalCandidates int `json:"total_candidates"`

	// SuccessCount is how many durable records were written.
	SuccessCount int `json:"success_count"`

	// PromotedIDs are the durable ids of the written records.
	PromotedIDs []string `json:"promoted_ids,omitempty"`

	// BySource breaks SuccessCount down by candidate source.
	BySource map[CandidateSource]int `json:"by_source,omitempty"`
}

// Config configures a promotion engine.
type Config struct {
	// MaxPerRun caps promotions per run. Zero applies
	// DefaultMaxPromotionsPerRun.
	MaxPerRun int `json:"max_per_run"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{MaxPerRun: DefaultMaxPromotionsPerRun}
}

// Engine ranks and persists promotion candidates.
//
// Thread Safety: Safe for concurrent use; the underlying store and buffers
// carry their own synchronization and the engine itself is stateless beyond
// configuration.
type Engine struct {
	cfg     Config
	store   *longterm.Store
	staging *pending.Buffer
	wctx    *working.Context
	scorer  *scoring.Cell
	logger  *slog.Logger
}

// NewEngine creates a promotion engine over a session's buffers and store.
func NewEngine(cfg Config, store *longterm.Store, staging *pending.Buffer, wctx *working.Context, scorer *scoring.Cell, logger *slog.Logger) (*Engine, error) {
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = DefaultMaxPromotionsPerRun
	}
	if store == nil || staging == nil || wctx == nil {
		return nil, ErrMissingDependency
	}
	if scorer == nil {
		return nil, ErrNilScorer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		store:   store,
		staging: staging,
		wctx:    wctx,
		scorer:  scorer,
		logger:  logger,
	}, nil
}

// Evaluate gathers and ranks the current promotion candidates.
//
// Description:
//
//	Staging candidates arrive with their stored score. Working-context
//	slots are re-scored at evaluation time from their access metadata,
//	since slot entries have no staged score. Candidates whose memory
//	type cannot be resolved are dropped with a log line rather than
//	failing the run. The result is sorted by descending score and capped
//	at MaxPerRun; the returned total is the pre-cap candidate count.
//
// Outputs:
//
//	[]Candidate - Ranked, capped candidates
//	int - Total qualifying candidates before the cap
func (e *Engine) Evaluate(now time.Time) ([]Candidate, int) {
	var candidates []Candidate

	for _, c := range e.staging.ReadyForPromotion() {
		mt := c.SuggestedType
		if mt == "" || !record.ValidMemoryTypes[mt] {
			e.logger.Debug("Dropping candidate with unresolved type",
				"candidate_id", c.ID,
				"suggested_type", c.SuggestedType)
			continue
		}
		candidates = append(candidates, Candidate{
			Source:      SourceStaging,
			StagingID:   c.ID,
			Content:     c.Content,
			MemoryType:  mt,
			Confidence:  c.Confidence,
			SuggestedBy: c.SuggestedBy,
			Score:       c.ImportanceScore,
		})
	}

	for _, entry := range e.wctx.PromotableEntries() {
		mt, ok := slotTypes[entry.Key]
		if !ok {
			continue
		}
		content := fmt.Sprintf("%v", entry.Value)
		if content == "" {
			continue
		}
		confidence := record.LevelMedium.Representative()
		score := e.scorer.Score(scoring.Input{
			MemoryType:     mt,
			Confidence:     confidence,
			AccessCount:    entry.AccessCount,
			LastAccessedAt: entry.LastAccessedAt,
			CreatedAt:      entry.UpdatedAt,
		}, now)
		candidates = append(candidates, Candidate{
			Source:     SourceWorking,
			Content:    content,
			MemoryType: mt,
			Confidence: confidence,
			Score:      score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	total := len(candidates)
	if len(candidates) > e.cfg.MaxPerRun {
		candidates = candidates[:e.cfg.MaxPerRun]
	}
	return candidates, total
}

// Promote persists ranked candidates as fresh durable records.
//
// Description:
//
//	Each candidate becomes a new record with a fresh id. A failed write
//	(the store ceiling, validation) skips that candidate and continues;
//	the run is partial-failure tolerant so one bad candidate cannot
//	block the rest.
//
// Outputs:
//
//	[]string - Durable ids of the persisted records
//	[]string - Staging ids consumed by this run, for ClearPromoted
//	map[CandidateSource]int - Success counts by candidate source
func (e *Engine) Promote(ctx context.Context, candidates []Candidate) (promoted, consumed []string, bySource map[CandidateSource]int) {
	bySource = make(map[CandidateSource]int)
	for _, c := range candidates {
		src := record.SourceTool
		if c.Source == SourceStaging {
			src = record.SourceTypeFor(c.SuggestedBy)
		}
		stored, err := e.store.Persist(ctx, record.MemoryRecord{
			Content:    c.Content,
			MemoryType: c.MemoryType,
			Confidence: c.Confidence,
			SourceType: src,
		})
		if err != nil {
			e.logger.Warn("Promotion write failed",
				"source", c.Source,
				"type", c.MemoryType,
				"error", err)
			continue
		}
		promoted = append(promoted, stored.ID)
		bySource[c.Source]++
		if c.StagingID != "" {
			consumed = append(consumed, c.StagingID)
		}
	}
	return promoted, consumed, bySource
}

// Run executes one full promotion cycle.
//
// Description:
//
//	Evaluate, persist, then flush the staging buffer of consumed ids and
//	all agent decisions. Promoted working-context slots stay in place;
//	working context is current-task state, not a queue.
func (e *Engine) Run(ctx context.Context) Event {
	now := time.Now().UTC()
	candidates, total := e.Evaluate(now)
	promoted, consumed, bySource := e.Promote(ctx, candidates)
	e.staging.ClearPromoted(consumed)

	ev := Event{
		Timestamp:       time.Now().UTC(),
		TotalCandidates: total,
		SuccessCount:    len(promoted),
		PromotedIDs:     promoted,
		BySource:        bySource,
	}
	e.logger.Info("Promotion run complete",
		"total_candidates", ev.TotalCandidates,
		"success_count", ev.SuccessCount)
	return ev
}
