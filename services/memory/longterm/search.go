// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package longterm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
	"github.com/AleutianAI/AleutianMemory/services/memory/semantic"
)

// SearchOptions configures a Search call.
type SearchOptions struct {
	// Mode selects the retrieval strategy. Empty applies hybrid.
	Mode semantic.SearchMode

	// MemoryType narrows the candidate set when non-empty.
	MemoryType record.MemoryType

	// MinConfidence drops candidates below the threshold before ranking.
	MinConfidence float64

	// Limit caps results. Non-positive or above HardQueryCap applies
	// HardQueryCap.
	Limit int

	// IncludeSuperseded keeps soft-deleted records in the candidate set.
	IncludeSuperseded bool

	// MarkAccessed bumps access stats on every returned record, feeding
	// the scorer's recency and frequency factors.
	MarkAccessed bool
}

// SearchHit is one scored search result.
type SearchHit struct {
	Record record.MemoryRecord `json:"record"`
	Score  float64             `json:"score"`
}

// Search ranks durable records against a text query.
//
// Description:
//
//	Loads the candidate set through Query (so type, confidence, limit,
//	and supersession filters apply), sanitizes the query text, and ranks
//	over each record's content, rationale, and tags. An unknown mode is
//	rejected rather than silently defaulted.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchHit, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	mode := opts.Mode
	if mode == "" {
		mode = semantic.ModeHybrid
	}
	if !semantic.ValidSearchModes[mode] {
		return nil, fmt.Errorf("invalid search mode %q", opts.Mode)
	}

	ctx, span := storeTracer.Start(ctx, "memory.Store.Search",
		trace.WithAttributes(attribute.String("mode", string(mode))))
	defer span.End()

	candidates, err := s.Query(ctx, QueryOptions{
		MemoryType:        opts.MemoryType,
		MinConfidence:     opts.MinConfidence,
		IncludeSuperseded: opts.IncludeSuperseded,
	})
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 || limit > HardQueryCap {
		limit = HardQueryCap
	}

	clean := record.SanitizeQueryText(query)
	ranked := semantic.Search(clean, mode, len(candidates), func(i int) string {
		return searchText(&candidates[i])
	}, semantic.RankOptions{Limit: limit})

	hits := make([]SearchHit, 0, len(ranked))
	for _, rk := range ranked {
		hits = append(hits, SearchHit{Record: candidates[rk.Index], Score: rk.Score})
	}
	span.SetAttributes(
		attribute.Int("candidate_count", len(candidates)),
		attribute.Int("hit_count", len(hits)),
	)

	if opts.MarkAccessed {
		for i := range hits {
			if err := s.MarkAccessed(ctx, hits[i].Record.ID); err != nil {
				s.logger.Warn("Failed to mark memory accessed",
					"memory_id", hits[i].Record.ID,
					"error", err)
				continue
			}
			hits[i].Record.AccessCount++
		}
	}
	return hits, nil
}

// searchText is the text surface a record exposes to ranking.
func searchText(r *record.MemoryRecord) string {
	text := r.Content
	if r.Rationale != "" {
		text += "\n" + r.Rationale
	}
	for _, tag := range r.Tags {
		text += "\n" + tag
	}
	return text
}
