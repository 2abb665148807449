// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memory provides the memory subsystem HTTP service.
//
// The service exposes endpoints for:
//   - Session lifecycle over per-project durable stores
//   - Explicit remembers and implicit observation staging
//   - Semantic recall, graph traversal, and aggregate stats
//   - Working-context slots and budgeted context assembly
package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianMemory/services/memory/assembler"
	"github.com/AleutianAI/AleutianMemory/services/memory/longterm"
	"github.com/AleutianAI/AleutianMemory/services/memory/promotion"
	"github.com/AleutianAI/AleutianMemory/services/memory/record"
	"github.com/AleutianAI/AleutianMemory/services/memory/session"
	"github.com/AleutianAI/AleutianMemory/services/memory/working"
)

// ServiceVersion is the memory service version.
const ServiceVersion = "0.1.0"

// Service is the memory subsystem service.
//
// Thread Safety: Safe for concurrent use. Session routing is locked by the
// manager; per-session state carries its own synchronization.
type Service struct {
	manager *session.Manager
	logger  *slog.Logger
}

// NewService creates the memory service over a session manager.
func NewService(manager *session.Manager, logger *slog.Logger) (*Service, error) {
	if manager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{manager: manager, logger: logger}, nil
}

// OpenSession opens a session bound to a project store.
func (s *Service) OpenSession(sessionID, projectID string) (*session.Session, error) {
	return s.manager.Open(sessionID, projectID)
}

// Teardown ends a session, running a final promotion pass first.
func (s *Service) Teardown(ctx context.Context, sessionID string) error {
	return s.manager.Teardown(ctx, sessionID)
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	return len(s.manager.Sessions())
}

// Close shuts the service down, tearing down all sessions.
func (s *Service) Close(ctx context.Context) error {
	return s.manager.Close(ctx)
}

// Remember stores an explicit durable record for a session.
//
// Description:
//
//	Explicit remembers bypass staging: the caller has already decided
//	the observation matters, so it goes straight to the durable store.
func (s *Service) Remember(ctx context.Context, sessionID string, req RememberRequest) (*record.MemoryRecord, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	src := req.SourceType
	if src == "" {
		src = record.SourceUser
	}
	return sess.Store.Persist(ctx, record.MemoryRecord{
		SessionID:    sessionID,
		Content:      req.Content,
		MemoryType:   req.MemoryType,
		Confidence:   req.Confidence,
		SourceType:   src,
		Rationale:    req.Rationale,
		EvidenceRefs: req.EvidenceRefs,
		Tags:         req.Tags,
	})
}

// Observe stages an observation for eventual promotion.
func (s *Service) Observe(sessionID string, req ObserveRequest) (*record.PendingCandidate, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if req.AgentDecision {
		return sess.Staging.AddAgentDecision(req.Content, req.SuggestedType, req.Confidence)
	}
	return sess.Staging.AddImplicit(req.Content, req.SuggestedType, req.Confidence)
}

// Recall searches the session's durable store and marks hits accessed.
func (s *Service) Recall(ctx context.Context, sessionID string, req RecallRequest) ([]longterm.SearchHit, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Store.Search(ctx, req.Query, longterm.SearchOptions{
		Mode:              req.Mode,
		MemoryType:        req.MemoryType,
		MinConfidence:     req.MinConfidence,
		Limit:             req.Limit,
		IncludeSuperseded: req.IncludeSuperseded,
		MarkAccessed:      true,
	})
}

// GetMemory retrieves one durable record by id.
func (s *Service) GetMemory(ctx context.Context, sessionID, memoryID string) (*record.MemoryRecord, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Store.Get(ctx, memoryID)
}

// QueryMemories lists durable records with filters.
func (s *Service) QueryMemories(ctx context.Context, sessionID string, opts longterm.QueryOptions) ([]record.MemoryRecord, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Store.Query(ctx, opts)
}

// UpdateMemory applies a partial update to a durable record.
func (s *Service) UpdateMemory(ctx context.Context, sessionID, memoryID string, req UpdateMemoryRequest) (*record.MemoryRecord, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Store.Update(ctx, memoryID, longterm.UpdateOptions{
		Confidence:   req.Confidence,
		AddEvidence:  req.AddEvidence,
		AddRationale: req.AddRationale,
		AddTags:      req.AddTags,
	})
}

// Forget soft-deletes a record via supersession.
func (s *Service) Forget(ctx context.Context, sessionID, memoryID, replacementID string) error {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.Store.Supersede(ctx, memoryID, replacementID)
}

// DeleteMemory hard-removes a record.
func (s *Service) DeleteMemory(ctx context.Context, sessionID, memoryID string) error {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.Store.Delete(ctx, memoryID)
}

// QueryGraph traverses the memory graph from a record.
func (s *Service) QueryGraph(ctx context.Context, sessionID, memoryID string, req GraphQueryRequest) ([]longterm.Related, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Store.QueryRelated(ctx, memoryID, longterm.GraphOptions{
		Relationship:      req.Relationship,
		Depth:             req.Depth,
		PerLevelLimit:     req.PerLevelLimit,
		IncludeSuperseded: req.IncludeSuperseded,
	})
}

// Stats aggregates durable and session-local memory state.
func (s *Service) Stats(ctx context.Context, sessionID string) (*StatsResponse, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	storeStats, err := sess.Store.ComputeStats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsResponse{
		Store: storeStats,
		Staging: StagingStats{
			Size:      sess.Staging.Len(),
			Evictions: sess.Staging.Evictions(),
		},
		Working: sess.Working.Len(),
	}, nil
}

// ExportTriples renders one record in the external vocabulary.
func (s *Service) ExportTriples(ctx context.Context, sessionID, memoryID string) ([]record.Triple, error) {
	r, err := s.GetMemory(ctx, sessionID, memoryID)
	if err != nil {
		return nil, err
	}
	return r.ToTriples()
}

// WorkingSet writes one working-context slot.
func (s *Service) WorkingSet(sessionID string, key working.Key, value any) error {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.Working.Set(key, value)
}

// WorkingGet reads one working-context slot.
func (s *Service) WorkingGet(sessionID string, key working.Key) (*working.Entry, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Working.Get(key)
}

// WorkingDelete clears one working-context slot.
func (s *Service) WorkingDelete(sessionID string, key working.Key) error {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.Working.Delete(key)
}

// WorkingSnapshot returns all visible working-context entries.
func (s *Service) WorkingSnapshot(sessionID string) (map[working.Key]working.Entry, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Working.Snapshot(), nil
}

// Promote runs one promotion cycle for a session.
func (s *Service) Promote(ctx context.Context, sessionID string) (promotion.Event, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return promotion.Event{}, err
	}
	return sess.Promoter.RunNow(ctx), nil
}

// Assemble builds budgeted context for a session.
//
// Description:
//
//	When the request carries a query, long-term candidates come from a
//	hybrid recall over the session's store; recalled records are marked
//	accessed so assembly feeds the importance scorer like any other
//	read.
func (s *Service) Assemble(ctx context.Context, sessionID string, req AssembleRequest) (*assembler.Assembled, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var memories []record.MemoryRecord
	if req.Query != "" {
		hits, err := sess.Store.Search(ctx, req.Query, longterm.SearchOptions{
			MarkAccessed: true,
		})
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			memories = append(memories, h.Record)
		}
	}

	return sess.Assembler.Build(assembler.BuildRequest{
		SystemPrompt:   req.SystemPrompt,
		Messages:       req.Messages,
		Memories:       memories,
		TotalBudget:    req.TotalBudget,
		ForceSummarize: req.ForceSummarize,
	}), nil
}
