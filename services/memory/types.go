// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"github.com/AleutianAI/AleutianMemory/services/memory/assembler"
	"github.com/AleutianAI/AleutianMemory/services/memory/longterm"
	"github.com/AleutianAI/AleutianMemory/services/memory/promotion"
	"github.com/AleutianAI/AleutianMemory/services/memory/record"
	"github.com/AleutianAI/AleutianMemory/services/memory/semantic"
	"github.com/AleutianAI/AleutianMemory/services/memory/working"
)

// OpenSessionRequest is the request body for POST /sessions.
type OpenSessionRequest struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id" binding:"required"`

	// ProjectID routes the session to its durable store.
	ProjectID string `json:"project_id" binding:"required"`
}

// OpenSessionResponse confirms a session open.
type OpenSessionResponse struct {
	SessionID string `json:"session_id"`
	ProjectID string `json:"project_id"`
	CreatedAt string `json:"created_at"`
}

// RememberRequest is the request body for explicit durable stores.
type RememberRequest struct {
	Content      string            `json:"content" binding:"required"`
	MemoryType   record.MemoryType `json:"memory_type" binding:"required"`
	Confidence   float64           `json:"confidence"`
	SourceType   record.SourceType `json:"source_type"`
	Rationale    string            `json:"rationale,omitempty"`
	EvidenceRefs []string          `json:"evidence_refs,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}

// RememberResponse returns the stored record.
type RememberResponse struct {
	Memory *record.MemoryRecord `json:"memory"`
}

// ObserveRequest stages an implicit observation or agent decision.
type ObserveRequest struct {
	Content       string            `json:"content" binding:"required"`
	SuggestedType record.MemoryType `json:"suggested_type,omitempty"`
	Confidence    float64           `json:"confidence"`

	// AgentDecision pins the candidate at importance 1.0.
	AgentDecision bool `json:"agent_decision"`
}

// ObserveResponse returns the staged candidate.
type ObserveResponse struct {
	Candidate *record.PendingCandidate `json:"candidate"`
}

// RecallRequest is the request body for semantic recall.
type RecallRequest struct {
	Query             string              `json:"query" binding:"required"`
	Mode              semantic.SearchMode `json:"mode,omitempty"`
	MemoryType        record.MemoryType   `json:"memory_type,omitempty"`
	MinConfidence     float64             `json:"min_confidence"`
	Limit             int                 `json:"limit"`
	IncludeSuperseded bool                `json:"include_superseded"`
}

// RecallResponse returns scored hits.
type RecallResponse struct {
	Hits []longterm.SearchHit `json:"hits"`
}

// QueryResponse returns a filtered record listing.
type QueryResponse struct {
	Memories []record.MemoryRecord `json:"memories"`
}

// UpdateMemoryRequest is the request body for partial record updates.
type UpdateMemoryRequest struct {
	Confidence   *float64 `json:"confidence,omitempty"`
	AddEvidence  []string `json:"add_evidence,omitempty"`
	AddRationale string   `json:"add_rationale,omitempty"`
	AddTags      []string `json:"add_tags,omitempty"`
}

// ForgetRequest is the request body for supersession.
type ForgetRequest struct {
	// ReplacementID links the record that supersedes this one. Optional:
	// forgetting without a replacement just timestamps the record dead.
	ReplacementID string `json:"replacement_id,omitempty"`
}

// GraphQueryRequest is the request body for graph traversal.
type GraphQueryRequest struct {
	Relationship      longterm.Relationship `json:"relationship" binding:"required"`
	Depth             int                   `json:"depth"`
	PerLevelLimit     int                   `json:"per_level_limit"`
	IncludeSuperseded bool                  `json:"include_superseded"`
}

// GraphQueryResponse returns traversal results.
type GraphQueryResponse struct {
	Related []longterm.Related `json:"related"`
}

// WorkingSetRequest writes one working-context slot.
type WorkingSetRequest struct {
	Key   working.Key `json:"key" binding:"required"`
	Value any         `json:"value"`
}

// WorkingResponse returns a working-context snapshot.
type WorkingResponse struct {
	Entries map[working.Key]working.Entry `json:"entries"`
}

// PromoteResponse summarizes a promotion run.
type PromoteResponse struct {
	Event promotion.Event `json:"event"`
}

// AssembleRequest is the request body for context assembly.
type AssembleRequest struct {
	SystemPrompt   string              `json:"system_prompt,omitempty"`
	Messages       []assembler.Message `json:"messages,omitempty"`
	Query          string              `json:"query,omitempty"`
	TotalBudget    int                 `json:"total_budget"`
	ForceSummarize bool                `json:"force_summarize"`
}

// AssembleResponse returns the assembled context.
type AssembleResponse struct {
	Context *assembler.Assembled `json:"context"`
}

// StatsResponse returns durable store aggregates plus session counters.
type StatsResponse struct {
	Store   *longterm.Stats `json:"store"`
	Staging StagingStats    `json:"staging"`
	Working int             `json:"working_slots"`
}

// StagingStats summarizes the pending buffer.
type StagingStats struct {
	Size      int   `json:"size"`
	Evictions int64 `json:"evictions"`
}

// ExportResponse returns a record as vocabulary triples.
type ExportResponse struct {
	Triples []record.Triple `json:"triples"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int    `json:"sessions"`
}
