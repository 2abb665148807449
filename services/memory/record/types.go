// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package record defines the durable and staged memory data model.
//
// A MemoryRecord is the unit of long-term storage: typed, confidence-scored
// knowledge captured during a session. A PendingCandidate is the unit of the
// staging buffer: an observation that has not yet earned promotion. Both are
// plain data so they can cross a process boundary as JSON.
//
// Supersession is a soft delete: a record is dead when SupersededAt is set,
// regardless of whether a replacement id is present. Forgetting without a
// replacement sets the timestamp and leaves SupersededBy empty.
package record

import (
	"strings"
	"time"
)

// MemoryType categorizes a piece of durable knowledge.
type MemoryType string

const (
	TypeFact                   MemoryType = "fact"
	TypeAssumption             MemoryType = "assumption"
	TypeHypothesis             MemoryType = "hypothesis"
	TypeDiscovery              MemoryType = "discovery"
	TypeRisk                   MemoryType = "risk"
	TypeDecision               MemoryType = "decision"
	TypeArchitecturalDecision  MemoryType = "architectural_decision"
	TypeConvention             MemoryType = "convention"
	TypeCodingStandard         MemoryType = "coding_standard"
	TypeLessonLearned          MemoryType = "lesson_learned"
	TypeImplementationDecision MemoryType = "implementation_decision"
	TypeAlternative            MemoryType = "alternative"
	TypeUnknown                MemoryType = "unknown"
)

// ValidMemoryTypes is the closed set of valid memory types.
var ValidMemoryTypes = map[MemoryType]bool{
	TypeFact:                   true,
	TypeAssumption:             true,
	TypeHypothesis:             true,
	TypeDiscovery:              true,
	TypeRisk:                   true,
	TypeDecision:               true,
	TypeArchitecturalDecision:  true,
	TypeConvention:             true,
	TypeCodingStandard:         true,
	TypeLessonLearned:          true,
	TypeImplementationDecision: true,
	TypeAlternative:            true,
	TypeUnknown:                true,
}

// SourceType indicates how a memory entered the system.
type SourceType string

const (
	SourceUser             SourceType = "user"
	SourceAgent            SourceType = "agent"
	SourceTool             SourceType = "tool"
	SourceExternalDocument SourceType = "external_document"
)

// ValidSourceTypes is the closed set of valid source types.
var ValidSourceTypes = map[SourceType]bool{
	SourceUser:             true,
	SourceAgent:            true,
	SourceTool:             true,
	SourceExternalDocument: true,
}

// ConfidenceLevel is the discrete bucket derived from a confidence score.
type ConfidenceLevel string

const (
	LevelHigh   ConfidenceLevel = "high"
	LevelMedium ConfidenceLevel = "medium"
	LevelLow    ConfidenceLevel = "low"
)

// ConfidenceToLevel maps a continuous confidence score to its bucket.
//
// Description:
//
//	high for >= 0.8, medium for [0.5, 0.8), low below 0.5. The mapping is
//	monotonic in the score, and round-tripping through Representative is
//	stable (Representative lands inside its own bucket).
func ConfidenceToLevel(c float64) ConfidenceLevel {
	switch {
	case c >= 0.8:
		return LevelHigh
	case c >= 0.5:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Representative returns the canonical score for a confidence bucket.
func (l ConfidenceLevel) Representative() float64 {
	switch l {
	case LevelHigh:
		return 0.9
	case LevelMedium:
		return 0.6
	default:
		return 0.3
	}
}

// SuggestedBy indicates which path staged a pending candidate.
type SuggestedBy string

const (
	SuggestedImplicit SuggestedBy = "implicit"
	SuggestedAgent    SuggestedBy = "agent"
)

// Content size limits for durable records.
const (
	// MaxContentBytes is the hard cap on record content size.
	MaxContentBytes = 64 * 1024

	// TruncationMarker is appended when oversized content is cut.
	TruncationMarker = "\n[content truncated]"
)

// TruncateContent enforces the content size cap.
//
// Description:
//
//	Returns the content unchanged when it fits. Oversized content is cut so
//	that content plus the visible truncation marker fits inside
//	MaxContentBytes. Truncation never splits the marker itself.
func TruncateContent(content string) string {
	if len(content) <= MaxContentBytes {
		return content
	}
	keep := MaxContentBytes - len(TruncationMarker)
	return content[:keep] + TruncationMarker
}

// MemoryRecord is a durable, typed piece of session knowledge.
type MemoryRecord struct {
	// ID is the unique identifier, format "mem-<32 hex chars>".
	ID string `json:"id"`

	// SessionID is the owning session at creation time.
	SessionID string `json:"session_id"`

	// Content is the remembered text, capped at MaxContentBytes.
	Content string `json:"content"`

	// MemoryType categorizes the record.
	MemoryType MemoryType `json:"memory_type"`

	// Confidence is a score from 0.0 to 1.0.
	Confidence float64 `json:"confidence"`

	// SourceType indicates how the record was produced.
	SourceType SourceType `json:"source_type"`

	// Rationale optionally explains why the record was kept.
	Rationale string `json:"rationale,omitempty"`

	// EvidenceRefs is an ordered list of supporting memory ids or free text.
	EvidenceRefs []string `json:"evidence_refs,omitempty"`

	// Tags is a set of free-form labels.
	Tags []string `json:"tags,omitempty"`

	// CreatedAt is when the record was persisted.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessedAt is when the record was last read.
	LastAccessedAt time.Time `json:"last_accessed_at"`

	// AccessCount is a monotonic read counter.
	AccessCount int `json:"access_count"`

	// SupersededBy optionally links to the replacing record.
	SupersededBy string `json:"superseded_by,omitempty"`

	// SupersededAt marks the record dead when set, even without a
	// replacement. This field, not SupersededBy, is authoritative.
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
}

// ConfidenceLevel returns the discrete bucket for the record's confidence.
func (r *MemoryRecord) ConfidenceLevel() ConfidenceLevel {
	return ConfidenceToLevel(r.Confidence)
}

// IsSuperseded reports whether the record has been soft-deleted.
func (r *MemoryRecord) IsSuperseded() bool {
	return r.SupersededAt != nil
}

// MemoryEvidenceIDs returns the evidence refs that are well-formed memory ids.
//
// Free-text evidence entries are skipped; only entries matching the memory id
// format participate in derived_from traversal.
func (r *MemoryRecord) MemoryEvidenceIDs() []string {
	var ids []string
	for _, ref := range r.EvidenceRefs {
		if IsMemoryID(ref) {
			ids = append(ids, ref)
		}
	}
	return ids
}

// Validate checks that the record satisfies the data model invariants.
//
// Outputs:
//
//	error - Non-nil if any field is out of range or outside the closed enums
func (r *MemoryRecord) Validate() error {
	if !IsMemoryID(r.ID) {
		return ErrInvalidMemoryID
	}
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyContent
	}
	if len(r.Content) > MaxContentBytes {
		return ErrContentTooLarge
	}
	if !ValidMemoryTypes[r.MemoryType] {
		return ErrInvalidMemoryType
	}
	if !ValidSourceTypes[r.SourceType] {
		return ErrInvalidSourceType
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return ErrInvalidConfidence
	}
	if r.SupersededBy != "" && r.SupersededAt == nil {
		return ErrDanglingSupersededBy
	}
	return nil
}

// PendingCandidate is a staged observation awaiting a promotion decision.
type PendingCandidate struct {
	// ID is the staging identifier. Promotion issues a fresh record id, so
	// this id never survives into long-term storage.
	ID string `json:"id"`

	// Content is the observed text.
	Content string `json:"content"`

	// SuggestedType is the proposed memory type. Candidates without a
	// resolvable type are dropped at promotion time.
	SuggestedType MemoryType `json:"suggested_type"`

	// Confidence is the proposed confidence for the eventual record.
	Confidence float64 `json:"confidence"`

	// ImportanceScore is 1.0 for agent decisions, else computed.
	ImportanceScore float64 `json:"importance_score"`

	// SuggestedBy records which path staged the candidate.
	SuggestedBy SuggestedBy `json:"suggested_by"`

	// CreatedAt is when the candidate was staged.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessedAt is when the candidate was last touched.
	LastAccessedAt time.Time `json:"last_accessed_at"`

	// AccessCount tracks how often the candidate has been touched.
	AccessCount int `json:"access_count"`
}

// SourceTypeFor maps a candidate's suggesting path to a record source.
func SourceTypeFor(by SuggestedBy) SourceType {
	if by == SuggestedAgent {
		return SourceAgent
	}
	return SourceTool
}
