// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package record

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Namespace is the stable prefix for all external vocabulary names.
const Namespace = "aleutian.memory"

// Triple is one subject-predicate-object statement in the persisted format.
type Triple struct {
	Subject   string `json:"s"`
	Predicate string `json:"p"`
	Object    string `json:"o"`
}

// Predicate names under the namespace.
const (
	PredType           = Namespace + "#type"
	PredContent        = Namespace + "#content"
	PredConfidence     = Namespace + "#confidence"
	PredLevel          = Namespace + "#confidenceLevel"
	PredSource         = Namespace + "#source"
	PredRationale      = Namespace + "#rationale"
	PredEvidence       = Namespace + "#evidence"
	PredTag            = Namespace + "#tag"
	PredSession        = Namespace + "#session"
	PredCreatedAt      = Namespace + "#createdAt"
	PredLastAccessedAt = Namespace + "#lastAccessedAt"
	PredAccessCount    = Namespace + "#accessCount"
	PredSupersededBy   = Namespace + "#supersededBy"
	PredSupersededAt   = Namespace + "#supersededAt"
)

// memoryTypeClasses maps each memory type to its external class name.
// The mapping is total and bijective; buildReverse panics at init time if a
// duplicate or missing entry sneaks in.
var memoryTypeClasses = map[MemoryType]string{
	TypeFact:                   Namespace + "#Fact",
	TypeAssumption:             Namespace + "#Assumption",
	TypeHypothesis:             Namespace + "#Hypothesis",
	TypeDiscovery:              Namespace + "#Discovery",
	TypeRisk:                   Namespace + "#Risk",
	TypeDecision:               Namespace + "#Decision",
	TypeArchitecturalDecision:  Namespace + "#ArchitecturalDecision",
	TypeConvention:             Namespace + "#Convention",
	TypeCodingStandard:         Namespace + "#CodingStandard",
	TypeLessonLearned:          Namespace + "#LessonLearned",
	TypeImplementationDecision: Namespace + "#ImplementationDecision",
	TypeAlternative:            Namespace + "#Alternative",
	TypeUnknown:                Namespace + "#Unknown",
}

var sourceTypeNames = map[SourceType]string{
	SourceUser:             Namespace + "#UserSource",
	SourceAgent:            Namespace + "#AgentSource",
	SourceTool:             Namespace + "#ToolSource",
	SourceExternalDocument: Namespace + "#ExternalDocumentSource",
}

var confidenceLevelNames = map[ConfidenceLevel]string{
	LevelHigh:   Namespace + "#HighConfidence",
	LevelMedium: Namespace + "#MediumConfidence",
	LevelLow:    Namespace + "#LowConfidence",
}

var (
	classMemoryTypes     map[string]MemoryType
	nameSourceTypes      map[string]SourceType
	nameConfidenceLevels map[string]ConfidenceLevel
)

func init() {
	classMemoryTypes = make(map[string]MemoryType, len(memoryTypeClasses))
	for k, v := range memoryTypeClasses {
		if _, dup := classMemoryTypes[v]; dup {
			panic(fmt.Sprintf("duplicate vocabulary name %q", v))
		}
		classMemoryTypes[v] = k
	}
	nameSourceTypes = make(map[string]SourceType, len(sourceTypeNames))
	for k, v := range sourceTypeNames {
		if _, dup := nameSourceTypes[v]; dup {
			panic(fmt.Sprintf("duplicate vocabulary name %q", v))
		}
		nameSourceTypes[v] = k
	}
	nameConfidenceLevels = make(map[string]ConfidenceLevel, len(confidenceLevelNames))
	for k, v := range confidenceLevelNames {
		if _, dup := nameConfidenceLevels[v]; dup {
			panic(fmt.Sprintf("duplicate vocabulary name %q", v))
		}
		nameConfidenceLevels[v] = k
	}
}

// MemoryTypeClass returns the external class name for a memory type.
func MemoryTypeClass(t MemoryType) (string, error) {
	name, ok := memoryTypeClasses[t]
	if !ok {
		return "", ErrInvalidMemoryType
	}
	return name, nil
}

// MemoryTypeFromClass resolves an external class name to a memory type.
func MemoryTypeFromClass(name string) (MemoryType, error) {
	t, ok := classMemoryTypes[name]
	if !ok {
		return "", ErrUnmappedVocabulary
	}
	return t, nil
}

// SourceTypeName returns the external individual name for a source type.
func SourceTypeName(s SourceType) (string, error) {
	name, ok := sourceTypeNames[s]
	if !ok {
		return "", ErrInvalidSourceType
	}
	return name, nil
}

// SourceTypeFromName resolves an external name to a source type.
func SourceTypeFromName(name string) (SourceType, error) {
	s, ok := nameSourceTypes[name]
	if !ok {
		return "", ErrUnmappedVocabulary
	}
	return s, nil
}

// ConfidenceLevelName returns the external individual name for a level.
func ConfidenceLevelName(l ConfidenceLevel) (string, error) {
	name, ok := confidenceLevelNames[l]
	if !ok {
		return "", ErrUnmappedVocabulary
	}
	return name, nil
}

// ConfidenceLevelFromName resolves an external name to a level.
func ConfidenceLevelFromName(name string) (ConfidenceLevel, error) {
	l, ok := nameConfidenceLevels[name]
	if !ok {
		return "", ErrUnmappedVocabulary
	}
	return l, nil
}

// ToTriples renders a record as subject-predicate-object statements.
//
// Description:
//
//	Produces the persisted external format: every enum value is mapped to
//	its fixed vocabulary name, timestamps use RFC 3339, and content is
//	sanitized of control characters. Optional fields emit no triple when
//	unset, so the triple set is minimal.
//
// Outputs:
//
//	[]Triple - The statements, subject fixed to the record id
//	error - Non-nil if the record fails validation or an enum is unmapped
func (r *MemoryRecord) ToTriples() ([]Triple, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	typeClass, err := MemoryTypeClass(r.MemoryType)
	if err != nil {
		return nil, err
	}
	sourceName, err := SourceTypeName(r.SourceType)
	if err != nil {
		return nil, err
	}
	levelName, err := ConfidenceLevelName(r.ConfidenceLevel())
	if err != nil {
		return nil, err
	}

	s := r.ID
	triples := []Triple{
		{s, PredType, typeClass},
		{s, PredContent, SanitizeQueryText(r.Content)},
		{s, PredConfidence, strconv.FormatFloat(r.Confidence, 'f', -1, 64)},
		{s, PredLevel, levelName},
		{s, PredSource, sourceName},
		{s, PredSession, SanitizeQueryText(r.SessionID)},
		{s, PredCreatedAt, r.CreatedAt.UTC().Format(time.RFC3339Nano)},
		{s, PredLastAccessedAt, r.LastAccessedAt.UTC().Format(time.RFC3339Nano)},
		{s, PredAccessCount, strconv.Itoa(r.AccessCount)},
	}
	if r.Rationale != "" {
		triples = append(triples, Triple{s, PredRationale, SanitizeQueryText(r.Rationale)})
	}
	for _, ev := range r.EvidenceRefs {
		triples = append(triples, Triple{s, PredEvidence, SanitizeQueryText(ev)})
	}
	tags := append([]string(nil), r.Tags...)
	sort.Strings(tags)
	for _, tag := range tags {
		triples = append(triples, Triple{s, PredTag, SanitizeQueryText(tag)})
	}
	if r.SupersededBy != "" {
		triples = append(triples, Triple{s, PredSupersededBy, r.SupersededBy})
	}
	if r.SupersededAt != nil {
		triples = append(triples, Triple{s, PredSupersededAt, r.SupersededAt.UTC().Format(time.RFC3339Nano)})
	}
	return triples, nil
}

// FromTriples reconstructs a record from its triple representation.
//
// Description:
//
//	The inverse of ToTriples. All statements must share one subject, and
//	mapped vocabulary names must resolve; unmapped names are rejected
//	rather than coerced.
func FromTriples(triples []Triple) (*MemoryRecord, error) {
	if len(triples) == 0 {
		return nil, fmt.Errorf("empty triple set")
	}
	subject := triples[0].Subject
	if !IsMemoryID(subject) {
		return nil, ErrInvalidMemoryID
	}

	r := &MemoryRecord{ID: subject}
	for _, t := range triples {
		if t.Subject != subject {
			return nil, fmt.Errorf("mixed subjects in triple set: %q vs %q", subject, t.Subject)
		}
		switch t.Predicate {
		case PredType:
			mt, err := MemoryTypeFromClass(t.Object)
			if err != nil {
				return nil, err
			}
			r.MemoryType = mt
		case PredContent:
			r.Content = t.Object
		case PredConfidence:
			c, err := strconv.ParseFloat(t.Object, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing confidence: %w", err)
			}
			r.Confidence = c
		case PredLevel:
			if _, err := ConfidenceLevelFromName(t.Object); err != nil {
				return nil, err
			}
			// Derived from confidence; validated for mapping totality only.
		case PredSource:
			st, err := SourceTypeFromName(t.Object)
			if err != nil {
				return nil, err
			}
			r.SourceType = st
		case PredSession:
			r.SessionID = t.Object
		case PredRationale:
			r.Rationale = t.Object
		case PredEvidence:
			r.EvidenceRefs = append(r.EvidenceRefs, t.Object)
		case PredTag:
			r.Tags = append(r.Tags, t.Object)
		case PredCreatedAt:
			ts, err := time.Parse(time.RFC3339Nano, t.Object)
			if err != nil {
				return nil, fmt.Errorf("parsing createdAt: %w", err)
			}
			r.CreatedAt = ts
		case PredLastAccessedAt:
			ts, err := time.Parse(time.RFC3339Nano, t.Object)
			if err != nil {
				return nil, fmt.Errorf("parsing lastAccessedAt: %w", err)
			}
			r.LastAccessedAt = ts
		case PredAccessCount:
			n, err := strconv.Atoi(t.Object)
			if err != nil {
				return nil, fmt.Errorf("parsing accessCount: %w", err)
			}
			r.AccessCount = n
		case PredSupersededBy:
			if !IsMemoryID(t.Object) {
				return nil, ErrInvalidMemoryID
			}
			r.SupersededBy = t.Object
		case PredSupersededAt:
			ts, err := time.Parse(time.RFC3339Nano, t.Object)
			if err != nil {
				return nil, fmt.Errorf("parsing supersededAt: %w", err)
			}
			r.SupersededAt = &ts
		default:
			return nil, fmt.Errorf("%w: predicate %q", ErrUnmappedVocabulary, t.Predicate)
		}
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
