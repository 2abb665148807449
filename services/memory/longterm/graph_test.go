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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
)

func persistWithEvidence(t *testing.T, s *Store, content string, evidence ...string) *record.MemoryRecord {
	t.Helper()
	r, err := s.Persist(context.Background(), record.MemoryRecord{
		Content:      content,
		MemoryType:   record.TypeDiscovery,
		Confidence:   0.8,
		SourceType:   record.SourceAgent,
		EvidenceRefs: evidence,
	})
	require.NoError(t, err)
	return r
}

func TestQueryRelated_DerivedFrom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := mustPersist(t, s, "the cache is write-through", record.TypeFact, 0.9)
	mid := persistWithEvidence(t, s, "cache misses dominate latency", base.ID)
	top := persistWithEvidence(t, s, "we should pre-warm the cache", mid.ID, "file:cache.go")

	t.Run("single hop", func(t *testing.T) {
		got, err := s.QueryRelated(ctx, top.ID, GraphOptions{Relationship: RelDerivedFrom})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, mid.ID, got[0].Record.ID)
		assert.Equal(t, 1, got[0].Depth)
	})

	t.Run("two hops reach the base fact", func(t *testing.T) {
		got, err := s.QueryRelated(ctx, top.ID, GraphOptions{
			Relationship: RelDerivedFrom,
			Depth:        2,
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, mid.ID, got[0].Record.ID)
		assert.Equal(t, base.ID, got[1].Record.ID)
		assert.Equal(t, 2, got[1].Depth)
	})

	t.Run("depth clamped to max", func(t *testing.T) {
		got, err := s.QueryRelated(ctx, top.ID, GraphOptions{
			Relationship: RelDerivedFrom,
			Depth:        50,
		})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("non-memory evidence refs ignored", func(t *testing.T) {
		solo := persistWithEvidence(t, s, "standalone", "file:main.go", "url:https://example.com")
		got, err := s.QueryRelated(ctx, solo.ID, GraphOptions{Relationship: RelDerivedFrom})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestQueryRelated_Supersession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v1 := mustPersist(t, s, "retry three times", record.TypeDecision, 0.6)
	v2 := mustPersist(t, s, "retry with backoff", record.TypeDecision, 0.9)
	require.NoError(t, s.Supersede(ctx, v1.ID, v2.ID))

	t.Run("superseded_by reaches the live replacement", func(t *testing.T) {
		got, err := s.QueryRelated(ctx, v1.ID, GraphOptions{Relationship: RelSupersededBy})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, v2.ID, got[0].Record.ID)
	})

	t.Run("supersedes reaches the dead record without opting in", func(t *testing.T) {
		got, err := s.QueryRelated(ctx, v2.ID, GraphOptions{Relationship: RelSupersedes})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, v1.ID, got[0].Record.ID)
		assert.True(t, got[0].Record.IsSuperseded())
	})
}

func TestQueryRelated_SameTypeAndProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustPersist(t, s, "decision a", record.TypeDecision, 0.8)
	b := mustPersist(t, s, "decision b", record.TypeDecision, 0.8)
	c := mustPersist(t, s, "a fact", record.TypeFact, 0.8)

	t.Run("same_type excludes self and other types", func(t *testing.T) {
		got, err := s.QueryRelated(ctx, a.ID, GraphOptions{Relationship: RelSameType})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b.ID, got[0].Record.ID)
	})

	t.Run("same_project reaches everything else", func(t *testing.T) {
		got, err := s.QueryRelated(ctx, a.ID, GraphOptions{Relationship: RelSameProject})
		require.NoError(t, err)
		ids := make(map[string]bool, len(got))
		for _, rel := range got {
			ids[rel.Record.ID] = true
		}
		assert.False(t, ids[a.ID])
		assert.True(t, ids[b.ID])
		assert.True(t, ids[c.ID])
	})

	t.Run("per level limit caps fan-out", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			mustPersist(t, s, "filler decision", record.TypeDecision, 0.5)
		}
		got, err := s.QueryRelated(ctx, a.ID, GraphOptions{
			Relationship:  RelSameType,
			PerLevelLimit: 2,
		})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestQueryRelated_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := mustPersist(t, s, "anchor", record.TypeFact, 0.5)

	t.Run("unknown relationship", func(t *testing.T) {
		_, err := s.QueryRelated(ctx, r.ID, GraphOptions{Relationship: "rhymes_with"})
		assert.ErrorIs(t, err, ErrInvalidRelationship)
	})

	t.Run("unknown start id", func(t *testing.T) {
		_, err := s.QueryRelated(ctx, record.NewMemoryID(), GraphOptions{Relationship: RelSameType})
		assert.ErrorIs(t, err, ErrMemoryNotFound)
	})

	t.Run("malformed start id", func(t *testing.T) {
		_, err := s.QueryRelated(ctx, "not-an-id", GraphOptions{Relationship: RelSameType})
		assert.ErrorIs(t, err, record.ErrInvalidMemoryID)
	})
}

func TestQueryRelated_CycleSafety(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// a cites b, b cites a. Evidence refs are free-form strings, so a
	// cycle like this is representable and must terminate.
	a := mustPersist(t, s, "a", record.TypeFact, 0.5)
	b := persistWithEvidence(t, s, "b", a.ID)
	_, err := s.Update(ctx, a.ID, UpdateOptions{AddEvidence: []string{b.ID}})
	require.NoError(t, err)

	got, err := s.QueryRelated(ctx, a.ID, GraphOptions{
		Relationship: RelDerivedFrom,
		Depth:        MaxGraphDepth,
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].Record.ID)
}
