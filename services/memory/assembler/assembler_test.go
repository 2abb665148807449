// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assembler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
	"github.com/AleutianAI/AleutianMemory/services/memory/working"
)

func TestAllocateBudget(t *testing.T) {
	t.Run("standard split at 32k", func(t *testing.T) {
		b := AllocateBudget(32_000, nil)
		assert.Equal(t, 2000, b.System)
		assert.Equal(t, 20_000, b.Conversation)
		assert.Equal(t, 4000, b.Working)
		assert.Equal(t, 6000, b.LongTerm)
	})

	t.Run("system share below the cap for small totals", func(t *testing.T) {
		b := AllocateBudget(8000, nil)
		assert.Equal(t, 500, b.System)
		assert.Equal(t, 5000, b.Conversation)
	})

	t.Run("system share capped for large totals", func(t *testing.T) {
		b := AllocateBudget(200_000, nil)
		assert.Equal(t, SystemBudgetCap, b.System)
	})

	t.Run("invalid total falls back to default", func(t *testing.T) {
		b := AllocateBudget(0, nil)
		assert.Equal(t, DefaultTotalTokens, b.Total)
		b = AllocateBudget(-5, nil)
		assert.Equal(t, DefaultTotalTokens, b.Total)
	})
}

func newAssembler(t *testing.T) (*Assembler, *working.Context) {
	t.Helper()
	wctx := working.NewContext()
	a, err := NewAssembler(wctx, nil)
	require.NoError(t, err)
	return a, wctx
}

// msg returns a message whose content estimates to exactly n tokens
// (CharsPerToken is 3.5, so n tokens is 3.5*n chars).
func msg(role string, n int) Message {
	chars := int(float64(n) * CharsPerToken)
	return Message{Role: role, Content: strings.Repeat("ab ", chars/3+1)[:chars]}
}

func TestBuild_NoTruncation(t *testing.T) {
	a, _ := newAssembler(t)
	out := a.Build(BuildRequest{
		SystemPrompt: "you are a coding assistant",
		Messages: []Message{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
		},
		TotalBudget: 32_000,
	})

	assert.False(t, out.Truncated)
	assert.Empty(t, out.Summary)
	assert.Len(t, out.Messages, 2)
	assert.Equal(t, "you are a coding assistant", out.System)
	assert.Greater(t, out.TokensUsed, 0)
}

func TestBuild_ConversationTruncation(t *testing.T) {
	a, _ := newAssembler(t)
	// Conversation budget is 62.5% of 160 = 100 tokens; three 50-token
	// turns keep only the most recent two.
	req := BuildRequest{
		Messages: []Message{
			msg("user", 50),
			msg("assistant", 50),
			msg("user", 50),
		},
		TotalBudget: 160,
	}

	out := a.Build(req)
	assert.True(t, out.Truncated)
	assert.Len(t, out.Messages, 2)
	assert.Equal(t, "assistant", out.Messages[0].Role)
	assert.Contains(t, out.Summary, "1 turns omitted")
	assert.Contains(t, out.Summary, "1 user")
	assert.False(t, out.SummaryFromCache)

	t.Run("repeat build hits the cache", func(t *testing.T) {
		again := a.Build(req)
		assert.True(t, again.SummaryFromCache)
		assert.Equal(t, out.Summary, again.Summary)
	})

	t.Run("force summarize bypasses the cache", func(t *testing.T) {
		forced := req
		forced.ForceSummarize = true
		again := a.Build(forced)
		assert.False(t, again.SummaryFromCache)
	})

	t.Run("conversation growth invalidates the cache", func(t *testing.T) {
		grown := req
		grown.Messages = append([]Message{msg("user", 50)}, req.Messages...)
		again := a.Build(grown)
		assert.False(t, again.SummaryFromCache)
		assert.Contains(t, again.Summary, "2 turns omitted")
	})

	t.Run("hit keys on exact conversation length", func(t *testing.T) {
		// Same length with edited history still hits; the cache keys on
		// the message count, not the content.
		edited := req
		edited.Messages = append([]Message(nil), req.Messages...)
		edited.Messages[0] = msg("assistant", 50)
		again := a.Build(edited)
		assert.True(t, again.SummaryFromCache)
	})
}

func TestBuild_CacheSlotStaysHidden(t *testing.T) {
	a, wctx := newAssembler(t)

	// Force a summary so the cache slot is populated.
	a.Build(BuildRequest{
		Messages:    []Message{msg("user", 50), msg("user", 50), msg("user", 50)},
		TotalBudget: 160,
	})
	entry, err := wctx.GetInternal(working.KeySummaryCacheData)
	require.NoError(t, err)
	require.NotNil(t, entry.Value)

	require.NoError(t, wctx.Set(working.KeyCurrentTask, "refactor the parser"))
	out := a.Build(BuildRequest{TotalBudget: 32_000})

	assert.Contains(t, out.Working, working.KeyCurrentTask)
	assert.NotContains(t, out.Working, working.KeySummaryCacheData)
}

func TestBuild_MemoriesHighestConfidenceFirst(t *testing.T) {
	a, _ := newAssembler(t)
	now := time.Now().UTC()
	mk := func(content string, conf float64) record.MemoryRecord {
		return record.MemoryRecord{
			ID:         record.NewMemoryID(),
			Content:    content,
			MemoryType: record.TypeFact,
			Confidence: conf,
			SourceType: record.SourceAgent,
			CreatedAt:  now,
		}
	}

	t.Run("ordering", func(t *testing.T) {
		out := a.Build(BuildRequest{
			Memories:    []record.MemoryRecord{mk("low", 0.3), mk("high", 0.9), mk("mid", 0.6)},
			TotalBudget: 32_000,
		})
		require.Len(t, out.Memories, 3)
		assert.Equal(t, "high", out.Memories[0].Content)
		assert.Equal(t, "mid", out.Memories[1].Content)
		assert.Equal(t, "low", out.Memories[2].Content)
	})

	t.Run("truncation drops the low-confidence tail", func(t *testing.T) {
		// Long-term budget is 18.75% of 160 = 30 tokens; each record
		// below is ~25 tokens so only the first fits.
		big := strings.Repeat("x", 88)
		out := a.Build(BuildRequest{
			Memories:    []record.MemoryRecord{mk(big, 0.3), mk(big, 0.9)},
			TotalBudget: 160,
		})
		require.Len(t, out.Memories, 1)
		assert.Equal(t, 0.9, out.Memories[0].Confidence)
		assert.True(t, out.Truncated)
	})
}

func TestBuild_SystemTruncation(t *testing.T) {
	a, _ := newAssembler(t)
	// System budget is 6.25% of 160 = 10 tokens (35 chars).
	long := strings.Repeat("s", 200)
	out := a.Build(BuildRequest{SystemPrompt: long, TotalBudget: 160})
	assert.True(t, out.Truncated)
	assert.Less(t, len(out.System), len(long))
}
