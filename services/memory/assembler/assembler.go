// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assembler builds token-budgeted prompt context from the memory
// tiers.
//
// The assembled context has four sections: system prompt, conversation
// history, working-context snapshot, and long-term memories. Each section
// gets a fixed share of the total budget; oversized sections truncate
// deterministically (conversation keeps the most recent messages, long-term
// keeps the highest-confidence records). Conversation truncation produces a
// summary of the dropped prefix, cached in a reserved working-context slot
// keyed by the exact conversation length.
package assembler

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
	"github.com/AleutianAI/AleutianMemory/services/memory/working"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequest is the input to one assembly pass.
type BuildRequest struct {
	// SystemPrompt is the system section text.
	SystemPrompt string `json:"system_prompt"`

	// Messages is the conversation history, oldest first.
	Messages []Message `json:"messages"`

	// Memories is the long-term candidate set, typically a recall result.
	Memories []record.MemoryRecord `json:"memories"`

	// TotalBudget is the token budget. Non-positive applies
	// DefaultTotalTokens.
	TotalBudget int `json:"total_budget"`

	// ForceSummarize recomputes the conversation summary even when a
	// cached one matches.
	ForceSummarize bool `json:"force_summarize"`
}

// Assembled is the result of one assembly pass.
type Assembled struct {
	// System is the (possibly truncated) system section.
	System string `json:"system"`

	// Summary condenses conversation turns dropped for budget. Empty
	// when everything fit.
	Summary string `json:"summary,omitempty"`

	// Messages is the retained conversation suffix, oldest first.
	Messages []Message `json:"messages"`

	// Working is the visible working-context snapshot that fit in
	// budget.
	Working map[working.Key]any `json:"working,omitempty"`

	// Memories is the retained long-term records, highest confidence
	// first.
	Memories []record.MemoryRecord `json:"memories,omitempty"`

	// Budget is the allocation this pass used.
	Budget Budget `json:"budget"`

	// TokensUsed estimates the assembled size.
	TokensUsed int `json:"tokens_used"`

	// Truncated reports whether any section was cut.
	Truncated bool `json:"truncated"`

	// SummaryFromCache reports whether the summary was served from the
	// cache slot.
	SummaryFromCache bool `json:"summary_from_cache"`
}

// summaryCacheEntry lives in the reserved working-context slot. The entry
// is keyed by the exact conversation length at build time: any change in
// the message count invalidates it.
type summaryCacheEntry struct {
	MessageCount int       `json:"message_count"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}

// Assembler builds context for one session.
//
// Thread Safety: Safe for concurrent use; the only mutable state is the
// working context, which carries its own lock.
type Assembler struct {
	wctx   *working.Context
	logger *slog.Logger
}

// NewAssembler creates an assembler over a session's working context.
func NewAssembler(wctx *working.Context, logger *slog.Logger) (*Assembler, error) {
	if wctx == nil {
		return nil, ErrNilWorkingContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{wctx: wctx, logger: logger}, nil
}

// Build assembles budgeted context from the request and the session's
// working context.
//
// Description:
//
//	Allocates the budget, then packs each section. Conversation keeps a
//	recent suffix and summarizes the dropped prefix; long-term keeps the
//	highest-confidence records. The summary cache slot is internal
//	machinery and never appears in the result.
func (a *Assembler) Build(req BuildRequest) *Assembled {
	budget := AllocateBudget(req.TotalBudget, a.logger)
	out := &Assembled{Budget: budget}

	out.System = truncateToBudget(req.SystemPrompt, budget.System)
	if out.System != req.SystemPrompt {
		out.Truncated = true
	}
	out.TokensUsed += estimateTokens(out.System)

	a.packConversation(req, budget.Conversation, out)
	a.packWorking(budget.Working, out)
	a.packMemories(req.Memories, budget.LongTerm, out)
	return out
}

// packConversation keeps the most recent messages that fit and summarizes
// the rest.
func (a *Assembler) packConversation(req BuildRequest, budget int, out *Assembled) {
	kept := 0
	used := 0
	for i := len(req.Messages) - 1; i >= 0; i-- {
		t := estimateTokens(req.Messages[i].Content)
		if used+t > budget {
			break
		}
		used += t
		kept++
	}

	dropped := req.Messages[:len(req.Messages)-kept]
	out.Messages = append(out.Messages, req.Messages[len(req.Messages)-kept:]...)
	out.TokensUsed += used

	if len(dropped) == 0 {
		return
	}
	out.Truncated = true

	summary, fromCache := a.summarize(dropped, len(req.Messages), req.ForceSummarize)
	out.Summary = summary
	out.SummaryFromCache = fromCache
	out.TokensUsed += estimateTokens(summary)
}

// summarize produces (or reuses) a digest of dropped conversation turns.
// The cache hit requires the conversation length to match exactly.
func (a *Assembler) summarize(dropped []Message, messageCount int, force bool) (string, bool) {
	if !force {
		if entry, err := a.wctx.GetInternal(working.KeySummaryCacheData); err == nil {
			if cached, ok := entry.Value.(summaryCacheEntry); ok && cached.MessageCount == messageCount {
				return cached.Summary, true
			}
		}
	}

	summary := digestMessages(dropped)
	if err := a.wctx.SetInternal(working.KeySummaryCacheData, summaryCacheEntry{
		MessageCount: messageCount,
		Summary:      summary,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		a.logger.Warn("Failed to cache conversation summary", "error", err)
	}
	return summary, false
}

// digestMessages builds a deterministic summary of a message prefix: turn
// counts by role plus the opening of the first and last dropped turns.
func digestMessages(msgs []Message) string {
	byRole := make(map[string]int, 4)
	for _, m := range msgs {
		byRole[m.Role]++
	}
	roles := make([]string, 0, len(byRole))
	for role := range byRole {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var b strings.Builder
	fmt.Fprintf(&b, "[Earlier conversation: %d turns omitted (", len(msgs))
	for i, role := range roles {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d %s", byRole[role], role)
	}
	b.WriteString(").")
	if len(msgs) > 0 {
		fmt.Fprintf(&b, " Opened with: %s", firstLine(msgs[0].Content, 120))
		if len(msgs) > 1 {
			fmt.Fprintf(&b, " Most recently: %s", firstLine(msgs[len(msgs)-1].Content, 120))
		}
	}
	b.WriteString("]")
	return b.String()
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// packWorking snapshots the visible working context into budget, skipping
// slots once the section is full.
func (a *Assembler) packWorking(budget int, out *Assembled) {
	snapshot := a.wctx.Snapshot()
	if len(snapshot) == 0 {
		return
	}

	keys := make([]working.Key, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	used := 0
	visible := make(map[working.Key]any, len(keys))
	for _, k := range keys {
		entry := snapshot[k]
		t := estimateTokens(fmt.Sprintf("%v", entry.Value))
		if used+t > budget {
			out.Truncated = true
			continue
		}
		used += t
		visible[k] = entry.Value
	}
	if len(visible) > 0 {
		out.Working = visible
	}
	out.TokensUsed += used
}

// packMemories keeps the highest-confidence records that fit.
func (a *Assembler) packMemories(memories []record.MemoryRecord, budget int, out *Assembled) {
	ranked := make([]record.MemoryRecord, len(memories))
	copy(ranked, memories)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})

	used := 0
	for _, m := range ranked {
		t := estimateTokens(m.Content)
		if used+t > budget {
			out.Truncated = true
			break
		}
		used += t
		out.Memories = append(out.Memories, m)
	}
	out.TokensUsed += used
}

// truncateToBudget cuts text to an estimated token budget on a rune
// boundary.
func truncateToBudget(text string, budget int) string {
	if estimateTokens(text) <= budget {
		return text
	}
	maxChars := int(float64(budget) * CharsPerToken)
	if maxChars <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
