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

import "log/slog"

// Token budget constants.
const (
	// DefaultTotalTokens is the budget applied when a caller passes an
	// invalid total.
	DefaultTotalTokens = 32_000

	// SystemBudgetCap is the absolute ceiling on the system section.
	SystemBudgetCap = 2000

	// CharsPerToken is the approximation ratio for token counting.
	// Conservative estimate: most tokenizers produce ~1 token per 3-4
	// chars for code-heavy text.
	CharsPerToken = 3.5
)

// Budget section fractions. The system share is additionally capped at
// SystemBudgetCap.
const (
	systemFraction       = 0.0625
	conversationFraction = 0.625
	workingFraction      = 0.125
	longTermFraction     = 0.1875
)

// Budget is a token budget split across the four context sections.
type Budget struct {
	Total        int `json:"total"`
	System       int `json:"system"`
	Conversation int `json:"conversation"`
	Working      int `json:"working"`
	LongTerm     int `json:"long_term"`
}

// AllocateBudget splits a total token budget across sections.
//
// Description:
//
//	6.25% system (capped at SystemBudgetCap), 62.5% conversation, 12.5%
//	working context, 18.75% long-term memories. A non-positive total is
//	replaced with DefaultTotalTokens and logged rather than rejected, so
//	a misconfigured caller still gets usable context.
func AllocateBudget(total int, logger *slog.Logger) Budget {
	if total <= 0 {
		if logger != nil {
			logger.Warn("Invalid token budget, applying default",
				"requested", total,
				"default", DefaultTotalTokens)
		}
		total = DefaultTotalTokens
	}

	system := int(float64(total) * systemFraction)
	if system > SystemBudgetCap {
		system = SystemBudgetCap
	}
	return Budget{
		Total:        total,
		System:       system,
		Conversation: int(float64(total) * conversationFraction),
		Working:      int(float64(total) * workingFraction),
		LongTerm:     int(float64(total) * longTermFraction),
	}
}

// estimateTokens estimates token count from text length.
func estimateTokens(text string) int {
	return int(float64(len(text)) / CharsPerToken)
}
