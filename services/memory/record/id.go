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
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MemoryIDPrefix prefixes every durable record id.
const MemoryIDPrefix = "mem-"

// memoryIDPattern matches "mem-" followed by 128 bits of lowercase hex.
var memoryIDPattern = regexp.MustCompile(`^mem-[0-9a-f]{32}$`)

// NewMemoryID issues a fresh record id.
//
// Description:
//
//	Returns "mem-<32 hex chars>" backed by 128 bits of randomness. Ids are
//	never reused; a collision would require a UUID collision.
func NewMemoryID() string {
	u := uuid.New()
	return MemoryIDPrefix + strings.ReplaceAll(u.String(), "-", "")
}

// IsMemoryID reports whether s is a well-formed record id.
//
// Every id that reaches a constructed store query must pass this check
// first; it doubles as the injection guard for id inputs.
func IsMemoryID(s string) bool {
	return memoryIDPattern.MatchString(s)
}

// SanitizeQueryText strips control characters from text destined for a
// constructed query.
//
// Description:
//
//	Removes ASCII control characters (including NUL, backspace, form feed)
//	while preserving tabs and newlines inside content. Identifiers are
//	validated against strict patterns separately; this guards free-text
//	inputs such as search queries.
func SanitizeQueryText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
