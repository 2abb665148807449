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
	"strings"
	"testing"
	"time"
)

func validRecord() MemoryRecord {
	now := time.Now().UTC()
	return MemoryRecord{
		ID:             NewMemoryID(),
		SessionID:      "sess-test",
		Content:        "All handlers return tagged errors",
		MemoryType:     TypeConvention,
		Confidence:     0.8,
		SourceType:     SourceAgent,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

func TestConfidenceToLevel(t *testing.T) {
	t.Run("boundaries map to documented buckets", func(t *testing.T) {
		cases := []struct {
			confidence float64
			want       ConfidenceLevel
		}{
			{0.0, LevelLow},
			{0.49, LevelLow},
			{0.5, LevelMedium},
			{0.79, LevelMedium},
			{0.8, LevelHigh},
			{1.0, LevelHigh},
		}
		for _, tc := range cases {
			if got := ConfidenceToLevel(tc.confidence); got != tc.want {
				t.Errorf("ConfidenceToLevel(%v) = %v, want %v", tc.confidence, got, tc.want)
			}
		}
	})

	t.Run("is monotonic", func(t *testing.T) {
		rank := map[ConfidenceLevel]int{LevelLow: 0, LevelMedium: 1, LevelHigh: 2}
		prev := LevelLow
		for c := 0.0; c <= 1.0; c += 0.01 {
			got := ConfidenceToLevel(c)
			if rank[got] < rank[prev] {
				t.Fatalf("level decreased from %v to %v at confidence %v", prev, got, c)
			}
			prev = got
		}
	})

	t.Run("representative round-trip is stable", func(t *testing.T) {
		for _, level := range []ConfidenceLevel{LevelLow, LevelMedium, LevelHigh} {
			if got := ConfidenceToLevel(level.Representative()); got != level {
				t.Errorf("round-trip of %v via %v gave %v", level, level.Representative(), got)
			}
		}
	})
}

func TestTruncateContent(t *testing.T) {
	t.Run("short content unchanged", func(t *testing.T) {
		if got := TruncateContent("hello"); got != "hello" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("oversized content gets marker and fits cap", func(t *testing.T) {
		big := strings.Repeat("a", MaxContentBytes+100)
		got := TruncateContent(big)
		if len(got) > MaxContentBytes {
			t.Errorf("truncated content is %d bytes, cap is %d", len(got), MaxContentBytes)
		}
		if !strings.HasSuffix(got, TruncationMarker) {
			t.Error("truncated content missing visible marker")
		}
	})

	t.Run("content exactly at cap unchanged", func(t *testing.T) {
		exact := strings.Repeat("b", MaxContentBytes)
		if got := TruncateContent(exact); got != exact {
			t.Error("content at cap should not be truncated")
		}
	})
}

func TestMemoryRecord_Validate(t *testing.T) {
	t.Run("valid record passes", func(t *testing.T) {
		r := validRecord()
		if err := r.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("malformed id fails", func(t *testing.T) {
		r := validRecord()
		r.ID = "mem-nothex"
		if err := r.Validate(); err != ErrInvalidMemoryID {
			t.Errorf("expected ErrInvalidMemoryID, got %v", err)
		}
	})

	t.Run("empty content fails", func(t *testing.T) {
		r := validRecord()
		r.Content = "   "
		if err := r.Validate(); err != ErrEmptyContent {
			t.Errorf("expected ErrEmptyContent, got %v", err)
		}
	})

	t.Run("unknown type fails", func(t *testing.T) {
		r := validRecord()
		r.MemoryType = MemoryType("vibes")
		if err := r.Validate(); err != ErrInvalidMemoryType {
			t.Errorf("expected ErrInvalidMemoryType, got %v", err)
		}
	})

	t.Run("out of range confidence fails", func(t *testing.T) {
		r := validRecord()
		r.Confidence = 1.5
		if err := r.Validate(); err != ErrInvalidConfidence {
			t.Errorf("expected ErrInvalidConfidence, got %v", err)
		}
	})

	t.Run("superseded_by without timestamp fails", func(t *testing.T) {
		r := validRecord()
		r.SupersededBy = NewMemoryID()
		if err := r.Validate(); err != ErrDanglingSupersededBy {
			t.Errorf("expected ErrDanglingSupersededBy, got %v", err)
		}
	})

	t.Run("superseded_at without replacement is valid", func(t *testing.T) {
		r := validRecord()
		now := time.Now().UTC()
		r.SupersededAt = &now
		if err := r.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if !r.IsSuperseded() {
			t.Error("record with superseded_at should report superseded")
		}
	})
}

func TestMemoryIDs(t *testing.T) {
	t.Run("generated ids are well formed and unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := NewMemoryID()
			if !IsMemoryID(id) {
				t.Fatalf("generated id %q is malformed", id)
			}
			if seen[id] {
				t.Fatalf("duplicate id %q", id)
			}
			seen[id] = true
		}
	})

	t.Run("rejects malformed ids", func(t *testing.T) {
		bad := []string{
			"",
			"mem-",
			"mem-XYZ",
			"mem-" + strings.Repeat("f", 31),
			"mem-" + strings.Repeat("f", 33),
			"MEM-" + strings.Repeat("f", 32),
			strings.Repeat("f", 36),
			"mem-" + strings.Repeat("F", 32),
		}
		for _, id := range bad {
			if IsMemoryID(id) {
				t.Errorf("id %q should be rejected", id)
			}
		}
	})
}

func TestSanitizeQueryText(t *testing.T) {
	t.Run("strips control characters", func(t *testing.T) {
		in := "a\x00b\x08c\x0cd\x7fe"
		if got := SanitizeQueryText(in); got != "abcde" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("keeps tabs and newlines", func(t *testing.T) {
		in := "a\tb\nc"
		if got := SanitizeQueryText(in); got != in {
			t.Errorf("got %q", got)
		}
	})
}

func TestMemoryEvidenceIDs(t *testing.T) {
	r := validRecord()
	other := NewMemoryID()
	r.EvidenceRefs = []string{other, "saw it in the test output", "mem-bogus"}
	ids := r.MemoryEvidenceIDs()
	if len(ids) != 1 || ids[0] != other {
		t.Errorf("expected only %q, got %v", other, ids)
	}
}
