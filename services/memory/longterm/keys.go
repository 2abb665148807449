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
	"encoding/json"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
)

// Key scheme inside one project database. All identifiers embedded in keys
// are validated first (ids against the mem-<hex> pattern, type names
// against the closed enum), so key construction never concatenates
// unchecked input.
//
//	rec:<id>                record document (JSON)
//	idx:meta:<id>           compact index entry for stats (JSON)
//	idx:type:<type>:<id>    type index
//	idx:sup:<newID>:<oldID> reverse supersession index
//	meta:count              record count (decimal string)
const (
	recPrefix     = "rec:"
	metaIdxPrefix = "idx:meta:"
	typeIdxPrefix = "idx:type:"
	supIdxPrefix  = "idx:sup:"
	countKey      = "meta:count"
)

func recKey(id string) []byte {
	return []byte(recPrefix + id)
}

func metaIdxKey(id string) []byte {
	return []byte(metaIdxPrefix + id)
}

func typeIdxKey(t record.MemoryType, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", typeIdxPrefix, t, id))
}

func supIdxKey(newID, oldID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", supIdxPrefix, newID, oldID))
}

// indexEntry is the compact per-record document behind idx:meta keys.
//
// Stats iterate these instead of full records, so the aggregate scan reads
// only small values.
type indexEntry struct {
	MemoryType   record.MemoryType      `json:"t"`
	Level        record.ConfidenceLevel `json:"l"`
	Superseded   bool                   `json:"s"`
	HasEvidence  bool                   `json:"e"`
	HasRationale bool                   `json:"r"`
	CreatedAt    time.Time              `json:"c"`
}

func indexEntryFor(r *record.MemoryRecord) indexEntry {
	return indexEntry{
		MemoryType:   r.MemoryType,
		Level:        r.ConfidenceLevel(),
		Superseded:   r.IsSuperseded(),
		HasEvidence:  len(r.EvidenceRefs) > 0,
		HasRationale: r.Rationale != "",
		CreatedAt:    r.CreatedAt,
	}
}

func encodeIndexEntry(e indexEntry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeIndexEntry(data []byte) (indexEntry, error) {
	var e indexEntry
	err := json.Unmarshal(data, &e)
	return e, err
}

func encodeRecord(r *record.MemoryRecord) ([]byte, error) {
	return json.Marshal(r)
}

func decodeRecord(data []byte) (*record.MemoryRecord, error) {
	var r record.MemoryRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &r, nil
}
