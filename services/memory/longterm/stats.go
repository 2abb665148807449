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
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
)

// Stats summarizes the durable store's contents.
type Stats struct {
	Total         int                            `json:"total"`
	Active        int                            `json:"active"`
	Superseded    int                            `json:"superseded"`
	ByType        map[record.MemoryType]int      `json:"by_type"`
	ByConfidence  map[record.ConfidenceLevel]int `json:"by_confidence"`
	WithEvidence  int                            `json:"with_evidence"`
	WithRationale int                            `json:"with_rationale"`
	OldestCreated *time.Time                     `json:"oldest_created,omitempty"`
	NewestCreated *time.Time                     `json:"newest_created,omitempty"`
}

// ComputeStats aggregates over the compact index entries.
//
// Description:
//
//	Scans idx:meta entries rather than full record documents, so the
//	aggregate pass reads only small values regardless of content size.
//	Counts include superseded records; the Superseded field separates
//	them.
func (s *Store) ComputeStats(ctx context.Context) (*Stats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	stats := &Stats{
		ByType:       make(map[record.MemoryType]int),
		ByConfidence: make(map[record.ConfidenceLevel]int),
	}
	err := s.eng.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         []byte(metaIdxPrefix),
			PrefetchValues: true,
			PrefetchSize:   100,
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				e, err := decodeIndexEntry(val)
				if err != nil {
					return fmt.Errorf("corrupt index entry %s: %w", it.Item().Key(), err)
				}
				stats.Total++
				if e.Superseded {
					stats.Superseded++
				} else {
					stats.Active++
				}
				stats.ByType[e.MemoryType]++
				stats.ByConfidence[e.Level]++
				if e.HasEvidence {
					stats.WithEvidence++
				}
				if e.HasRationale {
					stats.WithRationale++
				}
				created := e.CreatedAt
				if stats.OldestCreated == nil || created.Before(*stats.OldestCreated) {
					stats.OldestCreated = &created
				}
				if stats.NewestCreated == nil || created.After(*stats.NewestCreated) {
					stats.NewestCreated = &created
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("computing memory stats: %w", err)
	}
	return stats, nil
}
