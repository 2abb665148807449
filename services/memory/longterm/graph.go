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
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
)

// Relationship names an edge type for graph traversal.
type Relationship string

// Traversal relationships.
const (
	// RelDerivedFrom follows a record's evidence refs to the memories
	// they cite.
	RelDerivedFrom Relationship = "derived_from"

	// RelSupersededBy follows a dead record to its replacement.
	RelSupersededBy Relationship = "superseded_by"

	// RelSupersedes follows a record back to the records it replaced.
	RelSupersedes Relationship = "supersedes"

	// RelSameType connects records sharing a memory type.
	RelSameType Relationship = "same_type"

	// RelSameProject connects all records in the project store.
	RelSameProject Relationship = "same_project"
)

// ValidRelationships is the closed set of traversal relationships.
var ValidRelationships = map[Relationship]bool{
	RelDerivedFrom:  true,
	RelSupersededBy: true,
	RelSupersedes:   true,
	RelSameType:     true,
	RelSameProject:  true,
}

// Traversal depth and fan-out bounds.
const (
	DefaultGraphDepth     = 1
	MaxGraphDepth         = 5
	DefaultPerLevelFanout = 10
)

// GraphOptions configures a QueryRelated traversal.
type GraphOptions struct {
	// Relationship selects the edge type to follow. Required.
	Relationship Relationship

	// Depth is how many hops to traverse. Zero applies
	// DefaultGraphDepth; values above MaxGraphDepth are clamped.
	Depth int

	// PerLevelLimit caps neighbors expanded per hop. Zero applies
	// DefaultPerLevelFanout.
	PerLevelLimit int

	// IncludeSuperseded keeps soft-deleted records in the result set.
	IncludeSuperseded bool
}

// Related is one record reached by traversal, with its hop distance.
type Related struct {
	Record record.MemoryRecord `json:"record"`
	Depth  int                 `json:"depth"`
}

// QueryRelated walks the memory graph outward from a starting record.
//
// Description:
//
//	Breadth-first traversal over one relationship type. The start record
//	itself is not returned. A visited set prevents cycles (supersession
//	chains and mutual evidence refs can loop). Superseded neighbors are
//	skipped unless requested, but supersession edges themselves always
//	traverse, since following superseded_by is how a caller reaches the
//	live replacement.
//
// Outputs:
//
//	[]Related - Reached records ordered by hop distance then created_at
//	error - ErrMemoryNotFound for an unknown start; ErrInvalidRelationship
//	        for an edge type outside the closed set
func (s *Store) QueryRelated(ctx context.Context, startID string, opts GraphOptions) ([]Related, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if !record.IsMemoryID(startID) {
		return nil, record.ErrInvalidMemoryID
	}
	if !ValidRelationships[opts.Relationship] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRelationship, opts.Relationship)
	}
	depth := opts.Depth
	if depth <= 0 {
		depth = DefaultGraphDepth
	}
	if depth > MaxGraphDepth {
		depth = MaxGraphDepth
	}
	fanout := opts.PerLevelLimit
	if fanout <= 0 {
		fanout = DefaultPerLevelFanout
	}

	ctx, span := storeTracer.Start(ctx, "memory.Store.QueryRelated",
		trace.WithAttributes(
			attribute.String("relationship", string(opts.Relationship)),
			attribute.Int("depth", depth),
		))
	defer span.End()

	var results []Related
	err := s.eng.view(ctx, func(txn *badger.Txn) error {
		start, err := readRecord(txn, startID)
		if err != nil {
			return err
		}

		visited := map[string]bool{startID: true}
		frontier := []*record.MemoryRecord{start}

		for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
			var next []*record.MemoryRecord
			for _, cur := range frontier {
				ids, err := neighborIDs(txn, cur, opts.Relationship, fanout)
				if err != nil {
					return err
				}
				for _, id := range ids {
					if visited[id] {
						continue
					}
					visited[id] = true
					r, err := readRecord(txn, id)
					if err != nil {
						if errors.Is(err, ErrMemoryNotFound) {
							continue // dangling evidence ref
						}
						return err
					}
					next = append(next, r)
					if r.IsSuperseded() && !opts.IncludeSuperseded && !isSupersessionEdge(opts.Relationship) {
						continue
					}
					results = append(results, Related{Record: *r, Depth: hop})
				}
			}
			frontier = next
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrMemoryNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, fmt.Errorf("traversing memory graph: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		return results[i].Record.CreatedAt.Before(results[j].Record.CreatedAt)
	})
	return results, nil
}

func isSupersessionEdge(rel Relationship) bool {
	return rel == RelSupersededBy || rel == RelSupersedes
}

// neighborIDs resolves one record's outgoing edges for a relationship.
func neighborIDs(txn *badger.Txn, r *record.MemoryRecord, rel Relationship, fanout int) ([]string, error) {
	switch rel {
	case RelDerivedFrom:
		ids := r.MemoryEvidenceIDs()
		if len(ids) > fanout {
			ids = ids[:fanout]
		}
		return ids, nil

	case RelSupersededBy:
		if r.SupersededBy == "" {
			return nil, nil
		}
		return []string{r.SupersededBy}, nil

	case RelSupersedes:
		prefix := []byte(supIdxPrefix + r.ID + ":")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: false})
		defer it.Close()
		var ids []string
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, key[len(prefix):])
			if len(ids) >= fanout {
				break
			}
		}
		return ids, nil

	case RelSameType:
		ids, err := idsByType(txn, r.MemoryType, fanout+1)
		if err != nil {
			return nil, err
		}
		return dropID(ids, r.ID, fanout), nil

	case RelSameProject:
		prefix := []byte(recPrefix)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: false})
		defer it.Close()
		var ids []string
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			id := key[len(prefix):]
			if id == r.ID {
				continue
			}
			ids = append(ids, id)
			if len(ids) >= fanout {
				break
			}
		}
		return ids, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidRelationship, rel)
}

func dropID(ids []string, self string, max int) []string {
	out := ids[:0]
	for _, id := range ids {
		if id == self {
			continue
		}
		out = append(out, id)
		if len(out) >= max {
			break
		}
	}
	return out
}
