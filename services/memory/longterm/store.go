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
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianMemory/services/memory/record"
)

// Defaults for store behavior.
const (
	// DefaultMaxRecords is the durable record ceiling per store.
	DefaultMaxRecords = 10_000

	// HardQueryCap bounds any query that does not supply a smaller limit.
	HardQueryCap = 1000
)

// StoreConfig configures a long-term store.
type StoreConfig struct {
	// SessionID stamps new records with their originating session.
	SessionID string

	// MaxRecords is the durable record ceiling. Zero applies
	// DefaultMaxRecords.
	MaxRecords int

	// Engine configures the embedded Badger instance.
	Engine EngineConfig

	// Logger receives store events. Nil falls back to slog.Default().
	Logger *slog.Logger
}

// Store is a session-scoped handle onto a durable project memory store.
//
// Thread Safety: Reads run concurrently on Badger snapshots. All writes
// serialize through one internal mutex, the single-writer discipline that
// preserves the count ceiling and supersession invariants.
type Store struct {
	cfg    StoreConfig
	logger *slog.Logger
	eng    *engine

	writeMu sync.Mutex
	closed  bool
	mu      sync.RWMutex // guards closed
}

// OpenStore opens (or creates) the durable store described by cfg.
//
// Description:
//
//	Opens the Badger database at cfg.Engine.Path, creating it on first
//	use. Reopening the same path from a later session yields the same
//	durable records.
//
// Outputs:
//
//	*Store - The open store. Caller must Close when the session ends.
//	error - Non-nil if the engine cannot be opened
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	eng, err := openEngine(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}
	return &Store{cfg: cfg, logger: cfg.Logger, eng: eng}, nil
}

// Close releases the store. Durable records survive on disk.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.eng.close()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Persist validates and writes a new durable record.
//
// Description:
//
//	Fills defaults (id, timestamps, session stamp), truncates oversized
//	content with a visible marker, validates the result, enforces the
//	record ceiling, and writes the record plus its index entries in one
//	transaction.
//
// Outputs:
//
//	*record.MemoryRecord - The stored record with generated fields set
//	error - ErrMemoryLimitExceeded at the ceiling; validation errors
//	        pass through; engine failures are wrapped
func (s *Store) Persist(ctx context.Context, r record.MemoryRecord) (*record.MemoryRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ctx, span := storeTracer.Start(ctx, "memory.Store.Persist",
		trace.WithAttributes(attribute.String("memory_type", string(r.MemoryType))))
	defer span.End()

	if r.ID == "" {
		r.ID = record.NewMemoryID()
	}
	if r.SessionID == "" {
		r.SessionID = s.cfg.SessionID
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.LastAccessedAt.IsZero() {
		r.LastAccessedAt = r.CreatedAt
	}
	r.Content = record.TruncateContent(r.Content)

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("validating memory: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.eng.update(ctx, func(txn *badger.Txn) error {
		count, err := readCount(txn)
		if err != nil {
			return err
		}
		if count >= s.cfg.MaxRecords {
			return ErrMemoryLimitExceeded
		}

		// Issued ids are never reused; an existing key means a caller
		// supplied a stale id.
		if _, err := txn.Get(recKey(r.ID)); err == nil {
			return fmt.Errorf("memory id %s already exists", r.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := writeRecord(txn, &r); err != nil {
			return err
		}
		return writeCount(txn, count+1)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		if errors.Is(err, ErrMemoryLimitExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("storing memory: %w", err)
	}

	loggerWithTrace(ctx, s.logger).Info("Stored memory",
		"memory_id", r.ID,
		"type", r.MemoryType,
		"confidence", r.Confidence)
	return &r, nil
}

// Get retrieves a record by id. Superseded records are still readable.
func (s *Store) Get(ctx context.Context, id string) (*record.MemoryRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if !record.IsMemoryID(id) {
		return nil, record.ErrInvalidMemoryID
	}

	var out *record.MemoryRecord
	err := s.eng.view(ctx, func(txn *badger.Txn) error {
		r, err := readRecord(txn, id)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrMemoryNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, fmt.Errorf("querying memory: %w", err)
	}
	return out, nil
}

// MarkAccessed records a read of the given memory.
//
// Description:
//
//	Bumps access_count and last_accessed_at. Called by the recall path
//	so the scorer's recency and frequency factors track real usage.
func (s *Store) MarkAccessed(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !record.IsMemoryID(id) {
		return record.ErrInvalidMemoryID
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.eng.update(ctx, func(txn *badger.Txn) error {
		r, err := readRecord(txn, id)
		if err != nil {
			return err
		}
		r.AccessCount++
		r.LastAccessedAt = time.Now().UTC()
		return writeRecord(txn, r)
	})
}

// UpdateOptions describes a partial update to a record.
type UpdateOptions struct {
	// Confidence replaces the record's confidence when non-nil. The
	// value is clamped to [0, 1].
	Confidence *float64

	// AddEvidence appends evidence refs, preserving order.
	AddEvidence []string

	// AddRationale replaces the rationale when non-empty.
	AddRationale string

	// AddTags merges tags into the record's tag set.
	AddTags []string
}

// Update applies a partial update to a record.
func (s *Store) Update(ctx context.Context, id string, opts UpdateOptions) (*record.MemoryRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if !record.IsMemoryID(id) {
		return nil, record.ErrInvalidMemoryID
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var out *record.MemoryRecord
	err := s.eng.update(ctx, func(txn *badger.Txn) error {
		r, err := readRecord(txn, id)
		if err != nil {
			return err
		}
		if opts.Confidence != nil {
			c := *opts.Confidence
			if c < 0 {
				c = 0
			}
			if c > 1 {
				c = 1
			}
			r.Confidence = c
		}
		if len(opts.AddEvidence) > 0 {
			r.EvidenceRefs = append(r.EvidenceRefs, opts.AddEvidence...)
		}
		if opts.AddRationale != "" {
			r.Rationale = opts.AddRationale
		}
		if len(opts.AddTags) > 0 {
			have := make(map[string]bool, len(r.Tags))
			for _, t := range r.Tags {
				have[t] = true
			}
			for _, t := range opts.AddTags {
				if !have[t] {
					r.Tags = append(r.Tags, t)
					have[t] = true
				}
			}
		}
		out = r
		return writeRecord(txn, r)
	})
	if err != nil {
		if errors.Is(err, ErrMemoryNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, fmt.Errorf("updating memory: %w", err)
	}
	return out, nil
}

// Supersede soft-deletes a record, optionally linking a replacement.
//
// Description:
//
//	Sets superseded_at unconditionally; superseded_by only when a
//	replacement id is given. This is the forget path: forgetting without
//	a replacement leaves superseded_by empty, and the timestamp alone
//	marks the record dead. A non-empty replacement must exist.
func (s *Store) Supersede(ctx context.Context, id, replacementID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !record.IsMemoryID(id) {
		return record.ErrInvalidMemoryID
	}
	if replacementID != "" && !record.IsMemoryID(replacementID) {
		return record.ErrInvalidMemoryID
	}

	ctx, span := storeTracer.Start(ctx, "memory.Store.Supersede",
		trace.WithAttributes(
			attribute.String("memory_id", id),
			attribute.Bool("has_replacement", replacementID != ""),
		))
	defer span.End()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.eng.update(ctx, func(txn *badger.Txn) error {
		r, err := readRecord(txn, id)
		if err != nil {
			return err
		}
		if r.IsSuperseded() {
			return ErrAlreadySuperseded
		}
		if replacementID != "" {
			if _, err := readRecord(txn, replacementID); err != nil {
				return fmt.Errorf("replacement: %w", err)
			}
		}

		now := time.Now().UTC()
		r.SupersededAt = &now
		r.SupersededBy = replacementID
		if err := writeRecord(txn, r); err != nil {
			return err
		}
		if replacementID != "" {
			if err := txn.Set(supIdxKey(replacementID, id), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "supersede failed")
		if errors.Is(err, ErrMemoryNotFound) || errors.Is(err, ErrAlreadySuperseded) {
			return err
		}
		return fmt.Errorf("superseding memory: %w", err)
	}

	loggerWithTrace(ctx, s.logger).Info("Superseded memory",
		"memory_id", id,
		"replacement_id", replacementID)
	return nil
}

// Delete hard-removes a record. This cannot be undone.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !record.IsMemoryID(id) {
		return record.ErrInvalidMemoryID
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.eng.update(ctx, func(txn *badger.Txn) error {
		r, err := readRecord(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(recKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(metaIdxKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(typeIdxKey(r.MemoryType, id)); err != nil {
			return err
		}
		if r.SupersededBy != "" {
			if err := txn.Delete(supIdxKey(r.SupersededBy, id)); err != nil {
				return err
			}
		}
		count, err := readCount(txn)
		if err != nil {
			return err
		}
		if count > 0 {
			count--
		}
		return writeCount(txn, count)
	})
	if err != nil {
		if errors.Is(err, ErrMemoryNotFound) {
			return ErrMemoryNotFound
		}
		return fmt.Errorf("deleting memory: %w", err)
	}

	s.logger.Info("Deleted memory", "memory_id", id)
	return nil
}

// QueryOptions filters a Query.
type QueryOptions struct {
	// MemoryType filters by exact type when non-empty.
	MemoryType record.MemoryType

	// MinConfidence drops records below the threshold.
	MinConfidence float64

	// Limit caps results. Non-positive or above HardQueryCap applies
	// HardQueryCap.
	Limit int

	// IncludeSuperseded keeps soft-deleted records in the result set.
	IncludeSuperseded bool
}

// Query returns records matching the filters, newest first.
//
// Description:
//
//	Superseded records are excluded unless requested. When a type filter
//	is present, the type index narrows the scan; otherwise the record
//	prefix is scanned. Every query is bounded by HardQueryCap.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]record.MemoryRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if opts.MemoryType != "" && !record.ValidMemoryTypes[opts.MemoryType] {
		return nil, record.ErrInvalidMemoryType
	}

	limit := opts.Limit
	if limit <= 0 || limit > HardQueryCap {
		limit = HardQueryCap
	}

	ctx, span := storeTracer.Start(ctx, "memory.Store.Query",
		trace.WithAttributes(
			attribute.String("memory_type", string(opts.MemoryType)),
			attribute.Int("limit", limit),
		))
	defer span.End()

	var results []record.MemoryRecord
	err := s.eng.view(ctx, func(txn *badger.Txn) error {
		if opts.MemoryType != "" {
			ids, err := idsByType(txn, opts.MemoryType, HardQueryCap)
			if err != nil {
				return err
			}
			for _, id := range ids {
				r, err := readRecord(txn, id)
				if err != nil {
					if errors.Is(err, ErrMemoryNotFound) {
						continue // index raced a delete
					}
					return err
				}
				if keepRecord(r, opts) {
					results = append(results, *r)
				}
			}
			return nil
		}

		return scanRecords(txn, func(r *record.MemoryRecord) bool {
			if keepRecord(r, opts) {
				results = append(results, *r)
			}
			return len(results) < HardQueryCap
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	span.SetAttributes(attribute.Int("result_count", len(results)))

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func keepRecord(r *record.MemoryRecord, opts QueryOptions) bool {
	if !opts.IncludeSuperseded && r.IsSuperseded() {
		return false
	}
	if opts.MinConfidence > 0 && r.Confidence < opts.MinConfidence {
		return false
	}
	return true
}

// Count returns the durable record count from the maintained counter.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var count int
	err := s.eng.view(ctx, func(txn *badger.Txn) error {
		c, err := readCount(txn)
		if err != nil {
			return err
		}
		count = c
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting memories: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Transaction helpers
// ---------------------------------------------------------------------------

func readRecord(txn *badger.Txn, id string) (*record.MemoryRecord, error) {
	item, err := txn.Get(recKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, err
	}
	var out *record.MemoryRecord
	err = item.Value(func(val []byte) error {
		r, err := decodeRecord(val)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// writeRecord writes the record document and refreshes its index entries.
func writeRecord(txn *badger.Txn, r *record.MemoryRecord) error {
	doc, err := encodeRecord(r)
	if err != nil {
		return err
	}
	if err := txn.Set(recKey(r.ID), doc); err != nil {
		return err
	}
	idx, err := encodeIndexEntry(indexEntryFor(r))
	if err != nil {
		return err
	}
	if err := txn.Set(metaIdxKey(r.ID), idx); err != nil {
		return err
	}
	return txn.Set(typeIdxKey(r.MemoryType, r.ID), nil)
}

func readCount(txn *badger.Txn) (int, error) {
	item, err := txn.Get([]byte(countKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var count int
	err = item.Value(func(val []byte) error {
		c, err := strconv.Atoi(string(val))
		if err != nil {
			return fmt.Errorf("corrupt count key: %w", err)
		}
		count = c
		return nil
	})
	return count, err
}

func writeCount(txn *badger.Txn, count int) error {
	return txn.Set([]byte(countKey), []byte(strconv.Itoa(count)))
}

// idsByType collects record ids from the type index.
func idsByType(txn *badger.Txn, t record.MemoryType, max int) ([]string, error) {
	prefix := []byte(fmt.Sprintf("%s%s:", typeIdxPrefix, t))
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: false})
	defer it.Close()

	var ids []string
	for it.Rewind(); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		ids = append(ids, key[len(prefix):])
		if len(ids) >= max {
			break
		}
	}
	return ids, nil
}

// scanRecords iterates all record documents until fn returns false.
func scanRecords(txn *badger.Txn, fn func(r *record.MemoryRecord) bool) error {
	it := txn.NewIterator(badger.IteratorOptions{
		Prefix:         []byte(recPrefix),
		PrefetchValues: true,
		PrefetchSize:   100,
	})
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var keep bool
		err := it.Item().Value(func(val []byte) error {
			r, err := decodeRecord(val)
			if err != nil {
				return err
			}
			keep = fn(r)
			return nil
		})
		if err != nil {
			return err
		}
		if !keep {
			return nil
		}
	}
	return nil
}
