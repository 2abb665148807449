// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package working implements the per-session working context buffer.
//
// The buffer is a small key/value store over a fixed, enumerated key set:
// current-task state that is useful right now but has not earned durable
// storage. Writes are last-write-wins per key. One key is reserved for the
// context assembler's summarization cache and is hidden from external
// readers.
package working

import (
	"sync"
	"time"
)

// Key is one of the fixed working-context slots.
type Key string

const (
	KeyCurrentTask      Key = "current_task"
	KeyOpenFiles        Key = "open_files"
	KeyRecentChanges    Key = "recent_changes"
	KeyRecentDecisions  Key = "recent_decisions"
	KeyKeyFacts         Key = "key_facts"
	KeyBlockers         Key = "blockers"
	KeyNextSteps        Key = "next_steps"
	KeyEnvironment      Key = "environment"
	KeyUserPreferences  Key = "user_preferences"
	KeyTestStatus       Key = "test_status"
	KeyScratch          Key = "scratch"
	KeySummaryCacheData Key = "__summary_cache"
)

// ValidKeys is the closed set of working-context keys, including the
// reserved internal one.
var ValidKeys = map[Key]bool{
	KeyCurrentTask:      true,
	KeyOpenFiles:        true,
	KeyRecentChanges:    true,
	KeyRecentDecisions:  true,
	KeyKeyFacts:         true,
	KeyBlockers:         true,
	KeyNextSteps:        true,
	KeyEnvironment:      true,
	KeyUserPreferences:  true,
	KeyTestStatus:       true,
	KeyScratch:          true,
	KeySummaryCacheData: true,
}

// PromotableKeys flags the slots whose contents the promotion engine may
// score and persist.
var PromotableKeys = map[Key]bool{
	KeyRecentDecisions: true,
	KeyKeyFacts:        true,
	KeyBlockers:        true,
}

// IsInternal reports whether a key is reserved for internal machinery and
// hidden from external readers.
func IsInternal(k Key) bool {
	return k == KeySummaryCacheData
}

// Entry is one working-context slot with write metadata.
type Entry struct {
	// Key is the slot this entry occupies.
	Key Key `json:"key"`

	// Value is arbitrary structured data; last write wins.
	Value any `json:"value"`

	// UpdatedAt is when the slot was last written.
	UpdatedAt time.Time `json:"updated_at"`

	// AccessCount tracks reads of this slot.
	AccessCount int `json:"access_count"`

	// LastAccessedAt is when the slot was last read.
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Context is a per-session working-context buffer.
//
// Thread Safety: Safe for concurrent use. Session-level write serialization
// is handled above this type; the internal mutex only protects map access.
type Context struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
}

// NewContext returns an empty working context.
func NewContext() *Context {
	return &Context{entries: make(map[Key]*Entry)}
}

// Set writes a slot, last-write-wins.
//
// Description:
//
//	External writes to the reserved internal key are refused with
//	ErrUnknownKey, matching Get: SetInternal is the only writer of that
//	slot.
//
// Outputs:
//
//	error - ErrUnknownKey for keys outside the fixed set or the reserved
//	        internal one
func (c *Context) Set(key Key, value any) error {
	if !ValidKeys[key] || IsInternal(key) {
		return ErrUnknownKey
	}
	return c.set(key, value)
}

func (c *Context) set(key Key, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := c.entries[key]; ok {
		existing.Value = value
		existing.UpdatedAt = now
		return nil
	}
	c.entries[key] = &Entry{Key: key, Value: value, UpdatedAt: now}
	return nil
}

// Get reads a slot and records the access.
//
// Description:
//
//	External reads of the reserved internal key are refused with
//	ErrUnknownKey, the same answer as for a key that never existed, so
//	the cache slot is not discoverable from outside.
func (c *Context) Get(key Key) (*Entry, error) {
	if !ValidKeys[key] || IsInternal(key) {
		return nil, ErrUnknownKey
	}
	return c.get(key)
}

// GetInternal reads any slot, including the reserved one. For use by the
// context assembler only.
func (c *Context) GetInternal(key Key) (*Entry, error) {
	if !ValidKeys[key] {
		return nil, ErrUnknownKey
	}
	return c.get(key)
}

func (c *Context) get(key Key) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, ErrKeyNotSet
	}
	entry.AccessCount++
	entry.LastAccessedAt = time.Now().UTC()
	out := *entry
	return &out, nil
}

// SetInternal writes any slot, including the reserved one. For use by the
// context assembler only.
func (c *Context) SetInternal(key Key, value any) error {
	if !ValidKeys[key] {
		return ErrUnknownKey
	}
	return c.set(key, value)
}

// Delete clears a slot. Deleting an unset slot is a no-op.
func (c *Context) Delete(key Key) error {
	if !ValidKeys[key] {
		return ErrUnknownKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Snapshot returns copies of all externally visible entries.
//
// The reserved internal slot never appears in a snapshot.
func (c *Context) Snapshot() map[Key]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Key]Entry, len(c.entries))
	for k, e := range c.entries {
		if IsInternal(k) {
			continue
		}
		out[k] = *e
	}
	return out
}

// PromotableEntries returns copies of the set promotable slots.
func (c *Context) PromotableEntries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Entry
	for k, e := range c.entries {
		if PromotableKeys[k] {
			out = append(out, *e)
		}
	}
	return out
}

// Clear empties the buffer, reserved slot included.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*Entry)
}

// Len returns the number of set slots, reserved slot included.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
