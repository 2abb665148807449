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

import "errors"

// Sentinel errors for the long-term store.
var (
	// ErrMemoryNotFound indicates a well-formed id with no matching record.
	ErrMemoryNotFound = errors.New("memory not found")

	// ErrMemoryLimitExceeded indicates the session's durable record count
	// is at or above the configured ceiling.
	ErrMemoryLimitExceeded = errors.New("session memory limit exceeded")

	// ErrInvalidRelationship indicates a relationship outside the closed
	// traversal set.
	ErrInvalidRelationship = errors.New("invalid relationship")

	// ErrAlreadySuperseded indicates a supersession of a record that is
	// already soft-deleted.
	ErrAlreadySuperseded = errors.New("memory already superseded")

	// ErrStoreClosed indicates use of a store after Close.
	ErrStoreClosed = errors.New("store is closed")
)
