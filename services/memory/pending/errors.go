// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pending

import "errors"

// Sentinel errors for the staging buffer.
var (
	// ErrInvalidCapacity indicates a non-positive buffer capacity.
	ErrInvalidCapacity = errors.New("staging capacity must be positive")

	// ErrInvalidThreshold indicates a promotion threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("promotion threshold must be between 0.0 and 1.0")

	// ErrNilScorer indicates a missing scorer cell.
	ErrNilScorer = errors.New("scorer must not be nil")

	// ErrEmptyContent indicates an empty candidate content.
	ErrEmptyContent = errors.New("candidate content cannot be empty")
)
