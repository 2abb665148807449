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

import "errors"

// Sentinel errors for the memory data model.
var (
	// ErrInvalidMemoryID indicates a malformed memory id. Malformed ids are
	// rejected before they can reach any constructed query.
	ErrInvalidMemoryID = errors.New("invalid memory id")

	// ErrInvalidMemoryType indicates a value outside the closed type enum.
	ErrInvalidMemoryType = errors.New("invalid memory type")

	// ErrInvalidSourceType indicates a value outside the closed source enum.
	ErrInvalidSourceType = errors.New("invalid source type")

	// ErrInvalidConfidence indicates a confidence outside [0.0, 1.0].
	ErrInvalidConfidence = errors.New("confidence must be between 0.0 and 1.0")

	// ErrEmptyContent indicates empty or whitespace-only record content.
	ErrEmptyContent = errors.New("record content cannot be empty")

	// ErrContentTooLarge indicates content over the 64KB cap that was not
	// run through TruncateContent.
	ErrContentTooLarge = errors.New("record content exceeds size cap")

	// ErrDanglingSupersededBy indicates a replacement link without the
	// authoritative supersession timestamp.
	ErrDanglingSupersededBy = errors.New("superseded_by set without superseded_at")

	// ErrUnmappedVocabulary indicates an external vocabulary name with no
	// corresponding enum value.
	ErrUnmappedVocabulary = errors.New("unmapped external vocabulary name")
)
