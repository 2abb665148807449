// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package working

import "errors"

// Sentinel errors for the working context buffer.
var (
	// ErrUnknownKey indicates a key outside the fixed enumerated set, or
	// an external read or write of the reserved internal slot.
	ErrUnknownKey = errors.New("unknown working context key")

	// ErrKeyNotSet indicates a valid key with no value written yet.
	ErrKeyNotSet = errors.New("working context key not set")
)
