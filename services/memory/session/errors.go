// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import "errors"

var (
	// ErrInvalidSessionID indicates a session id outside the allowed
	// format. Distinct from ErrSessionNotFound: a malformed id is a
	// caller bug, a missing one is normal state.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrInvalidProjectID indicates a project id outside the allowed
	// format.
	ErrInvalidProjectID = errors.New("invalid project id")

	// ErrSessionNotFound indicates a well-formed id with no live session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists indicates a create for an id already in use.
	ErrSessionExists = errors.New("session already exists")

	// ErrManagerClosed indicates use of a manager after Close.
	ErrManagerClosed = errors.New("session manager is closed")
)
