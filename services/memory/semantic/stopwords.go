// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package semantic

// stopwords is the fixed set of common words dropped during tokenization.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "because": true, "been": true, "but": true,
	"by": true, "can": true, "could": true, "did": true, "do": true,
	"does": true, "for": true, "from": true, "had": true, "has": true,
	"have": true, "he": true, "her": true, "his": true, "how": true,
	"i": true, "if": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "just": true, "me": true, "my": true,
	"no": true, "not": true, "of": true, "on": true, "or": true,
	"our": true, "she": true, "so": true, "some": true, "than": true,
	"that": true, "the": true, "their": true, "them": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "to": true,
	"was": true, "we": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "will": true, "with": true,
	"would": true, "you": true, "your": true,
}

// domainIDF is the curated inverse-document-frequency table for common
// coding-assistant vocabulary. Terms absent from this table fall back to
// DefaultIDF, so scoring is deterministic without a corpus warm-up.
var domainIDF = map[string]float64{
	// Very common in session memories, low information.
	"code":     1.0,
	"file":     1.0,
	"function": 1.1,
	"use":      1.0,
	"test":     1.2,
	"error":    1.2,
	"type":     1.2,
	"value":    1.3,
	"change":   1.3,
	"add":      1.3,
	"new":      1.3,
	"run":      1.3,
	"project":  1.4,
	"method":   1.4,
	"return":   1.4,
	"struct":   1.5,
	"package":  1.5,
	"call":     1.5,
	"string":   1.5,
	"field":    1.6,

	// Mid-frequency engineering terms.
	"api":        1.8,
	"config":     1.8,
	"database":   1.8,
	"server":     1.8,
	"handler":    1.8,
	"interface":  1.8,
	"module":     1.8,
	"dependency": 1.9,
	"request":    1.9,
	"response":   1.9,
	"session":    1.9,
	"token":      1.9,
	"query":      1.9,
	"memory":     1.9,

	// Distinctive terms, high information.
	"deadlock":    2.8,
	"race":        2.6,
	"regression":  2.6,
	"migration":   2.5,
	"vulnerable":  2.8,
	"injection":   2.8,
	"idempotent":  2.7,
	"invariant":   2.6,
	"concurrency": 2.5,
	"mutex":       2.5,
	"panic":       2.4,
	"rollback":    2.5,
	"checksum":    2.6,
	"serializer":  2.5,
}

// DefaultIDF applies to any term not in the curated table.
const DefaultIDF = 2.0
