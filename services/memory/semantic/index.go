// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package semantic implements deterministic bag-of-words similarity.
//
// Term weights are TF-IDF with a fixed, curated IDF table: no corpus is
// built at runtime, so ranking is stable from the first query with no
// warm-up. Similarity is the cosine of two weighted term vectors.
//
// Three retrieval modes are supported:
//   - text: case-insensitive substring match
//   - semantic: pure similarity ranking (falls back to text when the
//     query tokenizes to nothing)
//   - hybrid: similarity ranking plus a fixed boost for substring matches
package semantic

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Default knobs for tokenization and ranking.
const (
	// DefaultMaxTokens caps tokens per document to bound cost on very
	// large content.
	DefaultMaxTokens = 500

	// DefaultSimilarityThreshold is the minimum similarity for a ranked
	// result.
	DefaultSimilarityThreshold = 0.2

	// DefaultHybridBoost is added to similarity when the item also
	// matches as a plain substring.
	DefaultHybridBoost = 0.5
)

// SearchMode selects the retrieval strategy.
type SearchMode string

const (
	ModeText     SearchMode = "text"
	ModeSemantic SearchMode = "semantic"
	ModeHybrid   SearchMode = "hybrid"
)

// ValidSearchModes is the closed set of retrieval modes.
var ValidSearchModes = map[SearchMode]bool{
	ModeText:     true,
	ModeSemantic: true,
	ModeHybrid:   true,
}

// Vector is a sparse weighted term vector.
type Vector map[string]float64

// Tokenize splits text into normalized terms.
//
// Description:
//
//	Lowercases, treats punctuation as a word boundary (underscores inside
//	identifiers are preserved), drops stopwords, and caps the result at
//	maxTokens. A non-positive maxTokens applies DefaultMaxTokens.
func Tokenize(text string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		if r == '_' {
			return false
		}
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "_")
		if f == "" || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
		if len(tokens) >= maxTokens {
			break
		}
	}
	return tokens
}

// ComputeTFIDF weights a token list into a sparse vector.
//
// Description:
//
//	Term frequency is count/len(tokens). IDF comes from the curated
//	domain table, falling back to DefaultIDF for unknown terms. An empty
//	token list yields an empty vector.
func ComputeTFIDF(tokens []string) Vector {
	if len(tokens) == 0 {
		return Vector{}
	}

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	vec := make(Vector, len(counts))
	n := float64(len(tokens))
	for term, count := range counts {
		idf := DefaultIDF
		if v, ok := domainIDF[term]; ok {
			idf = v
		}
		vec[term] = (float64(count) / n) * idf
	}
	return vec
}

// CosineSimilarity returns the normalized dot product of two vectors.
//
// Description:
//
//	Symmetric, 0.0 for empty or orthogonal vectors, 1.0 for identical
//	vectors, and invariant to uniform magnitude scaling of either side.
//	The result is clamped to [0, 1] against float drift.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Iterate the smaller vector for the dot product.
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	var dot float64
	for term, wa := range small {
		if wb, ok := large[term]; ok {
			dot += wa * wb
		}
	}
	if dot == 0 {
		return 0
	}

	var normA, normB float64
	for _, w := range a {
		normA += w * w
	}
	for _, w := range b {
		normB += w * w
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// VectorizeText tokenizes and weights text in one step.
func VectorizeText(text string, maxTokens int) Vector {
	return ComputeTFIDF(Tokenize(text, maxTokens))
}

// RankOptions configures RankBySimilarity.
type RankOptions struct {
	// Threshold is the minimum similarity to keep. Zero applies
	// DefaultSimilarityThreshold; negative disables the floor.
	Threshold float64

	// Limit caps the number of results. Non-positive means unlimited.
	Limit int

	// MaxTokens caps per-item tokenization.
	MaxTokens int
}

// Ranked pairs an item index with its similarity score.
type Ranked struct {
	// Index is the position of the item in the input slice.
	Index int `json:"index"`

	// Score is the similarity (plus hybrid boost when applicable).
	Score float64 `json:"score"`
}

// RankBySimilarity scores items against a query vector.
//
// Description:
//
//	Extracts text from each item with extract, vectorizes it, and ranks
//	by cosine similarity against the query vector. Items below the
//	threshold are dropped. Ties sort by ascending index so ranking is
//	deterministic.
//
// Inputs:
//
//	query - Pre-computed query vector
//	n - Number of items
//	extract - Returns the text of item i
//	opts - Threshold, limit, and tokenization cap
func RankBySimilarity(query Vector, n int, extract func(i int) string, opts RankOptions) []Ranked {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}

	results := make([]Ranked, 0, n)
	for i := 0; i < n; i++ {
		vec := VectorizeText(extract(i), opts.MaxTokens)
		score := CosineSimilarity(query, vec)
		if score < threshold {
			continue
		}
		results = append(results, Ranked{Index: i, Score: score})
	}

	sortRanked(results)
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// Search ranks items against a text query in the given mode.
//
// Description:
//
//	The degradation path is deliberate: a semantic query whose text
//	tokenizes to nothing (all stopwords, punctuation only) falls back to
//	text mode instead of erroring. Hybrid mode ranks by similarity, then
//	adds DefaultHybridBoost to items that also match as substrings;
//	substring-only items enter the result with just the boost.
func Search(query string, mode SearchMode, n int, extract func(i int) string, opts RankOptions) []Ranked {
	switch mode {
	case ModeText:
		return textSearch(query, n, extract, opts.Limit)
	case ModeSemantic:
		qvec := VectorizeText(query, opts.MaxTokens)
		if len(qvec) == 0 {
			return textSearch(query, n, extract, opts.Limit)
		}
		return RankBySimilarity(qvec, n, extract, opts)
	default: // ModeHybrid
		return hybridSearch(query, n, extract, opts)
	}
}

func textSearch(query string, n int, extract func(i int) string, limit int) []Ranked {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	var results []Ranked
	for i := 0; i < n; i++ {
		if strings.Contains(strings.ToLower(extract(i)), needle) {
			results = append(results, Ranked{Index: i, Score: 1.0})
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results
}

func hybridSearch(query string, n int, extract func(i int) string, opts RankOptions) []Ranked {
	qvec := VectorizeText(query, opts.MaxTokens)
	if len(qvec) == 0 {
		return textSearch(query, n, extract, opts.Limit)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}

	results := make([]Ranked, 0, n)
	for i := 0; i < n; i++ {
		text := extract(i)
		score := CosineSimilarity(qvec, VectorizeText(text, opts.MaxTokens))
		substring := needle != "" && strings.Contains(strings.ToLower(text), needle)
		if score < threshold && !substring {
			continue
		}
		if score < threshold {
			score = 0
		}
		if substring {
			score += DefaultHybridBoost
		}
		results = append(results, Ranked{Index: i, Score: score})
	}

	sortRanked(results)
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

func sortRanked(results []Ranked) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})
}
