// Package similarity detects duplicate or overlapping use cases.
//
// Prior use-case fragments are extracted from issue bodies by their markdown
// headings, then compared to a query text with raw-count token cosine
// similarity. Fragments are ephemeral: rebuilt from the issue corpus on every
// pipeline run, never persisted.
package similarity

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// maxExcerptLen caps the fragment text kept for comparison, counted in runes
// so accented text keeps as much content as plain ASCII.
const maxExcerptLen = 1200

// DefaultThreshold is the duplicate-detection cutoff.
const DefaultThreshold = 0.8

// Fragment is one use case extracted from an issue body.
type Fragment struct {
	IssueNumber int
	IssueTitle  string
	UCID        string
	Name        string
	Excerpt     string
}

// Match pairs a fragment with its similarity to the query text.
type Match struct {
	Fragment
	Similarity float64 // rounded to 4 decimals
}

// headingPattern matches level-2 use-case headings of the exact shape
// "## UC-<id>: <name>".
var headingPattern = regexp.MustCompile(`(?m)^##\s+(UC-[A-Za-z0-9._-]+):\s*(.+)$`)

// tokenPattern matches lower-cased alphanumeric runs, including accented
// Latin letters, of length >= 3.
var tokenPattern = regexp.MustCompile(`[a-zA-ZÀ-ÿ0-9_-]{3,}`)

// ExtractFragments scans an issue body for use-case headings. Each fragment
// spans from its heading to the next heading or end of body, truncated to the
// excerpt cap. A body with no headings yields no fragments.
func ExtractFragments(body string, issueNumber int, issueTitle string) []Fragment {
	if body == "" {
		return nil
	}

	locs := headingPattern.FindAllStringSubmatchIndex(body, -1)
	if len(locs) == 0 {
		return nil
	}
	fragments := make([]Fragment, 0, len(locs))
	for i, loc := range locs {
		start := loc[0]
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		chunk := strings.TrimSpace(body[start:end])
		if runes := []rune(chunk); len(runes) > maxExcerptLen {
			chunk = string(runes[:maxExcerptLen])
		}
		fragments = append(fragments, Fragment{
			IssueNumber: issueNumber,
			IssueTitle:  issueTitle,
			UCID:        strings.TrimSpace(body[loc[2]:loc[3]]),
			Name:        strings.TrimSpace(body[loc[4]:loc[5]]),
			Excerpt:     chunk,
		})
	}
	return fragments
}

// Tokenize builds a term-frequency multiset from the text.
func Tokenize(text string) map[string]int {
	tokens := make(map[string]int)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		tokens[tok]++
	}
	return tokens
}

// Cosine computes cosine similarity between two term-frequency multisets
// using raw counts. Returns 0.0 when either vector has zero norm or the
// vocabularies do not intersect.
func Cosine(a, b map[string]int) float64 {
	dot := 0.0
	normA := 0.0
	normB := 0.0

	for tok, ca := range a {
		fa := float64(ca)
		normA += fa * fa
		if cb, ok := b[tok]; ok {
			dot += fa * float64(cb)
		}
	}
	for _, cb := range b {
		fb := float64(cb)
		normB += fb * fb
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Index holds the fragment corpus for one pipeline run.
type Index struct {
	fragments []Fragment
}

// NewIndex builds an index over the given fragments, preserving discovery
// order (which breaks similarity ties).
func NewIndex(fragments []Fragment) *Index {
	return &Index{fragments: fragments}
}

// Fragments returns the indexed fragments in discovery order.
func (ix *Index) Fragments() []Fragment {
	return ix.fragments
}

// FindSimilar returns every fragment whose similarity to the text is at or
// above the threshold, sorted by similarity descending. An empty-token query
// yields no matches.
func (ix *Index) FindSimilar(text string, threshold float64) []Match {
	target := Tokenize(text)
	if len(target) == 0 {
		return nil
	}

	var matches []Match
	for _, frag := range ix.fragments {
		sim := Cosine(target, Tokenize(frag.Excerpt))
		if sim >= threshold {
			matches = append(matches, Match{
				Fragment:   frag,
				Similarity: math.Round(sim*10000) / 10000,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}
