package registry

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// similarityCutoff is the minimum normalized similarity for a fuzzy match.
const similarityCutoff = 0.93

// Resolve canonicalizes a model-produced operator name against the registry.
// It is total, deterministic, and never fails: when no tier matches, or the
// registry is empty, the input is returned unchanged and downstream
// validation flags it.
//
// Resolution order:
//  1. exact match
//  2. case-insensitive match
//  3. match after lower-casing and stripping every non-alphanumeric rune
//     (DocumentMinHashDeduplicator -> document_minhash_deduplicator)
//  4. closest normalized match above a strict similarity cutoff
func Resolve(name string, reg Registry) string {
	raw := strings.TrimSpace(name)
	if raw == "" {
		return raw
	}
	var names []string
	if reg != nil {
		names = reg.Names()
	}
	if len(names) == 0 {
		return raw
	}

	for _, op := range names {
		if op == raw {
			return raw
		}
	}

	lowered := strings.ToLower(raw)
	for _, op := range names {
		if strings.ToLower(op) == lowered {
			return op
		}
	}

	normalizedRaw := normalizeName(raw)
	normalized := make(map[string]string, len(names))
	for _, op := range names {
		key := normalizeName(op)
		if key == "" {
			continue
		}
		// First entry wins so resolution stays deterministic over the
		// sorted name list.
		if _, ok := normalized[key]; !ok {
			normalized[key] = op
		}
	}
	if op, ok := normalized[normalizedRaw]; ok {
		return op
	}

	if normalizedRaw == "" {
		return raw
	}

	best, bestRatio := "", 0.0
	for key, op := range normalized {
		ratio := similarity(normalizedRaw, key)
		if ratio > bestRatio || (ratio == bestRatio && op < best) {
			best, bestRatio = op, ratio
		}
	}
	if bestRatio >= similarityCutoff {
		return best
	}
	return raw
}

// normalizeName lower-cases and strips every non-alphanumeric rune.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// similarity is a normalized edit-distance ratio in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
