// Package fingerprint normalizes item text and derives the exact and
// near-match fingerprints the dedup engine clusters on.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultShingleSize is the token window width for near-duplicate shingles.
const DefaultShingleSize = 5

// invisibleRunes are stripped outright during sanitization.
var invisibleRunes = map[rune]struct{}{
	'\u200B': {}, // zero width space
	'\u200C': {}, // zero width non-joiner
	'\u200D': {}, // zero width joiner
	'\u2060': {}, // word joiner
	'\uFEFF': {}, // BOM
	'\u00AD': {}, // soft hyphen
}

// charReplacements maps typographic variants to their plain forms so that the
// same text clipped from different renderers hashes identically.
var charReplacements = map[string]string{
	"‘": "'", "’": "'", "“": "\"", "”": "\"",
	"–": "-", "—": "--", "…": "...", " ": " ",
	"": "'", "": "'", "": "\"", "": "\"",
}

// Fingerprint carries both match granularities for one normalized text.
type Fingerprint struct {
	// ExactHash is the SHA-256 of the normalized text, hex encoded.
	ExactHash string
	// Shingles are FNV-1a hashes of k-word token windows, sorted and deduped.
	// Empty for degenerate text shorter than one window.
	Shingles []uint64
}

// Empty reports whether the text was too short for near-dup comparison.
func (f Fingerprint) Empty() bool { return len(f.Shingles) == 0 }

// Sketch returns the n smallest shingle hashes, used as candidate-bucket keys
// by the dedup index. Returns all shingles when fewer than n exist.
func (f Fingerprint) Sketch(n int) []uint64 {
	if n >= len(f.Shingles) {
		return f.Shingles
	}
	return f.Shingles[:n]
}

// Sanitizer normalizes text deterministically. The zero value is usable;
// Boilerplate adds exact lines to drop (repeated headers/footers from the
// content source).
type Sanitizer struct {
	Boilerplate []string
}

// Sanitize unicode-normalizes (NFKC), strips invisible and boilerplate
// content, and collapses whitespace. Idempotent: Sanitize(Sanitize(x)) ==
// Sanitize(x).
func (s *Sanitizer) Sanitize(text string) string {
	text = norm.NFKC.String(text)

	for bad, good := range charReplacements {
		text = strings.ReplaceAll(text, bad, good)
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if _, drop := invisibleRunes[r]; drop {
			continue
		}
		b.WriteRune(r)
	}
	text = b.String()

	boiler := make(map[string]struct{}, len(s.Boilerplate))
	for _, line := range s.Boilerplate {
		boiler[strings.TrimSpace(line)] = struct{}{}
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if _, drop := boiler[line]; drop {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// Compute derives the fingerprint of already-sanitized text with a k-word
// shingle window. k <= 0 falls back to DefaultShingleSize.
func Compute(normalized string, k int) Fingerprint {
	if k <= 0 {
		k = DefaultShingleSize
	}

	sum := sha256.Sum256([]byte(normalized))
	fp := Fingerprint{ExactHash: hex.EncodeToString(sum[:])}

	tokens := strings.Fields(strings.ToLower(normalized))
	if len(tokens) < k {
		return fp
	}

	seen := make(map[uint64]struct{}, len(tokens))
	for i := 0; i+k <= len(tokens); i++ {
		h := fnv.New64a()
		for j := i; j < i+k; j++ {
			h.Write([]byte(tokens[j]))
			h.Write([]byte{0})
		}
		seen[h.Sum64()] = struct{}{}
	}

	fp.Shingles = make([]uint64, 0, len(seen))
	for sh := range seen {
		fp.Shingles = append(fp.Shingles, sh)
	}
	sort.Slice(fp.Shingles, func(i, j int) bool { return fp.Shingles[i] < fp.Shingles[j] })
	return fp
}

// Jaccard computes intersection-over-union of two sorted shingle slices. Returns 0
// when either side is empty.
func Jaccard(a, b []uint64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter, i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
