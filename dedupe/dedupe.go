// Package dedupe collapses duplicate posts before scoring. Two posts are
// duplicates when they share a canonical ID, or when the same author posted
// near-identical text on the same platform.
package dedupe

import (
	"strings"

	"last30days/research"
)

// DefaultThreshold is the token-similarity level at or above which two
// same-author posts collapse. Tunable via the similarity_threshold config
// field.
const DefaultThreshold = 0.90

// ScoreFunc ranks posts so the deduper can keep the stronger duplicate.
type ScoreFunc func(research.SourcePost) float64

// Deduper removes duplicates, keeping the higher-scoring post of each
// group; exact score ties keep the earliest-seen post.
type Deduper struct {
	threshold float64
	score     ScoreFunc
}

// New returns a Deduper. A zero threshold falls back to DefaultThreshold.
func New(threshold float64, score ScoreFunc) Deduper {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Deduper{threshold: threshold, score: score}
}

// Dedupe returns the surviving posts and the number removed. Survivors keep
// first-seen order. The operation is idempotent: running it over its own
// output removes nothing.
func (d Deduper) Dedupe(posts []research.SourcePost) ([]research.SourcePost, int) {
	survivors := make([]research.SourcePost, 0, len(posts))
	removed := 0

	for _, post := range posts {
		var matches []int
		for i := range survivors {
			if d.duplicates(survivors[i], post) {
				matches = append(matches, i)
			}
		}

		if len(matches) == 0 {
			survivors = append(survivors, post)
			continue
		}

		// The incoming post can bridge survivors that were not duplicates
		// of each other; the whole group collapses to one winner so the
		// survivor set stays pairwise duplicate-free.
		group := make([]research.SourcePost, 0, len(matches)+1)
		for _, i := range matches {
			group = append(group, survivors[i])
		}
		group = append(group, post)

		winner := group[0]
		for _, candidate := range group[1:] {
			if d.score(candidate) > d.score(winner) {
				winner = candidate
			}
		}

		survivors[matches[0]] = winner
		for n := len(matches) - 1; n >= 1; n-- {
			i := matches[n]
			survivors = append(survivors[:i], survivors[i+1:]...)
		}
		removed += len(group) - 1
	}

	return survivors, removed
}

func (d Deduper) duplicates(a, b research.SourcePost) bool {
	if a.CanonicalID == b.CanonicalID {
		return true
	}
	if a.Author == "" || a.Author != b.Author {
		return false
	}
	return Similarity(postText(a), postText(b)) >= d.threshold
}

func postText(p research.SourcePost) string {
	return strings.TrimSpace(p.Title + " " + p.Text)
}

// Similarity is the Jaccard index over the two texts' token sets.
func Similarity(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)

	setA := make(map[string]struct{}, len(tokensA))
	for _, tok := range tokensA {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, tok := range tokensB {
		setB[tok] = struct{}{}
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenize(input string) []string {
	fields := strings.Fields(strings.ToLower(input))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.Trim(f, ".,;:!?\"'()[]{}")
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
