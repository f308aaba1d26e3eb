// Package rank assigns deterministic engagement scores and fixes the
// emission order of posts. Scores influence ranking only, never whether a
// post stays in the bundle.
package rank

import (
	"sort"

	"last30days/research"
)

// DefaultRepostWeight is the multiplier applied to reposts when scoring X
// posts. A repost pushes the post into new timelines, so it counts for more
// than a like. Tunable via the repost_weight config field; must stay
// above 1.
const DefaultRepostWeight = 2.0

// Scorer computes source-specific engagement scores.
type Scorer struct {
	RepostWeight float64
}

// NewScorer returns a scorer with the given repost weight, falling back to
// DefaultRepostWeight when the value is unset.
func NewScorer(repostWeight float64) Scorer {
	if repostWeight <= 0 {
		repostWeight = DefaultRepostWeight
	}
	return Scorer{RepostWeight: repostWeight}
}

// Score computes the engagement score for one post.
// Formulas:
//
//	reddit: upvotes + comments
//	x:      likes + RepostWeight * reposts
//	web:    0 (no native engagement; ordering falls back to recency)
func (s Scorer) Score(p research.SourcePost) float64 {
	e := p.Engagement
	switch p.Platform {
	case research.PlatformReddit:
		return float64(e.Upvotes + e.Comments)
	case research.PlatformX:
		return float64(e.Likes) + s.RepostWeight*float64(e.Reposts)
	}
	return 0
}

// Apply assigns Score to every post in place and returns the slice.
func (s Scorer) Apply(posts []research.SourcePost) []research.SourcePost {
	for i := range posts {
		posts[i].Score = s.Score(posts[i])
	}
	return posts
}

// Sort orders posts for emission: score descending, then publication time
// descending, then canonical ID ascending. The order is a function of
// content only, so it never depends on fetch completion order.
func Sort(posts []research.SourcePost) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].Score != posts[j].Score {
			return posts[i].Score > posts[j].Score
		}
		if !posts[i].Published.Equal(posts[j].Published) {
			return posts[i].Published.After(posts[j].Published)
		}
		return posts[i].CanonicalID < posts[j].CanonicalID
	})
}
