package pipeline

import (
	"strings"
	"time"

	"last30days/research"
)

// timeLayouts are the timestamp shapes sources are known to emit: RFC3339
// from the bird CLI, bare dates from discovery, RSS date variants, and X's
// legacy layout.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon Jan 02 15:04:05 -0700 2006",
}

// Normalize maps raw items into canonical posts: UTC timestamps, display
// author prefixes, canonical IDs, engagement clamped to non-negative. Items
// with no parsable timestamp are dropped and counted.
func Normalize(raws []research.Raw) (posts []research.SourcePost, unparsed int) {
	posts = make([]research.SourcePost, 0, len(raws))
	for _, raw := range raws {
		ts, ok := parseTime(raw)
		if !ok {
			unparsed++
			continue
		}
		posts = append(posts, research.SourcePost{
			Platform:    raw.Platform,
			ID:          raw.ID,
			CanonicalID: research.CanonicalID(raw.Platform, raw.ID, raw.URL),
			Author:      displayAuthor(raw.Platform, raw.Author),
			Title:       strings.TrimSpace(raw.Title),
			Text:        strings.TrimSpace(raw.Text),
			URL:         raw.URL,
			Published:   ts,
			Engagement: research.Engagement{
				Upvotes:  clampNonNegative(raw.Upvotes),
				Comments: clampNonNegative(raw.Comments),
				Likes:    clampNonNegative(raw.Likes),
				Reposts:  clampNonNegative(raw.Reposts),
				Replies:  clampNonNegative(raw.Replies),
			},
		})
	}
	return posts, unparsed
}

func parseTime(raw research.Raw) (time.Time, bool) {
	if raw.Unix > 0 {
		return time.Unix(raw.Unix, 0).UTC(), true
	}
	s := strings.TrimSpace(raw.Time)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// displayAuthor namespaces the bare author for display and contributor
// aggregation: subreddits get r/, X handles get @, web hosts stay as-is.
// The prefixes keep handles from colliding across platforms.
func displayAuthor(p research.Platform, author string) string {
	author = strings.TrimSpace(author)
	if author == "" {
		return ""
	}
	switch p {
	case research.PlatformReddit:
		return "r/" + strings.TrimPrefix(author, "r/")
	case research.PlatformX:
		return "@" + strings.TrimPrefix(author, "@")
	}
	return author
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
