package digest

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"last30days/research"
)

// Mode selects how much of the bundle Emit writes.
type Mode string

const (
	// ModeCompact emits stats plus a few representative posts per platform.
	ModeCompact Mode = "compact"
	// ModeFull emits stats plus every retained post.
	ModeFull Mode = "full"
)

// DefaultRepresentativePosts is the per-platform post count in compact mode.
const DefaultRepresentativePosts = 5

// topContributorLimit caps the ranked contributor list in Stats.
const topContributorLimit = 10

// ParseMode validates an emission mode string. Empty selects compact.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeCompact, nil
	case ModeCompact, ModeFull:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", research.ErrMalformedQuery, s)
	}
}

// Drops carries the pipeline's bookkeeping counters into the stats fold.
type Drops struct {
	Unparsed      int
	Duplicates    int
	WindowDropped int
}

// Aggregate folds the retained sections into Stats. It is a pure fold: no
// I/O, no clock, no randomness, so the same sections always produce
// identical Stats. Emission mode never feeds back into the totals; compact
// output reports the same Stats as full output.
func Aggregate(sections research.Sections, drops Drops, failures []research.SourceFailure) research.Stats {
	stats := research.Stats{
		Unparsed:          drops.Unparsed,
		DuplicatesRemoved: drops.Duplicates,
		WindowDropped:     drops.WindowDropped,
		Failures:          append([]research.SourceFailure{}, failures...),
	}
	for _, platform := range research.Platforms() {
		slot := stats.ForPlatform(platform)
		for _, post := range sections.ByPlatform(platform) {
			slot.Posts++
			slot.Engagement.Add(post.Engagement)
		}
	}
	stats.TopContributors = topContributors(sections)
	return stats
}

// topContributors ranks authors by cumulative score across their retained
// posts, ties broken by post count, then handle. Posts without attribution
// are skipped.
func topContributors(sections research.Sections) []research.Contributor {
	type key struct {
		platform research.Platform
		handle   string
	}
	totals := make(map[key]*research.Contributor)
	for _, platform := range research.Platforms() {
		for _, post := range sections.ByPlatform(platform) {
			if post.Author == "" {
				continue
			}
			k := key{platform: platform, handle: post.Author}
			c, ok := totals[k]
			if !ok {
				c = &research.Contributor{Handle: post.Author, Platform: platform}
				totals[k] = c
			}
			c.Posts++
			c.Score += post.Score
		}
	}

	ranked := make([]research.Contributor, 0, len(totals))
	for _, c := range totals {
		ranked = append(ranked, *c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Posts != ranked[j].Posts {
			return ranked[i].Posts > ranked[j].Posts
		}
		if ranked[i].Handle != ranked[j].Handle {
			return ranked[i].Handle < ranked[j].Handle
		}
		return ranked[i].Platform < ranked[j].Platform
	})
	if len(ranked) > topContributorLimit {
		ranked = ranked[:topContributorLimit]
	}
	return ranked
}

// document is the emitted envelope: the bundle plus the mode it was
// rendered in.
type document struct {
	Mode Mode `json:"mode"`
	*research.Bundle
}

// Emit serializes the bundle as indented JSON to a single stream. Compact
// mode truncates each platform section to the top representative posts but
// keeps the full-bundle Stats untouched. Output is deterministic for a
// given bundle: fixed field order, UTC timestamps, sorted contributors.
func Emit(w io.Writer, bundle *research.Bundle, mode Mode, representative int) error {
	if representative <= 0 {
		representative = DefaultRepresentativePosts
	}

	out := *bundle
	if mode == ModeCompact {
		var sections research.Sections
		for _, platform := range research.Platforms() {
			sec := bundle.Posts.ByPlatform(platform)
			if len(sec) > representative {
				sec = sec[:representative]
			}
			sections.Set(platform, sec)
		}
		out.Posts = sections
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Mode: mode, Bundle: &out}); err != nil {
		return fmt.Errorf("encoding digest: %w", err)
	}
	return nil
}
