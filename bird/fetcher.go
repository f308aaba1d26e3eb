package bird

import (
	"context"
	"strings"

	"last30days/research"
)

// Fetcher pulls X posts for a topic and maps them into the shared raw
// carrier shape.
type Fetcher struct {
	client Client
}

// NewFetcher wraps a Client for pipeline use.
func NewFetcher(client Client) *Fetcher {
	return &Fetcher{client: client}
}

// Platform identifies this fetcher's source.
func (f *Fetcher) Platform() research.Platform {
	return research.PlatformX
}

// Fetch searches X inside the topic window. Empty result sets walk the
// query ladder before giving up; a CLI or decode failure aborts the fetch.
func (f *Fetcher) Fetch(ctx context.Context, topic research.Topic) ([]research.Raw, error) {
	_, high := topic.Depth.ItemRange(research.PlatformX)

	var tweets []Tweet
	for _, query := range QueryLadder(topic) {
		found, err := f.client.Search(ctx, query, high)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			tweets = found
			break
		}
	}

	if len(tweets) > high {
		tweets = tweets[:high]
	}

	raws := make([]research.Raw, 0, len(tweets))
	for _, t := range tweets {
		raws = append(raws, research.Raw{
			Platform: research.PlatformX,
			ID:       t.ID,
			Text:     t.Text,
			Author:   t.Author.Username,
			URL:      t.URL(),
			Time:     t.CreatedAt,
			Likes:    t.Likes,
			Reposts:  t.Retweets,
			Replies:  t.Replies,
		})
	}
	return raws, nil
}

// QueryLadder builds up to three progressively shortened search queries,
// each scoped to the window start with X's since: syntax. Broad topics
// often return nothing verbatim; retrying with the first half of the
// tokens, then the strongest single token, recovers results.
func QueryLadder(topic research.Topic) []string {
	subject := topic.Subject
	if hint := topic.ToolHint; hint != "" &&
		!strings.Contains(strings.ToLower(subject), strings.ToLower(hint)) {
		subject = subject + " " + hint
	}

	since := " since:" + topic.FromDate()
	queries := []string{subject + since}

	tokens := strings.Fields(subject)
	if len(tokens) < 2 {
		return queries
	}

	half := tokens[:(len(tokens)+1)/2]
	shortened := strings.Join(half, " ")
	if shortened != subject {
		queries = append(queries, shortened+since)
	}

	strongest := half[0]
	for _, tok := range half[1:] {
		if len(tok) > len(strongest) {
			strongest = tok
		}
	}
	if strongest != shortened {
		queries = append(queries, strongest+since)
	}

	return queries
}
