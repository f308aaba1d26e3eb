package webnews

import (
	"context"
	"net/url"
	"strings"

	"last30days/research"
)

// excludedDomains keeps the web source off the dedicated sources' turf:
// Reddit and X coverage comes from their own fetchers.
var excludedDomains = []string{"reddit.com", "redd.it", "twitter.com", "x.com", "t.co"}

// Fetcher pulls web posts for a topic and maps them into the shared raw
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
	return research.PlatformWeb
}

// Fetch searches the news feed and drops results hosted on excluded
// domains. Web items carry no engagement counts; the publisher host stands
// in as the author.
func (f *Fetcher) Fetch(ctx context.Context, topic research.Topic) ([]research.Raw, error) {
	_, high := topic.Depth.ItemRange(research.PlatformWeb)

	query := topic.Subject
	if hint := topic.ToolHint; hint != "" &&
		!strings.Contains(strings.ToLower(query), strings.ToLower(hint)) {
		query = query + " " + hint
	}

	items, err := f.client.Search(ctx, query, high)
	if err != nil {
		return nil, err
	}

	raws := make([]research.Raw, 0, len(items))
	for _, item := range items {
		host := hostOf(item.URL)
		if host == "" || excluded(host) {
			continue
		}

		raw := research.Raw{
			Platform: research.PlatformWeb,
			ID:       item.GUID,
			Title:    item.Title,
			Author:   strings.TrimPrefix(host, "www."),
			URL:      item.URL,
		}
		if item.Published != nil {
			raw.Unix = item.Published.Unix()
		}
		raws = append(raws, raw)

		if len(raws) == high {
			break
		}
	}
	return raws, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func excluded(host string) bool {
	for _, domain := range excludedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
