// Package webnews pulls general web coverage of a topic from a news search
// RSS feed. The feed is keyless, returns direct publisher links, and is the
// only source class with no native engagement signal.
package webnews

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
)

// DefaultFeedURL is the search feed template; %s receives the url-encoded
// query. Any RSS search endpoint with direct article links works here.
const DefaultFeedURL = "https://www.bing.com/news/search?q=%s&format=rss"

// Item is one search result from the news feed.
type Item struct {
	GUID      string
	Title     string
	URL       string
	Published *time.Time
}

// Client searches the web for recent coverage.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]Item, error)
}

type feedClient struct {
	parser  *gofeed.Parser
	feedURL string
}

// NewClient creates a Client over the default news search feed.
func NewClient(httpClient *http.Client) Client {
	return NewClientWithFeedURL(httpClient, DefaultFeedURL)
}

// NewClientWithFeedURL creates a Client over a custom feed template (for
// testing, or to point at a different search provider).
func NewClientWithFeedURL(httpClient *http.Client, feedURL string) Client {
	parser := gofeed.NewParser()
	if httpClient != nil {
		parser.Client = httpClient
	}
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	return &feedClient{parser: parser, feedURL: feedURL}
}

// Search fetches and parses the feed for query, returning up to limit items.
func (c *feedClient) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	target := fmt.Sprintf(c.feedURL, url.QueryEscape(query))

	feed, err := c.parser.ParseURLWithContext(target, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching news feed: %w", err)
	}

	count := len(feed.Items)
	if limit > 0 && limit < count {
		count = limit
	}

	items := make([]Item, 0, count)
	for _, entry := range feed.Items[:count] {
		guid := entry.GUID
		if guid == "" {
			guid = entry.Link
		}

		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}

		items = append(items, Item{
			GUID:      guid,
			Title:     entry.Title,
			URL:       entry.Link,
			Published: published,
		})
	}
	return items, nil
}
