package reddit

import (
	"context"
	"log/slog"
	"sync"

	"last30days/research"
)

// maxHydrateConcurrent bounds the parallel thread-detail requests so a deep
// query does not hammer reddit.com.
const maxHydrateConcurrent = 5

// Fetcher discovers topic threads and hydrates them into raw items.
type Fetcher struct {
	searcher Searcher
	hydrator Hydrator
}

// NewFetcher wires discovery and hydration for pipeline use.
func NewFetcher(searcher Searcher, hydrator Hydrator) *Fetcher {
	return &Fetcher{searcher: searcher, hydrator: hydrator}
}

// Platform identifies this fetcher's source.
func (f *Fetcher) Platform() research.Platform {
	return research.PlatformReddit
}

// Fetch discovers up to the depth cap of threads and hydrates them
// concurrently. Hydration failures degrade to the discovery fields; results
// keep discovery order regardless of which request finishes first.
func (f *Fetcher) Fetch(ctx context.Context, topic research.Topic) ([]research.Raw, error) {
	threads, err := f.searcher.Search(ctx, topic)
	if err != nil {
		return nil, err
	}

	_, high := topic.Depth.ItemRange(research.PlatformReddit)
	if len(threads) > high {
		threads = threads[:high]
	}

	raws := make([]research.Raw, len(threads))
	sem := make(chan struct{}, maxHydrateConcurrent)
	var wg sync.WaitGroup

	for i, thread := range threads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			raws[i] = f.raw(ctx, thread)
		}()
	}
	wg.Wait()

	return raws, nil
}

func (f *Fetcher) raw(ctx context.Context, thread Thread) research.Raw {
	raw := research.Raw{
		Platform: research.PlatformReddit,
		ID:       thread.ID,
		Title:    thread.Title,
		Author:   thread.Subreddit,
		URL:      thread.URL,
		Time:     thread.Date,
	}

	data, err := f.hydrator.Hydrate(ctx, thread.URL)
	if err != nil {
		slog.Debug("thread hydration failed", "url", thread.URL, "error", err)
		return raw
	}

	if data.Title != "" {
		raw.Title = data.Title
	}
	if data.Subreddit != "" {
		raw.Author = data.Subreddit
	}
	raw.Text = data.SelfText
	raw.Upvotes = data.Score
	raw.Comments = data.NumComments
	if data.CreatedUTC > 0 {
		raw.Unix = data.CreatedUTC
	}
	return raw
}
