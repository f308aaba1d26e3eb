package excerpt

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"last30days/research"
)

const (
	// defaultMaxPosts is how many posts Enrich touches when no limit is given.
	defaultMaxPosts = 5
	// maxConcurrent bounds in-flight page fetches.
	maxConcurrent = 3
	// requestsPerSecond keeps the enricher polite toward publishers.
	requestsPerSecond = 2
)

// Enricher fills post excerpts from their pages, rate limited and with
// bounded concurrency.
type Enricher struct {
	extractor Extractor
	limiter   *rate.Limiter
}

// NewEnricher wraps an Extractor with the politeness limits.
func NewEnricher(extractor Extractor) *Enricher {
	return newEnricherWithLimiter(extractor, rate.NewLimiter(rate.Limit(requestsPerSecond), 1))
}

func newEnricherWithLimiter(extractor Extractor, limiter *rate.Limiter) *Enricher {
	return &Enricher{
		extractor: extractor,
		limiter:   limiter,
	}
}

// Enrich fills Excerpt on the first limit posts that carry a URL. A failed
// extraction leaves that post's excerpt empty; Enrich never fails and never
// reorders posts.
func (e *Enricher) Enrich(ctx context.Context, posts []research.SourcePost, limit int) {
	if limit <= 0 {
		limit = defaultMaxPosts
	}
	if limit > len(posts) {
		limit = len(posts)
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for i := range posts[:limit] {
		if posts[i].URL == "" {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := e.limiter.Wait(ctx); err != nil {
				return
			}
			text, err := e.extractor.Extract(ctx, posts[i].URL)
			if err != nil {
				slog.Debug("excerpt extraction failed", "url", posts[i].URL, "error", err)
				return
			}
			posts[i].Excerpt = text
		}(i)
	}
	wg.Wait()
}
