package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"last30days/dedupe"
	"last30days/digest"
	"last30days/probe"
	"last30days/rank"
	"last30days/research"
)

// Fetcher is one source integration. Fetch returns raw items for the topic
// and must respect ctx cancellation.
type Fetcher interface {
	Platform() research.Platform
	Fetch(ctx context.Context, topic research.Topic) ([]research.Raw, error)
}

// Pipeline runs a topic query end to end: probe-gated concurrent fetches,
// normalize, dedupe, score, window filter, aggregate.
type Pipeline struct {
	fetchers []Fetcher
	avail    probe.Availability
	scorer   rank.Scorer
	deduper  dedupe.Deduper
}

// New assembles a pipeline over the given fetchers and probe result.
func New(fetchers []Fetcher, avail probe.Availability, scorer rank.Scorer, deduper dedupe.Deduper) *Pipeline {
	return &Pipeline{
		fetchers: fetchers,
		avail:    avail,
		scorer:   scorer,
		deduper:  deduper,
	}
}

// Run executes the pipeline for a topic. Sources marked unusable by the
// probe are skipped up front; usable sources fetch concurrently, each under
// its own deadline, and a failing source never aborts its siblings. Run
// returns AllSourcesFailedError only when no source produced results.
func (p *Pipeline) Run(ctx context.Context, topic research.Topic) (*research.Bundle, error) {
	type outcome struct {
		raws    []research.Raw
		failure *research.SourceFailure
	}
	outcomes := make(map[research.Platform]*outcome, len(p.fetchers))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, f := range p.fetchers {
		platform := f.Platform()
		status := p.avail.For(platform)
		if !status.Usable {
			outcomes[platform] = &outcome{failure: &research.SourceFailure{
				Source: platform,
				Reason: research.ReasonCapabilityUnavailable,
				Detail: status.Reason,
			}}
			slog.Info("skipping source", "source", platform, "reason", status.Reason)
			continue
		}

		wg.Add(1)
		go func(f Fetcher, platform research.Platform) {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, topic.Depth.FetchTimeout())
			defer cancel()

			raws, err := f.Fetch(fctx, topic)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reason := research.ReasonFetchNetworkError
				if errors.Is(err, context.DeadlineExceeded) {
					reason = research.ReasonFetchTimeout
				}
				outcomes[platform] = &outcome{failure: &research.SourceFailure{
					Source: platform,
					Reason: reason,
					Detail: err.Error(),
				}}
				slog.Warn("source fetch failed", "source", platform, "error", err)
				return
			}
			outcomes[platform] = &outcome{raws: raws}
			slog.Info("source fetch complete", "source", platform, "items", len(raws))
		}(f, platform)
	}
	wg.Wait()

	// Join in fixed platform order so downstream stages see a
	// deterministic sequence regardless of completion order.
	var (
		allRaws  []research.Raw
		failures []research.SourceFailure
		reports  []research.SourceReport
		anyOK    bool
	)
	for _, platform := range research.Platforms() {
		out, ok := outcomes[platform]
		if !ok {
			continue
		}
		status := p.avail.For(platform)
		report := research.SourceReport{
			Source: platform,
			Usable: status.Usable,
			Reason: status.Reason,
		}
		if out.failure != nil {
			failures = append(failures, *out.failure)
		} else {
			anyOK = true
			report.Fetched = len(out.raws)
			allRaws = append(allRaws, out.raws...)
		}
		reports = append(reports, report)
	}
	if !anyOK {
		return nil, &research.AllSourcesFailedError{Failures: failures}
	}

	posts, unparsed := Normalize(allRaws)
	posts, duplicates := p.deduper.Dedupe(posts)
	posts = p.scorer.Apply(posts)

	var (
		kept          []research.SourcePost
		windowDropped int
	)
	for _, post := range posts {
		if !topic.Contains(post.Published) {
			windowDropped++
			continue
		}
		kept = append(kept, post)
	}

	// Sections stay non-nil so empty ones emit as [] rather than null.
	var sections research.Sections
	for _, platform := range research.Platforms() {
		sec := []research.SourcePost{}
		for _, post := range kept {
			if post.Platform == platform {
				sec = append(sec, post)
			}
		}
		rank.Sort(sec)
		sections.Set(platform, sec)
	}

	bundle := &research.Bundle{
		RunID:       uuid.NewString(),
		Subject:     topic.Subject,
		ToolHint:    topic.ToolHint,
		Intent:      topic.Intent,
		Depth:       topic.Depth,
		GeneratedAt: topic.Now,
		Window:      research.Window{From: topic.WindowStart(), To: topic.Now},
		Sources:     reports,
		Posts:       sections,
		Stats: digest.Aggregate(sections, digest.Drops{
			Unparsed:      unparsed,
			Duplicates:    duplicates,
			WindowDropped: windowDropped,
		}, failures),
	}
	slog.Info("research complete",
		"run_id", bundle.RunID,
		"posts", len(kept),
		"duplicates_removed", duplicates,
		"window_dropped", windowDropped,
		"failed_sources", len(failures))
	return bundle, nil
}
