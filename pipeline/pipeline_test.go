package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"last30days/dedupe"
	"last30days/probe"
	"last30days/rank"
	"last30days/research"
)

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	platform research.Platform
	raws     []research.Raw
	err      error
	delay    time.Duration
	calls    int
}

func (f *fakeFetcher) Platform() research.Platform { return f.platform }

func (f *fakeFetcher) Fetch(ctx context.Context, topic research.Topic) ([]research.Raw, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.raws, nil
}

func allUsable() probe.Availability {
	return probe.Availability{
		Reddit: probe.SourceStatus{Usable: true},
		X:      probe.SourceStatus{Usable: true},
		Web:    probe.SourceStatus{Usable: true},
	}
}

func testTopic(t *testing.T) research.Topic {
	t.Helper()
	topic, err := research.NewTopic("codex skills", "", research.IntentGeneral, research.DepthQuick, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return topic
}

func rawAt(platform research.Platform, id, author string, age time.Duration, likes int) research.Raw {
	return research.Raw{
		Platform: platform,
		ID:       id,
		Title:    "post " + id,
		Author:   author,
		Unix:     testNow.Add(-age).Unix(),
		Likes:    likes,
	}
}

func newTestPipeline(fetchers []Fetcher, avail probe.Availability) *Pipeline {
	scorer := rank.NewScorer(0)
	return New(fetchers, avail, scorer, dedupe.New(0, scorer.Score))
}

func TestRun_MergesAllSources(t *testing.T) {
	reddit := &fakeFetcher{platform: research.PlatformReddit, raws: []research.Raw{
		{Platform: research.PlatformReddit, ID: "r1", Author: "golang", Unix: testNow.Add(-24 * time.Hour).Unix(), Upvotes: 40, Comments: 10},
	}}
	x := &fakeFetcher{platform: research.PlatformX, raws: []research.Raw{
		{Platform: research.PlatformX, ID: "x1", Author: "gopher", Unix: testNow.Add(-48 * time.Hour).Unix(), Likes: 20, Reposts: 5},
	}}
	web := &fakeFetcher{platform: research.PlatformWeb, raws: []research.Raw{
		{Platform: research.PlatformWeb, ID: "w1", Author: "techsite.com", URL: "https://techsite.com/a", Unix: testNow.Add(-72 * time.Hour).Unix()},
	}}

	bundle, err := newTestPipeline([]Fetcher{reddit, x, web}, allUsable()).Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bundle.RunID == "" {
		t.Error("expected a run ID")
	}
	if !bundle.GeneratedAt.Equal(testNow) {
		t.Errorf("expected generated_at %v, got %v", testNow, bundle.GeneratedAt)
	}
	if !bundle.Window.From.Equal(testNow.Add(-research.WindowDuration)) || !bundle.Window.To.Equal(testNow) {
		t.Errorf("unexpected window: %+v", bundle.Window)
	}
	if len(bundle.Posts.Reddit) != 1 || len(bundle.Posts.X) != 1 || len(bundle.Posts.Web) != 1 {
		t.Fatalf("expected one post per section, got %d/%d/%d",
			len(bundle.Posts.Reddit), len(bundle.Posts.X), len(bundle.Posts.Web))
	}
	if bundle.Posts.Reddit[0].Author != "r/golang" || bundle.Posts.X[0].Author != "@gopher" {
		t.Errorf("authors not namespaced: %q / %q", bundle.Posts.Reddit[0].Author, bundle.Posts.X[0].Author)
	}
	if bundle.Stats.Reddit.Posts != 1 || bundle.Stats.X.Posts != 1 || bundle.Stats.Web.Posts != 1 {
		t.Errorf("unexpected per-platform stats: %+v", bundle.Stats)
	}
	if len(bundle.Stats.Failures) != 0 {
		t.Errorf("expected no failures, got %+v", bundle.Stats.Failures)
	}

	wantReports := []research.SourceReport{
		{Source: research.PlatformReddit, Usable: true, Fetched: 1},
		{Source: research.PlatformX, Usable: true, Fetched: 1},
		{Source: research.PlatformWeb, Usable: true, Fetched: 1},
	}
	if !reflect.DeepEqual(bundle.Sources, wantReports) {
		t.Errorf("unexpected source reports: %+v", bundle.Sources)
	}
}

func TestRun_XUnavailableStillSucceeds(t *testing.T) {
	reddit := &fakeFetcher{platform: research.PlatformReddit, raws: []research.Raw{
		rawAt(research.PlatformReddit, "r1", "golang", 24*time.Hour, 0),
	}}
	x := &fakeFetcher{platform: research.PlatformX}
	web := &fakeFetcher{platform: research.PlatformWeb, raws: []research.Raw{
		rawAt(research.PlatformWeb, "w1", "techsite.com", 48*time.Hour, 0),
	}}

	avail := allUsable()
	avail.X = probe.SourceStatus{Reason: "bird CLI not installed"}

	bundle, err := newTestPipeline([]Fetcher{reddit, x, web}, avail).Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}

	if x.calls != 0 {
		t.Errorf("unusable source was still fetched %d times", x.calls)
	}
	if len(bundle.Posts.X) != 0 {
		t.Errorf("expected empty x section, got %d posts", len(bundle.Posts.X))
	}
	if len(bundle.Stats.Failures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %+v", bundle.Stats.Failures)
	}
	failure := bundle.Stats.Failures[0]
	if failure.Source != research.PlatformX || failure.Reason != research.ReasonCapabilityUnavailable {
		t.Errorf("unexpected failure record: %+v", failure)
	}
	if failure.Detail != "bird CLI not installed" {
		t.Errorf("expected probe reason in detail, got %q", failure.Detail)
	}
	if len(bundle.Posts.Reddit) != 1 || len(bundle.Posts.Web) != 1 {
		t.Errorf("surviving sections incomplete: %d/%d", len(bundle.Posts.Reddit), len(bundle.Posts.Web))
	}
}

func TestRun_FetchErrorDegradesToPartial(t *testing.T) {
	reddit := &fakeFetcher{platform: research.PlatformReddit, err: errors.New("searching reddit: connection refused")}
	web := &fakeFetcher{platform: research.PlatformWeb, raws: []research.Raw{
		rawAt(research.PlatformWeb, "w1", "techsite.com", 24*time.Hour, 0),
	}}

	avail := allUsable()
	avail.X = probe.SourceStatus{Reason: "disabled by configuration"}

	bundle, err := newTestPipeline([]Fetcher{reddit, web}, avail).Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}

	if len(bundle.Stats.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", bundle.Stats.Failures)
	}
	// Failures surface in fixed platform order: reddit before x.
	if bundle.Stats.Failures[0].Source != research.PlatformReddit ||
		bundle.Stats.Failures[0].Reason != research.ReasonFetchNetworkError {
		t.Errorf("unexpected reddit failure: %+v", bundle.Stats.Failures[0])
	}
	if bundle.Stats.Failures[1].Source != research.PlatformX ||
		bundle.Stats.Failures[1].Reason != research.ReasonCapabilityUnavailable {
		t.Errorf("unexpected x failure: %+v", bundle.Stats.Failures[1])
	}
}

func TestRun_TimeoutClassified(t *testing.T) {
	reddit := &fakeFetcher{
		platform: research.PlatformReddit,
		err:      fmt.Errorf("searching reddit: %w", context.DeadlineExceeded),
	}
	web := &fakeFetcher{platform: research.PlatformWeb, raws: []research.Raw{
		rawAt(research.PlatformWeb, "w1", "techsite.com", 24*time.Hour, 0),
	}}

	avail := allUsable()
	avail.X = probe.SourceStatus{Reason: "disabled by configuration"}

	bundle, err := newTestPipeline([]Fetcher{reddit, web}, avail).Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if bundle.Stats.Failures[0].Reason != research.ReasonFetchTimeout {
		t.Errorf("expected timeout classification, got %+v", bundle.Stats.Failures[0])
	}
}

func TestRun_AllSourcesFailedNamesEverySource(t *testing.T) {
	reddit := &fakeFetcher{platform: research.PlatformReddit, err: errors.New("searching reddit: connection refused")}
	x := &fakeFetcher{platform: research.PlatformX, err: errors.New("searching x: bird exited")}
	web := &fakeFetcher{platform: research.PlatformWeb, err: errors.New("fetching news feed: 503")}

	_, err := newTestPipeline([]Fetcher{reddit, x, web}, allUsable()).Run(context.Background(), testTopic(t))
	if err == nil {
		t.Fatal("expected error when every source fails")
	}

	var allFailed *research.AllSourcesFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("expected AllSourcesFailedError, got %T: %v", err, err)
	}
	if len(allFailed.Failures) != 3 {
		t.Fatalf("expected 3 failures, got %+v", allFailed.Failures)
	}
	msg := err.Error()
	for _, want := range []string{"reddit", "x:", "web", "connection refused", "bird exited", "503"} {
		if !strings.Contains(msg, want) {
			t.Errorf("diagnostic %q missing %q", msg, want)
		}
	}
}

func TestRun_NothingUsableFailsWithProbeReasons(t *testing.T) {
	avail := probe.Availability{
		Reddit: probe.SourceStatus{Reason: "no OpenAI API key configured"},
		X:      probe.SourceStatus{Reason: "bird CLI not installed"},
		Web:    probe.SourceStatus{Reason: "disabled by configuration"},
	}
	fetchers := []Fetcher{
		&fakeFetcher{platform: research.PlatformReddit},
		&fakeFetcher{platform: research.PlatformX},
		&fakeFetcher{platform: research.PlatformWeb},
	}

	_, err := newTestPipeline(fetchers, avail).Run(context.Background(), testTopic(t))

	var allFailed *research.AllSourcesFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("expected AllSourcesFailedError, got %v", err)
	}
	for _, f := range allFailed.Failures {
		if f.Reason != research.ReasonCapabilityUnavailable {
			t.Errorf("expected capability_unavailable for %s, got %s", f.Source, f.Reason)
		}
	}
	msg := err.Error()
	for _, want := range []string{"no OpenAI API key configured", "bird CLI not installed", "disabled by configuration"} {
		if !strings.Contains(msg, want) {
			t.Errorf("diagnostic %q missing %q", msg, want)
		}
	}
	for _, f := range fetchers {
		if f.(*fakeFetcher).calls != 0 {
			t.Errorf("fetcher %s ran despite being unusable", f.Platform())
		}
	}
}

func TestRun_WindowFilterAndDropCounters(t *testing.T) {
	reddit := &fakeFetcher{platform: research.PlatformReddit, raws: []research.Raw{
		rawAt(research.PlatformReddit, "in", "golang", 24*time.Hour, 0),
		rawAt(research.PlatformReddit, "old", "golang", 45*24*time.Hour, 0),
		rawAt(research.PlatformReddit, "future", "golang", -time.Hour, 0),
		{Platform: research.PlatformReddit, ID: "junk", Author: "golang", Time: "not a date"},
	}}

	avail := probe.Availability{Reddit: probe.SourceStatus{Usable: true}}
	bundle, err := newTestPipeline([]Fetcher{reddit}, avail).Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bundle.Posts.Reddit) != 1 || bundle.Posts.Reddit[0].ID != "in" {
		t.Errorf("expected only the in-window post, got %+v", bundle.Posts.Reddit)
	}
	if bundle.Stats.WindowDropped != 2 {
		t.Errorf("expected 2 window-dropped (stale and future), got %d", bundle.Stats.WindowDropped)
	}
	if bundle.Stats.Unparsed != 1 {
		t.Errorf("expected 1 unparsed, got %d", bundle.Stats.Unparsed)
	}
}

func TestRun_WindowBoundaryInclusive(t *testing.T) {
	reddit := &fakeFetcher{platform: research.PlatformReddit, raws: []research.Raw{
		rawAt(research.PlatformReddit, "edge", "golang", research.WindowDuration, 0),
		rawAt(research.PlatformReddit, "past", "golang", research.WindowDuration+time.Second, 0),
	}}

	avail := probe.Availability{Reddit: probe.SourceStatus{Usable: true}}
	bundle, err := newTestPipeline([]Fetcher{reddit}, avail).Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bundle.Posts.Reddit) != 1 || bundle.Posts.Reddit[0].ID != "edge" {
		t.Errorf("expected the exactly-30-day-old post to survive, got %+v", bundle.Posts.Reddit)
	}
	if bundle.Stats.WindowDropped != 1 {
		t.Errorf("expected 1 window-dropped, got %d", bundle.Stats.WindowDropped)
	}
}

func TestRun_DeduplicatesAcrossSources(t *testing.T) {
	url := "https://example.org/codex-skills-guide"
	reddit := &fakeFetcher{platform: research.PlatformReddit, raws: []research.Raw{
		{Platform: research.PlatformReddit, ID: "r1", Author: "golang", URL: url, Unix: testNow.Add(-24 * time.Hour).Unix(), Upvotes: 50},
	}}
	web := &fakeFetcher{platform: research.PlatformWeb, raws: []research.Raw{
		{Platform: research.PlatformWeb, ID: "w1", Author: "example.org", URL: url, Unix: testNow.Add(-24 * time.Hour).Unix()},
	}}

	avail := allUsable()
	avail.X = probe.SourceStatus{Reason: "disabled by configuration"}

	bundle, err := newTestPipeline([]Fetcher{reddit, web}, avail).Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total := len(bundle.Posts.Reddit) + len(bundle.Posts.Web)
	if total != 1 {
		t.Fatalf("expected 1 surviving post, got %d", total)
	}
	if bundle.Stats.DuplicatesRemoved != 1 {
		t.Errorf("expected 1 duplicate removed, got %d", bundle.Stats.DuplicatesRemoved)
	}
	// Higher-engagement copy survives.
	if len(bundle.Posts.Reddit) != 1 || bundle.Posts.Reddit[0].Engagement.Upvotes != 50 {
		t.Errorf("expected the reddit copy to win, got %+v", bundle.Posts)
	}
}

func TestRun_SectionsSortedByScore(t *testing.T) {
	x := &fakeFetcher{platform: research.PlatformX, raws: []research.Raw{
		rawAt(research.PlatformX, "low", "a", 24*time.Hour, 5),
		rawAt(research.PlatformX, "high", "b", 48*time.Hour, 100),
		rawAt(research.PlatformX, "mid", "c", 72*time.Hour, 50),
	}}

	avail := probe.Availability{X: probe.SourceStatus{Usable: true}}
	bundle, err := newTestPipeline([]Fetcher{x}, avail).Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	for _, post := range bundle.Posts.X {
		ids = append(ids, post.ID)
	}
	if !reflect.DeepEqual(ids, []string{"high", "mid", "low"}) {
		t.Errorf("expected score-descending order, got %v", ids)
	}
}

func TestRun_CompletionOrderDoesNotChangeOutput(t *testing.T) {
	build := func(redditDelay, webDelay time.Duration) *Pipeline {
		reddit := &fakeFetcher{platform: research.PlatformReddit, delay: redditDelay, raws: []research.Raw{
			rawAt(research.PlatformReddit, "r1", "golang", 24*time.Hour, 0),
			rawAt(research.PlatformReddit, "r2", "rust", 48*time.Hour, 0),
		}}
		web := &fakeFetcher{platform: research.PlatformWeb, delay: webDelay, raws: []research.Raw{
			rawAt(research.PlatformWeb, "w1", "techsite.com", 24*time.Hour, 0),
		}}
		avail := allUsable()
		avail.X = probe.SourceStatus{Reason: "disabled by configuration"}
		return newTestPipeline([]Fetcher{reddit, web}, avail)
	}

	slow := build(30*time.Millisecond, 0)
	fast := build(0, 30*time.Millisecond)

	first, err := slow.Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := fast.Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first.Posts, second.Posts) {
		t.Errorf("post order depends on completion order:\n%+v\n%+v", first.Posts, second.Posts)
	}
	if !reflect.DeepEqual(first.Stats, second.Stats) {
		t.Errorf("stats depend on completion order:\n%+v\n%+v", first.Stats, second.Stats)
	}
}

func TestRun_EmptySuccessfulFetchStillCountsAsSuccess(t *testing.T) {
	web := &fakeFetcher{platform: research.PlatformWeb}

	avail := probe.Availability{
		Reddit: probe.SourceStatus{Reason: "no OpenAI API key configured"},
		X:      probe.SourceStatus{Reason: "bird CLI not installed"},
		Web:    probe.SourceStatus{Usable: true},
	}

	bundle, err := newTestPipeline([]Fetcher{web}, avail).Run(context.Background(), testTopic(t))
	if err != nil {
		t.Fatalf("a source that returns zero items has still succeeded: %v", err)
	}
	if len(bundle.Posts.Web) != 0 {
		t.Errorf("expected empty web section, got %+v", bundle.Posts.Web)
	}
	if len(bundle.Stats.Failures) != 2 {
		t.Errorf("expected 2 capability failures, got %+v", bundle.Stats.Failures)
	}
}
