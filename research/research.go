// Package research defines the domain model shared by every pipeline stage:
// topics, raw fetched items, canonical posts, and the per-run bundle.
package research

import (
	"fmt"
	"strings"
	"time"
)

// WindowDuration is the trailing window every query covers.
const WindowDuration = 30 * 24 * time.Hour

// Platform identifies a source class.
type Platform string

const (
	PlatformReddit Platform = "reddit"
	PlatformX      Platform = "x"
	PlatformWeb    Platform = "web"
)

// Platforms returns all platforms in their fixed emission order.
func Platforms() []Platform {
	return []Platform{PlatformReddit, PlatformX, PlatformWeb}
}

// Intent classifies what the caller wants out of the topic.
type Intent string

const (
	IntentRecommendations Intent = "recommendations"
	IntentNews            Intent = "news"
	IntentPrompting       Intent = "prompting-technique"
	IntentGeneral         Intent = "general"
)

// ParseIntent validates an intent string, defaulting empty to general.
func ParseIntent(s string) (Intent, error) {
	switch Intent(s) {
	case IntentRecommendations, IntentNews, IntentPrompting, IntentGeneral:
		return Intent(s), nil
	case "":
		return IntentGeneral, nil
	}
	return "", fmt.Errorf("%w: unknown intent %q", ErrMalformedQuery, s)
}

// Depth selects how much material a query pulls from each source.
type Depth string

const (
	DepthQuick   Depth = "quick"
	DepthDefault Depth = "default"
	DepthDeep    Depth = "deep"
)

// ParseDepth validates a depth string, defaulting empty to default.
func ParseDepth(s string) (Depth, error) {
	switch Depth(s) {
	case DepthQuick, DepthDefault, DepthDeep:
		return Depth(s), nil
	case "":
		return DepthDefault, nil
	}
	return "", fmt.Errorf("%w: unknown depth %q", ErrMalformedQuery, s)
}

// ItemRange returns the requested item range for this depth on platform p.
// The upper bound caps what a fetcher may keep; the lower bound is a request
// target, not a guarantee.
func (d Depth) ItemRange(p Platform) (low, high int) {
	switch d {
	case DepthQuick:
		return 8, 12
	case DepthDeep:
		if p == PlatformX {
			return 40, 60
		}
		return 50, 70
	}
	return 20, 30
}

// FetchTimeout is the per-source deadline for this depth. Deeper queries get
// more time because the searches run longer.
func (d Depth) FetchTimeout() time.Duration {
	switch d {
	case DepthQuick:
		return 60 * time.Second
	case DepthDeep:
		return 120 * time.Second
	}
	return 90 * time.Second
}

// Topic is the immutable research query. Now anchors the trailing window so
// every stage (and every test) sees the same instant.
type Topic struct {
	Subject  string
	ToolHint string
	Intent   Intent
	Depth    Depth
	Now      time.Time
}

// NewTopic validates the query inputs and pins Now to UTC.
func NewTopic(subject, toolHint string, intent Intent, depth Depth, now time.Time) (Topic, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Topic{}, fmt.Errorf("%w: empty topic", ErrMalformedQuery)
	}
	if intent == "" {
		intent = IntentGeneral
	}
	if depth == "" {
		depth = DepthDefault
	}
	return Topic{
		Subject:  subject,
		ToolHint: strings.TrimSpace(toolHint),
		Intent:   intent,
		Depth:    depth,
		Now:      now.UTC(),
	}, nil
}

// WindowStart is the oldest instant still inside the window.
func (t Topic) WindowStart() time.Time {
	return t.Now.Add(-WindowDuration)
}

// Contains reports whether ts falls inside the trailing window. A post
// exactly WindowDuration old is still in; one second older is out. Posts
// stamped after Now are out.
func (t Topic) Contains(ts time.Time) bool {
	return !ts.Before(t.WindowStart()) && !ts.After(t.Now)
}

// FromDate is the window start as YYYY-MM-DD, for source query syntax.
func (t Topic) FromDate() string {
	return t.WindowStart().Format("2006-01-02")
}

// ToDate is the window end as YYYY-MM-DD.
func (t Topic) ToDate() string {
	return t.Now.Format("2006-01-02")
}

// Engagement is the per-post engagement tuple. Components are never
// negative; platforms populate their own subset and leave the rest zero.
type Engagement struct {
	Upvotes  int `json:"upvotes"`
	Comments int `json:"comments"`
	Likes    int `json:"likes"`
	Reposts  int `json:"reposts"`
	Replies  int `json:"replies"`
}

// Add accumulates other into e, for stats folds.
func (e *Engagement) Add(other Engagement) {
	e.Upvotes += other.Upvotes
	e.Comments += other.Comments
	e.Likes += other.Likes
	e.Reposts += other.Reposts
	e.Replies += other.Replies
}

// Raw is the pre-normalization carrier every fetcher returns. Exactly one of
// Unix or Time should be set; the normalizer prefers Unix when positive.
type Raw struct {
	Platform Platform
	ID       string
	Title    string
	Text     string
	Author   string // bare form: subreddit without r/, username without @
	URL      string
	Unix     int64  // publication time in unix seconds
	Time     string // raw timestamp text, parsed when Unix == 0
	Upvotes  int
	Comments int
	Likes    int
	Reposts  int
	Replies  int
}

// SourcePost is the canonical post shape after normalization. Published and
// the engagement tuple are fixed at ingestion; only Score and Excerpt are
// assigned by later stages.
type SourcePost struct {
	Platform    Platform   `json:"platform"`
	ID          string     `json:"id"`
	CanonicalID string     `json:"canonical_id"`
	Author      string     `json:"author"`
	Title       string     `json:"title,omitempty"`
	Text        string     `json:"text,omitempty"`
	URL         string     `json:"url,omitempty"`
	Published   time.Time  `json:"published"`
	Engagement  Engagement `json:"engagement"`
	Score       float64    `json:"score"`
	Excerpt     string     `json:"excerpt,omitempty"`
}

// Sections holds the per-platform post lists in their fixed emission order.
type Sections struct {
	Reddit []SourcePost `json:"reddit"`
	X      []SourcePost `json:"x"`
	Web    []SourcePost `json:"web"`
}

// ByPlatform returns the section for p.
func (s *Sections) ByPlatform(p Platform) []SourcePost {
	switch p {
	case PlatformReddit:
		return s.Reddit
	case PlatformX:
		return s.X
	case PlatformWeb:
		return s.Web
	}
	return nil
}

// Set replaces the section for p.
func (s *Sections) Set(p Platform, posts []SourcePost) {
	switch p {
	case PlatformReddit:
		s.Reddit = posts
	case PlatformX:
		s.X = posts
	case PlatformWeb:
		s.Web = posts
	}
}

// All returns every post across sections in platform order.
func (s *Sections) All() []SourcePost {
	out := make([]SourcePost, 0, len(s.Reddit)+len(s.X)+len(s.Web))
	out = append(out, s.Reddit...)
	out = append(out, s.X...)
	out = append(out, s.Web...)
	return out
}

// SourceReport records what the probe and fetch decided for one source.
type SourceReport struct {
	Source  Platform `json:"source"`
	Usable  bool     `json:"usable"`
	Reason  string   `json:"reason,omitempty"`
	Fetched int      `json:"fetched"`
}

// Window is the resolved query window.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Bundle is the result of one research run. It is built fresh per query and
// never shared across queries.
type Bundle struct {
	RunID       string         `json:"run_id"`
	Subject     string         `json:"subject"`
	ToolHint    string         `json:"tool_hint,omitempty"`
	Intent      Intent         `json:"intent"`
	Depth       Depth          `json:"depth"`
	GeneratedAt time.Time      `json:"generated_at"`
	Window      Window         `json:"window"`
	Sources     []SourceReport `json:"sources"`
	Stats       Stats          `json:"stats"`
	Posts       Sections       `json:"posts"`
}

// PlatformStats is the retained-post count plus summed engagement
// components for one platform.
type PlatformStats struct {
	Posts      int        `json:"posts"`
	Engagement Engagement `json:"engagement"`
}

// Contributor is one entry in the top-contributor ranking.
type Contributor struct {
	Handle   string   `json:"handle"`
	Platform Platform `json:"platform"`
	Posts    int      `json:"posts"`
	Score    float64  `json:"score"`
}

// Stats aggregates the bundle. Recomputing it over the bundle's posts and
// drop counters always reproduces the same value.
type Stats struct {
	Reddit            PlatformStats   `json:"reddit"`
	X                 PlatformStats   `json:"x"`
	Web               PlatformStats   `json:"web"`
	Unparsed          int             `json:"unparsed"`
	DuplicatesRemoved int             `json:"duplicates_removed"`
	WindowDropped     int             `json:"window_dropped"`
	Failures          []SourceFailure `json:"failures"`
	TopContributors   []Contributor   `json:"top_contributors"`
}

// ForPlatform returns the stats slot for p.
func (s *Stats) ForPlatform(p Platform) *PlatformStats {
	switch p {
	case PlatformReddit:
		return &s.Reddit
	case PlatformX:
		return &s.X
	case PlatformWeb:
		return &s.Web
	}
	return nil
}
