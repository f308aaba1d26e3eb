package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const userAgent = "last30days-research/1.0"

// PostData is the thread detail served by Reddit's public .json endpoint.
type PostData struct {
	Title       string
	SelfText    string
	Subreddit   string
	Score       int
	NumComments int
	CreatedUTC  int64
}

// Hydrator resolves a discovered thread URL into its engagement detail.
type Hydrator interface {
	Hydrate(ctx context.Context, threadURL string) (*PostData, error)
}

type httpHydrator struct {
	client  *http.Client
	baseURL string // overrides scheme+host when set, for testing
}

// NewHydrator creates a Hydrator that fetches thread JSON from reddit.com.
func NewHydrator(client *http.Client) Hydrator {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpHydrator{client: client}
}

// NewHydratorWithBaseURL redirects thread requests to a custom host (for
// testing); the thread URL's path is preserved.
func NewHydratorWithBaseURL(client *http.Client, baseURL string) Hydrator {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpHydrator{client: client, baseURL: baseURL}
}

type threadListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				SelfText    string  `json:"selftext"`
				Subreddit   string  `json:"subreddit"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Hydrate fetches <threadURL>.json and returns the post detail. Reddit
// serves a two-listing array; the post lives in the first listing's first
// child.
func (h *httpHydrator) Hydrate(ctx context.Context, threadURL string) (*PostData, error) {
	target, err := h.jsonURL(threadURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating thread request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching thread %s: %w", threadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thread %s returned status %d", threadURL, resp.StatusCode)
	}

	var listings []threadListing
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		return nil, fmt.Errorf("decoding thread %s: %w", threadURL, err)
	}
	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return nil, fmt.Errorf("thread %s has no post data", threadURL)
	}

	post := listings[0].Data.Children[0].Data
	return &PostData{
		Title:       post.Title,
		SelfText:    post.SelfText,
		Subreddit:   post.Subreddit,
		Score:       post.Score,
		NumComments: post.NumComments,
		CreatedUTC:  int64(post.CreatedUTC),
	}, nil
}

func (h *httpHydrator) jsonURL(threadURL string) (string, error) {
	u, err := url.Parse(threadURL)
	if err != nil {
		return "", fmt.Errorf("parsing thread URL %q: %w", threadURL, err)
	}
	if h.baseURL != "" {
		base, err := url.Parse(h.baseURL)
		if err != nil {
			return "", fmt.Errorf("parsing base URL %q: %w", h.baseURL, err)
		}
		u.Scheme = base.Scheme
		u.Host = base.Host
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + ".json"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
