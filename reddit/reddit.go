// Package reddit discovers topic threads on Reddit. Discovery goes through
// the OpenAI Responses API with its hosted web_search tool pinned to
// reddit.com; the public .json endpoint then hydrates each thread with real
// engagement numbers.
package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"last30days/research"
)

const baseURL = "https://api.openai.com/v1"

// Thread is one discovered Reddit discussion.
type Thread struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Subreddit   string  `json:"subreddit"`
	Date        string  `json:"date"`
	WhyRelevant string  `json:"why_relevant"`
	Relevance   float64 `json:"relevance"`
}

// Searcher finds threads discussing a topic inside its window.
type Searcher interface {
	Search(ctx context.Context, topic research.Topic) ([]Thread, error)
}

type openAISearcher struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// NewSearcher creates a Searcher backed by the OpenAI Responses API.
func NewSearcher(apiKey, model string, client *http.Client) Searcher {
	return &openAISearcher{
		apiKey:  apiKey,
		model:   model,
		client:  client,
		baseURL: baseURL,
	}
}

// newSearcherWithURL creates a Searcher with a custom base URL for testing.
func newSearcherWithURL(apiKey, model string, client *http.Client, url string) Searcher {
	return &openAISearcher{
		apiKey:  apiKey,
		model:   model,
		client:  client,
		baseURL: url,
	}
}

type responsesRequest struct {
	Model string          `json:"model"`
	Tools []responsesTool `json:"tools"`
	Input string          `json:"input"`
}

type responsesTool struct {
	Type    string       `json:"type"`
	Filters *toolFilters `json:"filters,omitempty"`
}

type toolFilters struct {
	AllowedDomains []string `json:"allowed_domains"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

func (r *responsesResponse) text() string {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

// Search asks the model to search reddit.com for the topic and returns the
// validated thread list.
func (s *openAISearcher) Search(ctx context.Context, topic research.Topic) ([]Thread, error) {
	reqBody := responsesRequest{
		Model: s.model,
		Tools: []responsesTool{{
			Type:    "web_search",
			Filters: &toolFilters{AllowedDomains: []string{"reddit.com"}},
		}},
		Input: searchPrompt(topic),
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/responses", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp responsesResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing OpenAI response: %w", err)
	}

	items, err := extractItems(apiResp.text())
	if err != nil {
		return nil, err
	}
	return validThreads(items), nil
}

func searchPrompt(topic research.Topic) string {
	low, high := topic.Depth.ItemRange(research.PlatformReddit)

	var b strings.Builder
	fmt.Fprintf(&b, "Search Reddit for discussions about %q", topic.Subject)
	if topic.ToolHint != "" {
		fmt.Fprintf(&b, " in the context of %s", topic.ToolHint)
	}
	fmt.Fprintf(&b, ", posted between %s and %s.\n", topic.FromDate(), topic.ToDate())

	switch topic.Intent {
	case research.IntentRecommendations:
		b.WriteString("Prioritize threads where users recommend or compare options.\n")
	case research.IntentNews:
		b.WriteString("Prioritize announcement threads and reactions to recent developments.\n")
	case research.IntentPrompting:
		b.WriteString("Prioritize threads sharing concrete techniques with examples.\n")
	}

	fmt.Fprintf(&b, "Find between %d and %d distinct threads.\n", low, high)
	b.WriteString(`Return only a JSON object of the form {"items": [{"id": "R1", "title": "...", "url": "https://reddit.com/r/...", "subreddit": "golang", "date": "YYYY-MM-DD", "why_relevant": "...", "relevance": 0.9}]}. No prose outside the JSON.`)
	return b.String()
}

var dateShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// extractItems digs the {"items": [...]} object out of the model's output
// text, tolerating code fences and surrounding prose.
func extractItems(text string) ([]Thread, error) {
	text = stripMarkdownCodeBlock(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var payload struct {
		Items []Thread `json:"items"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parsing items JSON: %w", err)
	}
	return payload.Items, nil
}

// validThreads applies the discovery validation rules: a reddit.com URL is
// required, subreddits lose their r/ prefix, relevance clamps to [0,1],
// malformed dates are cleared, missing IDs are assigned sequentially.
func validThreads(items []Thread) []Thread {
	out := make([]Thread, 0, len(items))
	for i, item := range items {
		if !isRedditURL(item.URL) {
			continue
		}
		item.Subreddit = strings.TrimPrefix(strings.TrimSpace(item.Subreddit), "r/")
		if item.Relevance < 0 {
			item.Relevance = 0
		}
		if item.Relevance > 1 {
			item.Relevance = 1
		}
		if !dateShape.MatchString(item.Date) {
			item.Date = ""
		}
		if item.ID == "" {
			item.ID = fmt.Sprintf("R%d", i+1)
		}
		out = append(out, item)
	}
	return out
}

func isRedditURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "reddit.com" || strings.HasSuffix(host, ".reddit.com")
}

// stripMarkdownCodeBlock removes a ```json ... ``` wrapper when the model
// fences its output.
func stripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
