// Package excerpt enriches web posts with readable page text so a digest
// can show what an article says, not just its title. The stage is optional
// and absorbs per-page failures.
package excerpt

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// maxExcerptLength bounds the extracted text carried into the digest.
const maxExcerptLength = 1200

// Extractor pulls readable text from a page URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

type httpExtractor struct {
	client *http.Client
}

// NewExtractor creates an Extractor with the given timeout for HTTP requests.
func NewExtractor(timeout time.Duration) Extractor {
	return &httpExtractor{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewExtractorWithClient creates an Extractor with a custom HTTP client (for testing).
func NewExtractorWithClient(client *http.Client) Extractor {
	return &httpExtractor{
		client: client,
	}
}

// Extract fetches the URL and returns the page's readable text, truncated
// to maxExcerptLength characters.
func (e *httpExtractor) Extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating excerpt request for %s: %w", url, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s returned status %d", url, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return "", fmt.Errorf("extracting content from %s: %w", url, err)
	}

	content := strings.TrimSpace(article.TextContent)
	if len(content) > maxExcerptLength {
		content = content[:maxExcerptLength]
	}

	return content, nil
}
