package research

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// CanonicalURL normalizes a URL for dedup comparison: scheme and host are
// lowercased, the fragment and tracking parameters are stripped, and a
// trailing slash on the path is removed. Returns "" when raw is empty or
// unparsable.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") || param == "fbclid" || param == "gclid" {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// CanonicalID derives the stable dedup key for a post: a 16-char hash of the
// canonical URL when one exists, otherwise the platform-qualified ID.
func CanonicalID(platform Platform, id, rawURL string) string {
	if canonical := CanonicalURL(rawURL); canonical != "" {
		sum := sha256.Sum256([]byte(canonical))
		return hex.EncodeToString(sum[:])[:16]
	}
	return string(platform) + ":" + id
}
