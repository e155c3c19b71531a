package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/talonscan/talon/internal/model"
)

// Tracking parameters stripped during normalization. Two requests that differ
// only in these must hit the same cache entry.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"msclkid":      true,
	"igshid":       true,
	"ref":          true,
}

// NormalizeURL canonicalizes a target URL so that logically identical
// requests produce identical fingerprints: scheme and host lower-cased,
// missing scheme defaulted to https, default ports and trailing slash
// stripped, tracking parameters removed, remaining query parameters sorted,
// fragment dropped.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", model.ErrInvalidInput)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", model.ErrInvalidInput, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", model.ErrInvalidInput)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	u.Scheme = strings.ToLower(u.Scheme)
	u.Fragment = ""

	u.Path = strings.TrimSuffix(u.Path, "/")

	q := u.Query()
	for key := range q {
		if trackingParams[strings.ToLower(key)] {
			q.Del(key)
		}
	}
	// url.Values.Encode sorts keys, which gives the parameter-order
	// determinism the fingerprint requires.
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Fingerprint derives the deterministic cache key for a normalized URL and a
// set of enabled checks. The check set is sorted so plan ordering never
// changes the key.
func Fingerprint(normalizedURL string, checks []model.CheckName) string {
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, string(c))
	}
	sort.Strings(names)

	sum := sha256.Sum256([]byte(normalizedURL + "|" + strings.Join(names, ",")))
	return hex.EncodeToString(sum[:])
}
