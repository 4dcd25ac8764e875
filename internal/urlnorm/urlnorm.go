// Package urlnorm normalizes URLs for duplicate detection.
//
// Normalization is deliberately conservative: it strips tracking query
// parameters, the leading "www." host prefix, and a single trailing slash.
// It never rewrites the scheme or reorders surviving query parameters, so
// the result stays recognizable as the URL the user saved.
package urlnorm

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// trackingParams are query parameters that identify a marketing campaign
// rather than a page. Two URLs differing only in these refer to the same
// content.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"ref":          true,
	"fbclid":       true,
	"gclid":        true,
}

// Normalize returns the canonical form of rawURL for dedup purposes.
// Unparseable input is returned unchanged so a malformed bookmark still
// gets a stable hash.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	// Strip tracking parameters, preserving the order of the rest.
	if u.RawQuery != "" {
		kept := make([]string, 0)
		for _, pair := range strings.Split(u.RawQuery, "&") {
			key := pair
			if i := strings.Index(pair, "="); i >= 0 {
				key = pair[:i]
			}
			if !trackingParams[key] {
				kept = append(kept, pair)
			}
		}
		u.RawQuery = strings.Join(kept, "&")
	}

	// Strip leading www. from the host.
	host := u.Host
	if strings.HasPrefix(strings.ToLower(host), "www.") {
		host = host[4:]
	}
	u.Host = strings.ToLower(host)

	// Strip a single trailing slash from the serialized result. This also
	// folds the bare-root form: "https://example.com/" and
	// "https://example.com" are the same page.
	return strings.TrimSuffix(u.String(), "/")
}

// Hash returns the hex-encoded digest of the normalized URL.
// This is a dedup key scoped to a single user, not a security boundary,
// so a fast non-cryptographic hash is fine.
func Hash(rawURL string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(Normalize(rawURL)))
}

// ExtractDomain returns the host of the URL without a leading "www.".
// Returns an empty string when the URL cannot be parsed.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
