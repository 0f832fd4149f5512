package ogimage

import (
	"context"
	"net/http"
	"strings"
)

// logoExtensions is the probe order for chain logos. The first extension that
// answers 2xx wins; later ones are never requested.
var logoExtensions = []string{"png", "svg", "jpg", "jpeg", "webp"}

// SanitizeSlug strips every character outside lowercase alphanumerics and
// hyphen. The input is lowercased first so mixed-case slugs survive.
func SanitizeSlug(slug string) string {
	slug = strings.ToLower(slug)
	var b strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FirstHit probes candidates in order with lightweight HEAD requests and
// returns the first URL that answers with a 2xx status. Probe errors are
// swallowed; the next candidate is tried.
func FirstHit(ctx context.Context, client *http.Client, candidates []string) (string, bool) {
	for _, candidate := range candidates {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return candidate, true
		}
	}
	return "", false
}

// LogoCandidates builds the ordered probe URLs for a sanitized slug.
func LogoCandidates(baseURL, slug string) []string {
	base := strings.TrimRight(baseURL, "/")
	urls := make([]string, 0, len(logoExtensions))
	for _, ext := range logoExtensions {
		urls = append(urls, base+"/"+slug+"."+ext)
	}
	return urls
}

// ResolveLogo returns the logo URL for a chain slug, or false when no
// extension probe succeeds or the slug sanitizes to nothing.
func ResolveLogo(ctx context.Context, client *http.Client, baseURL, slug string) (string, bool) {
	slug = SanitizeSlug(slug)
	if slug == "" || baseURL == "" {
		return "", false
	}
	return FirstHit(ctx, client, LogoCandidates(baseURL, slug))
}
