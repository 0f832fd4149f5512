// Package inject rewrites origin HTML responses by splicing SEO metadata
// into the document head at request time.
package inject

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"crxanode.me/docs-edge/internal/meta"
)

const (
	// Placeholder is the comment the SPA shell keeps in its head so the edge
	// and the client-side router agree on where injected tags live.
	Placeholder = "<!--__OG_META_INJECTION__-->"

	markerStart = "<!-- OG INJECT START -->"
	markerEnd   = "<!-- OG INJECT END -->"
)

var absoluteURLRe = regexp.MustCompile(`(?i)^https?://`)

// absURL joins a path with the request origin unless it is already absolute.
// Empty input stays empty.
func absURL(origin, u string) string {
	if u == "" {
		return ""
	}
	if absoluteURLRe.MatchString(u) {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return origin + u
}

// absolutize walks a structured-data tree and rewrites every string leaf with
// absURL. Arrays and nested objects are mapped recursively; non-string leaves
// pass through untouched.
func absolutize(origin string, value any) any {
	switch v := value.(type) {
	case string:
		// Only rooted paths are joined with the origin. Prose values like
		// names and descriptions must survive the walk verbatim.
		if strings.HasPrefix(v, "/") {
			return absURL(origin, v)
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = absolutize(origin, item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = absolutize(origin, item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = absolutize(origin, item)
		}
		return out
	default:
		return value
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Fragment renders the injection block for one resolved page. origin is the
// request origin (scheme://host) used to absolutize URLs; path is the request
// path used when the metadata carries no canonical of its own.
func Fragment(m *meta.PageMeta, origin, path string) string {
	esc := html.EscapeString

	canonical := absURL(origin, coalesce(m.Canonical, path))

	ogTitle := coalesce(m.OGTitle, m.Title)
	ogDescription := coalesce(m.OGDescription, m.Description)
	ogType := coalesce(m.OGType, "website")
	ogImage := absURL(origin, m.OGImage)

	twitterCard := coalesce(m.TwitterCard, meta.CardSummaryLargeImage)
	twitterTitle := coalesce(m.TwitterTitle, ogTitle, m.Title)
	twitterDescription := coalesce(m.TwitterDescription, ogDescription, m.Description)
	twitterImage := absURL(origin, coalesce(m.TwitterImage, m.OGImage))

	var tags []string
	add := func(value, format string) {
		if value != "" {
			tags = append(tags, strings.Replace(format, "%s", esc(value), 1))
		}
	}

	add(m.Title, "<title>%s</title>")
	add(m.Description, `<meta name="description" content="%s">`)
	add(m.SiteName, `<meta property="og:site_name" content="%s">`)
	add(ogTitle, `<meta property="og:title" content="%s">`)
	add(ogDescription, `<meta property="og:description" content="%s">`)
	add(ogType, `<meta property="og:type" content="%s">`)
	add(canonical, `<link rel="canonical" href="%s">`)
	add(canonical, `<meta property="og:url" content="%s">`)
	add(ogImage, `<meta property="og:image" content="%s">`)
	if ogImage != "" {
		tags = append(tags,
			`<meta property="og:image:width" content="1200">`,
			`<meta property="og:image:height" content="630">`)
	}
	add(m.OGImageType, `<meta property="og:image:type" content="%s">`)
	add(m.OGLocale, `<meta property="og:locale" content="%s">`)
	add(twitterCard, `<meta name="twitter:card" content="%s">`)
	add(twitterTitle, `<meta name="twitter:title" content="%s">`)
	add(twitterDescription, `<meta name="twitter:description" content="%s">`)
	add(twitterImage, `<meta name="twitter:image" content="%s">`)
	add(canonical, `<meta name="twitter:url" content="%s">`)
	if len(m.Keywords) > 0 {
		add(strings.Join(m.Keywords, ", "), `<meta name="keywords" content="%s">`)
	}
	add(m.Robots, `<meta name="robots" content="%s">`)

	for _, entry := range m.StructuredData {
		expanded := absolutize(origin, entry)
		// json.Marshal escapes <, > and & to \u escapes by default, which is
		// exactly the escaping inline JSON-LD needs. Quotes stay literal:
		// script element content is not attribute context.
		b, err := json.Marshal(expanded)
		if err != nil {
			continue
		}
		tags = append(tags, `<script type="application/ld+json">`+string(b)+`</script>`)
	}

	return "\n" + markerStart + "\n" + strings.Join(tags, "\n") + "\n" + markerEnd + "\n"
}
