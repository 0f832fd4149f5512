package inject

import "strings"

// excludedPrefixes are the top-level path segments the rewriter never touches:
// API routes, static assets, build artifacts, and framework internals.
var excludedPrefixes = []string{
	"api", "assets", "static", "build", "dist", "images", "fonts", "_next",
}

// excludedFiles are well-known root files served verbatim.
var excludedFiles = map[string]struct{}{
	"favicon.ico": {},
	"robots.txt":  {},
	"sitemap.xml": {},
	"sw.js":       {},
}

// InScope reports whether a request path is eligible for metadata injection.
// It is evaluated before the rewriter runs; out-of-scope paths are relayed to
// the origin untouched.
func InScope(path string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return true
	}
	first := trimmed
	if i := strings.IndexByte(first, '/'); i >= 0 {
		first = first[:i]
	}
	for _, p := range excludedPrefixes {
		if first == p {
			return false
		}
	}
	if _, ok := excludedFiles[trimmed]; ok {
		return false
	}
	return true
}
