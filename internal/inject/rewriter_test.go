package inject

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

func newTestRewriter(t *testing.T, origin *httptest.Server) *Rewriter {
	t.Helper()
	u, err := url.Parse(origin.URL)
	if err != nil {
		t.Fatalf("parse origin url: %v", err)
	}
	return NewRewriter(u, zap.NewNop())
}

func TestNonHTMLResponsePassthrough(t *testing.T) {
	const payload = `{"height":123456}`
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Origin-Marker", "kept")
		_, _ = io.WriteString(w, payload)
	}))
	defer origin.Close()

	rw := newTestRewriter(t, origin)
	req := httptest.NewRequest(http.MethodGet, "/paxi/service", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	rw.ServeHTTP(rec, req)

	if rec.Body.String() != payload {
		t.Fatalf("body modified: %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content-type modified: %q", got)
	}
	if got := rec.Header().Get("X-Origin-Marker"); got != "kept" {
		t.Fatalf("origin headers dropped: %q", got)
	}
}

func TestContentNegotiationPassthrough(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<html><head></head><body>raw</body></html>")
	}))
	defer origin.Close()

	rw := newTestRewriter(t, origin)
	req := httptest.NewRequest(http.MethodGet, "/paxi/service", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	rw.ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), markerStart) {
		t.Fatalf("non-document request was rewritten: %s", rec.Body.String())
	}
	if rec.Body.String() != "<html><head></head><body>raw</body></html>" {
		t.Fatalf("body modified on passthrough: %q", rec.Body.String())
	}
}

func TestWantsDocument(t *testing.T) {
	cases := map[string]bool{
		"":                      true,
		"text/html":             true,
		"text/html,application/xhtml+xml": true,
		"*/*":                   true,
		"image/avif,*/*;q=0.8":  true,
		"application/json":      false,
		"image/png":             false,
	}
	for accept, want := range cases {
		if got := wantsDocument(accept); got != want {
			t.Fatalf("wantsDocument(%q) = %v, expected %v", accept, got, want)
		}
	}
}

func TestEndToEndGuideInjection(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<html><head><!--__OG_META_INJECTION__--></head><body>ok</body></html>")
	}))
	defer origin.Close()

	rw := newTestRewriter(t, origin)
	req := httptest.NewRequest(http.MethodGet, "/paxi/guide", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	rw.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, Placeholder+"\n"+markerStart) {
		t.Fatalf("fragment not anchored at placeholder: %s", body)
	}
	if !strings.Contains(body, "<title>PAXI Guide | Crxanode Docs</title>") {
		t.Fatalf("expected guide title, got: %s", body)
	}
	if !strings.Contains(body, "/api/og?title=") || !strings.Contains(body, "chain=paxi") || !strings.Contains(body, "badge=GUIDE") {
		t.Fatalf("expected og image params in body: %s", body)
	}
	if !strings.Contains(body, "<body>ok</body>") {
		t.Fatalf("original body content lost: %s", body)
	}
	if rec.Header().Get("Content-Encoding") != "" {
		t.Fatalf("content-encoding not stripped: %q", rec.Header().Get("Content-Encoding"))
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Fatalf("content-type not repaired: %q", got)
	}
	wantLen := strconv.Itoa(len(body))
	if got := rec.Header().Get("Content-Length"); got != wantLen {
		t.Fatalf("content-length %q does not match body length %s", got, wantLen)
	}

	// The rewritten document must still parse as HTML.
	if _, err := html.Parse(strings.NewReader(body)); err != nil {
		t.Fatalf("rewritten document no longer parses: %v", err)
	}
}

func TestHeadFallbackSplice(t *testing.T) {
	doc := "<html><head><meta charset=\"utf-8\"></head><body></body></html>"
	out := Splice(doc, "\nFRAG\n")
	if !strings.Contains(out, "\nFRAG\n</head>") {
		t.Fatalf("fragment not spliced before </head>: %s", out)
	}
}

func TestSplicePrefersPlaceholder(t *testing.T) {
	doc := "<html><head>" + Placeholder + "<title>t</title></head><body></body></html>"
	out := Splice(doc, "FRAG")
	if !strings.Contains(out, Placeholder+"FRAG") {
		t.Fatalf("fragment not anchored after placeholder: %s", out)
	}
	if strings.Contains(out, "FRAG</head>") {
		t.Fatalf("fragment wrongly duplicated at </head>: %s", out)
	}
}

func TestSpliceRepeatedPlaceholderInjectsOnce(t *testing.T) {
	doc := "<html><head>" + Placeholder + "</head><body>" + Placeholder + "</body></html>"
	out := Splice(doc, "FRAG")
	if got := strings.Count(out, "FRAG"); got != 1 {
		t.Fatalf("expected 1 injection, got %d: %s", got, out)
	}
	if !strings.HasPrefix(out, "<html><head>"+Placeholder+"FRAG") {
		t.Fatalf("fragment not at first placeholder: %s", out)
	}
}

func TestSpliceLiteralHeadInBodyInjectsOnce(t *testing.T) {
	doc := "<html><head><title>t</title></head><body><pre>&lt;head&gt;</head></pre></body></html>"
	out := Splice(doc, "FRAG")
	if got := strings.Count(out, "FRAG"); got != 1 {
		t.Fatalf("expected 1 injection, got %d: %s", got, out)
	}
	if !strings.Contains(out, "<title>t</title>FRAG</head><body>") {
		t.Fatalf("fragment not at first </head>: %s", out)
	}
}

func TestSpliceNoAnchorIsNoop(t *testing.T) {
	doc := "no head element here"
	if out := Splice(doc, "FRAG"); out != doc {
		t.Fatalf("expected unchanged body, got %q", out)
	}
}

func TestRepairHeaders(t *testing.T) {
	in := http.Header{
		"Content-Encoding": []string{"gzip"},
		"Content-Type":     []string{"text/html"},
		"Content-Length":   []string{"10"},
		"X-Keep":           []string{"yes"},
	}
	out := RepairHeaders(in, 42)
	if out.Get("Content-Encoding") != "" {
		t.Fatalf("content-encoding survived repair")
	}
	if out.Get("Content-Type") != "text/html; charset=utf-8" {
		t.Fatalf("content-type not pinned: %q", out.Get("Content-Type"))
	}
	if out.Get("Content-Length") != "42" {
		t.Fatalf("content-length not recomputed: %q", out.Get("Content-Length"))
	}
	if out.Get("X-Keep") != "yes" {
		t.Fatalf("unrelated header dropped")
	}
	// The input must stay untouched.
	if in.Get("Content-Encoding") != "gzip" {
		t.Fatalf("input header mutated")
	}
}

func TestInScope(t *testing.T) {
	cases := map[string]bool{
		"/":                  true,
		"/license":           true,
		"/paxi/guide":        true,
		"/api/og":            false,
		"/api/server-locations": false,
		"/assets/app.js":     false,
		"/static/x.css":      false,
		"/build/main.js":     false,
		"/dist/a":            false,
		"/images/logo.png":   false,
		"/fonts/inter.woff2": false,
		"/_next/data":        false,
		"/favicon.ico":       false,
		"/robots.txt":        false,
		"/sitemap.xml":       false,
		"/sw.js":             false,
	}
	for path, want := range cases {
		if got := InScope(path); got != want {
			t.Fatalf("InScope(%q) = %v, expected %v", path, got, want)
		}
	}
}

func TestStatusCodePreserved(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "<html><head></head><body>missing</body></html>")
	}))
	defer origin.Close()

	rw := newTestRewriter(t, origin)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	rw.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status not preserved: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), markerStart) {
		t.Fatalf("expected injection on error document too: %s", rec.Body.String())
	}
}
