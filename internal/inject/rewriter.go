package inject

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"crxanode.me/docs-edge/internal/meta"
)

// hop-by-hop headers are stripped when relaying in either direction.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Rewriter relays requests to the origin and splices SEO metadata into HTML
// document responses. Non-document and non-HTML traffic passes through
// unmodified.
type Rewriter struct {
	origin  *url.URL
	client  *http.Client
	logger  *zap.Logger
	resolve func(string) *meta.PageMeta
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithClient overrides the HTTP client used for origin fetches.
func WithClient(c *http.Client) Option {
	return func(rw *Rewriter) { rw.client = c }
}

// WithResolver overrides the metadata resolver.
func WithResolver(fn func(string) *meta.PageMeta) Option {
	return func(rw *Rewriter) { rw.resolve = fn }
}

// NewRewriter builds a Rewriter relaying to the given origin base URL.
func NewRewriter(origin *url.URL, logger *zap.Logger, opts ...Option) *Rewriter {
	rw := &Rewriter{
		origin:  origin,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
		resolve: meta.Resolve,
	}
	for _, opt := range opts {
		opt(rw)
	}
	return rw
}

// wantsDocument inspects the Accept header. An absent header counts as a
// document request; a present header must admit text/html or */*.
func wantsDocument(accept string) bool {
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

// requestOrigin reconstructs scheme://host for the incoming request, trusting
// x-forwarded-proto when the platform sets it.
func requestOrigin(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		if r.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	return proto + "://" + r.Host
}

func (rw *Rewriter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if !wantsDocument(r.Header.Get("Accept")) || !InScope(path) {
		rw.relay(w, r, false)
		return
	}

	m := rw.resolve(path)
	if m == nil {
		rw.relay(w, r, false)
		return
	}

	resp, err := rw.fetch(r, true)
	if err != nil {
		rw.logger.Error("origin fetch failed", zap.String("path", path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		copyResponse(w, resp)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		rw.logger.Error("origin body read failed", zap.String("path", path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	spliced := Splice(string(body), Fragment(m, requestOrigin(r), path))

	headers := RepairHeaders(resp.Header, len(spliced))
	writeHeaders(w, headers)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, spliced)
}

// Splice inserts the fragment after the injection placeholder when present,
// before </head> otherwise. Only the first occurrence of the anchor is used,
// so a repeated placeholder or a literal </head> in body text never injects
// twice. A document with neither anchor is returned unchanged.
func Splice(html, fragment string) string {
	if i := strings.Index(html, Placeholder); i >= 0 {
		i += len(Placeholder)
		return html[:i] + fragment + html[i:]
	}
	if i := strings.Index(html, "</head>"); i >= 0 {
		return html[:i] + fragment + html[i:]
	}
	return html
}

// fetch issues the incoming request against the origin. For document fetches
// the Accept-Encoding header is dropped so the transport decompresses the
// body transparently before we rewrite it.
func (rw *Rewriter) fetch(r *http.Request, document bool) (*http.Response, error) {
	target := *r.URL
	target.Scheme = rw.origin.Scheme
	target.Host = rw.origin.Host

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		return nil, fmt.Errorf("inject: build origin request: %w", err)
	}
	req.Header = r.Header.Clone()
	for _, h := range hopByHopHeaders {
		req.Header.Del(h)
	}
	if document {
		req.Header.Del("Accept-Encoding")
	}
	req.Host = rw.origin.Host

	resp, err := rw.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inject: origin fetch: %w", err)
	}
	return resp, nil
}

// relay forwards the request and streams back the origin response verbatim.
func (rw *Rewriter) relay(w http.ResponseWriter, r *http.Request, document bool) {
	resp, err := rw.fetch(r, document)
	if err != nil {
		rw.logger.Error("origin relay failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	copyResponse(w, resp)
}

func copyResponse(w http.ResponseWriter, resp *http.Response) {
	writeHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func writeHeaders(w http.ResponseWriter, h http.Header) {
	dst := w.Header()
	for k, vv := range h {
		dst[k] = append([]string(nil), vv...)
	}
	for _, k := range hopByHopHeaders {
		dst.Del(k)
	}
}
