package ogimage

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"crxanode.me/docs-edge/internal/meta"
)

const (
	defaultTitle    = "Crxanode Docs"
	defaultSubtitle = "Validator Services & Guides"

	cacheEntries = 256
	cacheTTL     = time.Hour
	maxLogoBytes = 2 << 20
)

// Handler serves GET /api/og preview images.
type Handler struct {
	logoBase string
	client   *http.Client
	cache    *expirable.LRU[string, []byte]
	logger   *zap.Logger
}

// NewHandler builds the preview image handler. logoBase is the chain logo
// hosting root; empty disables logo lookups.
func NewHandler(logoBase string, logger *zap.Logger) *Handler {
	return &Handler{
		logoBase: logoBase,
		client:   &http.Client{Timeout: 5 * time.Second},
		cache:    expirable.NewLRU[string, []byte](cacheEntries, nil, cacheTTL),
		logger:   logger,
	}
}

// SetClient overrides the probe/fetch client. Intended for tests.
func (h *Handler) SetClient(c *http.Client) { h.client = c }

// decodeParam applies a second URL-decoding pass on top of query parsing,
// matching callers that pre-encode values into the image URL. The second pass
// decodes percent escapes only; a literal "+" surviving query parsing stays a
// plus. A value that is not valid percent-encoding is kept as-is.
func decodeParam(v, fallback string) string {
	if v == "" {
		return fallback
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title := decodeParam(q.Get("title"), defaultTitle)
	subtitle := decodeParam(q.Get("subtitle"), defaultSubtitle)
	badge := q.Get("badge")
	chain := SanitizeSlug(q.Get("chain"))

	key := strings.Join([]string{title, subtitle, badge, chain}, "\x00")
	if cached, ok := h.cache.Get(key); ok {
		writeImage(w, cached)
		return
	}

	params := Params{Title: title, Subtitle: subtitle, Badge: badge}
	if chain != "" {
		params.Logo = h.fetchLogo(r, chain)
		if params.Logo == nil {
			if name := meta.ChainDisplayName(chain); name != "" {
				params.ChainInitial = name[:1]
			}
		}
	}

	out, err := Render(params)
	if err != nil {
		h.logger.Error("preview render failed", zap.String("title", title), zap.Error(err))
		http.Error(w, "image generation failed", http.StatusInternalServerError)
		return
	}
	h.cache.Add(key, out)
	writeImage(w, out)
}

// fetchLogo resolves and decodes the chain logo. Every failure degrades to
// nil: the card renders without a logo.
func (h *Handler) fetchLogo(r *http.Request, chain string) image.Image {
	logoURL, ok := ResolveLogo(r.Context(), h.client, h.logoBase, chain)
	if !ok {
		return nil
	}
	// SVG answers the probe but has no raster decoder; fall through to the
	// letter avatar.
	if strings.HasSuffix(logoURL, ".svg") {
		return nil
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, logoURL, nil)
	if err != nil {
		return nil
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxLogoBytes))
	if err != nil {
		h.logger.Debug("logo decode failed", zap.String("url", logoURL), zap.Error(err))
		return nil
	}
	return img
}

func writeImage(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600, s-maxage=86400")
	_, _ = w.Write(data)
}
