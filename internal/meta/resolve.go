package meta

import (
	"net/url"
	"regexp"
	"strings"
)

// RouteKind classifies a normalized path.
type RouteKind int

const (
	RouteHome RouteKind = iota
	RouteLicense
	RouteService
	RouteGuide
	RouteFallback
)

// Route is the result of matching a normalized path.
type Route struct {
	Kind RouteKind
	// Slug is set for RouteService and RouteGuide.
	Slug string
	// Path is the normalized path the route was derived from.
	Path string
}

var (
	serviceRe = regexp.MustCompile(`^/([^/]+)/service$`)
	guideRe   = regexp.MustCompile(`^/([^/]+)/guide$`)
)

// Normalize strips a single trailing slash (except for the root) and maps the
// empty string to "/".
func Normalize(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	if path == "" {
		path = "/"
	}
	return path
}

// Match maps a path to its route. The path is normalized first.
func Match(path string) Route {
	p := Normalize(path)
	switch p {
	case "/":
		return Route{Kind: RouteHome, Path: p}
	case "/license":
		return Route{Kind: RouteLicense, Path: p}
	}
	if m := serviceRe.FindStringSubmatch(p); m != nil {
		return Route{Kind: RouteService, Slug: m[1], Path: p}
	}
	if m := guideRe.FindStringSubmatch(p); m != nil {
		return Route{Kind: RouteGuide, Slug: m[1], Path: p}
	}
	return Route{Kind: RouteFallback, Path: p}
}

// Resolve maps a URL path to its page metadata. It returns nil only for an
// empty path, which signals pass-through. Resolve is a pure function of path.
func Resolve(path string) *PageMeta {
	if path == "" {
		return nil
	}
	route := Match(path)
	switch route.Kind {
	case RouteHome:
		return homeMeta()
	case RouteLicense:
		return licenseMeta()
	case RouteService:
		return serviceMeta(route.Slug)
	case RouteGuide:
		return guideMeta(route.Slug)
	default:
		return fallbackMeta(route.Path)
	}
}

// ChainDisplayName derives a human-readable chain name from a slug: the
// override table wins, otherwise each -/_-delimited segment is title-cased.
func ChainDisplayName(slug string) string {
	if name, ok := chainNameOverrides[slug]; ok {
		return name
	}
	segments := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, s := range segments {
		segments[i] = strings.ToUpper(s[:1]) + s[1:]
	}
	return strings.Join(segments, " ")
}

// ImageOptions carries the optional parameters of a preview image URL.
type ImageOptions struct {
	ChainSlug string
	Badge     string
}

// OGImagePath builds the preview image endpoint path. Parameter order is
// fixed (title, subtitle, chain, badge) so generated URLs stay byte-stable
// for caches and crawlers.
func OGImagePath(title, subtitle string, opts ImageOptions) string {
	var b strings.Builder
	b.WriteString("/api/og?title=")
	b.WriteString(url.QueryEscape(title))
	b.WriteString("&subtitle=")
	b.WriteString(url.QueryEscape(subtitle))
	if opts.ChainSlug != "" {
		b.WriteString("&chain=")
		b.WriteString(url.QueryEscape(opts.ChainSlug))
	}
	if opts.Badge != "" {
		b.WriteString("&badge=")
		b.WriteString(url.QueryEscape(opts.Badge))
	}
	return b.String()
}

func withSiteName(title string) string {
	if title == "" {
		return SiteName
	}
	return title + " | " + SiteName
}

func homeMeta() *PageMeta {
	rawTitle := "Crxa Validator Documentation"
	title := withSiteName(rawTitle)
	ogTitle := SiteName + " - " + rawTitle
	ogImage := OGImagePath(rawTitle, SiteTagline, ImageOptions{})
	return &PageMeta{
		Title:              title,
		Description:        DefaultDescription,
		Canonical:          "/",
		SiteName:           SiteName,
		Keywords:           append([]string(nil), homeKeywords...),
		OGTitle:            ogTitle,
		OGDescription:      DefaultDescription,
		OGImage:            ogImage,
		OGType:             "website",
		OGLocale:           DefaultOGLocale,
		OGImageType:        DefaultOGImageType,
		TwitterCard:        CardSummaryLargeImage,
		TwitterTitle:       ogTitle,
		TwitterDescription: DefaultDescription,
		TwitterImage:       ogImage,
		StructuredData: []map[string]any{
			Organization(SiteName, "/", DefaultDescription, "/logo.png"),
			WebSite(SiteName, "/", DefaultDescription),
		},
	}
}

func licenseMeta() *PageMeta {
	title := withSiteName("Service License")
	description := "CRXANODE service and documentation license terms."
	return &PageMeta{
		Title:              title,
		Description:        description,
		Canonical:          "/license",
		SiteName:           SiteName,
		Robots:             "noindex, nofollow",
		OGTitle:            title,
		OGDescription:      description,
		OGImage:            DefaultOGImage,
		OGType:             "website",
		OGLocale:           DefaultOGLocale,
		OGImageType:        DefaultOGImageType,
		TwitterCard:        CardSummaryLargeImage,
		TwitterTitle:       title,
		TwitterDescription: description,
		TwitterImage:       DefaultOGImage,
	}
}

func serviceMeta(slug string) *PageMeta {
	chain := ChainDisplayName(slug)
	var (
		title       string
		description string
		ogTitle     string
		ogSubtitle  string
	)
	if chain != "" {
		title = withSiteName(chain + " Service")
		description = "Access RPC, API, gRPC, peer, snapshot, and validator resources for " + chain + " provided by Crxanode."
		ogTitle = chain + " Service Endpoints"
		ogSubtitle = "RPC, API, gRPC, peers, and snapshots by Crxanode"
	} else {
		title = withSiteName("Validator Service")
		description = "Browse Crxanode validator endpoints: RPC, API, gRPC, snapshots, and infrastructure resources for Cosmos SDK networks."
		ogTitle = "Validator Service Endpoints"
		ogSubtitle = "Crxanode infrastructure endpoints for Cosmos SDK chains"
	}
	ogImage := OGImagePath(ogTitle, ogSubtitle, ImageOptions{ChainSlug: slug, Badge: "SERVICE"})
	return &PageMeta{
		Title:              title,
		Description:        description,
		Canonical:          "/" + slug + "/service",
		SiteName:           SiteName,
		OGTitle:            ogTitle,
		OGDescription:      description,
		OGImage:            ogImage,
		OGType:             "website",
		OGLocale:           DefaultOGLocale,
		OGImageType:        DefaultOGImageType,
		TwitterCard:        CardSummaryLargeImage,
		TwitterTitle:       ogTitle,
		TwitterDescription: description,
		TwitterImage:       ogImage,
		StructuredData: []map[string]any{
			Service(ogTitle, "/"+slug+"/service", description, SiteName),
		},
	}
}

func guideMeta(slug string) *PageMeta {
	chain := ChainDisplayName(slug)
	var (
		rawTitle    string
		description string
		ogSubtitle  string
	)
	if chain != "" {
		rawTitle = chain + " Guide"
		description = "Follow Crxanode's end-to-end guide for " + chain + ": node installation, validator configuration, RPC/API endpoints, snapshots, and operations checklists."
		ogSubtitle = "Step-by-step validator operations with Crxanode"
	} else {
		rawTitle = "Validator Guide"
		description = "Explore Crxanode validator guides: node installation, validator configuration, and best practices for Cosmos SDK networks."
		ogSubtitle = "Infrastructure documentation by Crxanode"
	}
	ogImage := OGImagePath(rawTitle, ogSubtitle, ImageOptions{ChainSlug: slug, Badge: "GUIDE"})
	return &PageMeta{
		Title:              withSiteName(rawTitle),
		Description:        description,
		Canonical:          "/" + slug + "/guide",
		SiteName:           SiteName,
		OGTitle:            rawTitle,
		OGDescription:      description,
		OGImage:            ogImage,
		OGType:             "website",
		OGLocale:           DefaultOGLocale,
		OGImageType:        DefaultOGImageType,
		TwitterCard:        CardSummaryLargeImage,
		TwitterTitle:       rawTitle,
		TwitterDescription: description,
		TwitterImage:       ogImage,
		StructuredData: []map[string]any{
			TechArticle(rawTitle, "/"+slug+"/guide", description),
		},
	}
}

func fallbackMeta(path string) *PageMeta {
	canonical := path
	if !strings.HasPrefix(canonical, "/") {
		canonical = "/" + canonical
	}
	title := withSiteName("")
	return &PageMeta{
		Title:              title,
		Description:        DefaultDescription,
		Canonical:          canonical,
		SiteName:           SiteName,
		OGTitle:            title,
		OGDescription:      DefaultDescription,
		OGImage:            DefaultOGImage,
		OGType:             "website",
		OGLocale:           DefaultOGLocale,
		OGImageType:        DefaultOGImageType,
		TwitterCard:        CardSummaryLargeImage,
		TwitterTitle:       title,
		TwitterDescription: DefaultDescription,
		TwitterImage:       DefaultOGImage,
	}
}
