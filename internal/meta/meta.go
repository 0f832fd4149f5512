package meta

// Site identity constants shared by the resolver, the injection fragment
// builder, and the social preview composer.
const (
	SiteName           = "Crxanode Docs"
	SiteTagline        = "Validator infrastructure & guides for Cosmos SDK chains."
	SiteDomain         = "docs.crxanode.me"
	DefaultDescription = "Comprehensive documentation for Crxanode validator services: API endpoints, node setup guides, snapshots, and infrastructure best practices for Cosmos SDK chains."
	DefaultOGLocale    = "en_US"
	DefaultOGImageType = "image/png"
)

// DefaultOGImage is the preview image used when a route has no image of its own.
var DefaultOGImage = OGImagePath(SiteName, SiteTagline, ImageOptions{})

// TwitterCard values accepted by the twitter:card meta tag.
const (
	CardSummary           = "summary"
	CardSummaryLargeImage = "summary_large_image"
	CardApp               = "app"
	CardPlayer            = "player"
)

// PageMeta is the normalized metadata record for one logical page. Empty
// fields are omitted from emitted HTML.
type PageMeta struct {
	Title              string
	Description        string
	Canonical          string
	SiteName           string
	Robots             string
	Keywords           []string
	OGTitle            string
	OGDescription      string
	OGImage            string
	OGType             string
	OGLocale           string
	OGImageType        string
	TwitterCard        string
	TwitterTitle       string
	TwitterDescription string
	TwitterImage       string
	StructuredData     []map[string]any
}

// homeKeywords feed the keywords meta tag on the landing page only.
var homeKeywords = []string{
	"crxanode",
	"cosmos validator documentation",
	"validator service",
	"cosmos node guide",
	"rpc endpoints",
	"snapshot service",
}

// chainNameOverrides maps slugs whose display name is not derivable by
// title-casing. Override values are used verbatim.
var chainNameOverrides = map[string]string{
	"safrochain": "SAFROCHAIN",
	"paxi":       "PAXI",
}
