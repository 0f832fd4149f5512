package meta

// Organization returns a schema.org Organization payload. URLs are left
// relative; the injection layer absolutizes them against the request origin.
func Organization(name, url, description, logoURL string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Organization",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if description != "" {
		m["description"] = description
	}
	if logoURL != "" {
		m["logo"] = logoURL
	}
	return m
}

// WebSite returns a schema.org WebSite payload.
func WebSite(name, url, description string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if description != "" {
		m["description"] = description
	}
	return m
}

// TechArticle returns a schema.org TechArticle payload for guide pages.
func TechArticle(headline, url, description string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "TechArticle",
		"headline": headline,
	}
	if url != "" {
		m["url"] = url
	}
	if description != "" {
		m["description"] = description
	}
	return m
}

// Service returns a schema.org Service payload for chain service pages.
func Service(name, url, description, provider string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Service",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if description != "" {
		m["description"] = description
	}
	if provider != "" {
		m["provider"] = map[string]any{"@type": "Organization", "name": provider}
	}
	return m
}
