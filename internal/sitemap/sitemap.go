// Package sitemap builds sitemap.xml and robots.txt from the chain registry.
package sitemap

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Entry is one <url> element.
type Entry struct {
	Loc        string
	LastMod    string
	ChangeFreq string
	Priority   float64
}

func (e Entry) render() string {
	parts := []string{"  <url>", "    <loc>" + e.Loc + "</loc>"}
	if e.LastMod != "" {
		parts = append(parts, "    <lastmod>"+e.LastMod+"</lastmod>")
	}
	if e.ChangeFreq != "" {
		parts = append(parts, "    <changefreq>"+e.ChangeFreq+"</changefreq>")
	}
	if e.Priority > 0 {
		parts = append(parts, fmt.Sprintf("    <priority>%.1f</priority>", e.Priority))
	}
	parts = append(parts, "  </url>")
	return strings.Join(parts, "\n")
}

// Build renders the sitemap for the site's static routes plus one service
// entry per slug and one guide entry per slug that has a guide.
func Build(baseURL string, serviceSlugs []string, hasGuide func(string) bool, now time.Time) string {
	base := strings.TrimRight(baseURL, "/")
	today := now.UTC().Format("2006-01-02")

	entries := []Entry{
		{Loc: base + "/", LastMod: today, ChangeFreq: "weekly", Priority: 1.0},
		{Loc: base + "/license", LastMod: today, ChangeFreq: "yearly", Priority: 0.4},
	}
	for _, slug := range serviceSlugs {
		entries = append(entries, Entry{
			Loc: base + "/" + slug + "/service", LastMod: today, ChangeFreq: "daily", Priority: 0.8,
		})
		if hasGuide != nil && hasGuide(slug) {
			entries = append(entries, Entry{
				Loc: base + "/" + slug + "/guide", LastMod: today, ChangeFreq: "weekly", Priority: 0.6,
			})
		}
	}

	lines := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`,
	}
	for _, e := range entries {
		lines = append(lines, e.render())
	}
	lines = append(lines, "</urlset>", "")
	return strings.Join(lines, "\n")
}

var sitemapLineRe = regexp.MustCompile(`(?i)^sitemap\s*:`)

// Robots rewrites robots.txt content so it carries exactly one Sitemap line
// pointing at the sitemap under baseURL. Empty existing content gets the
// permissive default.
func Robots(existing, baseURL string) string {
	if strings.TrimSpace(existing) == "" {
		existing = "User-agent: *\nAllow: /\n"
	}
	var lines []string
	for _, line := range strings.Split(existing, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || sitemapLineRe.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}
	lines = append(lines, "Sitemap: "+strings.TrimRight(baseURL, "/")+"/sitemap.xml")
	return strings.Join(lines, "\n") + "\n"
}
