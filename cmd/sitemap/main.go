// Command sitemap regenerates public/sitemap.xml and patches robots.txt from
// the chain content registry. Run it whenever chain content changes.
package main

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"crxanode.me/docs-edge/internal/config"
	"crxanode.me/docs-edge/internal/registry"
	"crxanode.me/docs-edge/internal/sitemap"
)

func main() {
	var (
		cfgPath   string
		publicDir string
	)
	flag.StringVar(&cfgPath, "config", "", "path to YAML config (optional)")
	flag.StringVar(&publicDir, "public", "public", "output directory for sitemap.xml and robots.txt")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Stderr.WriteString("sitemap: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// The generator needs no origin; tolerate its absence.
	os.Setenv("CRXA_EDGE_ORIGIN_URL", envDefault("CRXA_EDGE_ORIGIN_URL", "http://localhost:8080"))
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	reg, err := registry.New(cfg.ContentDir, logger)
	if err != nil {
		logger.Fatal("registry init", zap.Error(err))
	}

	// Guide-only chains have no service page; only service slugs feed the
	// sitemap, with guide entries gated per slug.
	slugs := reg.ListServiceSlugs()
	xml := sitemap.Build(cfg.SiteBaseURL, slugs, reg.HasGuide, time.Now())

	if err := os.MkdirAll(publicDir, 0o755); err != nil {
		logger.Fatal("create public dir", zap.Error(err))
	}
	sitemapPath := filepath.Join(publicDir, "sitemap.xml")
	if err := os.WriteFile(sitemapPath, []byte(xml), 0o644); err != nil {
		logger.Fatal("write sitemap", zap.Error(err))
	}

	robotsPath := filepath.Join(publicDir, "robots.txt")
	existing, _ := os.ReadFile(robotsPath)
	robots := sitemap.Robots(string(existing), cfg.SiteBaseURL)
	if err := os.WriteFile(robotsPath, []byte(robots), 0o644); err != nil {
		logger.Fatal("write robots", zap.Error(err))
	}

	logger.Info("sitemap generated",
		zap.String("sitemap", sitemapPath),
		zap.String("robots", robotsPath),
		zap.Int("chains", len(slugs)))
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
