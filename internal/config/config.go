// Package config loads runtime configuration for the edge service from an
// optional YAML file with environment overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the edge service configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// OriginURL is the upstream serving the site's HTML and assets.
	OriginURL string `yaml:"origin_url"`
	// SiteBaseURL is the public base URL used by the sitemap generator.
	SiteBaseURL string `yaml:"site_base_url"`
	// ContentDir holds service/*.json and guide/*.md registry files.
	ContentDir string `yaml:"content_dir"`
	// LogoBaseURL is the chain logo hosting root for preview images.
	LogoBaseURL string `yaml:"logo_base_url"`
	// RootDomain is probed for server locations.
	RootDomain string `yaml:"root_domain"`
	// Dev switches logging to the development encoder.
	Dev bool `yaml:"dev"`
}

// Load reads path (when non-empty), then applies environment overrides and
// defaults. A missing file with an explicit path is an error; an empty path
// configures from environment alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.Addr = override(cfg.Addr, "CRXA_EDGE_ADDR")
	cfg.OriginURL = override(cfg.OriginURL, "CRXA_EDGE_ORIGIN_URL")
	cfg.SiteBaseURL = override(cfg.SiteBaseURL, "SITE_BASE_URL")
	cfg.ContentDir = override(cfg.ContentDir, "CRXA_EDGE_CONTENT_DIR")
	cfg.LogoBaseURL = override(cfg.LogoBaseURL, "CRXA_EDGE_LOGO_BASE_URL")
	cfg.RootDomain = override(cfg.RootDomain, "CRXA_EDGE_ROOT_DOMAIN")
	if os.Getenv("CRXA_EDGE_DEV") != "" || os.Getenv("DEV") != "" {
		cfg.Dev = true
	}

	if cfg.Addr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		cfg.Addr = ":" + port
	}
	if cfg.SiteBaseURL == "" {
		cfg.SiteBaseURL = "https://docs.crxanode.me"
	}
	if cfg.ContentDir == "" {
		cfg.ContentDir = "content"
	}
	if cfg.LogoBaseURL == "" {
		cfg.LogoBaseURL = "https://explorer.crxanode.me/logos"
	}

	if cfg.OriginURL == "" {
		return cfg, fmt.Errorf("config: missing origin_url (or CRXA_EDGE_ORIGIN_URL)")
	}
	return cfg, nil
}

func override(current, key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return current
}
