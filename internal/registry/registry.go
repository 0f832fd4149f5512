// Package registry exposes the chain content registry: which validator
// networks have a service descriptor and/or a setup guide. Slugs come from
// file names only; the edge never renders the content itself.
package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a slug has no backing content file.
var ErrNotFound = errors.New("registry: not found")

// Registry lists chain slugs from a content directory laid out as
// service/<slug>.json and guide/<slug>.md.
type Registry struct {
	serviceDir string
	guideDir   string
	logger     *zap.Logger

	mu           sync.RWMutex
	slugs        []string
	serviceSlugs []string

	watcher *fsnotify.Watcher
}

// New builds a Registry rooted at contentDir and performs the initial scan.
func New(contentDir string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		serviceDir: filepath.Join(contentDir, "service"),
		guideDir:   filepath.Join(contentDir, "guide"),
		logger:     logger,
	}
	r.rescan()
	return r, nil
}

// ListSlugs returns the sorted union of service and guide slugs.
func (r *Registry) ListSlugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.slugs...)
}

// ListServiceSlugs returns the sorted slugs that have a service descriptor.
// Guide-only chains are excluded.
func (r *Registry) ListServiceSlugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.serviceSlugs...)
}

// GetService returns the raw service descriptor for a slug.
func (r *Registry) GetService(slug string) (json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(r.serviceDir, slug+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return json.RawMessage(data), nil
}

// GetGuide returns the raw markdown guide for a slug.
func (r *Registry) GetGuide(slug string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.guideDir, slug+".md"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

// HasGuide reports whether a guide exists for the slug.
func (r *Registry) HasGuide(slug string) bool {
	_, err := os.Stat(filepath.Join(r.guideDir, slug+".md"))
	return err == nil
}

// Watch refreshes the slug list whenever content files change. It returns
// once the watcher is installed; call Close to stop it.
func (r *Registry) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range []string{r.serviceDir, r.guideDir} {
		if err := w.Add(dir); err != nil {
			r.logger.Warn("registry watch skipped", zap.String("dir", dir), zap.Error(err))
		}
	}
	r.watcher = w
	go func() {
		for {
			select {
			case _, ok := <-w.Events:
				if !ok {
					return
				}
				r.rescan()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.logger.Warn("registry watch error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops the content watcher if one is running.
func (r *Registry) Close() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func (r *Registry) rescan() {
	collect := func(dir, ext string, set map[string]struct{}) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if !strings.HasSuffix(name, ext) {
				continue
			}
			slug := strings.ToLower(strings.TrimSuffix(name, ext))
			if slug != "" {
				set[slug] = struct{}{}
			}
		}
	}
	services := map[string]struct{}{}
	collect(r.serviceDir, ".json", services)
	union := map[string]struct{}{}
	for slug := range services {
		union[slug] = struct{}{}
	}
	collect(r.guideDir, ".md", union)

	sorted := func(set map[string]struct{}) []string {
		out := make([]string, 0, len(set))
		for slug := range set {
			out = append(out, slug)
		}
		sort.Strings(out)
		return out
	}

	r.mu.Lock()
	r.slugs = sorted(union)
	r.serviceSlugs = sorted(services)
	r.mu.Unlock()
}
