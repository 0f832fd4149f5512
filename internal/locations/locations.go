// Package locations aggregates where Crxanode's public endpoints are hosted:
// subdomain discovery, DNS resolution, and IP geolocation with a geocoding
// fallback, served as one cached payload for the world-map view.
package locations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRootDomain   = "crxanode.com"
	defaultSubdomainAPI = "https://api.subdomainfinder.in/?domain="
	defaultDoHEndpoint  = "https://dns.google/resolve"
	defaultIPAPI        = "http://ip-api.com/batch"
	defaultGeocoder     = "https://geocoding-api.open-meteo.com/v1/search"

	payloadTTL      = 24 * time.Hour
	coordCacheSize  = 512
	coordCacheTTL   = 7 * 24 * time.Hour
	rebuildDeadline = 45 * time.Second
)

// Location is one resolved server placement. Coordinates are [lon, lat].
type Location struct {
	Name        string     `json:"name"`
	Endpoint    string     `json:"endpoint"`
	IP          string     `json:"ip"`
	Coordinates [2]float64 `json:"coordinates"`
	City        string     `json:"city"`
	Country     string     `json:"country"`
}

// Payload is the aggregation result, including per-domain failures.
type Payload struct {
	Locations   []Location `json:"locations"`
	Errors      []string   `json:"errors"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// Aggregator resolves and caches server locations. A fresh forced refresh
// cancels a superseded in-flight rebuild rather than waiting behind it.
type Aggregator struct {
	rootDomain   string
	subdomainAPI string
	dohEndpoint  string
	ipAPI        string
	geocoder     string

	client *http.Client
	logger *zap.Logger

	coords *expirable.LRU[string, [2]float64]
	group  singleflight.Group

	mu            sync.Mutex
	cached        *Payload
	cachedExpires time.Time
	rebuildGen    uint64
	rebuildCancel context.CancelFunc
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithEndpoints overrides the upstream endpoints. Empty strings keep defaults.
func WithEndpoints(subdomainAPI, doh, ipAPI, geocoder string) Option {
	return func(a *Aggregator) {
		if subdomainAPI != "" {
			a.subdomainAPI = subdomainAPI
		}
		if doh != "" {
			a.dohEndpoint = doh
		}
		if ipAPI != "" {
			a.ipAPI = ipAPI
		}
		if geocoder != "" {
			a.geocoder = geocoder
		}
	}
}

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) Option {
	return func(a *Aggregator) { a.client = c }
}

// New builds an Aggregator for the given root domain ("" uses the default).
func New(rootDomain string, logger *zap.Logger, opts ...Option) *Aggregator {
	if rootDomain == "" {
		rootDomain = defaultRootDomain
	}
	a := &Aggregator{
		rootDomain:   rootDomain,
		subdomainAPI: defaultSubdomainAPI + rootDomain,
		dohEndpoint:  defaultDoHEndpoint,
		ipAPI:        defaultIPAPI,
		geocoder:     defaultGeocoder,
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		coords:       expirable.NewLRU[string, [2]float64](coordCacheSize, nil, coordCacheTTL),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Get returns the cached payload when fresh, rebuilding otherwise. force
// bypasses the cache and cancels any in-flight rebuild it supersedes; a
// bypassed cache affects staleness only, never correctness.
func (a *Aggregator) Get(ctx context.Context, force bool) (*Payload, error) {
	a.mu.Lock()
	if !force && a.cached != nil && time.Now().Before(a.cachedExpires) {
		p := a.cached
		a.mu.Unlock()
		return p, nil
	}
	if force && a.rebuildCancel != nil {
		a.rebuildCancel()
		a.rebuildCancel = nil
		a.group.Forget("rebuild")
	}
	a.mu.Unlock()

	result, err, _ := a.group.Do("rebuild", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.Background(), rebuildDeadline)
		a.mu.Lock()
		a.rebuildGen++
		gen := a.rebuildGen
		a.rebuildCancel = cancel
		a.mu.Unlock()
		defer func() {
			cancel()
			a.mu.Lock()
			// A superseding forced rebuild may already own the slot; only
			// this flight's own cancel func is cleared.
			if a.rebuildGen == gen {
				a.rebuildCancel = nil
			}
			a.mu.Unlock()
		}()

		payload, err := a.rebuild(rctx)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.cached = payload
		a.cachedExpires = time.Now().Add(payloadTTL)
		a.mu.Unlock()
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Payload), nil
}

func (a *Aggregator) rebuild(ctx context.Context) (*Payload, error) {
	domains, err := a.fetchSubdomains(ctx)
	if err != nil {
		return nil, err
	}

	resolved := a.resolveIPs(ctx, domains)

	var ips []string
	for _, r := range resolved {
		if r.err == nil {
			ips = append(ips, r.ip)
		}
	}
	geo, err := a.fetchIPBatch(ctx, ips)
	if err != nil {
		return nil, err
	}

	payload := &Payload{
		Locations:   []Location{},
		Errors:      []string{},
		LastUpdated: time.Now().UTC(),
	}
	for _, entry := range resolved {
		if entry.err != nil {
			payload.Errors = append(payload.Errors, entry.domain+": "+entry.err.Error())
			continue
		}
		meta, ok := geo[entry.ip]
		if !ok {
			payload.Errors = append(payload.Errors, entry.domain+": ip-api data missing")
			continue
		}
		if meta.Status != "success" {
			msg := meta.Message
			if msg == "" {
				msg = "ip-api lookup failed"
			}
			payload.Errors = append(payload.Errors, entry.domain+": "+msg)
			continue
		}
		loc, err := a.buildLocation(ctx, entry.domain, entry.ip, meta)
		if err != nil {
			payload.Errors = append(payload.Errors, entry.domain+": "+err.Error())
			continue
		}
		payload.Locations = append(payload.Locations, loc)
	}
	return payload, nil
}

type subdomainResponse struct {
	Status string `json:"status"`
	Data   []struct {
		Subdomain string `json:"subdomain"`
	} `json:"data"`
}

func (a *Aggregator) fetchSubdomains(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.subdomainAPI, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("locations: subdomain api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("locations: subdomain api failed (%d)", resp.StatusCode)
	}
	var payload subdomainResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("locations: decode subdomains: %w", err)
	}
	set := map[string]struct{}{}
	for _, d := range payload.Data {
		if d.Subdomain != "" {
			set[d.Subdomain] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("locations: subdomain api returned empty data")
	}
	domains := make([]string, 0, len(set))
	for d := range set {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains, nil
}

type resolvedDomain struct {
	domain string
	ip     string
	err    error
}

// resolveIPs resolves every domain concurrently, collecting per-domain
// failures instead of aborting the batch.
func (a *Aggregator) resolveIPs(ctx context.Context, domains []string) []resolvedDomain {
	results := make([]resolvedDomain, len(domains))
	var wg sync.WaitGroup
	for i, domain := range domains {
		wg.Add(1)
		go func(i int, domain string) {
			defer wg.Done()
			ip, err := a.resolveIP(ctx, domain)
			results[i] = resolvedDomain{domain: domain, ip: ip, err: err}
		}(i, domain)
	}
	wg.Wait()
	return results
}

type dohResponse struct {
	Answer []struct {
		Type int    `json:"type"`
		Data string `json:"data"`
	} `json:"Answer"`
}

// resolveIP tries DNS-over-HTTPS first and falls back to the system resolver.
func (a *Aggregator) resolveIP(ctx context.Context, domain string) (string, error) {
	if ip, err := a.resolveDoH(ctx, domain); err == nil {
		return ip, nil
	} else {
		a.logger.Debug("doh lookup failed, using system dns", zap.String("domain", domain), zap.Error(err))
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, domain)
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr, nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0], nil
	}
	return "", fmt.Errorf("no address for %s", domain)
}

func (a *Aggregator) resolveDoH(ctx context.Context, domain string) (string, error) {
	u := a.dohEndpoint + "?name=" + url.QueryEscape(domain) + "&type=A"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/dns-json")
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("doh status %d", resp.StatusCode)
	}
	var payload dohResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	for _, answer := range payload.Answer {
		// type 1 is an A record
		if answer.Type == 1 && answer.Data != "" {
			return answer.Data, nil
		}
	}
	return "", fmt.Errorf("no A record for %s", domain)
}

type ipAPIEntry struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Query      string  `json:"query"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

func (a *Aggregator) fetchIPBatch(ctx context.Context, ips []string) (map[string]ipAPIEntry, error) {
	if len(ips) == 0 {
		return map[string]ipAPIEntry{}, nil
	}
	body, err := json.Marshal(ips)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.ipAPI, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("locations: ip-api batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("locations: ip-api batch failed (%d)", resp.StatusCode)
	}
	var entries []ipAPIEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("locations: decode ip-api: %w", err)
	}
	out := make(map[string]ipAPIEntry, len(entries))
	for _, e := range entries {
		out[e.Query] = e
	}
	return out, nil
}

func (a *Aggregator) buildLocation(ctx context.Context, domain, ip string, meta ipAPIEntry) (Location, error) {
	lon, lat := meta.Lon, meta.Lat
	if lon == 0 && lat == 0 {
		coords, err := a.geocode(ctx, meta.City, meta.RegionName, meta.Country)
		if err != nil {
			return Location{}, fmt.Errorf("coordinates not provided by ip-api")
		}
		lon, lat = coords[0], coords[1]
	}
	city := meta.City
	if city == "" {
		city = meta.RegionName
	}
	if city == "" {
		city = "Unknown"
	}
	country := meta.Country
	if country == "" {
		country = "Unknown"
	}
	return Location{
		Name:        domain,
		Endpoint:    domain,
		IP:          ip,
		Coordinates: [2]float64{lon, lat},
		City:        city,
		Country:     country,
	}, nil
}

type geocodeResponse struct {
	Results []struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"results"`
}

// geocode resolves [lon, lat] for a city/region/country triple, memoized in
// an expiring LRU.
func (a *Aggregator) geocode(ctx context.Context, parts ...string) ([2]float64, error) {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return [2]float64{}, fmt.Errorf("nothing to geocode")
	}
	key := strings.Join(nonEmpty, "|")
	if coords, ok := a.coords.Get(key); ok {
		return coords, nil
	}

	u := a.geocoder + "?name=" + url.QueryEscape(strings.Join(nonEmpty, ", ")) + "&count=1&language=en&format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return [2]float64{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return [2]float64{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return [2]float64{}, fmt.Errorf("geocoder status %d", resp.StatusCode)
	}
	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return [2]float64{}, err
	}
	if len(payload.Results) == 0 || payload.Results[0].Latitude == nil || payload.Results[0].Longitude == nil {
		return [2]float64{}, fmt.Errorf("geocoder returned no coordinates")
	}
	coords := [2]float64{*payload.Results[0].Longitude, *payload.Results[0].Latitude}
	a.coords.Add(key, coords)
	return coords, nil
}
