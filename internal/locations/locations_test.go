package locations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// newStubUpstream wires every upstream the aggregator talks to into one mux.
func newStubUpstream(t *testing.T, rebuilds *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/subdomains", func(w http.ResponseWriter, r *http.Request) {
		if rebuilds != nil {
			atomic.AddInt32(rebuilds, 1)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data": []map[string]string{
				{"subdomain": "rpc.crxanode.com"},
				{"subdomain": "api.crxanode.com"},
				{"subdomain": "broken.invalid"},
			},
		})
	})
	mux.HandleFunc("/resolve", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "broken.invalid" {
			http.Error(w, "no answer", http.StatusBadRequest)
			return
		}
		ip := "203.0.113.10"
		if name == "api.crxanode.com" {
			ip = "203.0.113.20"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Answer": []map[string]any{{"type": 1, "data": ip}},
		})
	})
	mux.HandleFunc("/batch", func(w http.ResponseWriter, r *http.Request) {
		var ips []string
		_ = json.NewDecoder(r.Body).Decode(&ips)
		var out []map[string]any
		for _, ip := range ips {
			entry := map[string]any{
				"status": "success", "query": ip,
				"country": "Germany", "regionName": "Hesse", "city": "Frankfurt",
				"lat": 50.11, "lon": 8.68,
			}
			if ip == "203.0.113.20" {
				// force the geocode fallback path
				entry["lat"] = 0.0
				entry["lon"] = 0.0
			}
			out = append(out, entry)
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"latitude": 50.1, "longitude": 8.7}},
		})
	})
	return httptest.NewServer(mux)
}

func newTestAggregator(t *testing.T, rebuilds *int32) *Aggregator {
	t.Helper()
	srv := newStubUpstream(t, rebuilds)
	t.Cleanup(srv.Close)
	return New("crxanode.com", zap.NewNop(),
		WithEndpoints(srv.URL+"/subdomains", srv.URL+"/resolve", srv.URL+"/batch", srv.URL+"/search"),
		WithClient(srv.Client()))
}

func TestGetAggregatesLocations(t *testing.T) {
	a := newTestAggregator(t, nil)
	payload, err := a.Get(context.Background(), false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(payload.Locations) != 2 {
		dump, _ := json.Marshal(payload)
		t.Fatalf("expected 2 locations, got %s", dump)
	}
	if len(payload.Errors) != 1 {
		t.Fatalf("expected 1 per-domain error, got %v", payload.Errors)
	}
	for _, loc := range payload.Locations {
		if loc.City != "Frankfurt" {
			t.Fatalf("expected Frankfurt, got %q", loc.City)
		}
		if loc.Coordinates == [2]float64{0, 0} {
			t.Fatalf("zero coordinates survived for %s", loc.Name)
		}
	}
}

func TestGetUsesCacheUntilForced(t *testing.T) {
	var rebuilds int32
	a := newTestAggregator(t, &rebuilds)

	if _, err := a.Get(context.Background(), false); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := a.Get(context.Background(), false); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got := atomic.LoadInt32(&rebuilds); got != 1 {
		t.Fatalf("expected 1 rebuild with warm cache, got %d", got)
	}

	if _, err := a.Get(context.Background(), true); err != nil {
		t.Fatalf("forced get: %v", err)
	}
	if got := atomic.LoadInt32(&rebuilds); got != 2 {
		t.Fatalf("expected forced refresh to rebuild, got %d", got)
	}
}

func TestForcedRefreshKeepsCancelForNextFlight(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{}, 4)
	mux := http.NewServeMux()
	mux.HandleFunc("/subdomains", func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   []map[string]string{{"subdomain": "rpc.crxanode.com"}},
		})
	})
	mux.HandleFunc("/resolve", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Answer": []map[string]any{{"type": 1, "data": "203.0.113.10"}},
		})
	})
	mux.HandleFunc("/batch", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"status": "success", "query": "203.0.113.10",
			"country": "Germany", "city": "Frankfurt",
			"lat": 50.11, "lon": 8.68,
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	a := New("crxanode.com", zap.NewNop(),
		WithEndpoints(srv.URL+"/subdomains", srv.URL+"/resolve", srv.URL+"/batch", srv.URL+"/search"),
		WithClient(srv.Client()))

	stale := make(chan error, 1)
	go func() {
		_, err := a.Get(context.Background(), false)
		stale <- err
	}()
	<-arrived

	forced := make(chan error, 1)
	go func() {
		_, err := a.Get(context.Background(), true)
		forced <- err
	}()
	<-arrived

	if err := <-stale; err == nil {
		t.Fatalf("expected superseded rebuild to fail")
	}
	// Let the superseded flight finish its deferred cleanup.
	time.Sleep(100 * time.Millisecond)

	a.mu.Lock()
	cancel := a.rebuildCancel
	a.mu.Unlock()
	if cancel == nil {
		t.Fatalf("in-flight forced rebuild lost its cancel func")
	}

	close(release)
	if err := <-forced; err != nil {
		t.Fatalf("forced rebuild: %v", err)
	}
}

func TestHandlerServesJSON(t *testing.T) {
	a := newTestAggregator(t, nil)
	h := NewHandler(a, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/server-locations", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body=%s", rec.Code, rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=60, s-maxage=600" {
		t.Fatalf("unexpected cache-control: %q", cc)
	}
	var payload Payload
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.LastUpdated.IsZero() {
		t.Fatalf("lastUpdated missing")
	}
}

func TestHandlerRejectsNonGET(t *testing.T) {
	a := newTestAggregator(t, nil)
	h := NewHandler(a, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/server-locations", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
