package locations

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler serves GET /api/server-locations.
type Handler struct {
	agg    *Aggregator
	logger *zap.Logger
}

// NewHandler wraps an Aggregator in an HTTP handler.
func NewHandler(agg *Aggregator, logger *zap.Logger) *Handler {
	return &Handler{agg: agg, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	q := r.URL.Query()
	force := q.Get("force") == "1" || q.Get("force") == "true" || q.Get("refresh") == "1"

	payload, err := h.agg.Get(r.Context(), force)
	if err != nil {
		h.logger.Error("server locations rebuild failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to resolve server locations",
			"details": err.Error(),
		})
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60, s-maxage=600")
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
