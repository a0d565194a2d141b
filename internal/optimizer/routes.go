package optimizer

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts POST /api/ai/optimize.
func RegisterRoutes(r chi.Router, o *Optimizer) {
	r.Post("/api/ai/optimize", handleOptimize(o))
}

func handleOptimize(o *Optimizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}

		resp, err := o.Optimize(r.Context(), req)
		if errors.Is(err, ErrMissingFields) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: consentData and websiteType"})
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
