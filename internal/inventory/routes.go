package inventory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/privacypilot/internal/policy"
	"github.com/ziadkadry99/privacypilot/internal/progress"
)

// RegisterRoutes mounts tracker endpoints under /api/trackers.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/trackers", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Post("/", handleAdd(store))
		r.Post("/rescan", handleRescan(store))
		r.Delete("/{id}", handleDelete(store))
	})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		trackers, err := store.List(r.Context(), ListFilter{
			Search:        q.Get("q"),
			Category:      policy.Category(q.Get("category")),
			DomainPattern: q.Get("domain"),
		})
		if errors.Is(err, ErrInvalidPattern) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, trackers)
	}
}

func handleAdd(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t Tracker
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
		created, err := store.Add(r.Context(), t)
		if errors.Is(err, ErrInvalidTracker) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleDelete(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRescan(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		added, err := store.Rescan(r.Context(), progress.Nop{})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		msg := "Inventory is already up to date."
		if added > 0 {
			msg = "Discovered common trackers on your domain."
		}
		writeJSON(w, http.StatusOK, map[string]any{"added": added, "message": msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
