package certificate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts GET /api/certificate.
func RegisterRoutes(r chi.Router, g *Generator) {
	r.Get("/api/certificate", handleDownload(g))
}

func handleDownload(g *Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cert, err := g.Build(r.Context())
		if errors.Is(err, ErrNoActiveConsent) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", Filename(g.Anchor())))
		if err := Write(w, cert); err != nil {
			log.Printf("certificate: writing response: %v", err)
		}
	}
}
