package consent

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/privacypilot/internal/inventory"
	"github.com/ziadkadry99/privacypilot/internal/metrics"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

type statusResponse struct {
	Phase  Phase               `json:"phase"`
	State  policy.ConsentState `json:"state"`
	Record *Record             `json:"record"`
}

type decisionResponse struct {
	Phase            Phase               `json:"phase"`
	State            policy.ConsentState `json:"state"`
	Description      string              `json:"description"`
	ActiveTrackerIDs []string            `json:"activeCookieIds"`
}

type checkResponse struct {
	Category string `json:"category"`
	Allowed  bool   `json:"allowed"`
}

// RegisterRoutes mounts the consent widget endpoints under /api/consent.
func RegisterRoutes(r chi.Router, s *Syncer, p *policy.Store, trackers *inventory.Store, m *metrics.Metrics) {
	r.Route("/api/consent", func(r chi.Router) {
		r.Get("/", handleStatus(s, p))
		r.Delete("/", handleReset(s, p))
		r.Post("/accept-all", handleDecision(s, trackers, func(*http.Request) (Decision, error) {
			return AcceptAll(), nil
		}))
		r.Post("/reject-all", handleDecision(s, trackers, func(*http.Request) (Decision, error) {
			return RejectAll(), nil
		}))
		r.Post("/custom", handleDecision(s, trackers, func(r *http.Request) (Decision, error) {
			var st policy.ConsentState
			if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
				return Decision{}, err
			}
			return Custom(st), nil
		}))
		r.Get("/check/{category}", handleCheck(p, m))
	})
}

func handleStatus(s *Syncer, p *policy.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.Current(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if rec == nil {
			s.PromptShown()
		}
		writeJSON(w, http.StatusOK, statusResponse{
			Phase:  s.Phase(),
			State:  p.GetSnapshot(),
			Record: rec,
		})
	}
}

func handleDecision(s *Syncer, trackers *inventory.Store, build func(*http.Request) (Decision, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := build(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}

		list, err := trackers.List(r.Context(), inventory.ListFilter{})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		ids := ActiveTrackerIDs(d, list)

		// Writes outlive the request.
		s.Apply(context.WithoutCancel(r.Context()), d, ids)

		writeJSON(w, http.StatusAccepted, decisionResponse{
			Phase:            s.Phase(),
			State:            d.State,
			Description:      d.Description,
			ActiveTrackerIDs: ids,
		})
	}
}

func handleReset(s *Syncer, p *policy.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Reset(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Phase: s.Phase(), State: p.GetSnapshot()})
	}
}

func handleCheck(p *policy.Store, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "category")
		allowed := p.CheckConsent(policy.Category(raw))
		if c, ok := policy.ParseCategory(raw); ok {
			m.IncrementGateCheck(string(c), allowed)
		} else {
			m.IncrementGateCheck("unknown", false)
		}
		writeJSON(w, http.StatusOK, checkResponse{Category: raw, Allowed: allowed})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
