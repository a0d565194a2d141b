package dashboard

import (
	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/privacypilot/internal/audit"
	"github.com/ziadkadry99/privacypilot/internal/consent"
	"github.com/ziadkadry99/privacypilot/internal/inventory"
)

// Dashboard serves the operator UI and its overview stats.
type Dashboard struct {
	syncer   *consent.Syncer
	trackers *inventory.Store
	audit    *audit.Store
}

// New creates a new Dashboard.
func New(syncer *consent.Syncer, trackers *inventory.Store, auditStore *audit.Store) *Dashboard {
	return &Dashboard{
		syncer:   syncer,
		trackers: trackers,
		audit:    auditStore,
	}
}

// RegisterRoutes mounts all dashboard routes onto the given router.
func (d *Dashboard) RegisterRoutes(r chi.Router) {
	r.Get("/", d.ServeIndex)
	r.Get("/api/dashboard/stats", d.handleStats)
}
