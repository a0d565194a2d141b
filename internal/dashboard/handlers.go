package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/ziadkadry99/privacypilot/internal/consent"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

const (
	StatusCompliant      = "Compliant"
	StatusAwaitingChoice = "Awaiting Choice"
)

// statsResponse is the JSON response for the stats endpoint.
type statsResponse struct {
	TrackerCount     int    `json:"tracker_count"`
	AuditCount       int    `json:"audit_count"`
	ComplianceStatus string `json:"compliance_status"`
	Phase            string `json:"phase"`
	ActiveCategories int    `json:"active_categories"`
	TotalCategories  int    `json:"total_categories"`
	ConsentProgress  int    `json:"consent_progress"`
	IdentityPrefix   string `json:"identity_prefix"`
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	trackers, err := d.trackers.Count(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	logs, err := d.audit.Count(ctx, d.syncer.UserID())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	rec, err := d.syncer.Current(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	total := len(policy.Categories())
	resp := statsResponse{
		TrackerCount:     trackers,
		AuditCount:       logs,
		ComplianceStatus: StatusAwaitingChoice,
		Phase:            string(d.syncer.Phase()),
		TotalCategories:  total,
		IdentityPrefix:   prefix(d.syncer.UserID(), 8),
	}
	if rec != nil {
		resp.ComplianceStatus = StatusCompliant
		resp.ActiveCategories = activeCount(rec)
		resp.ConsentProgress = resp.ActiveCategories * 100 / total
	}

	writeJSON(w, http.StatusOK, resp)
}

// activeCount counts the categories the stored record grants as written,
// without forcing necessary.
func activeCount(rec *consent.Record) int {
	n := 0
	for _, on := range []bool{rec.Necessary, rec.Functional, rec.Analytics, rec.Personalization, rec.Marketing} {
		if on {
			n++
		}
	}
	return n
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
