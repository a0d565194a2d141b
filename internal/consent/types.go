package consent

import (
	"strings"
	"time"

	"github.com/ziadkadry99/privacypilot/internal/docstore"
	"github.com/ziadkadry99/privacypilot/internal/inventory"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

// RecordPath is the document holding a user's current consent decision.
func RecordPath(userID string) string {
	return docstore.Doc("users", userID, "consentRecords", "current")
}

// Record is the durable copy of a user's most recent consent decision.
type Record struct {
	Necessary       bool      `json:"necessary"`
	Functional      bool      `json:"functional"`
	Analytics       bool      `json:"analytics"`
	Personalization bool      `json:"personalization"`
	Marketing       bool      `json:"marketing"`
	UserID          string    `json:"userId"`
	SiteID          string    `json:"websiteId"`
	Rev             int64     `json:"rev"`
	Timestamp       time.Time `json:"timestamp"`
}

// RecordFromDocument projects a stored document. Missing or non-boolean
// category fields read as false. A nil document yields nil.
func RecordFromDocument(doc *docstore.Document) *Record {
	if doc == nil {
		return nil
	}
	return &Record{
		Necessary:       doc.Bool("necessary"),
		Functional:      doc.Bool("functional"),
		Analytics:       doc.Bool("analytics"),
		Personalization: doc.Bool("personalization"),
		Marketing:       doc.Bool("marketing"),
		UserID:          doc.String("userId"),
		SiteID:          doc.String("websiteId"),
		Rev:             int64(doc.Int("rev")),
		Timestamp:       doc.Time("timestamp"),
	}
}

// State projects the record to a ConsentState with necessary forced on.
func (r *Record) State() policy.ConsentState {
	return policy.ConsentState{
		Functional:      r.Functional,
		Analytics:       r.Analytics,
		Personalization: r.Personalization,
		Marketing:       r.Marketing,
	}.Normalize()
}

// Phase is the pending-decision state of the widget.
type Phase string

const (
	PhaseNoRecord Phase = "no_record"
	PhasePending  Phase = "pending"
	PhaseDecided  Phase = "decided"
)

// DecisionKind names one of the canonical decision shapes.
type DecisionKind string

const (
	KindAcceptAll DecisionKind = "accept_all"
	KindRejectAll DecisionKind = "reject_all"
	KindCustom    DecisionKind = "custom"
)

// Decision is a user choice ready to be applied and recorded.
type Decision struct {
	Kind        DecisionKind        `json:"kind"`
	State       policy.ConsentState `json:"state"`
	Description string              `json:"description"`
}

// AcceptAll grants every category.
func AcceptAll() Decision {
	return Decision{
		Kind:        KindAcceptAll,
		State:       policy.AllGranted(),
		Description: "Opt-in All Categories: " + titles(policy.Categories()),
	}
}

// RejectAll keeps only necessary trackers.
func RejectAll() Decision {
	return Decision{
		Kind:        KindRejectAll,
		State:       policy.DefaultState(),
		Description: "Rejected Optional (Necessary Only)",
	}
}

// Custom applies caller-chosen categories. The description lists exactly the
// granted categories in canonical order.
func Custom(s policy.ConsentState) Decision {
	s = s.Normalize()
	return Decision{
		Kind:        KindCustom,
		State:       s,
		Description: "Custom Preferences: " + titles(s.Granted()),
	}
}

func titles(cats []policy.Category) string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Title()
	}
	return strings.Join(names, ", ")
}

// ActiveTrackerIDs returns the ids of trackers the decision lets run.
func ActiveTrackerIDs(d Decision, trackers []inventory.Tracker) []string {
	ids := make([]string, 0, len(trackers))
	for _, t := range trackers {
		if d.Kind == KindAcceptAll || d.State.Allows(t.Category) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
