package policy

import "strings"

// Category is a consent category a tracker belongs to.
type Category string

const (
	Necessary       Category = "necessary"
	Functional      Category = "functional"
	Analytics       Category = "analytics"
	Personalization Category = "personalization"
	Marketing       Category = "marketing"
)

// EventName is the fixed name of the policy broadcast event.
const EventName = "pp_policy_update"

var categories = []Category{Necessary, Functional, Analytics, Personalization, Marketing}

// Categories returns every category in canonical order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory resolves s to a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Title returns the capitalized category name, e.g. "Analytics".
func (c Category) Title() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// ConsentState is the gate answer for every category at once.
type ConsentState struct {
	Necessary       bool `json:"necessary"`
	Functional      bool `json:"functional"`
	Analytics       bool `json:"analytics"`
	Personalization bool `json:"personalization"`
	Marketing       bool `json:"marketing"`
}

// DefaultState is necessary-only: the state before any decision.
func DefaultState() ConsentState {
	return ConsentState{Necessary: true}
}

// AllGranted grants every category.
func AllGranted() ConsentState {
	return ConsentState{
		Necessary:       true,
		Functional:      true,
		Analytics:       true,
		Personalization: true,
		Marketing:       true,
	}
}

// Normalize returns s with Necessary forced to true.
func (s ConsentState) Normalize() ConsentState {
	s.Necessary = true
	return s
}

// Allows reports whether category c is granted. Necessary is always granted;
// unknown categories never are.
func (s ConsentState) Allows(c Category) bool {
	switch c {
	case Necessary:
		return true
	case Functional:
		return s.Functional
	case Analytics:
		return s.Analytics
	case Personalization:
		return s.Personalization
	case Marketing:
		return s.Marketing
	default:
		return false
	}
}

// Granted lists the granted categories in canonical order.
func (s ConsentState) Granted() []Category {
	var out []Category
	for _, c := range categories {
		if s.Allows(c) {
			out = append(out, c)
		}
	}
	return out
}

// Event is the payload delivered to listeners outside the direct call graph.
// It always carries the full state, never a diff.
type Event struct {
	Name  string       `json:"type"`
	State ConsentState `json:"detail"`
}

// NewEvent wraps s in a broadcast event.
func NewEvent(s ConsentState) Event {
	return Event{Name: EventName, State: s}
}
