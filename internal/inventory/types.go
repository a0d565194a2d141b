package inventory

import (
	"errors"
	"time"

	"github.com/ziadkadry99/privacypilot/internal/policy"
)

// Collection is the document-store collection holding the site's trackers.
const Collection = "cookies"

var (
	// ErrInvalidTracker is returned when a tracker is missing required fields.
	ErrInvalidTracker = errors.New("invalid tracker")
	// ErrInvalidPattern is returned for malformed domain glob patterns.
	ErrInvalidPattern = errors.New("invalid domain pattern")
)

// Tracker is a cookie or script on the site, classified by consent category.
type Tracker struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Domain      string          `json:"domain"`
	Category    policy.Category `json:"category"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ListFilter narrows List. Zero values mean no constraint.
type ListFilter struct {
	// Search matches case-insensitively against name or domain.
	Search string
	// Category restricts to one consent category.
	Category policy.Category
	// DomainPattern is a glob such as "*.google.com".
	DomainPattern string
}

// seedTrackers are the common trackers discovered by Rescan.
var seedTrackers = []Tracker{
	{Name: "_ga", Domain: "google-analytics.com", Category: policy.Analytics, Description: "Google Analytics tracking ID"},
	{Name: "_fbp", Domain: "facebook.com", Category: policy.Marketing, Description: "Facebook pixel tracker"},
	{Name: "session_id", Domain: "privacypilot.com", Category: policy.Necessary, Description: "Core session management"},
}

// rescanThreshold is the inventory size below which Rescan seeds trackers.
const rescanThreshold = 2
