package audit

import "time"

// Entry is one immutable record of a consent decision. Field names on the
// wire match the stored document.
type Entry struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	SiteID           string    `json:"websiteId"`
	Timestamp        time.Time `json:"timestamp"`
	ConsentChange    string    `json:"consentChange"`
	ActiveTrackerIDs []string  `json:"activeCookieIds"`
}

// QueryFilter narrows a Query. UserID is required; zero values elsewhere mean
// no constraint.
type QueryFilter struct {
	UserID    string
	Since     *time.Time
	Until     *time.Time
	TrackerID string
	Limit     int
	Offset    int
}

func (f QueryFilter) filtersInMemory() bool {
	return f.Since != nil || f.Until != nil || f.TrackerID != ""
}

func (f QueryFilter) matches(e Entry) bool {
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	if f.TrackerID != "" {
		found := false
		for _, id := range e.ActiveTrackerIDs {
			if id == f.TrackerID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
