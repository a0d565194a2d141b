package notifications

import (
	"errors"
	"time"

	"github.com/ziadkadry99/privacypilot/internal/policy"
)

const (
	// Collection holds one document per policy change.
	Collection = "notifications"
	// WebhookCollection holds the subscribed endpoints.
	WebhookCollection = "webhooks"
)

// ErrInvalidWebhook is returned for a missing or non-http(s) webhook URL.
var ErrInvalidWebhook = errors.New("invalid webhook")

// Webhook is an endpoint that receives every policy change.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification records one policy change and how its delivery went.
type Notification struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Granted   []policy.Category `json:"granted"`
	Delivered int               `json:"delivered"`
	Failed    int               `json:"failed"`
	CreatedAt time.Time         `json:"createdAt"`
}

// State rebuilds the full consent state from the granted categories.
func (n Notification) State() policy.ConsentState {
	var s policy.ConsentState
	for _, c := range n.Granted {
		switch c {
		case policy.Functional:
			s.Functional = true
		case policy.Analytics:
			s.Analytics = true
		case policy.Personalization:
			s.Personalization = true
		case policy.Marketing:
			s.Marketing = true
		}
	}
	return s.Normalize()
}

// Payload is the JSON body POSTed to webhooks. Type and Detail match the
// broadcast channel so subscribers can share a decoder.
type Payload struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"`
	Detail    policy.ConsentState `json:"detail"`
	CreatedAt time.Time           `json:"createdAt"`
}

// ListFilter controls which notifications are returned by List.
type ListFilter struct {
	Limit  int
	Offset int
}
