package notifications

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ziadkadry99/privacypilot/internal/docstore"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

// Store persists notifications and webhook subscriptions.
type Store struct {
	docs *docstore.Store
}

// NewStore creates a Store backed by the given document store.
func NewStore(docs *docstore.Store) *Store {
	return &Store{docs: docs}
}

// Create records a policy change and returns it with its generated id.
func (s *Store) Create(ctx context.Context, state policy.ConsentState) (*Notification, error) {
	granted := state.Granted()
	names := make([]string, len(granted))
	for i, c := range granted {
		names[i] = string(c)
	}

	id, err := s.docs.Add(ctx, Collection, map[string]any{
		"type":      policy.EventName,
		"granted":   names,
		"delivered": 0,
		"failed":    0,
		"createdAt": docstore.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns one notification, or docstore.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Notification, error) {
	doc, err := s.docs.Get(ctx, docstore.Doc(Collection, id))
	if err != nil {
		return nil, err
	}
	n := notificationFromDocument(doc)
	return &n, nil
}

// MarkDelivered stores the delivery outcome counts.
func (s *Store) MarkDelivered(ctx context.Context, id string, delivered, failed int) error {
	return s.docs.Merge(ctx, docstore.Doc(Collection, id), map[string]any{
		"delivered": delivered,
		"failed":    failed,
	})
}

// List returns notifications newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Notification, error) {
	docs, err := s.docs.List(ctx, Collection, docstore.ListOptions{
		OrderBy:    "create_time",
		Descending: true,
		Limit:      f.Limit,
		Offset:     f.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(docs))
	for i := range docs {
		out = append(out, notificationFromDocument(&docs[i]))
	}
	return out, nil
}

// AddWebhook subscribes rawURL to policy changes.
func (s *Store) AddWebhook(ctx context.Context, rawURL string) (*Webhook, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidWebhook, rawURL)
	}

	id, err := s.docs.Add(ctx, WebhookCollection, map[string]any{
		"url":       rawURL,
		"createdAt": docstore.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("adding webhook: %w", err)
	}
	doc, err := s.docs.Get(ctx, docstore.Doc(WebhookCollection, id))
	if err != nil {
		return nil, err
	}
	w := webhookFromDocument(doc)
	return &w, nil
}

// ListWebhooks returns subscriptions oldest first.
func (s *Store) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	docs, err := s.docs.List(ctx, WebhookCollection, docstore.ListOptions{OrderBy: "create_time"})
	if err != nil {
		return nil, err
	}
	out := make([]Webhook, 0, len(docs))
	for i := range docs {
		out = append(out, webhookFromDocument(&docs[i]))
	}
	return out, nil
}

// DeleteWebhook unsubscribes a webhook. Unknown ids are not an error.
func (s *Store) DeleteWebhook(ctx context.Context, id string) error {
	return s.docs.Delete(ctx, docstore.Doc(WebhookCollection, id))
}

func notificationFromDocument(doc *docstore.Document) Notification {
	names := doc.Strings("granted")
	granted := make([]policy.Category, 0, len(names))
	for _, name := range names {
		if c, ok := policy.ParseCategory(name); ok {
			granted = append(granted, c)
		}
	}
	return Notification{
		ID:        doc.ID,
		Type:      doc.String("type"),
		Granted:   granted,
		Delivered: doc.Int("delivered"),
		Failed:    doc.Int("failed"),
		CreatedAt: doc.Time("createdAt"),
	}
}

func webhookFromDocument(doc *docstore.Document) Webhook {
	return Webhook{
		ID:        doc.ID,
		URL:       doc.String("url"),
		CreatedAt: doc.Time("createdAt"),
	}
}
