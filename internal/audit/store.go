package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ziadkadry99/privacypilot/internal/docstore"
)

// ErrMissingUser is returned when an entry or query has no user id.
var ErrMissingUser = errors.New("audit: user id is required")

// Store appends and reads audit entries under users/{uid}/privacyLogs.
// Entries are never updated or deleted.
type Store struct {
	docs *docstore.Store
}

// NewStore creates a Store backed by the given document store.
func NewStore(docs *docstore.Store) *Store {
	return &Store{docs: docs}
}

// Collection returns the audit collection path for a user.
func Collection(userID string) string {
	return docstore.Collection("users", userID, "privacyLogs")
}

// Log appends entry and returns its id. If entry.ID is empty a UUID is
// generated; a zero Timestamp is stamped by the store.
func (s *Store) Log(ctx context.Context, entry Entry) (string, error) {
	if entry.UserID == "" {
		return "", ErrMissingUser
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	var ts any = docstore.ServerTimestamp
	if !entry.Timestamp.IsZero() {
		ts = entry.Timestamp
	}
	ids := entry.ActiveTrackerIDs
	if ids == nil {
		ids = []string{}
	}

	err := s.docs.Merge(ctx, docstore.Doc(Collection(entry.UserID), entry.ID), map[string]any{
		"userId":          entry.UserID,
		"websiteId":       entry.SiteID,
		"timestamp":       ts,
		"consentChange":   entry.ConsentChange,
		"activeCookieIds": ids,
	})
	if err != nil {
		return "", fmt.Errorf("writing audit entry: %w", err)
	}
	return entry.ID, nil
}

// GetByID retrieves a single entry. Returns docstore.ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, userID, id string) (*Entry, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	doc, err := s.docs.Get(ctx, docstore.Doc(Collection(userID), id))
	if err != nil {
		return nil, err
	}
	e := fromDocument(doc)
	return &e, nil
}

// Query returns the user's entries newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	if filter.UserID == "" {
		return nil, ErrMissingUser
	}

	opts := docstore.ListOptions{OrderBy: "timestamp", Descending: true}
	if !filter.filtersInMemory() {
		opts.Limit = filter.Limit
		opts.Offset = filter.Offset
	}

	docs, err := s.docs.List(ctx, Collection(filter.UserID), opts)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}

	entries := make([]Entry, 0, len(docs))
	for i := range docs {
		entries = append(entries, fromDocument(&docs[i]))
	}
	if !filter.filtersInMemory() {
		return entries, nil
	}

	matched := entries[:0]
	for _, e := range entries {
		if filter.matches(e) {
			matched = append(matched, e)
		}
	}
	return page(matched, filter.Offset, filter.Limit), nil
}

// Count returns the number of entries for a user.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrMissingUser
	}
	return s.docs.Count(ctx, Collection(userID))
}

func fromDocument(doc *docstore.Document) Entry {
	ids := doc.Strings("activeCookieIds")
	if ids == nil {
		ids = []string{}
	}
	return Entry{
		ID:               doc.ID,
		UserID:           doc.String("userId"),
		SiteID:           doc.String("websiteId"),
		Timestamp:        doc.Time("timestamp"),
		ConsentChange:    doc.String("consentChange"),
		ActiveTrackerIDs: ids,
	}
}

func page(entries []Entry, offset, limit int) []Entry {
	if offset > 0 {
		if offset >= len(entries) {
			return []Entry{}
		}
		entries = entries[offset:]
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
