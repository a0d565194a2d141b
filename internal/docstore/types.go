package docstore

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get when no document exists at the path.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidPath is returned for malformed document or collection paths.
	ErrInvalidPath = errors.New("invalid path")
)

type serverTimestamp struct{}

// ServerTimestamp is a sentinel field value. Merge replaces it with the
// store's current time at write.
var ServerTimestamp = serverTimestamp{}

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Document is a single stored document.
type Document struct {
	ID         string         `json:"id"`
	Path       string         `json:"path"`
	Data       map[string]any `json:"data"`
	CreateTime time.Time      `json:"create_time"`
	UpdateTime time.Time      `json:"update_time"`
}

// Bool returns the boolean field value, or false when absent or not a bool.
func (d *Document) Bool(field string) bool {
	if d == nil {
		return false
	}
	v, _ := d.Data[field].(bool)
	return v
}

// String returns the string field value, or "" when absent or not a string.
func (d *Document) String(field string) string {
	if d == nil {
		return ""
	}
	v, _ := d.Data[field].(string)
	return v
}

// Int returns a numeric field value truncated to int, or 0 when absent.
func (d *Document) Int(field string) int {
	if d == nil {
		return 0
	}
	switch v := d.Data[field].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// Time parses a timestamp field written by Merge. Zero when absent.
func (d *Document) Time(field string) time.Time {
	s := d.String(field)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Strings returns a string-array field; non-string elements are skipped.
func (d *Document) Strings(field string) []string {
	if d == nil {
		return nil
	}
	raw, ok := d.Data[field].([]any)
	if !ok {
		if typed, ok := d.Data[field].([]string); ok {
			return append([]string(nil), typed...)
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ListOptions controls ordering and paging for List.
type ListOptions struct {
	// OrderBy is "create_time", "update_time", or a top-level data field.
	// Empty orders by document path.
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// Doc joins segments into a document path, e.g. Doc("users", uid, "consentRecords", "current").
func Doc(segments ...string) string { return strings.Join(segments, "/") }

// Collection joins segments into a collection path, e.g. Collection("users", uid, "privacyLogs").
func Collection(segments ...string) string { return strings.Join(segments, "/") }

func splitPath(p string) ([]string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil, ErrInvalidPath
	}
	parts := strings.Split(p, "/")
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return nil, ErrInvalidPath
		}
	}
	return parts, nil
}

// parseDocPath returns the normalized path, parent collection and id.
func parseDocPath(p string) (path, parent, id string, err error) {
	parts, err := splitPath(p)
	if err != nil {
		return "", "", "", err
	}
	if len(parts)%2 != 0 {
		return "", "", "", ErrInvalidPath
	}
	n := len(parts)
	return strings.Join(parts, "/"), strings.Join(parts[:n-1], "/"), parts[n-1], nil
}

func parseCollectionPath(p string) (string, error) {
	parts, err := splitPath(p)
	if err != nil {
		return "", err
	}
	if len(parts)%2 != 1 {
		return "", ErrInvalidPath
	}
	return strings.Join(parts, "/"), nil
}
