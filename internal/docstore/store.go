package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/privacypilot/internal/db"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a document store with Firestore-shaped paths, backed by SQLite.
type Store struct {
	db  *db.DB
	now func() time.Time

	// mu serializes read-modify-write merges.
	mu sync.Mutex

	watchMu  sync.Mutex
	watchers map[string]map[uint64]*watcher
	nextID   uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB, opts ...Option) *Store {
	s := &Store{
		db:       database,
		now:      time.Now,
		watchers: make(map[string]map[uint64]*watcher),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the document at path, or ErrNotFound.
func (s *Store) Get(ctx context.Context, path string) (*Document, error) {
	path, _, _, err := parseDocPath(path)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT path, id, data, create_time, update_time FROM documents WHERE path = ?`, path)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", path, err)
	}
	return doc, nil
}

// List returns the documents directly inside the collection.
func (s *Store) List(ctx context.Context, collection string, opts ListOptions) ([]Document, error) {
	collection, err := parseCollectionPath(collection)
	if err != nil {
		return nil, err
	}

	query := "SELECT path, id, data, create_time, update_time FROM documents WHERE parent = ?"
	args := []any{collection}

	dir := "ASC"
	if opts.Descending {
		dir = "DESC"
	}
	switch {
	case opts.OrderBy == "":
		query += " ORDER BY path " + dir
	case opts.OrderBy == "create_time" || opts.OrderBy == "update_time":
		query += fmt.Sprintf(" ORDER BY %s %s, path %s", opts.OrderBy, dir, dir)
	case fieldPattern.MatchString(opts.OrderBy):
		query += fmt.Sprintf(" ORDER BY json_extract(data, ?) %s, path %s", dir, dir)
		args = append(args, "$."+opts.OrderBy)
	default:
		return nil, fmt.Errorf("invalid order field %q", opts.OrderBy)
	}

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	} else if opts.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Count returns the number of documents directly inside the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	collection, err := parseCollectionPath(collection)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE parent = ?", collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return n, nil
}

// Merge upserts data into the document at path. Fields not present in data
// are preserved; ServerTimestamp values are replaced by the current time.
func (s *Store) Merge(ctx context.Context, path string, data map[string]any) error {
	path, parent, id, err := parseDocPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = s.merge(ctx, path, parent, id, data)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notify(path)
	return nil
}

func (s *Store) merge(ctx context.Context, path, parent, id string, data map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning merge of %s: %w", path, err)
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(timeLayout)

	var raw, created string
	existing := map[string]any{}
	err = tx.QueryRowContext(ctx, "SELECT data, create_time FROM documents WHERE path = ?", path).Scan(&raw, &created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = now
	case err != nil:
		return fmt.Errorf("reading %s for merge: %w", path, err)
	default:
		if err := json.Unmarshal([]byte(raw), &existing); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	for k, v := range data {
		existing[k] = resolveValue(v, now)
	}

	encoded, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (path, parent, id, data, create_time, update_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, update_time = excluded.update_time`,
		path, parent, id, string(encoded), created, now,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return tx.Commit()
}

// Add stores data under a freshly generated id inside collection.
func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	collection, err := parseCollectionPath(collection)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	if err := s.Merge(ctx, Doc(collection, id), data); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the document at path. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	path, _, _, err := parseDocPath(path)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	s.notify(path)
	return nil
}

func resolveValue(v any, now string) any {
	switch tv := v.(type) {
	case serverTimestamp:
		return now
	case time.Time:
		return tv.UTC().Format(timeLayout)
	default:
		return v
	}
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*Document, error) {
	var (
		doc              Document
		raw              string
		created, updated string
	)
	if err := sc.Scan(&doc.Path, &doc.ID, &raw, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &doc.Data); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", doc.Path, err)
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	doc.CreateTime, _ = time.Parse(time.RFC3339Nano, created)
	doc.UpdateTime, _ = time.Parse(time.RFC3339Nano, updated)
	return &doc, nil
}
