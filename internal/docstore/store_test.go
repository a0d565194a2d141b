package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/privacypilot/internal/db"
)

func setupStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database, opts...)
}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	cur := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestMergeCreatesAndPreservesFields(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	path := Doc("users", "u1", "consentRecords", "current")

	if err := store.Merge(ctx, path, map[string]any{"userId": "u1", "analytics": true}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := store.Merge(ctx, path, map[string]any{"analytics": false, "marketing": true}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	doc, err := store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.String("userId") != "u1" {
		t.Errorf("userId = %q, want u1 (merge must not drop fields)", doc.String("userId"))
	}
	if doc.Bool("analytics") {
		t.Error("analytics should have been overwritten to false")
	}
	if !doc.Bool("marketing") {
		t.Error("marketing should be true")
	}
	if doc.ID != "current" {
		t.Errorf("ID = %q, want current", doc.ID)
	}
}

func TestServerTimestamp(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	store := setupStore(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	if err := store.Merge(ctx, "cookies/a", map[string]any{"timestamp": ServerTimestamp}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	doc, err := store.Get(ctx, "cookies/a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := doc.Time("timestamp"); !got.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", got, fixed)
	}
	if !doc.UpdateTime.Equal(fixed) {
		t.Errorf("UpdateTime = %v, want %v", doc.UpdateTime, fixed)
	}
}

func TestGetNotFound(t *testing.T) {
	store := setupStore(t)
	_, err := store.Get(context.Background(), "cookies/missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInvalidPaths(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "cookies"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Get(collection path) err = %v, want ErrInvalidPath", err)
	}
	if err := store.Merge(ctx, "users//x", nil); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Merge(empty segment) err = %v, want ErrInvalidPath", err)
	}
	if _, err := store.List(ctx, "cookies/a", ListOptions{}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("List(document path) err = %v, want ErrInvalidPath", err)
	}
}

func TestListOrderingAndPaging(t *testing.T) {
	store := setupStore(t, WithClock(stepClock()))
	ctx := context.Background()
	col := Collection("users", "u1", "privacyLogs")

	for _, id := range []string{"b", "c", "a"} {
		if err := store.Merge(ctx, Doc(col, id), map[string]any{"timestamp": ServerTimestamp}); err != nil {
			t.Fatalf("Merge: %v", err)
		}
	}
	// A document in a sibling collection must not be listed.
	if err := store.Merge(ctx, "users/u2/privacyLogs/z", map[string]any{}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	docs, err := store.List(ctx, col, ListOptions{OrderBy: "timestamp", Descending: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a", "c", "b"}
	if len(docs) != len(want) {
		t.Fatalf("got %d docs, want %d", len(docs), len(want))
	}
	for i, id := range want {
		if docs[i].ID != id {
			t.Errorf("docs[%d].ID = %q, want %q", i, docs[i].ID, id)
		}
	}

	page, err := store.List(ctx, col, ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 1 || page[0].ID != "b" {
		t.Errorf("page = %+v, want [b]", page)
	}

	if _, err := store.List(ctx, col, ListOptions{OrderBy: "x; DROP TABLE documents"}); err == nil {
		t.Error("expected error for invalid order field")
	}

	n, err := store.Count(ctx, col)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestAddGeneratesID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, "cookies", map[string]any{"name": "_ga"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}
	doc, err := store.Get(ctx, Doc("cookies", id))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.String("name") != "_ga" {
		t.Errorf("name = %q, want _ga", doc.String("name"))
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Merge(ctx, "cookies/a", map[string]any{"name": "x"}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Delete(ctx, "cookies/a"); err != nil {
			t.Fatalf("Delete #%d: %v", i+1, err)
		}
	}
	if _, err := store.Get(ctx, "cookies/a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStringsField(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Merge(ctx, "logs/a", map[string]any{"ids": []string{"x", "y"}}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	doc, err := store.Get(ctx, "logs/a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got := doc.Strings("ids")
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("Strings = %v, want [x y]", got)
	}
	if doc.Strings("missing") != nil {
		t.Error("missing field should yield nil")
	}
}

func TestIntField(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Merge(ctx, "logs/a", map[string]any{"n": 3, "s": "x"}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	doc, err := store.Get(ctx, "logs/a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := doc.Int("n"); got != 3 {
		t.Errorf("Int(n) = %d, want 3", got)
	}
	if got := doc.Int("s"); got != 0 {
		t.Errorf("Int(s) = %d, want 0", got)
	}
}
