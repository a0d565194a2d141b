package docstore

import (
	"context"
	"testing"
)

func TestWatchDeliversInitialAndChanges(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	path := "users/u1/consentRecords/current"

	var seen []*Document
	cancel, err := store.Watch(ctx, path, func(doc *Document) { seen = append(seen, doc) })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer cancel()

	if len(seen) != 1 || seen[0] != nil {
		t.Fatalf("initial delivery = %v, want [nil]", seen)
	}

	if err := store.Merge(ctx, path, map[string]any{"analytics": true}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(seen) != 2 || !seen[1].Bool("analytics") {
		t.Fatalf("expected delivery with analytics=true, got %v", seen)
	}

	if err := store.Delete(ctx, path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(seen) != 3 || seen[2] != nil {
		t.Fatalf("expected nil delivery after delete, got %v", seen)
	}
}

func TestWatchIgnoresOtherPaths(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	calls := 0
	cancel, err := store.Watch(ctx, "users/u1/consentRecords/current", func(*Document) { calls++ })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer cancel()

	if err := store.Merge(ctx, "users/u2/consentRecords/current", map[string]any{"x": 1}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (initial only)", calls)
	}
}

func TestWatchCancelFromCallback(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	path := "cookies/a"

	calls := 0
	var cancel func()
	cancel, err := store.Watch(ctx, path, func(doc *Document) {
		calls++
		if doc != nil {
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.Merge(ctx, path, map[string]any{"n": i}); err != nil {
			t.Fatalf("Merge: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	cancel()
}

func TestWatchInvalidPath(t *testing.T) {
	store := setupStore(t)
	if _, err := store.Watch(context.Background(), "cookies", func(*Document) {}); err == nil {
		t.Error("expected error for collection path")
	}
}
