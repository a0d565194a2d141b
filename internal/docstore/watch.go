package docstore

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

// WatchFunc receives the latest value of a watched document, or nil when the
// document does not exist.
type WatchFunc func(doc *Document)

type watcher struct {
	fn        WatchFunc
	mu        sync.Mutex // serializes deliveries
	cancelled atomic.Bool
}

// Watch delivers the current value of the document at path and then every
// change made through this Store. Each delivery carries the latest stored
// value, read at delivery time, so a watcher never observes an older value
// after a newer one. The returned cancel func is idempotent and may be called
// from inside fn.
func (s *Store) Watch(ctx context.Context, path string, fn WatchFunc) (cancel func(), err error) {
	path, _, _, err = parseDocPath(path)
	if err != nil {
		return nil, err
	}

	w := &watcher{fn: fn}

	s.watchMu.Lock()
	s.nextID++
	id := s.nextID
	if s.watchers[path] == nil {
		s.watchers[path] = make(map[uint64]*watcher)
	}
	s.watchers[path][id] = w
	s.watchMu.Unlock()

	cancel = func() {
		s.watchMu.Lock()
		delete(s.watchers[path], id)
		if len(s.watchers[path]) == 0 {
			delete(s.watchers, path)
		}
		s.watchMu.Unlock()
		w.cancelled.Store(true)
	}

	if err := s.deliver(ctx, path, w); err != nil {
		cancel()
		return nil, err
	}
	return cancel, nil
}

func (s *Store) notify(path string) {
	s.watchMu.Lock()
	targets := make([]*watcher, 0, len(s.watchers[path]))
	for _, w := range s.watchers[path] {
		targets = append(targets, w)
	}
	s.watchMu.Unlock()

	for _, w := range targets {
		if err := s.deliver(context.Background(), path, w); err != nil {
			log.Printf("docstore: watch delivery for %s: %v", path, err)
		}
	}
}

func (s *Store) deliver(ctx context.Context, path string, w *watcher) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled.Load() {
		return nil
	}

	doc, err := s.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		doc, err = nil, nil
	}
	if err != nil {
		return err
	}
	w.fn(doc)
	return nil
}
