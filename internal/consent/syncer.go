// Package consent bridges the durable consent record in the document store and
// the in-memory policy store, and records each decision in the audit trail.
package consent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ziadkadry99/privacypilot/internal/audit"
	"github.com/ziadkadry99/privacypilot/internal/docstore"
	"github.com/ziadkadry99/privacypilot/internal/metrics"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

// Write targets reported to the write error handler.
const (
	TargetRecord = "consent_record"
	TargetAudit  = "audit_log"
)

const defaultWriteTimeout = 10 * time.Second

// SyncerConfig identifies whose consent is synced.
type SyncerConfig struct {
	UserID       string
	SiteID       string
	WriteTimeout time.Duration
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithPendingHandler is called whenever the syncer finds no persisted record,
// meaning the user has to be asked.
func WithPendingHandler(fn func()) SyncerOption {
	return func(s *Syncer) { s.onPending = fn }
}

// WithWriteErrorHandler is called when a fire-and-forget write fails.
func WithWriteErrorHandler(fn func(target string, err error)) SyncerOption {
	return func(s *Syncer) { s.onWriteError = fn }
}

// WithMetrics records decisions and write failures.
func WithMetrics(m *metrics.Metrics) SyncerOption {
	return func(s *Syncer) { s.metrics = m }
}

// Syncer keeps a policy.Store in line with the user's persisted consent record.
type Syncer struct {
	policy *policy.Store
	docs   *docstore.Store
	audit  *audit.Store
	cfg    SyncerConfig

	onPending    func()
	onWriteError func(target string, err error)
	metrics      *metrics.Metrics

	mu    sync.Mutex
	phase Phase
	rev   int64 // newest revision applied or written locally

	applyMu  sync.Mutex // pairs a revision check or bump with its policy update
	recordMu sync.Mutex // orders record merges against each other and Reset
	writes   sync.WaitGroup
}

// NewSyncer creates a Syncer in the no_record phase. Call Start to begin
// following the persisted record.
func NewSyncer(p *policy.Store, docs *docstore.Store, auditStore *audit.Store, cfg SyncerConfig, opts ...SyncerOption) *Syncer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	s := &Syncer{
		policy: p,
		docs:   docs,
		audit:  auditStore,
		cfg:    cfg,
		phase:  PhaseNoRecord,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start watches the consent record. The current value is applied before Start
// returns; later changes are applied as they happen. stop ends the watch.
func (s *Syncer) Start(ctx context.Context) (stop func(), err error) {
	cancel, err := s.docs.Watch(ctx, RecordPath(s.cfg.UserID), func(doc *docstore.Document) {
		s.OnRemoteConsentChanged(RecordFromDocument(doc))
	})
	if err != nil {
		return nil, fmt.Errorf("watching consent record: %w", err)
	}
	return cancel, nil
}

// OnRemoteConsentChanged applies a persisted record, or its absence, to the
// policy store.
func (s *Syncer) OnRemoteConsentChanged(rec *Record) {
	if rec != nil {
		s.applyMu.Lock()
		defer s.applyMu.Unlock()

		s.mu.Lock()
		// Records older than the latest local decision are late echoes.
		if rec.Rev < s.rev {
			s.mu.Unlock()
			return
		}
		s.rev = rec.Rev
		wasDecided := s.phase == PhaseDecided
		s.phase = PhaseDecided
		s.mu.Unlock()

		// The echo of a locally applied decision carries no change.
		next := rec.State()
		if wasDecided && s.policy.GetSnapshot() == next {
			return
		}
		s.policy.UpdatePolicy(next)
		return
	}

	s.mu.Lock()
	wasDecided := s.phase == PhaseDecided
	s.phase = PhaseNoRecord
	s.mu.Unlock()

	// Absence after a decision means the record was reset.
	if wasDecided {
		s.policy.UpdatePolicy(policy.DefaultState())
	}
	if s.onPending != nil {
		s.onPending()
	}
}

// PromptShown marks that the widget is asking the user. Only moves
// no_record to pending.
func (s *Syncer) PromptShown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseNoRecord {
		s.phase = PhasePending
	}
}

// Phase returns the current pending-decision phase.
func (s *Syncer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// nextRev returns a revision newer than any seen so far. Revisions follow the
// wall clock in microseconds so records from other writers order sensibly.
func (s *Syncer) nextRev(p Phase) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev := time.Now().UnixMicro()
	if rev <= s.rev {
		rev = s.rev + 1
	}
	s.rev = rev
	if p != "" {
		s.phase = p
	}
	return rev
}

func (s *Syncer) superseded(rev int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rev < s.rev
}

// Apply enforces d immediately and then records it. Enforcement never waits
// on the durable writes.
func (s *Syncer) Apply(ctx context.Context, d Decision, activeTrackerIDs []string) {
	s.applyMu.Lock()
	rev := s.nextRev(PhaseDecided)
	s.policy.UpdatePolicy(d.State)
	s.applyMu.Unlock()

	s.metrics.IncrementDecision(string(d.Kind))
	s.recordDecision(ctx, rev, d.State, d.Description, activeTrackerIDs)
}

// RecordDecision starts two independent writes: a merge into the consent
// record and an audit entry. It returns without waiting. Failures are logged
// and reported, never retried or reverted. A record merge overtaken by a newer
// decision or a reset is skipped; the audit entry is always written.
func (s *Syncer) RecordDecision(ctx context.Context, state policy.ConsentState, changeDescription string, activeTrackerIDs []string) {
	s.recordDecision(ctx, s.nextRev(""), state, changeDescription, activeTrackerIDs)
}

func (s *Syncer) recordDecision(ctx context.Context, rev int64, state policy.ConsentState, changeDescription string, activeTrackerIDs []string) {
	state = state.Normalize()
	detached := context.WithoutCancel(ctx)
	ids := append([]string{}, activeTrackerIDs...)

	s.write(detached, TargetRecord, func(ctx context.Context) error {
		s.recordMu.Lock()
		defer s.recordMu.Unlock()
		if s.superseded(rev) {
			return nil
		}
		return s.docs.Merge(ctx, RecordPath(s.cfg.UserID), map[string]any{
			"necessary":       state.Necessary,
			"functional":      state.Functional,
			"analytics":       state.Analytics,
			"personalization": state.Personalization,
			"marketing":       state.Marketing,
			"userId":          s.cfg.UserID,
			"websiteId":       s.cfg.SiteID,
			"rev":             rev,
			"timestamp":       docstore.ServerTimestamp,
		})
	})

	s.write(detached, TargetAudit, func(ctx context.Context) error {
		_, err := s.audit.Log(ctx, audit.Entry{
			UserID:           s.cfg.UserID,
			SiteID:           s.cfg.SiteID,
			ConsentChange:    changeDescription,
			ActiveTrackerIDs: ids,
		})
		return err
	})
}

func (s *Syncer) write(ctx context.Context, target string, fn func(context.Context) error) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Printf("consent: %s write failed: %v", target, err)
			s.metrics.IncrementWriteFailure(target)
			if s.onWriteError != nil {
				s.onWriteError(target, err)
			}
		}
	}()
}

// Wait blocks until all in-flight writes have finished.
func (s *Syncer) Wait() {
	s.writes.Wait()
}

// Reset deletes the persisted record and returns the policy to its default.
// Record merges still pending are dropped so they cannot restore the record.
// Unlike decision writes, failures are returned to the caller.
func (s *Syncer) Reset(ctx context.Context) error {
	s.recordMu.Lock()
	s.nextRev("")
	err := s.docs.Delete(ctx, RecordPath(s.cfg.UserID))
	s.recordMu.Unlock()
	if err != nil {
		return fmt.Errorf("resetting consent: %w", err)
	}
	// A running watch may already have applied the deletion.
	s.mu.Lock()
	wasDecided := s.phase == PhaseDecided
	s.phase = PhaseNoRecord
	s.mu.Unlock()

	if wasDecided {
		s.policy.UpdatePolicy(policy.DefaultState())
	}
	return nil
}

// Current reads the persisted record. Returns nil when none exists.
func (s *Syncer) Current(ctx context.Context) (*Record, error) {
	doc, err := s.docs.Get(ctx, RecordPath(s.cfg.UserID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading consent record: %w", err)
	}
	return RecordFromDocument(doc), nil
}

// UserID returns the compliance anchor the syncer writes under.
func (s *Syncer) UserID() string {
	return s.cfg.UserID
}
