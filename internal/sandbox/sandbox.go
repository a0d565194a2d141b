// Package sandbox is a demo gated caller: it simulates site trackers firing
// and asks the policy store for permission immediately before each one.
package sandbox

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ziadkadry99/privacypilot/internal/inventory"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

const logSize = 15

// Level classifies a log line for display.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
)

// LogLine is one sandbox event, newest first in Status.
type LogLine struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// Ping is the outcome of one simulated tracker call.
type Ping struct {
	TrackerID string    `json:"trackerId"`
	Allowed   bool      `json:"allowed"`
	Time      time.Time `json:"time"`
}

// TrackerStatus pairs a tracker with whether it may currently run.
type TrackerStatus struct {
	inventory.Tracker
	Active bool `json:"active"`
}

// Status is a point-in-time view of the sandbox.
type Status struct {
	State    policy.ConsentState `json:"state"`
	Trackers []TrackerStatus     `json:"trackers"`
	LastPing *Ping               `json:"lastPing"`
	Log      []LogLine           `json:"log"`
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithPicker overrides random tracker selection. pick returns an index in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(s *Sandbox) { s.pick = pick }
}

// Sandbox subscribes to the policy store on construction.
type Sandbox struct {
	policy   *policy.Store
	trackers *inventory.Store
	pick     func(n int) int
	now      func() time.Time
	unsub    func()

	mu       sync.Mutex
	lines    []LogLine
	lastPing *Ping
}

// New creates a Sandbox and subscribes it to p. Call Close to unsubscribe.
func New(p *policy.Store, trackers *inventory.Store, opts ...Option) *Sandbox {
	s := &Sandbox{
		policy:   p,
		trackers: trackers,
		pick:     rand.IntN,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsub = p.Subscribe(func(policy.ConsentState) {
		s.append(LevelInfo, "Policy Engine: Broadcast received. Policy updated.")
	})
	return s
}

// Close unsubscribes from the policy store.
func (s *Sandbox) Close() {
	s.unsub()
}

func (s *Sandbox) append(level Level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := LogLine{Time: s.now(), Level: level, Message: msg}
	s.lines = append([]LogLine{line}, s.lines...)
	if len(s.lines) > logSize {
		s.lines = s.lines[:logSize]
	}
}

// Ping picks a tracker and simulates it firing. Returns nil when the
// inventory is empty.
func (s *Sandbox) Ping(ctx context.Context) (*Ping, error) {
	list, err := s.trackers.List(ctx, inventory.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing trackers: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}

	t := list[s.pick(len(list))]
	allowed := s.policy.CheckConsent(t.Category)

	verdict, level := "BLOCKED", LevelWarning
	if allowed {
		verdict, level = "AUTHORIZED", LevelSuccess
	}
	s.append(level, fmt.Sprintf("Enforcement: %s (%s) -> %s", t.Name, t.Category, verdict))

	p := &Ping{TrackerID: t.ID, Allowed: allowed, Time: s.now()}
	s.mu.Lock()
	s.lastPing = p
	s.mu.Unlock()
	return p, nil
}

// Run pings every interval until ctx is done.
func (s *Sandbox) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Ping(ctx); err != nil && ctx.Err() == nil {
				log.Printf("sandbox: ping: %v", err)
			}
		}
	}
}

// Log returns the recent log lines, newest first.
func (s *Sandbox) Log() []LogLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogLine(nil), s.lines...)
}

// Status reports the current policy and each tracker's gate answer.
func (s *Sandbox) Status(ctx context.Context) (*Status, error) {
	list, err := s.trackers.List(ctx, inventory.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing trackers: %w", err)
	}

	st := &Status{
		State:    s.policy.GetSnapshot(),
		Trackers: make([]TrackerStatus, 0, len(list)),
		Log:      s.Log(),
	}
	for _, t := range list {
		st.Trackers = append(st.Trackers, TrackerStatus{Tracker: t, Active: s.policy.CheckConsent(t.Category)})
	}

	s.mu.Lock()
	if s.lastPing != nil {
		p := *s.lastPing
		st.LastPing = &p
	}
	s.mu.Unlock()
	return st, nil
}
