// Package certificate assembles the exportable compliance certificate.
package certificate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/privacypilot/internal/audit"
	"github.com/ziadkadry99/privacypilot/internal/consent"
	"github.com/ziadkadry99/privacypilot/internal/inventory"
)

// ErrNoActiveConsent is returned when there is no decision to certify.
var ErrNoActiveConsent = errors.New("no active consent record; set preferences first")

const (
	Subject        = "Data Privacy & Consent Compliance Certificate"
	StatusVerified = "VERIFIED"
)

// Certificate is the exported compliance snapshot.
type Certificate struct {
	CertificateID             string         `json:"certificateId"`
	ComplianceAnchor          string         `json:"complianceAnchor"`
	GeneratedAt               time.Time      `json:"generatedAt"`
	Subject                   string         `json:"subject"`
	Status                    string         `json:"status"`
	CurrentConsent            CurrentConsent `json:"currentConsent"`
	TrackingInventorySnapshot []TrackerRef   `json:"trackingInventorySnapshot"`
	AuditTrail                []AuditRef     `json:"auditTrail"`
}

// CurrentConsent mirrors the persisted record at generation time.
type CurrentConsent struct {
	Necessary       bool      `json:"necessary"`
	Functional      bool      `json:"functional"`
	Analytics       bool      `json:"analytics"`
	Personalization bool      `json:"personalization"`
	Marketing       bool      `json:"marketing"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

type TrackerRef struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Domain   string `json:"domain"`
}

type AuditRef struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	ID        string    `json:"id"`
}

// RecordReader reads the persisted consent record; nil means none.
type RecordReader interface {
	Current(ctx context.Context) (*consent.Record, error)
}

// TrackerLister lists the tracker inventory.
type TrackerLister interface {
	List(ctx context.Context, f inventory.ListFilter) ([]inventory.Tracker, error)
}

// AuditReader queries the audit trail.
type AuditReader interface {
	Query(ctx context.Context, f audit.QueryFilter) ([]audit.Entry, error)
}

// Generator builds certificates for one compliance anchor.
type Generator struct {
	anchor   string
	records  RecordReader
	trackers TrackerLister
	audit    AuditReader
	now      func() time.Time
}

// NewGenerator creates a Generator for the given anchor (user id).
func NewGenerator(anchor string, records RecordReader, trackers TrackerLister, auditReader AuditReader) *Generator {
	return &Generator{
		anchor:   anchor,
		records:  records,
		trackers: trackers,
		audit:    auditReader,
		now:      time.Now,
	}
}

// Anchor returns the compliance anchor certificates are issued for.
func (g *Generator) Anchor() string { return g.anchor }

// Build gathers the record, inventory and audit trail concurrently.
func (g *Generator) Build(ctx context.Context) (*Certificate, error) {
	var (
		rec      *consent.Record
		trackers []inventory.Tracker
		entries  []audit.Entry
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		rec, err = g.records.Current(ctx)
		return err
	})
	eg.Go(func() error {
		var err error
		trackers, err = g.trackers.List(ctx, inventory.ListFilter{})
		return err
	})
	eg.Go(func() error {
		var err error
		entries, err = g.audit.Query(ctx, audit.QueryFilter{UserID: g.anchor})
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("gathering certificate data: %w", err)
	}
	if rec == nil {
		return nil, ErrNoActiveConsent
	}

	cert := &Certificate{
		CertificateID:    newCertificateID(),
		ComplianceAnchor: g.anchor,
		GeneratedAt:      g.now().UTC(),
		Subject:          Subject,
		Status:           StatusVerified,
		CurrentConsent: CurrentConsent{
			Necessary:       rec.Necessary,
			Functional:      rec.Functional,
			Analytics:       rec.Analytics,
			Personalization: rec.Personalization,
			Marketing:       rec.Marketing,
			LastUpdated:     rec.Timestamp,
		},
		TrackingInventorySnapshot: make([]TrackerRef, 0, len(trackers)),
		AuditTrail:                make([]AuditRef, 0, len(entries)),
	}
	for _, t := range trackers {
		cert.TrackingInventorySnapshot = append(cert.TrackingInventorySnapshot, TrackerRef{
			Name:     t.Name,
			Category: string(t.Category),
			Domain:   t.Domain,
		})
	}
	for _, e := range entries {
		cert.AuditTrail = append(cert.AuditTrail, AuditRef{
			Timestamp: e.Timestamp,
			Event:     e.ConsentChange,
			ID:        e.ID,
		})
	}
	return cert, nil
}

// Write encodes cert as indented JSON.
func Write(w io.Writer, cert *Certificate) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cert)
}

// Filename is the download name for an anchor's certificate.
func Filename(anchor string) string {
	if len(anchor) > 8 {
		anchor = anchor[:8]
	}
	return "privacypilot-certificate-" + anchor + ".json"
}

func newCertificateID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "CERT-" + strings.ToUpper(hex[:8])
}
