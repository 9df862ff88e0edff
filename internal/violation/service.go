// Package violation validates incoming reports against the statute registry,
// persists them, and answers queries and aggregations over stored reports.
package violation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Twixes/mcpolice/internal/model"
	"github.com/Twixes/mcpolice/internal/statute"
	"github.com/Twixes/mcpolice/internal/store"
	"github.com/google/uuid"
)

// DefaultLimit is the page size used when a query names none
const DefaultLimit = 50

// DefaultDetector is recorded when a report does not name its detector
const DefaultDetector = "unknown-agent"

// Observer receives service events; metrics implement it
type Observer interface {
	Reported(rec model.ViolationReport)
	Rejected(reason string)
	Cleared(n int)
}

// SubmitRequest is a validated-at-the-boundary report
type SubmitRequest struct {
	Statute                 string
	ResponsibleOrganization string
	OffendingContent        string
	DetectedBy              string // Optional
}

// Service is the violation service
type Service struct {
	registry        *statute.Registry
	store           *store.Violations
	logger          *slog.Logger
	observer        Observer
	protocolVersion string
	now             func() time.Time
	newID           func() string
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithObserver registers an event observer
func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// WithProtocolVersion sets metadata.protocolVersion on new records
func WithProtocolVersion(v string) Option {
	return func(s *Service) {
		s.protocolVersion = v
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator replaces the random id generator
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService creates a service over an explicit registry and store
func NewService(registry *statute.Registry, st *store.Violations, opts ...Option) *Service {
	s := &Service{
		registry:        registry,
		store:           st,
		logger:          slog.Default(),
		protocolVersion: "2024-11-05",
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates a report, snapshots the statute metadata and persists the
// record. Nothing is written when validation fails.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (model.ViolationReport, error) {
	var missing []string
	if strings.TrimSpace(req.Statute) == "" {
		missing = append(missing, "statute")
	}
	if strings.TrimSpace(req.ResponsibleOrganization) == "" {
		missing = append(missing, "responsible_organization")
	}
	if strings.TrimSpace(req.OffendingContent) == "" {
		missing = append(missing, "offending_content")
	}
	if len(missing) > 0 {
		s.reject("validation")
		return model.ViolationReport{}, fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}

	info, ok := s.registry.Lookup(req.Statute)
	if !ok {
		s.reject("unknown_statute")
		return model.ViolationReport{}, fmt.Errorf("%w: %s", ErrUnknownStatute, req.Statute)
	}

	detectedBy := strings.TrimSpace(req.DetectedBy)
	if detectedBy == "" {
		detectedBy = DefaultDetector
	}

	// timestamp and reportedAt are read separately and may differ slightly
	rec := model.ViolationReport{
		ID:                      s.newID(),
		Timestamp:               s.now().UTC(),
		Statute:                 req.Statute,
		ResponsibleOrganization: req.ResponsibleOrganization,
		OffendingContent:        req.OffendingContent,
		Violation: model.ViolationDetail{
			Description:  info.Description,
			Severity:     info.Severity,
			Jurisdiction: info.Jurisdiction,
		},
		Metadata: model.ReportMetadata{
			ReportedAt:      s.now().UTC(),
			ProtocolVersion: s.protocolVersion,
			DetectedBy:      detectedBy,
		},
	}

	if err := s.store.Append(ctx, rec); err != nil {
		s.logger.Error("Failed to persist violation", "id", rec.ID, "error", err)
		return model.ViolationReport{}, fmt.Errorf("%w: %w", ErrStore, err)
	}

	s.logger.Info("Violation reported",
		"id", rec.ID,
		"statute", rec.Statute,
		"organization", rec.ResponsibleOrganization,
		"severity", rec.Violation.Severity)
	if s.observer != nil {
		s.observer.Reported(rec)
	}
	return rec, nil
}

// Get returns one violation by id
func (s *Service) Get(ctx context.Context, id string) (model.ViolationReport, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.ViolationReport{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		s.logger.Error("Failed to read violation", "id", id, "error", err)
		return model.ViolationReport{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return rec, nil
}

// Query filters all stored violations and returns one page, newest first
func (s *Service) Query(ctx context.Context, filter model.Filter, page model.Pagination) (model.Page, error) {
	page = normalize(page)

	all, err := s.all(ctx)
	if err != nil {
		return model.Page{}, err
	}

	matched := make([]model.ViolationReport, 0, len(all))
	for _, rec := range all {
		if filter.Matches(rec) {
			matched = append(matched, rec)
		}
	}

	// Clamp before adding so huge offsets cannot overflow
	total := len(matched)
	start := min(page.Offset, total)
	end := start + min(page.Limit, total-start)

	return model.Page{
		Violations: matched[start:end],
		Total:      total,
		HasMore:    end < total,
	}, nil
}

// Stats aggregates every stored violation in a single pass
func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	all, err := s.all(ctx)
	if err != nil {
		return model.Stats{}, err
	}

	stats := model.NewStats()
	cutoff := s.now().Add(-24 * time.Hour)

	for _, rec := range all {
		stats.Total++
		stats.BySeverity[string(rec.Violation.Severity)]++
		stats.ByOrganization[rec.ResponsibleOrganization]++
		for _, j := range rec.Violation.Jurisdiction {
			stats.ByJurisdiction[j]++
		}
		if rec.Timestamp.After(cutoff) {
			stats.Recent24h++
		}
	}

	return stats, nil
}

// Clear removes every violation and returns how many were indexed
func (s *Service) Clear(ctx context.Context) (int, error) {
	n, err := s.store.ClearAll(ctx)
	if err != nil {
		s.logger.Error("Failed to clear violations", "error", err)
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}

	s.logger.Warn("All violations cleared", "count", n)
	if s.observer != nil {
		s.observer.Cleared(n)
	}
	return n, nil
}

// Statute looks up one registry entry by exact article name
func (s *Service) Statute(article string) (model.StatuteInfo, bool) {
	return s.registry.Lookup(article)
}

// Statutes lists the registry in definition order
func (s *Service) Statutes() []model.StatuteInfo {
	return s.registry.List()
}

func (s *Service) all(ctx context.Context) ([]model.ViolationReport, error) {
	all, err := s.store.All(ctx)
	if err != nil {
		s.logger.Error("Failed to load violations", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return all, nil
}

func (s *Service) reject(reason string) {
	if s.observer != nil {
		s.observer.Rejected(reason)
	}
}

func normalize(p model.Pagination) model.Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
