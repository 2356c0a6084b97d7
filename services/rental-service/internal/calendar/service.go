// Package calendar persists the per-tenant bi-week calendar and answers
// lookups against it.
package calendar

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/billboardrent/libs/otel"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/apperr"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/biweek"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Service struct {
	repo   storage.CalendarRepository
	logger *slog.Logger
	bounds biweek.YearBounds
	tracer trace.Tracer
}

func NewService(repo storage.CalendarRepository, logger *slog.Logger, bounds biweek.YearBounds) *Service {
	if bounds.Min == 0 && bounds.Max == 0 {
		bounds = biweek.DefaultYearBounds
	}
	return &Service{
		repo:   repo,
		logger: logger.With("component", "calendar"),
		bounds: bounds,
		tracer: otelx.Tracer("calendar"),
	}
}

// GenerateYear computes the year's bi-weeks and stores them for tenantID.
// Existing ids are skipped or overwritten according to mode; overwriting
// keeps their active flag.
func (s *Service) GenerateYear(ctx context.Context, tenantID string, year int, anchor *time.Time, mode storage.SaveMode) ([]model.BiWeek, storage.SaveResult, error) {
	ctx, span := s.tracer.Start(ctx, "calendar.generate", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int("calendar.year", year),
	))
	defer span.End()

	if err := requireTenant(tenantID); err != nil {
		return nil, storage.SaveResult{}, err
	}
	weeks, err := biweek.Generate(year, anchor, s.bounds)
	if err != nil {
		return nil, storage.SaveResult{}, err
	}
	for i := range weeks {
		weeks[i].TenantID = tenantID
	}
	if err := s.checkNeighbours(ctx, tenantID, year, weeks); err != nil {
		span.RecordError(err)
		return nil, storage.SaveResult{}, err
	}
	res, err := s.repo.SaveBiWeeks(ctx, tenantID, weeks, mode)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("save bi-weeks failed", "tenant_id", tenantID, "year", year, "err", err)
		return nil, storage.SaveResult{}, err
	}
	s.logger.Info("calendar generated", "tenant_id", tenantID, "year", year,
		"created", res.Created, "updated", res.Updated, "skipped", res.Skipped)
	return weeks, res, nil
}

// checkNeighbours rejects a year whose span reaches into bi-weeks already
// stored for another year. Inactive weeks count since they can be reactivated.
func (s *Service) checkNeighbours(ctx context.Context, tenantID string, year int, weeks []model.BiWeek) error {
	stored, err := s.repo.ListBiWeeksOverlapping(ctx, tenantID, weeks[0].Start, weeks[len(weeks)-1].End)
	if err != nil {
		return err
	}
	for _, w := range stored {
		if w.Year != year {
			return apperr.Period(apperr.RuleOverlap, "year %d would overlap bi-week %s (%s to %s)",
				year, w.ID, w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
		}
	}
	return nil
}

// FindContaining returns the active bi-week containing at.
func (s *Service) FindContaining(ctx context.Context, tenantID string, at time.Time) (model.BiWeek, error) {
	if err := requireTenant(tenantID); err != nil {
		return model.BiWeek{}, err
	}
	weeks, err := s.repo.ListBiWeeksOverlapping(ctx, tenantID, at, at)
	if err != nil {
		return model.BiWeek{}, err
	}
	w, ok := biweek.FindContaining(weeks, at)
	if !ok {
		return model.BiWeek{}, apperr.NotFound("no active bi-week contains %s", at.UTC().Format(time.DateOnly))
	}
	return w, nil
}

func (s *Service) ValidateAlignment(ctx context.Context, tenantID string, start, end time.Time) (biweek.Alignment, error) {
	if err := requireTenant(tenantID); err != nil {
		return biweek.Alignment{}, err
	}
	if end.Before(start) {
		return biweek.Alignment{}, apperr.Period(apperr.RuleInvertedDates, "end %s precedes start %s",
			end.UTC().Format(time.DateOnly), start.UTC().Format(time.DateOnly))
	}
	weeks, err := s.repo.ListBiWeeksOverlapping(ctx, tenantID, model.StartOfDay(start), model.LastInstantOfDay(end))
	if err != nil {
		return biweek.Alignment{}, err
	}
	return biweek.ValidateAlignment(start, end, weeks), nil
}

func (s *Service) ValidateSequence(ctx context.Context, tenantID string, ids []string) (biweek.SequenceReport, error) {
	if err := requireTenant(tenantID); err != nil {
		return biweek.SequenceReport{}, err
	}
	found, err := s.GetBiWeeks(ctx, tenantID, ids)
	if err != nil {
		return biweek.SequenceReport{}, err
	}
	return biweek.ValidateSequence(ids, found), nil
}

// GetBiWeeks makes the service usable as the period resolver's source.
func (s *Service) GetBiWeeks(ctx context.Context, tenantID string, ids []string) ([]model.BiWeek, error) {
	return s.repo.GetBiWeeks(ctx, tenantID, ids)
}

func (s *Service) SetActive(ctx context.Context, tenantID, id string, active bool) (model.BiWeek, error) {
	if err := requireTenant(tenantID); err != nil {
		return model.BiWeek{}, err
	}
	if _, _, err := biweek.ParseID(id); err != nil {
		return model.BiWeek{}, apperr.Invalid("%v", err)
	}
	w, err := s.repo.SetBiWeekActive(ctx, tenantID, id, active)
	if errors.Is(err, storage.ErrNotFound) {
		return model.BiWeek{}, apperr.NotFound("bi-week %s", id)
	}
	if err != nil {
		return model.BiWeek{}, err
	}
	s.logger.Info("bi-week activity changed", "tenant_id", tenantID, "biweek_id", id, "active", active)
	return w, nil
}

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return apperr.Invalid("tenant id is required")
	}
	return nil
}
