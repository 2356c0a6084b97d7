// Package period turns period input into the canonical model.Period stored on
// rentals and proposals. Every stored period passes through Resolve.
package period

import (
	"context"
	"strings"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/apperr"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/biweek"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
)

// Input is either BiWeekInput or CustomInput.
type Input interface {
	kind() model.PeriodKind
}

// BiWeekInput names calendar bi-weeks in any order.
type BiWeekInput struct {
	IDs []string
}

// CustomInput is an arbitrary date range. Only the calendar days of Start and
// End are kept.
type CustomInput struct {
	Start time.Time
	End   time.Time
}

func (BiWeekInput) kind() model.PeriodKind { return model.PeriodBiWeek }
func (CustomInput) kind() model.PeriodKind { return model.PeriodCustom }

// FromLegacy maps the old request shape, a date range with optional bi-week
// hints, onto an Input. Non-empty hints win over the dates.
func FromLegacy(start, end time.Time, hints []string) Input {
	var ids []string
	for _, h := range hints {
		if h = strings.TrimSpace(h); h != "" {
			ids = append(ids, h)
		}
	}
	if len(ids) > 0 {
		return BiWeekInput{IDs: ids}
	}
	return CustomInput{Start: start, End: end}
}

// InputOf returns the input that resolves back to p.
func InputOf(p model.Period) Input {
	if p.Kind == model.PeriodBiWeek {
		return BiWeekInput{IDs: append([]string(nil), p.BiWeekIDs...)}
	}
	return CustomInput{Start: p.Start, End: p.End}
}

// BiWeekSource is the calendar lookup the resolver needs.
type BiWeekSource interface {
	GetBiWeeks(ctx context.Context, tenantID string, ids []string) ([]model.BiWeek, error)
}

type Resolver struct {
	source BiWeekSource
}

func NewResolver(source BiWeekSource) *Resolver {
	return &Resolver{source: source}
}

func (r *Resolver) Resolve(ctx context.Context, tenantID string, in Input) (model.Period, error) {
	switch v := in.(type) {
	case BiWeekInput:
		return r.resolveBiWeeks(ctx, tenantID, v.IDs)
	case CustomInput:
		return resolveCustom(v)
	case nil:
		return model.Period{}, apperr.Period(apperr.RuleEmpty, "no period given")
	default:
		return model.Period{}, apperr.Period(apperr.RuleKindMismatch, "unsupported period input %T", in)
	}
}

func resolveCustom(in CustomInput) (model.Period, error) {
	if in.Start.IsZero() || in.End.IsZero() {
		return model.Period{}, apperr.Period(apperr.RuleEmpty, "custom period needs both start and end")
	}
	if !in.End.After(in.Start) {
		return model.Period{}, apperr.Period(apperr.RuleInvertedDates,
			"end %s is not after start %s", in.End.UTC().Format(time.RFC3339), in.Start.UTC().Format(time.RFC3339))
	}
	return model.Period{
		Kind:  model.PeriodCustom,
		Start: model.StartOfDay(in.Start),
		End:   model.LastInstantOfDay(in.End),
	}, nil
}

func (r *Resolver) resolveBiWeeks(ctx context.Context, tenantID string, ids []string) (model.Period, error) {
	if len(ids) == 0 {
		return model.Period{}, apperr.Period(apperr.RuleEmpty, "bi-week period needs at least one bi-week id")
	}
	for _, id := range ids {
		if _, _, err := biweek.ParseID(id); err != nil {
			return model.Period{}, apperr.Invalid("%v", err)
		}
	}

	found, err := r.source.GetBiWeeks(ctx, tenantID, ids)
	if err != nil {
		return model.Period{}, err
	}
	report := biweek.ValidateSequence(ids, found)
	switch {
	case len(report.Missing) > 0:
		return model.Period{}, apperr.NotFound("bi-weeks %s", strings.Join(report.Missing, ", "))
	case len(report.Duplicates) > 0:
		return model.Period{}, apperr.Period(apperr.RuleOverlap, "bi-weeks listed more than once: %s", strings.Join(report.Duplicates, ", "))
	}
	for _, w := range report.Ordered {
		if !w.Active {
			return model.Period{}, apperr.Period(apperr.RuleInactive, "bi-week %s is not active", w.ID)
		}
	}
	if len(report.Gaps) > 0 {
		g := report.Gaps[0]
		if g.Kind == biweek.GapOverlap {
			return model.Period{}, apperr.Period(apperr.RuleOverlap, "bi-weeks %s and %s overlap", g.After, g.Before)
		}
		return model.Period{}, apperr.Period(apperr.RuleGap, "bi-weeks %s and %s leave %s to %s uncovered",
			g.After, g.Before, g.From.Format(time.DateOnly), g.To.Format(time.DateOnly))
	}

	ordered := make([]string, len(report.Ordered))
	for i, w := range report.Ordered {
		ordered[i] = w.ID
	}
	return model.Period{
		Kind:      model.PeriodBiWeek,
		Start:     report.Ordered[0].Start,
		End:       report.Ordered[len(report.Ordered)-1].End,
		BiWeekIDs: ordered,
	}, nil
}

// Check validates an already-resolved period without consulting the calendar.
func Check(p model.Period) error {
	switch p.Kind {
	case model.PeriodCustom:
		if len(p.BiWeekIDs) != 0 {
			return apperr.Period(apperr.RuleKindMismatch, "custom period must not list bi-weeks")
		}
	case model.PeriodBiWeek:
		if len(p.BiWeekIDs) == 0 {
			return apperr.Period(apperr.RuleEmpty, "bi-week period must list its bi-weeks")
		}
		if err := checkOrdered(p.BiWeekIDs); err != nil {
			return err
		}
	default:
		return apperr.Period(apperr.RuleKindMismatch, "unknown period kind %q", p.Kind)
	}
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return apperr.Period(apperr.RuleInvertedDates, "period end precedes its start")
	}
	if !p.Start.Equal(model.StartOfDay(p.Start)) || !p.End.Equal(model.LastInstantOfDay(p.End)) {
		return apperr.Period(apperr.RuleMisaligned, "period bounds must cover whole days")
	}
	return nil
}

// checkOrdered requires well-formed ids in strictly ascending calendar order,
// the shape Resolve produces.
func checkOrdered(ids []string) error {
	prevYear, prevSeq := 0, 0
	for i, id := range ids {
		year, seq, err := biweek.ParseID(id)
		if err != nil {
			return apperr.Invalid("%s", err.Error())
		}
		if i > 0 {
			switch {
			case year == prevYear && seq == prevSeq:
				return apperr.Period(apperr.RuleOverlap, "bi-week %s listed more than once", id)
			case year < prevYear || (year == prevYear && seq < prevSeq):
				return apperr.Period(apperr.RuleKindMismatch, "bi-week %s listed after %s", id, ids[i-1])
			}
		}
		prevYear, prevSeq = year, seq
	}
	return nil
}
