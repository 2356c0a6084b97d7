package biweek

import (
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/apperr"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
)

// Generate lays out the 26 bi-weeks of year starting at anchor, or at
// January 1 when anchor is nil. The result depends only on its arguments.
func Generate(year int, anchor *time.Time, bounds YearBounds) ([]model.BiWeek, error) {
	if !bounds.Contains(year) {
		return nil, apperr.Invalid("year %d is outside the supported range %d-%d", year, bounds.Min, bounds.Max)
	}

	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	first := jan1
	if anchor != nil {
		a := anchor.UTC()
		if !OnGrid(a) {
			return nil, apperr.Period(apperr.RuleMisaligned,
				"anchor %s is not a bi-week start on the 14-day grid", a.Format(time.DateOnly))
		}
		if d := a.Sub(jan1); d <= -Length || d >= Length {
			return nil, apperr.Period(apperr.RuleOutOfRange,
				"anchor %s is more than 13 days away from %s", a.Format(time.DateOnly), jan1.Format(time.DateOnly))
		}
		first = a
	}

	weeks := make([]model.BiWeek, 0, PerYear)
	for i := 0; i < PerYear; i++ {
		start := first.AddDate(0, 0, i*lengthDy)
		seq := 2 * (i + 1)
		weeks = append(weeks, model.BiWeek{
			ID:     ID(year, seq),
			Year:   year,
			Seq:    seq,
			Start:  start,
			End:    start.Add(Length - time.Millisecond),
			Active: true,
		})
	}
	return weeks, nil
}
