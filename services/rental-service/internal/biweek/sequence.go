package biweek

import (
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
)

type GapKind string

const (
	GapMissingDays GapKind = "gap"
	GapOverlap     GapKind = "overlap"
)

// Gap describes two neighbouring bi-weeks (by start date) that do not touch.
// For GapMissingDays, From and To bound the uncovered days.
type Gap struct {
	After  string
	Before string
	Kind   GapKind
	From   time.Time
	To     time.Time
}

type SequenceReport struct {
	Valid      bool
	Ordered    []model.BiWeek
	Gaps       []Gap
	Missing    []string
	Duplicates []string
}

// ValidateSequence checks that the requested ids, once resolved to found and
// ordered by start date, form one gap-free run. Requested ids absent from
// found are reported as missing; ids requested twice as duplicates.
func ValidateSequence(requested []string, found []model.BiWeek) SequenceReport {
	byID := make(map[string]model.BiWeek, len(found))
	for _, w := range found {
		byID[w.ID] = w
	}

	var report SequenceReport
	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if seen[id] {
			report.Duplicates = append(report.Duplicates, id)
			continue
		}
		seen[id] = true
		w, ok := byID[id]
		if !ok {
			report.Missing = append(report.Missing, id)
			continue
		}
		report.Ordered = append(report.Ordered, w)
	}
	sortByStart(report.Ordered)

	for i := 1; i < len(report.Ordered); i++ {
		prev, next := report.Ordered[i-1], report.Ordered[i]
		expected := prev.End.Add(time.Millisecond)
		switch {
		case next.Start.Equal(expected):
			continue
		case next.Start.Before(expected):
			report.Gaps = append(report.Gaps, Gap{After: prev.ID, Before: next.ID, Kind: GapOverlap})
		default:
			report.Gaps = append(report.Gaps, Gap{
				After:  prev.ID,
				Before: next.ID,
				Kind:   GapMissingDays,
				From:   expected,
				To:     next.Start.Add(-time.Millisecond),
			})
		}
	}

	report.Valid = len(requested) > 0 &&
		len(report.Missing) == 0 &&
		len(report.Duplicates) == 0 &&
		len(report.Gaps) == 0
	return report
}
