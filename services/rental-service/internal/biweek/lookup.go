package biweek

import (
	"slices"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
)

// FindContaining returns the active bi-week whose [Start, End] contains at.
func FindContaining(weeks []model.BiWeek, at time.Time) (model.BiWeek, bool) {
	for _, w := range weeks {
		if w.Active && w.Contains(at) {
			return w, true
		}
	}
	return model.BiWeek{}, false
}

// Alignment is the outcome of checking a date range against the calendar.
type Alignment struct {
	Aligned        bool
	Covering       []model.BiWeek
	SuggestedStart time.Time
	SuggestedEnd   time.Time
}

// ValidateAlignment compares the day range [start, end] with the active
// bi-weeks overlapping it. The range is aligned when it begins on the first
// covering bi-week's start, ends on the last one's end and the covering
// bi-weeks are contiguous. Otherwise the suggestion spans the covering set.
func ValidateAlignment(start, end time.Time, weeks []model.BiWeek) Alignment {
	start = model.StartOfDay(start)
	end = model.LastInstantOfDay(end)

	var covering []model.BiWeek
	for _, w := range weeks {
		if !w.Active {
			continue
		}
		if !w.Start.After(end) && !start.After(w.End) {
			covering = append(covering, w)
		}
	}
	sortByStart(covering)

	res := Alignment{Covering: covering}
	if len(covering) == 0 {
		return res
	}
	first, last := covering[0], covering[len(covering)-1]
	res.SuggestedStart = first.Start
	res.SuggestedEnd = last.End
	res.Aligned = start.Equal(first.Start) && end.Equal(last.End) && contiguous(covering)
	return res
}

func contiguous(weeks []model.BiWeek) bool {
	for i := 1; i < len(weeks); i++ {
		if !weeks[i].Start.Equal(weeks[i-1].End.Add(time.Millisecond)) {
			return false
		}
	}
	return true
}

func sortByStart(weeks []model.BiWeek) {
	slices.SortFunc(weeks, func(a, b model.BiWeek) int {
		return a.Start.Compare(b.Start)
	})
}
