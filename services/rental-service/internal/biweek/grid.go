// Package biweek holds the pure bi-week calendar algorithms: generation of the
// 26 fourteen-day periods of a year, containment lookup, range alignment and
// sequence validation. Nothing here touches a store.
package biweek

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
)

const (
	PerYear  = 26
	Length   = 14 * 24 * time.Hour
	lengthDy = 14
)

// GridOrigin is a Monday on the global 14-day grid every anchor must align to.
var GridOrigin = time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC)

// YearBounds is the inclusive range of years the calendar may be generated for.
type YearBounds struct {
	Min int
	Max int
}

var DefaultYearBounds = YearBounds{Min: 2020, Max: 2100}

func (b YearBounds) Contains(year int) bool {
	return year >= b.Min && year <= b.Max
}

// OnGrid reports whether t is a UTC midnight a whole number of bi-weeks away
// from GridOrigin.
func OnGrid(t time.Time) bool {
	if !t.Equal(model.StartOfDay(t)) {
		return false
	}
	return gridOffsetDays(t) == 0
}

// AnchorFor returns the grid start on or before January 1 of year, which is
// at most 13 days earlier.
func AnchorFor(year int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return jan1.AddDate(0, 0, -gridOffsetDays(jan1))
}

func gridOffsetDays(t time.Time) int {
	days := int(model.StartOfDay(t).Sub(GridOrigin) / (24 * time.Hour))
	return ((days % lengthDy) + lengthDy) % lengthDy
}

func ID(year, seq int) string {
	return fmt.Sprintf("%d-%02d", year, seq)
}

// ParseID splits "2026-14" into its year and even sequence number.
func ParseID(id string) (int, int, error) {
	yearPart, seqPart, ok := strings.Cut(strings.TrimSpace(id), "-")
	if !ok {
		return 0, 0, fmt.Errorf("bi-week id %q must look like YYYY-NN", id)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || len(yearPart) != 4 {
		return 0, 0, fmt.Errorf("bi-week id %q has an invalid year", id)
	}
	seq, err := strconv.Atoi(seqPart)
	if err != nil || seq < 2 || seq > 2*PerYear || seq%2 != 0 {
		return 0, 0, fmt.Errorf("bi-week id %q must have an even sequence number between 02 and 52", id)
	}
	return year, seq, nil
}
