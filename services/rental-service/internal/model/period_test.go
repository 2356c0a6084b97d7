package model

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodOverlapsClosed(t *testing.T) {
	p := Period{Kind: PeriodCustom, Start: day(2026, 1, 1), End: LastInstantOfDay(day(2026, 1, 10))}

	if !p.Overlaps(day(2026, 1, 10), LastInstantOfDay(day(2026, 1, 20))) {
		t.Fatal("expected touching endpoint to overlap")
	}
	if p.Overlaps(day(2026, 1, 11), LastInstantOfDay(day(2026, 1, 20))) {
		t.Fatal("expected adjacent day not to overlap")
	}
}

func TestPeriodDaysAndContains(t *testing.T) {
	p := Period{Kind: PeriodCustom, Start: day(2025, 12, 29), End: LastInstantOfDay(day(2026, 1, 11))}
	if p.Days() != 14 {
		t.Fatalf("expected 14 days, got %d", p.Days())
	}
	if !p.Contains(time.Date(2026, 1, 11, 23, 0, 0, 0, time.UTC)) {
		t.Fatal("expected last evening to be contained")
	}
	if p.Contains(day(2026, 1, 12)) {
		t.Fatal("expected next day not to be contained")
	}
}

func TestBillboardBookable(t *testing.T) {
	if !(Billboard{}).Bookable() {
		t.Fatal("expected free billboard to be bookable")
	}
	if (Billboard{MaintenanceMode: true}).Bookable() {
		t.Fatal("expected billboard under maintenance not to be bookable")
	}
}
