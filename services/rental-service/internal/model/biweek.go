package model

import "time"

// BiWeek is one of the 26 fourteen-day periods of a calendar year.
// ID has the form "2026-02"; Seq is even, 2..52.
type BiWeek struct {
	ID       string
	TenantID string
	Year     int
	Seq      int
	Start    time.Time
	End      time.Time
	Active   bool
}

func (b BiWeek) Contains(t time.Time) bool {
	return !t.Before(b.Start) && !t.After(b.End)
}
