package model

import "time"

// Proposal offers one client a set of billboards for one shared Period and is
// realised as one Rental per billboard, all carrying SyncCode.
type Proposal struct {
	ID           string
	TenantID     string
	ClientID     string
	Title        string
	Period       Period
	BillboardIDs []string
	SyncCode     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
