package model

import "time"

type RentalOrigin string

const (
	OriginAdHoc    RentalOrigin = "ad_hoc"
	OriginProposal RentalOrigin = "proposal"
)

type Client struct {
	ID       string
	TenantID string
	Name     string
}

// Billboard keeps system-computed occupancy apart from the operator-set
// maintenance flag. The rental engine only ever writes OccupiedToday.
type Billboard struct {
	ID              string
	TenantID        string
	Code            string
	OccupiedToday   bool
	MaintenanceMode bool
}

func (b Billboard) Bookable() bool {
	return !b.OccupiedToday && !b.MaintenanceMode
}

// Rental binds one billboard to one client for one Period. SyncCode is empty
// for ad-hoc rentals and shared with the originating proposal otherwise.
type Rental struct {
	ID          string
	TenantID    string
	BillboardID string
	ClientID    string
	ClientName  string
	Period      Period
	SyncCode    string
	Origin      RentalOrigin
	CreatedAt   time.Time
}
