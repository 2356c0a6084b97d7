// Package storage is the transactional store contract the rental engine and
// the proposal synchronizer are written against. Implementations live in the
// memory and postgres subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/outbox"
)

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrOverlap is raised by the store itself when a rental insert would
	// overlap another rental of the same billboard.
	ErrOverlap = errors.New("storage: overlapping rental")
	// ErrTransient marks serialization failures, deadlocks and similar
	// contention artifacts. The whole transaction may be retried.
	ErrTransient = errors.New("storage: transient failure")
	ErrDuplicate = errors.New("storage: duplicate key")
)

type SaveMode int

const (
	SaveSkipExisting SaveMode = iota
	SaveOverwrite
)

func ParseSaveMode(s string) (SaveMode, error) {
	switch s {
	case "", "skip":
		return SaveSkipExisting, nil
	case "overwrite":
		return SaveOverwrite, nil
	default:
		return 0, errors.New("save mode must be skip or overwrite")
	}
}

type SaveResult struct {
	Created int
	Updated int
	Skipped int
}

// CalendarRepository persists bi-weeks per tenant. Reads are not transactional.
type CalendarRepository interface {
	SaveBiWeeks(ctx context.Context, tenantID string, weeks []model.BiWeek, mode SaveMode) (SaveResult, error)
	// GetBiWeeks returns the stored bi-weeks among ids. Unknown ids are omitted.
	GetBiWeeks(ctx context.Context, tenantID string, ids []string) ([]model.BiWeek, error)
	ListBiWeeksOverlapping(ctx context.Context, tenantID string, start, end time.Time) ([]model.BiWeek, error)
	SetBiWeekActive(ctx context.Context, tenantID, id string, active bool) (model.BiWeek, error)
}

// Directory holds the reference data rentals point at. PutBillboard writes
// the code and maintenance flag and never touches OccupiedToday.
type Directory interface {
	PutBillboard(ctx context.Context, b model.Billboard) (model.Billboard, error)
	GetBillboard(ctx context.Context, tenantID, id string) (model.Billboard, error)
	PutClient(ctx context.Context, c model.Client) error
}

// Reader serves display reads outside any transaction. Nothing is locked,
// so results may be stale by the time they are returned.
type Reader interface {
	GetProposal(ctx context.Context, tenantID, id string) (model.Proposal, error)
	ListRentalsBySyncCode(ctx context.Context, tenantID, syncCode string) ([]model.Rental, error)
}

// Store runs fn in one serializable transaction. fn's error aborts it.
type Store interface {
	Reader
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside a transaction. Every call is
// scoped by tenant.
type Tx interface {
	// LockBillboard loads the billboard and serialises writers on it until commit.
	LockBillboard(ctx context.Context, tenantID, billboardID string) (model.Billboard, error)
	SetOccupiedToday(ctx context.Context, tenantID, billboardID string, occupied bool) error
	// HasRentalOn reports whether any rental of the billboard contains at.
	HasRentalOn(ctx context.Context, tenantID, billboardID string, at time.Time) (bool, error)
	// ReconcileOccupancy recomputes OccupiedToday for every billboard and
	// returns how many flags changed.
	ReconcileOccupancy(ctx context.Context, at time.Time) (int64, error)

	GetClient(ctx context.Context, tenantID, clientID string) (model.Client, error)

	ListRentalsOverlapping(ctx context.Context, tenantID, billboardID string, start, end time.Time) ([]model.Rental, error)
	InsertRental(ctx context.Context, r model.Rental) error
	GetRental(ctx context.Context, tenantID, rentalID string) (model.Rental, error)
	DeleteRental(ctx context.Context, tenantID, rentalID string) error
	ListRentalsBySyncCode(ctx context.Context, tenantID, syncCode string) ([]model.Rental, error)
	UpdateRentalPeriods(ctx context.Context, tenantID, syncCode string, p model.Period) (int64, error)

	InsertProposal(ctx context.Context, p model.Proposal) error
	GetProposalForUpdate(ctx context.Context, tenantID, id string) (model.Proposal, error)
	UpdateProposal(ctx context.Context, p model.Proposal) error
	DeleteProposal(ctx context.Context, tenantID, id string) error

	EnqueueEvent(ctx context.Context, evt outbox.Event) error
}
