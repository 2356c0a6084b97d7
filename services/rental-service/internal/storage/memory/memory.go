// Package memory is an in-process Store. Transactions run one at a time on a
// private copy of the state that replaces the shared state only on commit.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/billboardrent/libs/otel"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/outbox"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
)

type key struct {
	tenant string
	id     string
}

type state struct {
	biweeks    map[key]model.BiWeek
	billboards map[key]model.Billboard
	clients    map[key]model.Client
	rentals    map[key]model.Rental
	proposals  map[key]model.Proposal
	events     []outbox.Record
	nextEvent  int64
}

func newState() *state {
	return &state{
		biweeks:    map[key]model.BiWeek{},
		billboards: map[key]model.Billboard{},
		clients:    map[key]model.Client{},
		rentals:    map[key]model.Rental{},
		proposals:  map[key]model.Proposal{},
	}
}

func (s *state) clone() *state {
	c := &state{
		biweeks:    make(map[key]model.BiWeek, len(s.biweeks)),
		billboards: make(map[key]model.Billboard, len(s.billboards)),
		clients:    make(map[key]model.Client, len(s.clients)),
		rentals:    make(map[key]model.Rental, len(s.rentals)),
		proposals:  make(map[key]model.Proposal, len(s.proposals)),
		events:     slices.Clone(s.events),
		nextEvent:  s.nextEvent,
	}
	for k, v := range s.biweeks {
		c.biweeks[k] = v
	}
	for k, v := range s.billboards {
		c.billboards[k] = v
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.rentals {
		c.rentals[k] = v
	}
	for k, v := range s.proposals {
		c.proposals[k] = v
	}
	return c
}

type Store struct {
	mu       sync.Mutex
	state    *state
	failures []error
	now      func() time.Time
}

func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// FailNextTx makes the next len(errs) transactions fail with errs in order
// before fn runs.
func (s *Store) FailNextTx(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return err
	}

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// GetProposal reads the last committed proposal.
func (s *Store) GetProposal(ctx context.Context, tenantID, id string) (model.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state, now: s.now}).GetProposalForUpdate(ctx, tenantID, id)
}

func (s *Store) ListRentalsBySyncCode(ctx context.Context, tenantID, syncCode string) ([]model.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state, now: s.now}).ListRentalsBySyncCode(ctx, tenantID, syncCode)
}

// Rentals returns the tenant's rentals ordered by billboard and start.
func (s *Store) Rentals(tenantID string) []model.Rental {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Rental
	for k, r := range s.state.rentals {
		if k.tenant == tenantID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.Rental) int {
		if c := strings.Compare(a.BillboardID, b.BillboardID); c != 0 {
			return c
		}
		return a.Period.Start.Compare(b.Period.Start)
	})
	return out
}

func (s *Store) Proposal(tenantID, id string) (model.Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.proposals[key{tenantID, id}]
	return p, ok
}

func (s *Store) Events() []outbox.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.events)
}

// Drain implements outbox.Source. publish runs without the store lock held.
func (s *Store) Drain(ctx context.Context, limit int, publish func(context.Context, []outbox.Record) ([]int64, error)) error {
	s.mu.Lock()
	var batch []outbox.Record
	for _, r := range s.state.events {
		if len(batch) == limit {
			break
		}
		batch = append(batch, r)
	}
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	ids, pubErr := publish(ctx, batch)

	s.mu.Lock()
	s.state.events = slices.DeleteFunc(s.state.events, func(r outbox.Record) bool {
		return slices.Contains(ids, r.ID)
	})
	s.mu.Unlock()
	return pubErr
}

func (s *Store) PutBillboard(_ context.Context, b model.Billboard) (model.Billboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{b.TenantID, b.ID}
	if cur, ok := s.state.billboards[k]; ok {
		b.OccupiedToday = cur.OccupiedToday
	} else {
		b.OccupiedToday = false
	}
	s.state.billboards[k] = b
	return b, nil
}

func (s *Store) GetBillboard(_ context.Context, tenantID, id string) (model.Billboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.billboards[key{tenantID, id}]
	if !ok {
		return model.Billboard{}, fmt.Errorf("billboard %s: %w", id, storage.ErrNotFound)
	}
	return b, nil
}

func (s *Store) PutClient(_ context.Context, c model.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.clients[key{c.TenantID, c.ID}] = c
	return nil
}

func (s *Store) SaveBiWeeks(_ context.Context, tenantID string, weeks []model.BiWeek, mode storage.SaveMode) (storage.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res storage.SaveResult
	for _, w := range weeks {
		w.TenantID = tenantID
		k := key{tenantID, w.ID}
		cur, exists := s.state.biweeks[k]
		switch {
		case !exists:
			res.Created++
		case mode == storage.SaveSkipExisting:
			res.Skipped++
			continue
		default:
			w.Active = cur.Active
			res.Updated++
		}
		s.state.biweeks[k] = w
	}
	return res, nil
}

func (s *Store) GetBiWeeks(_ context.Context, tenantID string, ids []string) ([]model.BiWeek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BiWeek
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if w, ok := s.state.biweeks[key{tenantID, id}]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) ListBiWeeksOverlapping(_ context.Context, tenantID string, start, end time.Time) ([]model.BiWeek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BiWeek
	for k, w := range s.state.biweeks {
		if k.tenant == tenantID && !w.Start.After(end) && !start.After(w.End) {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b model.BiWeek) int { return a.Start.Compare(b.Start) })
	return out, nil
}

func (s *Store) SetBiWeekActive(_ context.Context, tenantID, id string, active bool) (model.BiWeek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{tenantID, id}
	w, ok := s.state.biweeks[k]
	if !ok {
		return model.BiWeek{}, fmt.Errorf("bi-week %s: %w", id, storage.ErrNotFound)
	}
	w.Active = active
	s.state.biweeks[k] = w
	return w, nil
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) LockBillboard(_ context.Context, tenantID, billboardID string) (model.Billboard, error) {
	b, ok := t.st.billboards[key{tenantID, billboardID}]
	if !ok {
		return model.Billboard{}, fmt.Errorf("billboard %s: %w", billboardID, storage.ErrNotFound)
	}
	return b, nil
}

func (t *tx) SetOccupiedToday(_ context.Context, tenantID, billboardID string, occupied bool) error {
	k := key{tenantID, billboardID}
	b, ok := t.st.billboards[k]
	if !ok {
		return fmt.Errorf("billboard %s: %w", billboardID, storage.ErrNotFound)
	}
	b.OccupiedToday = occupied
	t.st.billboards[k] = b
	return nil
}

func (t *tx) HasRentalOn(_ context.Context, tenantID, billboardID string, at time.Time) (bool, error) {
	for k, r := range t.st.rentals {
		if k.tenant == tenantID && r.BillboardID == billboardID && r.Period.Contains(at) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) ReconcileOccupancy(ctx context.Context, at time.Time) (int64, error) {
	var changed int64
	for k, b := range t.st.billboards {
		has, _ := t.HasRentalOn(ctx, k.tenant, k.id, at)
		if b.OccupiedToday != has {
			b.OccupiedToday = has
			t.st.billboards[k] = b
			changed++
		}
	}
	return changed, nil
}

func (t *tx) GetClient(_ context.Context, tenantID, clientID string) (model.Client, error) {
	c, ok := t.st.clients[key{tenantID, clientID}]
	if !ok {
		return model.Client{}, fmt.Errorf("client %s: %w", clientID, storage.ErrNotFound)
	}
	return c, nil
}

func (t *tx) ListRentalsOverlapping(_ context.Context, tenantID, billboardID string, start, end time.Time) ([]model.Rental, error) {
	var out []model.Rental
	for k, r := range t.st.rentals {
		if k.tenant == tenantID && r.BillboardID == billboardID && r.Period.Overlaps(start, end) {
			out = append(out, t.withClient(r))
		}
	}
	sortRentals(out)
	return out, nil
}

func (t *tx) InsertRental(ctx context.Context, r model.Rental) error {
	k := key{r.TenantID, r.ID}
	if _, ok := t.st.rentals[k]; ok {
		return fmt.Errorf("rental %s: %w", r.ID, storage.ErrDuplicate)
	}
	if _, ok := t.st.billboards[key{r.TenantID, r.BillboardID}]; !ok {
		return fmt.Errorf("billboard %s: %w", r.BillboardID, storage.ErrNotFound)
	}
	existing, _ := t.ListRentalsOverlapping(ctx, r.TenantID, r.BillboardID, r.Period.Start, r.Period.End)
	if len(existing) > 0 {
		return fmt.Errorf("rental %s overlaps %s: %w", r.ID, existing[0].ID, storage.ErrOverlap)
	}
	r.Period.BiWeekIDs = slices.Clone(r.Period.BiWeekIDs)
	r.ClientName = ""
	t.st.rentals[k] = r
	return nil
}

func (t *tx) GetRental(_ context.Context, tenantID, rentalID string) (model.Rental, error) {
	r, ok := t.st.rentals[key{tenantID, rentalID}]
	if !ok {
		return model.Rental{}, fmt.Errorf("rental %s: %w", rentalID, storage.ErrNotFound)
	}
	return t.withClient(r), nil
}

func (t *tx) DeleteRental(_ context.Context, tenantID, rentalID string) error {
	k := key{tenantID, rentalID}
	if _, ok := t.st.rentals[k]; !ok {
		return fmt.Errorf("rental %s: %w", rentalID, storage.ErrNotFound)
	}
	delete(t.st.rentals, k)
	return nil
}

func (t *tx) ListRentalsBySyncCode(_ context.Context, tenantID, syncCode string) ([]model.Rental, error) {
	var out []model.Rental
	for k, r := range t.st.rentals {
		if k.tenant == tenantID && syncCode != "" && r.SyncCode == syncCode {
			out = append(out, t.withClient(r))
		}
	}
	sortRentals(out)
	return out, nil
}

func (t *tx) UpdateRentalPeriods(_ context.Context, tenantID, syncCode string, p model.Period) (int64, error) {
	var n int64
	for k, r := range t.st.rentals {
		if k.tenant != tenantID || syncCode == "" || r.SyncCode != syncCode {
			continue
		}
		for k2, other := range t.st.rentals {
			if k2.tenant == tenantID && other.BillboardID == r.BillboardID && other.SyncCode != syncCode &&
				other.Period.Overlaps(p.Start, p.End) {
				return 0, fmt.Errorf("rental %s overlaps %s: %w", r.ID, other.ID, storage.ErrOverlap)
			}
		}
		r.Period = p
		r.Period.BiWeekIDs = slices.Clone(p.BiWeekIDs)
		t.st.rentals[k] = r
		n++
	}
	return n, nil
}

func (t *tx) InsertProposal(_ context.Context, p model.Proposal) error {
	k := key{p.TenantID, p.ID}
	if _, ok := t.st.proposals[k]; ok {
		return fmt.Errorf("proposal %s: %w", p.ID, storage.ErrDuplicate)
	}
	for _, other := range t.st.proposals {
		if other.SyncCode == p.SyncCode {
			return fmt.Errorf("sync code %s: %w", p.SyncCode, storage.ErrDuplicate)
		}
	}
	t.st.proposals[k] = cloneProposal(p)
	return nil
}

func (t *tx) GetProposalForUpdate(_ context.Context, tenantID, id string) (model.Proposal, error) {
	p, ok := t.st.proposals[key{tenantID, id}]
	if !ok {
		return model.Proposal{}, fmt.Errorf("proposal %s: %w", id, storage.ErrNotFound)
	}
	return cloneProposal(p), nil
}

func (t *tx) UpdateProposal(_ context.Context, p model.Proposal) error {
	k := key{p.TenantID, p.ID}
	if _, ok := t.st.proposals[k]; !ok {
		return fmt.Errorf("proposal %s: %w", p.ID, storage.ErrNotFound)
	}
	t.st.proposals[k] = cloneProposal(p)
	return nil
}

func (t *tx) DeleteProposal(_ context.Context, tenantID, id string) error {
	k := key{tenantID, id}
	if _, ok := t.st.proposals[k]; !ok {
		return fmt.Errorf("proposal %s: %w", id, storage.ErrNotFound)
	}
	delete(t.st.proposals, k)
	return nil
}

func (t *tx) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	t.st.nextEvent++
	t.st.events = append(t.st.events, outbox.Record{
		ID:            t.st.nextEvent,
		EventID:       uuid.NewString(),
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.EventType,
		TenantID:      evt.TenantID,
		Payload:       slices.Clone(evt.Payload),
		Trace:         otelx.CaptureTraceContext(ctx),
		CreatedAt:     t.now().UTC(),
	})
	return nil
}

func (t *tx) withClient(r model.Rental) model.Rental {
	if c, ok := t.st.clients[key{r.TenantID, r.ClientID}]; ok {
		r.ClientName = c.Name
	}
	r.Period.BiWeekIDs = slices.Clone(r.Period.BiWeekIDs)
	return r
}

func cloneProposal(p model.Proposal) model.Proposal {
	p.BillboardIDs = slices.Clone(p.BillboardIDs)
	p.Period.BiWeekIDs = slices.Clone(p.Period.BiWeekIDs)
	return p
}

func sortRentals(rs []model.Rental) {
	slices.SortFunc(rs, func(a, b model.Rental) int {
		if c := a.Period.Start.Compare(b.Period.Start); c != 0 {
			return c
		}
		return strings.Compare(a.BillboardID, b.BillboardID)
	})
}
