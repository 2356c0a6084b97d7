package rentals

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/apperr"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/outbox"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage/memory"
)

var today = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
}

func custom(from, to time.Time) model.Period {
	return model.Period{Kind: model.PeriodCustom, Start: from, End: model.LastInstantOfDay(to)}
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, b := range []model.Billboard{
		{ID: "X", TenantID: "t1", Code: "BB-X"},
		{ID: "Y", TenantID: "t1", Code: "BB-Y"},
		{ID: "W", TenantID: "t2", Code: "BB-W"},
	} {
		if _, err := store.PutBillboard(ctx, b); err != nil {
			t.Fatalf("put billboard: %v", err)
		}
	}
	for _, c := range []model.Client{
		{ID: "c1", TenantID: "t1", Name: "Acme"},
		{ID: "c2", TenantID: "t2", Name: "Other"},
	} {
		if err := store.PutClient(ctx, c); err != nil {
			t.Fatalf("put client: %v", err)
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(store, logger, Config{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Now:            func() time.Time { return today },
	})
	return engine, store
}

func TestCreateRentalTouchingEndpointConflicts(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: custom(day(1, 1), day(1, 10))})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ClientName != "Acme" || first.Origin != model.OriginAdHoc || first.SyncCode != "" {
		t.Fatalf("unexpected rental %+v", first)
	}

	_, err = engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: custom(day(1, 10), day(1, 20))})
	var conflict *apperr.ConflictError
	if !errors.As(err, &conflict) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if conflict.BillboardID != "X" || conflict.RentalID != first.ID || !conflict.Start.Equal(day(1, 1)) {
		t.Fatalf("conflict does not name the blocking rental: %+v", conflict)
	}
	if got := store.Rentals("t1"); len(got) != 1 {
		t.Fatalf("expected rental set unchanged, got %d rentals", len(got))
	}

	if _, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: custom(day(1, 11), day(1, 20))}); err != nil {
		t.Fatalf("expected adjacent period to succeed: %v", err)
	}
	if _, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "Y", ClientID: "c1", Period: custom(day(1, 1), day(1, 10))}); err != nil {
		t.Fatalf("expected other billboard to succeed: %v", err)
	}
}

func TestCreateAndDeleteMaintainOccupancy(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	current, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: custom(day(1, 1), day(1, 10))})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	future, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: custom(day(2, 1), day(2, 10))})
	if err != nil {
		t.Fatalf("create future: %v", err)
	}
	if b, _ := store.GetBillboard(ctx, "t1", "X"); !b.OccupiedToday {
		t.Fatal("expected billboard occupied today")
	}

	if err := engine.DeleteRental(ctx, "t1", future.ID); err != nil {
		t.Fatalf("delete future: %v", err)
	}
	if b, _ := store.GetBillboard(ctx, "t1", "X"); !b.OccupiedToday {
		t.Fatal("expected billboard still occupied after deleting a future rental")
	}

	if err := engine.DeleteRental(ctx, "t1", current.ID); err != nil {
		t.Fatalf("delete current: %v", err)
	}
	if b, _ := store.GetBillboard(ctx, "t1", "X"); b.OccupiedToday {
		t.Fatal("expected billboard free after deleting today's rental")
	}
}

func TestOccupancyWriteKeepsMaintenanceMode(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	if _, err := store.PutBillboard(ctx, model.Billboard{ID: "X", TenantID: "t1", Code: "BB-X", MaintenanceMode: true}); err != nil {
		t.Fatalf("put billboard: %v", err)
	}

	r, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: custom(day(1, 1), day(1, 10))})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.DeleteRental(ctx, "t1", r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	b, _ := store.GetBillboard(ctx, "t1", "X")
	if !b.MaintenanceMode || b.OccupiedToday {
		t.Fatalf("unexpected billboard flags %+v", b)
	}
}

func TestCreateRentalRejectsCrossTenantReferences(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c2", Period: custom(day(1, 1), day(1, 10))})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for foreign client, got %v", err)
	}
	_, err = engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "W", ClientID: "c1", Period: custom(day(1, 1), day(1, 10))})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for foreign billboard, got %v", err)
	}
	_, err = engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: model.Period{Kind: model.PeriodCustom, Start: day(1, 5), End: day(1, 1)}})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unresolved period, got %v", err)
	}
	if got := store.Rentals("t1"); len(got) != 0 {
		t.Fatalf("expected no writes, got %d rentals", len(got))
	}
	if got := store.Events(); len(got) != 0 {
		t.Fatalf("expected no events, got %d", len(got))
	}
}

func TestDeleteRentalFailures(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	if err := engine.DeleteRental(ctx, "t1", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	r, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: custom(day(3, 1), day(3, 5))})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.DeleteRental(ctx, "t2", r.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}

	var owned model.Rental
	err = store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		owned, err = engine.CreateRentalTx(ctx, tx, "t1", Placement{
			BillboardID: "Y", ClientID: "c1", Period: custom(day(3, 1), day(3, 5)),
			SyncCode: "code-1", Origin: model.OriginProposal,
		})
		return err
	})
	if err != nil {
		t.Fatalf("create proposal rental: %v", err)
	}
	if err := engine.DeleteRental(ctx, "t1", owned.ID); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected proposal rental delete to be refused, got %v", err)
	}
}

func TestTransientFailuresAreRetried(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	store.FailNextTx(storage.ErrTransient, storage.ErrTransient)
	if _, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: custom(day(1, 1), day(1, 10))}); err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}

	store.FailNextTx(storage.ErrTransient, storage.ErrTransient, storage.ErrTransient)
	_, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "Y", ClientID: "c1", Period: custom(day(1, 1), day(1, 10))})
	if !errors.Is(err, apperr.ErrTransient) {
		t.Fatalf("expected transient failure after exhausting retries, got %v", err)
	}
	if got := store.Rentals("t1"); len(got) != 1 {
		t.Fatalf("expected only the first rental, got %d", len(got))
	}
}

func TestLogicalFailuresAreNotRetried(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	calls := 0
	err := engine.Transact(ctx, "probe", func(context.Context, storage.Tx) error {
		calls++
		return apperr.NotFound("thing")
	})
	if !errors.Is(err, apperr.ErrNotFound) || calls != 1 {
		t.Fatalf("expected one call and not found, got %d calls and %v", calls, err)
	}

	store.FailNextTx(storage.ErrTransient)
	calls = 0
	err = engine.Transact(ctx, "probe", func(context.Context, storage.Tx) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("expected retry to reach fn once, got %d calls and %v", calls, err)
	}
}

func TestCallerDeadlineSurfacesAsTransient(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: custom(day(1, 1), day(1, 10))})
	if !errors.Is(err, apperr.ErrTransient) {
		t.Fatalf("expected transient failure, got %v", err)
	}
}

func TestConcurrentCreatesOnSameBillboard(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.CreateRental(ctx, "t1", CreateRequest{
				BillboardID: "X", ClientID: "c1", Period: custom(day(4, 1+i), day(4, 15)),
			})
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || conflicts != workers-1 {
		t.Fatalf("expected exactly one success, got %d ok and %d conflicts", ok, conflicts)
	}
	if got := store.Rentals("t1"); len(got) != 1 {
		t.Fatalf("expected one surviving rental, got %d", len(got))
	}
}

func TestRentalEventsAreEnqueued(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	r, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: custom(day(5, 1), day(5, 10))})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.DeleteRental(ctx, "t1", r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	events := store.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != outbox.RentalCreated || events[1].EventType != outbox.RentalDeleted {
		t.Fatalf("unexpected event types %s, %s", events[0].EventType, events[1].EventType)
	}
	if events[0].AggregateID != r.ID || events[0].TenantID != "t1" {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestCreateRentalRejectsUnorderedBiWeekPeriod(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	p := model.Period{
		Kind:      model.PeriodBiWeek,
		Start:     time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC),
		End:       model.LastInstantOfDay(day(1, 25)),
		BiWeekIDs: []string{"2026-04", "2026-02"},
	}
	_, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: p})
	var perr *apperr.PeriodError
	if !errors.As(err, &perr) || perr.Rule != apperr.RuleKindMismatch {
		t.Fatalf("expected out-of-order bi-weeks to be rejected, got %v", err)
	}

	p.BiWeekIDs = []string{"2026-02", "2026-02", "2026-04"}
	if _, err := engine.CreateRental(ctx, "t1", CreateRequest{BillboardID: "X", ClientID: "c1", Period: p}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected repeated bi-week to be rejected, got %v", err)
	}
	if got := store.Rentals("t1"); len(got) != 0 {
		t.Fatalf("expected no writes, got %d rentals", len(got))
	}
}
