package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/outbox"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
)

var (
	_ storage.Store              = (*Store)(nil)
	_ storage.CalendarRepository = (*Store)(nil)
	_ storage.Directory          = (*Store)(nil)
	_ outbox.Source              = (*Store)(nil)
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	ctx := context.Background()
	if _, err := s.PutBillboard(ctx, model.Billboard{ID: "X", TenantID: "t1"}); err != nil {
		t.Fatalf("put billboard: %v", err)
	}
	if err := s.PutClient(ctx, model.Client{ID: "c1", TenantID: "t1", Name: "Acme"}); err != nil {
		t.Fatalf("put client: %v", err)
	}
	return s
}

func rental(id string, from, to time.Time) model.Rental {
	return model.Rental{
		ID: id, TenantID: "t1", BillboardID: "X", ClientID: "c1",
		Period: model.Period{Kind: model.PeriodCustom, Start: from, End: model.LastInstantOfDay(to)},
		Origin: model.OriginAdHoc,
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertRental(ctx, rental("r1", jan, jan.AddDate(0, 0, 5))); err != nil {
			return err
		}
		if err := tx.SetOccupiedToday(ctx, "t1", "X", true); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := s.Rentals("t1"); len(got) != 0 {
		t.Fatalf("expected rollback, got %d rentals", len(got))
	}
	if b, _ := s.GetBillboard(ctx, "t1", "X"); b.OccupiedToday {
		t.Fatal("expected occupancy rollback")
	}
}

func TestInsertRentalEnforcesOverlap(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertRental(ctx, rental("r1", jan, jan.AddDate(0, 0, 9))); err != nil {
			return err
		}
		return tx.InsertRental(ctx, rental("r2", jan.AddDate(0, 0, 9), jan.AddDate(0, 0, 19)))
	})
	if !errors.Is(err, storage.ErrOverlap) {
		t.Fatalf("expected overlap, got %v", err)
	}
}

func TestFailNextTxAndCancelledContext(t *testing.T) {
	s := seeded(t)
	s.FailNextTx(storage.ErrTransient)

	ran := false
	err := s.RunInTx(context.Background(), func(context.Context, storage.Tx) error { ran = true; return nil })
	if !errors.Is(err, storage.ErrTransient) || ran {
		t.Fatalf("expected injected failure before fn, got %v ran=%v", err, ran)
	}
	if err := s.RunInTx(context.Background(), func(context.Context, storage.Tx) error { return nil }); err != nil {
		t.Fatalf("expected injected failures to be consumed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.RunInTx(ctx, func(context.Context, storage.Tx) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestPutBillboardKeepsOccupancy(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	if err := s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.SetOccupiedToday(ctx, "t1", "X", true)
	}); err != nil {
		t.Fatalf("set occupied: %v", err)
	}
	b, err := s.PutBillboard(ctx, model.Billboard{ID: "X", TenantID: "t1", MaintenanceMode: true, OccupiedToday: false})
	if err != nil || !b.OccupiedToday || !b.MaintenanceMode {
		t.Fatalf("expected occupancy preserved, got %+v %v", b, err)
	}
}

func TestDrainRemovesPublishedRecords(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	if err := s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			if err := tx.EnqueueEvent(ctx, outbox.Event{AggregateID: id, EventType: outbox.RentalCreated, TenantID: "t1"}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	err := s.Drain(ctx, 2, func(_ context.Context, recs []outbox.Record) ([]int64, error) {
		if len(recs) != 2 {
			t.Fatalf("expected batch of 2, got %d", len(recs))
		}
		return []int64{recs[0].ID}, nil
	})
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	left := s.Events()
	if len(left) != 2 || left[0].AggregateID != "b" {
		t.Fatalf("unexpected remaining events %+v", left)
	}
}

func TestReadsServeCommittedStateOnly(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	jan := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	p := model.Proposal{ID: "p1", TenantID: "t1", ClientID: "c1", BillboardIDs: []string{"X"}, SyncCode: "s1",
		Period: model.Period{Kind: model.PeriodCustom, Start: jan, End: model.LastInstantOfDay(jan.AddDate(0, 0, 3))}}
	r := rental("r1", jan, jan.AddDate(0, 0, 3))
	r.SyncCode = "s1"
	if err := s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertProposal(ctx, p); err != nil {
			return err
		}
		return tx.InsertRental(ctx, r)
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	_ = s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.DeleteProposal(ctx, "t1", "p1"); err != nil {
			return err
		}
		return boom
	})

	got, err := s.GetProposal(ctx, "t1", "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.BillboardIDs[0] = "mutated"
	again, _ := s.GetProposal(ctx, "t1", "p1")
	if again.BillboardIDs[0] != "X" {
		t.Fatalf("read leaked internal state: %+v", again)
	}
	rs, err := s.ListRentalsBySyncCode(ctx, "t1", "s1")
	if err != nil || len(rs) != 1 || rs[0].ClientName != "Acme" {
		t.Fatalf("unexpected rentals %+v %v", rs, err)
	}
	if _, err := s.GetProposal(ctx, "t2", "p1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected tenant scoping, got %v", err)
	}
}
