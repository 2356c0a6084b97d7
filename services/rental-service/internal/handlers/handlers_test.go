package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/billboardrent/libs/auth"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/biweek"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/calendar"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/period"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/proposals"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/rentals"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage/memory"
)

type fixture struct {
	mux   *http.ServeMux
	store *memory.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	ctx := context.Background()

	cal := calendar.NewService(store, logger, biweek.DefaultYearBounds)
	anchor := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)
	if _, _, err := cal.GenerateYear(ctx, "t1", 2026, &anchor, storage.SaveSkipExisting); err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, id := range []string{"X", "Y", "Z"} {
		if _, err := store.PutBillboard(ctx, model.Billboard{ID: id, TenantID: "t1", Code: "BB-" + id}); err != nil {
			t.Fatalf("put billboard: %v", err)
		}
	}
	if err := store.PutClient(ctx, model.Client{ID: "c1", TenantID: "t1", Name: "Acme"}); err != nil {
		t.Fatalf("put client: %v", err)
	}

	engine := rentals.NewEngine(store, logger, rentals.Config{
		Now: func() time.Time { return time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC) },
	})
	h := New(cal, period.NewResolver(cal), engine, proposals.NewSynchronizer(engine, logger), store, logger)
	mux := http.NewServeMux()
	h.Register(mux)
	return fixture{mux: mux, store: store}
}

func (f fixture) do(t *testing.T, method, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if tenant != "" {
		req.Header.Set(auth.TenantHeader, tenant)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func customPeriod(start, end string) map[string]any {
	return map[string]any{"kind": "custom", "start": start, "end": end}
}

func TestCreateRentalAndConflict(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/rentals", "t1", map[string]any{
		"billboard_id": "X",
		"client_id":    "c1",
		"period":       customPeriod("2026-01-01", "2026-01-10"),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[rentalResponse](t, rec)
	if created.ClientName != "Acme" || created.Period.Days != 10 || created.Origin != string(model.OriginAdHoc) {
		t.Fatalf("unexpected rental %+v", created)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/rentals", "t1", map[string]any{
		"billboard_id": "X",
		"client_id":    "c1",
		"period":       customPeriod("2026-01-10", "2026-01-20"),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Kind != "conflict" || resp.Conflict == nil || resp.Conflict.RentalID != created.RentalID {
		t.Fatalf("conflict body does not name the blocking rental: %+v", resp)
	}
	if resp.Conflict.Start != "2026-01-01" || resp.Conflict.End != "2026-01-10" {
		t.Fatalf("unexpected conflict interval %+v", resp.Conflict)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/rentals?id="+created.RentalID, "t1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodDelete, "/api/v1/rentals?id="+created.RentalID, "t1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestCreateRentalRejectsBadPeriod(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/rentals", "t1", map[string]any{
		"billboard_id": "X",
		"client_id":    "c1",
		"period":       customPeriod("2026-02-10", "2026-02-01"),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeBody[errorResponse](t, rec); resp.Rule != "inverted_dates" {
		t.Fatalf("expected inverted_dates rule, got %+v", resp)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/rentals", "t1", map[string]any{
		"billboard_id": "X",
		"client_id":    "c1",
		"period":       map[string]any{"kind": "bi-week", "biweek_ids": []string{"2026-02", "2026-06"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeBody[errorResponse](t, rec); resp.Rule != "gap" {
		t.Fatalf("expected gap rule, got %+v", resp)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/rentals", "t1", map[string]any{
		"billboard_id": "X",
		"client_id":    "c1",
		"period":       map[string]any{"kind": "bi-week", "biweek_ids": []string{"2031-02"}},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown bi-week, got %d", rec.Code)
	}
}

func TestTenantHeaderRequired(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/v1/rentals", "/api/v1/proposals", "/api/v1/calendar/generate"} {
		rec := f.do(t, http.MethodPost, path, "", map[string]any{})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestResolveLegacyShapePrefersBiWeeks(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/periods/resolve", "t1", map[string]any{
		"start":      "2026-03-03",
		"end":        "2026-03-04",
		"biweek_ids": []string{"2026-04", "2026-02"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	p := decodeBody[periodResponse](t, rec)
	if p.Kind != "bi-week" || p.Days != 28 || p.Start != "2025-12-29T00:00:00.000Z" || p.End != "2026-01-25T23:59:59.999Z" {
		t.Fatalf("unexpected period %+v", p)
	}
}

func TestProposalLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/proposals", "t1", map[string]any{
		"client_id":     "c1",
		"title":         "Spring",
		"billboard_ids": []string{"X", "Y"},
		"period":        map[string]any{"kind": "bi-week", "biweek_ids": []string{"2026-04"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[proposalResponse](t, rec)
	if created.SyncCode == "" || len(f.store.Rentals("t1")) != 2 {
		t.Fatalf("expected two synced rentals, got %+v", created)
	}

	rec = f.do(t, http.MethodPut, "/api/v1/proposals?id="+created.ProposalID, "t1", map[string]any{
		"billboard_ids": []string{"Y", "Z"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[proposalResponse](t, rec)
	if len(updated.Added) != 1 || updated.Added[0] != "Z" || len(updated.Removed) != 1 || updated.Removed[0] != "X" {
		t.Fatalf("unexpected change added=%v removed=%v", updated.Added, updated.Removed)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/proposals?id="+created.ProposalID, "t1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decodeBody[proposalResponse](t, rec)
	if len(got.Rentals) != 2 {
		t.Fatalf("expected 2 rentals, got %+v", got.Rentals)
	}
	for _, r := range got.Rentals {
		if r.SyncCode != created.SyncCode || r.Origin != string(model.OriginProposal) {
			t.Fatalf("rental not tied to proposal: %+v", r)
		}
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/rentals?id="+got.Rentals[0].RentalID, "t1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected proposal rental delete to be refused, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/proposals?id="+created.ProposalID, "t1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if n := len(f.store.Rentals("t1")); n != 0 {
		t.Fatalf("expected rentals removed with proposal, got %d", n)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/proposals?id="+created.ProposalID, "t1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCalendarEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/calendar/find?date=2026-01-15", "t1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if w := decodeBody[biweekResponse](t, rec); w.ID != "2026-04" {
		t.Fatalf("expected 2026-04, got %+v", w)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/calendar/alignment?start=2026-01-14&end=2026-01-30", "t1", nil)
	al := decodeBody[alignmentResponse](t, rec)
	if al.Aligned || al.SuggestedStart != "2026-01-12" || al.SuggestedEnd != "2026-02-08" {
		t.Fatalf("unexpected alignment %+v", al)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/calendar/sequence", "t1", map[string]any{
		"biweek_ids": []string{"2026-06", "2026-02"},
	})
	seq := decodeBody[sequenceResponse](t, rec)
	if seq.Valid || len(seq.Gaps) != 1 || seq.Gaps[0].From != "2026-01-12" || seq.Gaps[0].To != "2026-01-25" {
		t.Fatalf("unexpected sequence report %+v", seq)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/calendar/active", "t1", map[string]any{"biweek_id": "2026-04", "active": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/api/v1/calendar/find?date=2026-01-15", "t1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected inactive bi-week to be skipped, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/calendar/generate", "t1", map[string]any{"year": 2027, "mode": "skip"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gen := decodeBody[generateResponse](t, rec); gen.Created != 26 || len(gen.BiWeeks) != 26 {
		t.Fatalf("unexpected generate result created=%d weeks=%d", gen.Created, len(gen.BiWeeks))
	}

	rec = f.do(t, http.MethodPost, "/api/v1/calendar/generate", "t1", map[string]any{"year": 2027, "mode": "merge"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", rec.Code)
	}
}

func TestBillboardOccupancyIsSystemOwned(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/rentals", "t1", map[string]any{
		"billboard_id": "X",
		"client_id":    "c1",
		"period":       customPeriod("2026-01-01", "2026-01-10"),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/billboards", "t1", map[string]any{
		"id": "X", "code": "BB-X2", "maintenance_mode": true, "occupied_today": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/billboards?id=X", "t1", nil)
	b := decodeBody[billboardResponse](t, rec)
	if !b.OccupiedToday || !b.MaintenanceMode || b.Bookable || b.Code != "BB-X2" {
		t.Fatalf("unexpected billboard %+v", b)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/billboards?id=missing", "t1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
