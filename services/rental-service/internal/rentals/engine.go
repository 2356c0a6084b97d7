// Package rentals owns creation and deletion of single-billboard rentals. It
// enforces the no-overlap rule per billboard and keeps the billboard's
// occupied-today flag in step with the rental set.
package rentals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/billboardrent/libs/otel"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/apperr"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/outbox"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/period"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	// TxTimeout bounds one transaction attempt.
	TxTimeout time.Duration
	// MaxAttempts bounds how often a transient failure is retried.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Now            func() time.Time
}

type Engine struct {
	store  storage.Store
	logger *slog.Logger
	cfg    Config
	tracer trace.Tracer
}

func NewEngine(store storage.Store, logger *slog.Logger, cfg Config) *Engine {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 25 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 250 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:  store,
		logger: logger.With("component", "rentals"),
		cfg:    cfg,
		tracer: otelx.Tracer("rentals"),
	}
}

// Now is the engine's notion of "today" for occupancy.
func (e *Engine) Now() time.Time {
	return e.cfg.Now().UTC()
}

// Reader exposes the store's lock-free reads.
func (e *Engine) Reader() storage.Reader {
	return e.store
}

type CreateRequest struct {
	BillboardID string
	ClientID    string
	Period      model.Period
}

// Placement is a rental about to be written inside a caller's transaction.
type Placement struct {
	BillboardID string
	ClientID    string
	Period      model.Period
	SyncCode    string
	Origin      model.RentalOrigin
}

func (e *Engine) CreateRental(ctx context.Context, tenantID string, req CreateRequest) (model.Rental, error) {
	ctx, span := e.tracer.Start(ctx, "rentals.create", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("billboard.id", req.BillboardID),
	))
	defer span.End()

	var created model.Rental
	err := e.Transact(ctx, "create_rental", func(ctx context.Context, tx storage.Tx) error {
		r, err := e.CreateRentalTx(ctx, tx, tenantID, Placement{
			BillboardID: req.BillboardID,
			ClientID:    req.ClientID,
			Period:      req.Period,
			Origin:      model.OriginAdHoc,
		})
		created = r
		return err
	})
	if err != nil {
		e.fail(span, "create rental failed", err, "tenant_id", tenantID, "billboard_id", req.BillboardID)
		return model.Rental{}, err
	}
	e.logger.Info("rental created", "tenant_id", tenantID, "rental_id", created.ID, "billboard_id", created.BillboardID,
		"start", created.Period.Start, "end", created.Period.End)
	return created, nil
}

func (e *Engine) DeleteRental(ctx context.Context, tenantID, rentalID string) error {
	ctx, span := e.tracer.Start(ctx, "rentals.delete", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("rental.id", rentalID),
	))
	defer span.End()

	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(rentalID) == "" {
		return apperr.Invalid("tenant and rental id are required")
	}
	err := e.Transact(ctx, "delete_rental", func(ctx context.Context, tx storage.Tx) error {
		r, err := tx.GetRental(ctx, tenantID, rentalID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("rental %s", rentalID)
		}
		if err != nil {
			return err
		}
		if r.Origin == model.OriginProposal {
			return apperr.Invalid("rental %s belongs to a proposal; change the proposal instead", rentalID)
		}
		return e.DeleteRentalTx(ctx, tx, r)
	})
	if err != nil {
		e.fail(span, "delete rental failed", err, "tenant_id", tenantID, "rental_id", rentalID)
		return err
	}
	e.logger.Info("rental deleted", "tenant_id", tenantID, "rental_id", rentalID)
	return nil
}

// CreateRentalTx validates and writes one rental inside tx. A conflicting
// rental on the billboard aborts with *apperr.ConflictError.
func (e *Engine) CreateRentalTx(ctx context.Context, tx storage.Tx, tenantID string, p Placement) (model.Rental, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(p.BillboardID) == "" || strings.TrimSpace(p.ClientID) == "" {
		return model.Rental{}, apperr.Invalid("tenant, billboard and client are required")
	}
	if err := period.Check(p.Period); err != nil {
		return model.Rental{}, err
	}

	client, err := tx.GetClient(ctx, tenantID, p.ClientID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Rental{}, apperr.Invalid("client %s does not belong to tenant %s", p.ClientID, tenantID)
	}
	if err != nil {
		return model.Rental{}, err
	}
	if _, err := tx.LockBillboard(ctx, tenantID, p.BillboardID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Rental{}, apperr.Invalid("billboard %s does not belong to tenant %s", p.BillboardID, tenantID)
		}
		return model.Rental{}, err
	}

	existing, err := tx.ListRentalsOverlapping(ctx, tenantID, p.BillboardID, p.Period.Start, p.Period.End)
	if err != nil {
		return model.Rental{}, err
	}
	if len(existing) > 0 {
		return model.Rental{}, ConflictWith(existing[0])
	}

	r := model.Rental{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		BillboardID: p.BillboardID,
		ClientID:    client.ID,
		Period:      p.Period,
		SyncCode:    p.SyncCode,
		Origin:      p.Origin,
		CreatedAt:   e.Now(),
	}
	if err := tx.InsertRental(ctx, r); err != nil {
		if errors.Is(err, storage.ErrOverlap) {
			return model.Rental{}, &apperr.ConflictError{BillboardID: p.BillboardID, Start: p.Period.Start, End: p.Period.End}
		}
		return model.Rental{}, err
	}
	if r.Period.Contains(e.Now()) {
		if err := e.RefreshOccupancy(ctx, tx, tenantID, r.BillboardID); err != nil {
			return model.Rental{}, err
		}
	}
	if err := e.enqueue(ctx, tx, outbox.RentalCreated, r); err != nil {
		return model.Rental{}, err
	}

	r.ClientName = client.Name
	return r, nil
}

// DeleteRentalTx removes r inside tx and recomputes occupancy when r covered today.
func (e *Engine) DeleteRentalTx(ctx context.Context, tx storage.Tx, r model.Rental) error {
	if _, err := tx.LockBillboard(ctx, r.TenantID, r.BillboardID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err := tx.DeleteRental(ctx, r.TenantID, r.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("rental %s", r.ID)
		}
		return err
	}
	if r.Period.Contains(e.Now()) {
		if err := e.RefreshOccupancy(ctx, tx, r.TenantID, r.BillboardID); err != nil {
			return err
		}
	}
	return e.enqueue(ctx, tx, outbox.RentalDeleted, r)
}

// RefreshOccupancy recomputes the billboard's occupied-today flag from its
// rentals. It never toggles.
func (e *Engine) RefreshOccupancy(ctx context.Context, tx storage.Tx, tenantID, billboardID string) error {
	occupied, err := tx.HasRentalOn(ctx, tenantID, billboardID, e.Now())
	if err != nil {
		return err
	}
	return tx.SetOccupiedToday(ctx, tenantID, billboardID, occupied)
}

// ConflictWith is the error reported when r blocks another rental.
func ConflictWith(r model.Rental) error {
	return &apperr.ConflictError{
		BillboardID: r.BillboardID,
		RentalID:    r.ID,
		Start:       r.Period.Start,
		End:         r.Period.End,
	}
}

type rentalPayload struct {
	RentalID    string   `json:"rental_id"`
	TenantID    string   `json:"tenant_id"`
	BillboardID string   `json:"billboard_id"`
	ClientID    string   `json:"client_id"`
	PeriodKind  string   `json:"period_kind"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	BiWeekIDs   []string `json:"biweek_ids,omitempty"`
	SyncCode    string   `json:"sync_code,omitempty"`
	Origin      string   `json:"origin"`
}

func (e *Engine) enqueue(ctx context.Context, tx storage.Tx, eventType string, r model.Rental) error {
	payload, err := json.Marshal(rentalPayload{
		RentalID:    r.ID,
		TenantID:    r.TenantID,
		BillboardID: r.BillboardID,
		ClientID:    r.ClientID,
		PeriodKind:  string(r.Period.Kind),
		Start:       r.Period.Start.Format(time.RFC3339Nano),
		End:         r.Period.End.Format(time.RFC3339Nano),
		BiWeekIDs:   r.Period.BiWeekIDs,
		SyncCode:    r.SyncCode,
		Origin:      string(r.Origin),
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	return tx.EnqueueEvent(ctx, outbox.Event{
		AggregateType: "rental",
		AggregateID:   r.ID,
		EventType:     eventType,
		TenantID:      r.TenantID,
		Payload:       payload,
	})
}

func (e *Engine) fail(span trace.Span, msg string, err error, attrs ...any) {
	kind := apperr.Kind(err)
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.kind", kind))
	attrs = append(attrs, "error_kind", kind, "err", err)
	switch kind {
	case "transient", "unexpected":
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error(msg, attrs...)
	default:
		e.logger.Warn(msg, attrs...)
	}
}
