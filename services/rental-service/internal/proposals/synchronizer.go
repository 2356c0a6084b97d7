// Package proposals keeps a proposal and the rentals sharing its sync code in
// step: one rental per proposal billboard, all on the proposal's period.
package proposals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/billboardrent/libs/otel"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/apperr"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/outbox"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/period"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/rentals"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Synchronizer struct {
	engine  *rentals.Engine
	logger  *slog.Logger
	tracer  trace.Tracer
	newCode func() string
}

func NewSynchronizer(engine *rentals.Engine, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		engine:  engine,
		logger:  logger.With("component", "proposals"),
		tracer:  otelx.Tracer("proposals"),
		newCode: uuid.NewString,
	}
}

type CreateRequest struct {
	ClientID     string
	Title        string
	BillboardIDs []string
	Period       model.Period
}

// UpdateRequest leaves nil fields unchanged.
type UpdateRequest struct {
	Title        *string
	BillboardIDs []string
	Period       *model.Period
}

// Change summarises what an update did to the proposal's rentals.
type Change struct {
	Added         []string
	Removed       []string
	PeriodChanged bool
}

func (s *Synchronizer) CreateProposal(ctx context.Context, tenantID string, req CreateRequest) (model.Proposal, error) {
	ctx, span := s.tracer.Start(ctx, "proposals.create", trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	billboards, err := billboardSet(req.BillboardIDs)
	if err != nil {
		return model.Proposal{}, s.fail(span, "create proposal rejected", err, "tenant_id", tenantID)
	}
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(req.ClientID) == "" {
		return model.Proposal{}, s.fail(span, "create proposal rejected", apperr.Invalid("tenant and client are required"), "tenant_id", tenantID)
	}
	if err := period.Check(req.Period); err != nil {
		return model.Proposal{}, s.fail(span, "create proposal rejected", err, "tenant_id", tenantID)
	}

	// The code is drawn once so retries replay identical inputs.
	id := uuid.NewString()
	code := s.newCode()

	var created model.Proposal
	err = s.engine.Transact(ctx, "create_proposal", func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetClient(ctx, tenantID, req.ClientID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.Invalid("client %s does not belong to tenant %s", req.ClientID, tenantID)
			}
			return err
		}

		now := s.engine.Now()
		p := model.Proposal{
			ID:           id,
			TenantID:     tenantID,
			ClientID:     req.ClientID,
			Title:        strings.TrimSpace(req.Title),
			Period:       req.Period,
			BillboardIDs: billboards,
			SyncCode:     code,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.InsertProposal(ctx, p); err != nil {
			return err
		}
		for _, b := range billboards {
			if _, err := s.engine.CreateRentalTx(ctx, tx, tenantID, s.placement(p, b)); err != nil {
				return err
			}
		}
		if err := s.enqueue(ctx, tx, outbox.ProposalCreated, p, Change{Added: billboards}); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return model.Proposal{}, s.fail(span, "create proposal failed", err, "tenant_id", tenantID)
	}
	s.logger.Info("proposal created", "tenant_id", tenantID, "proposal_id", created.ID, "sync_code", created.SyncCode,
		"billboards", len(created.BillboardIDs))
	return created, nil
}

func (s *Synchronizer) UpdateProposal(ctx context.Context, tenantID, proposalID string, req UpdateRequest) (model.Proposal, Change, error) {
	ctx, span := s.tracer.Start(ctx, "proposals.update", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("proposal.id", proposalID),
	))
	defer span.End()

	var wanted []string
	if req.BillboardIDs != nil {
		set, err := billboardSet(req.BillboardIDs)
		if err != nil {
			return model.Proposal{}, Change{}, s.fail(span, "update proposal rejected", err, "proposal_id", proposalID)
		}
		wanted = set
	}
	if req.Period != nil {
		if err := period.Check(*req.Period); err != nil {
			return model.Proposal{}, Change{}, s.fail(span, "update proposal rejected", err, "proposal_id", proposalID)
		}
	}

	var (
		updated model.Proposal
		change  Change
	)
	err := s.engine.Transact(ctx, "update_proposal", func(ctx context.Context, tx storage.Tx) error {
		p, err := s.loadProposal(ctx, tx, tenantID, proposalID)
		if err != nil {
			return err
		}
		next := p
		if wanted != nil {
			next.BillboardIDs = wanted
		}
		if req.Period != nil {
			next.Period = *req.Period
		}
		if req.Title != nil {
			next.Title = strings.TrimSpace(*req.Title)
		}

		c, err := s.sync(ctx, tx, p, next)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.engine.Now()
		if err := tx.UpdateProposal(ctx, next); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, outbox.ProposalUpdated, next, c); err != nil {
			return err
		}
		updated, change = next, c
		return nil
	})
	if err != nil {
		return model.Proposal{}, Change{}, s.fail(span, "update proposal failed", err, "tenant_id", tenantID, "proposal_id", proposalID)
	}
	s.logger.Info("proposal updated", "tenant_id", tenantID, "proposal_id", proposalID,
		"added", change.Added, "removed", change.Removed, "period_changed", change.PeriodChanged)
	return updated, change, nil
}

// sync rewrites the rentals carrying prev's code so they match next.
// Rentals for billboards no longer wanted are deleted, kept rentals move to
// the new period in place, and wanted billboards without a rental get one.
func (s *Synchronizer) sync(ctx context.Context, tx storage.Tx, prev, next model.Proposal) (Change, error) {
	existing, err := tx.ListRentalsBySyncCode(ctx, prev.TenantID, prev.SyncCode)
	if err != nil {
		return Change{}, err
	}
	var change Change

	have := make(map[string]model.Rental, len(existing))
	for _, r := range existing {
		if !slices.Contains(next.BillboardIDs, r.BillboardID) {
			if err := s.engine.DeleteRentalTx(ctx, tx, r); err != nil {
				return Change{}, err
			}
			change.Removed = append(change.Removed, r.BillboardID)
			continue
		}
		have[r.BillboardID] = r
	}

	if !next.Period.Equal(prev.Period) {
		change.PeriodChanged = true
		for _, r := range have {
			others, err := tx.ListRentalsOverlapping(ctx, prev.TenantID, r.BillboardID, next.Period.Start, next.Period.End)
			if err != nil {
				return Change{}, err
			}
			for _, o := range others {
				if o.SyncCode != prev.SyncCode {
					return Change{}, rentals.ConflictWith(o)
				}
			}
		}
		if len(have) > 0 {
			if _, err := tx.UpdateRentalPeriods(ctx, prev.TenantID, prev.SyncCode, next.Period); err != nil {
				if errors.Is(err, storage.ErrOverlap) {
					return Change{}, fmt.Errorf("%w: %v", apperr.ErrConflict, err)
				}
				return Change{}, err
			}
		}
		for _, b := range next.BillboardIDs {
			if _, ok := have[b]; !ok {
				continue
			}
			if err := s.engine.RefreshOccupancy(ctx, tx, prev.TenantID, b); err != nil {
				return Change{}, err
			}
		}
	}

	for _, b := range next.BillboardIDs {
		if _, ok := have[b]; ok {
			continue
		}
		if _, err := s.engine.CreateRentalTx(ctx, tx, prev.TenantID, s.placement(next, b)); err != nil {
			return Change{}, err
		}
		change.Added = append(change.Added, b)
	}
	return change, nil
}

func (s *Synchronizer) DeleteProposal(ctx context.Context, tenantID, proposalID string) error {
	ctx, span := s.tracer.Start(ctx, "proposals.delete", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("proposal.id", proposalID),
	))
	defer span.End()

	removed := 0
	err := s.engine.Transact(ctx, "delete_proposal", func(ctx context.Context, tx storage.Tx) error {
		removed = 0
		p, err := s.loadProposal(ctx, tx, tenantID, proposalID)
		if err != nil {
			return err
		}
		owned, err := tx.ListRentalsBySyncCode(ctx, tenantID, p.SyncCode)
		if err != nil {
			return err
		}
		var change Change
		for _, r := range owned {
			if err := s.engine.DeleteRentalTx(ctx, tx, r); err != nil {
				return err
			}
			change.Removed = append(change.Removed, r.BillboardID)
		}
		if err := tx.DeleteProposal(ctx, tenantID, proposalID); err != nil {
			return err
		}
		removed = len(owned)
		return s.enqueue(ctx, tx, outbox.ProposalDeleted, p, change)
	})
	if err != nil {
		return s.fail(span, "delete proposal failed", err, "tenant_id", tenantID, "proposal_id", proposalID)
	}
	s.logger.Info("proposal deleted", "tenant_id", tenantID, "proposal_id", proposalID, "rentals_removed", removed)
	return nil
}

// GetProposal reads a proposal with its rentals outside any transaction.
// The two reads are not a snapshot; a concurrent update may land between them.
func (s *Synchronizer) GetProposal(ctx context.Context, tenantID, proposalID string) (model.Proposal, []model.Rental, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(proposalID) == "" {
		return model.Proposal{}, nil, apperr.Invalid("tenant and proposal id are required")
	}
	reader := s.engine.Reader()
	p, err := reader.GetProposal(ctx, tenantID, proposalID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Proposal{}, nil, apperr.NotFound("proposal %s", proposalID)
	}
	if err != nil {
		return model.Proposal{}, nil, err
	}
	own, err := reader.ListRentalsBySyncCode(ctx, tenantID, p.SyncCode)
	if err != nil {
		return model.Proposal{}, nil, err
	}
	return p, own, nil
}

func (s *Synchronizer) loadProposal(ctx context.Context, tx storage.Tx, tenantID, proposalID string) (model.Proposal, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(proposalID) == "" {
		return model.Proposal{}, apperr.Invalid("tenant and proposal id are required")
	}
	p, err := tx.GetProposalForUpdate(ctx, tenantID, proposalID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Proposal{}, apperr.NotFound("proposal %s", proposalID)
	}
	return p, err
}

func (s *Synchronizer) placement(p model.Proposal, billboardID string) rentals.Placement {
	return rentals.Placement{
		BillboardID: billboardID,
		ClientID:    p.ClientID,
		Period:      p.Period,
		SyncCode:    p.SyncCode,
		Origin:      model.OriginProposal,
	}
}

// billboardSet trims and de-duplicates ids keeping first occurrences.
func billboardSet(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, apperr.Invalid("a proposal needs at least one billboard")
	}
	return out, nil
}

type proposalPayload struct {
	ProposalID    string   `json:"proposal_id"`
	TenantID      string   `json:"tenant_id"`
	ClientID      string   `json:"client_id"`
	SyncCode      string   `json:"sync_code"`
	BillboardIDs  []string `json:"billboard_ids"`
	PeriodKind    string   `json:"period_kind"`
	Start         string   `json:"start"`
	End           string   `json:"end"`
	Added         []string `json:"added,omitempty"`
	Removed       []string `json:"removed,omitempty"`
	PeriodChanged bool     `json:"period_changed,omitempty"`
}

func (s *Synchronizer) enqueue(ctx context.Context, tx storage.Tx, eventType string, p model.Proposal, c Change) error {
	payload, err := json.Marshal(proposalPayload{
		ProposalID:    p.ID,
		TenantID:      p.TenantID,
		ClientID:      p.ClientID,
		SyncCode:      p.SyncCode,
		BillboardIDs:  p.BillboardIDs,
		PeriodKind:    string(p.Period.Kind),
		Start:         p.Period.Start.Format(time.RFC3339Nano),
		End:           p.Period.End.Format(time.RFC3339Nano),
		Added:         c.Added,
		Removed:       c.Removed,
		PeriodChanged: c.PeriodChanged,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	return tx.EnqueueEvent(ctx, outbox.Event{
		AggregateType: "proposal",
		AggregateID:   p.ID,
		EventType:     eventType,
		TenantID:      p.TenantID,
		Payload:       payload,
	})
}

func (s *Synchronizer) fail(span trace.Span, msg string, err error, attrs ...any) error {
	kind := apperr.Kind(err)
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.kind", kind))
	attrs = append(attrs, "error_kind", kind, "err", err)
	if kind == "transient" || kind == "unexpected" {
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(msg, attrs...)
	} else {
		s.logger.Warn(msg, attrs...)
	}
	return err
}
