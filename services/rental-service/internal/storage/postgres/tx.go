package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/outbox"
)

type pgTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

const rentalColumns = `
	r.id, r.tenant_id, r.billboard_id, r.client_id, COALESCE(c.name, ''),
	r.period_kind, r.start_at, r.end_at, r.biweek_ids, COALESCE(r.sync_code, ''), r.origin, r.created_at`

const proposalColumns = `
	id, tenant_id, client_id, title, period_kind, start_at, end_at, biweek_ids, billboard_ids, sync_code, created_at, updated_at`

const rentalFrom = `
	FROM rentals r
	LEFT JOIN clients c ON c.tenant_id = r.tenant_id AND c.id = r.client_id`

func (t *pgTx) LockBillboard(ctx context.Context, tenantID, billboardID string) (model.Billboard, error) {
	var b model.Billboard
	err := t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, code, occupied_today, maintenance_mode
		FROM billboards
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE
	`, tenantID, billboardID).Scan(&b.ID, &b.TenantID, &b.Code, &b.OccupiedToday, &b.MaintenanceMode)
	if err != nil {
		return model.Billboard{}, classify(err)
	}
	return b, nil
}

func (t *pgTx) SetOccupiedToday(ctx context.Context, tenantID, billboardID string, occupied bool) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE billboards
		SET occupied_today = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND occupied_today IS DISTINCT FROM $3
	`, tenantID, billboardID, occupied)
	return classify(err)
}

func (t *pgTx) HasRentalOn(ctx context.Context, tenantID, billboardID string, at time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rentals
			WHERE tenant_id = $1 AND billboard_id = $2 AND start_at <= $3 AND end_at >= $3
		)
	`, tenantID, billboardID, at).Scan(&exists)
	return exists, classify(err)
}

func (t *pgTx) ReconcileOccupancy(ctx context.Context, at time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE billboards b
		SET occupied_today = s.occupied, updated_at = now()
		FROM (
			SELECT bb.tenant_id, bb.id, EXISTS (
				SELECT 1 FROM rentals r
				WHERE r.tenant_id = bb.tenant_id AND r.billboard_id = bb.id
					AND r.start_at <= $1 AND r.end_at >= $1
			) AS occupied
			FROM billboards bb
		) s
		WHERE b.tenant_id = s.tenant_id AND b.id = s.id AND b.occupied_today IS DISTINCT FROM s.occupied
	`, at)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) GetClient(ctx context.Context, tenantID, clientID string) (model.Client, error) {
	var c model.Client
	err := t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, name FROM clients WHERE tenant_id = $1 AND id = $2
	`, tenantID, clientID).Scan(&c.ID, &c.TenantID, &c.Name)
	if err != nil {
		return model.Client{}, classify(err)
	}
	return c, nil
}

func (t *pgTx) ListRentalsOverlapping(ctx context.Context, tenantID, billboardID string, start, end time.Time) ([]model.Rental, error) {
	return t.queryRentals(ctx, `
		SELECT`+rentalColumns+rentalFrom+`
		WHERE r.tenant_id = $1 AND r.billboard_id = $2 AND r.start_at <= $4 AND r.end_at >= $3
		ORDER BY r.start_at ASC
	`, tenantID, billboardID, start, end)
}

func (t *pgTx) InsertRental(ctx context.Context, r model.Rental) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO rentals
			(tenant_id, id, billboard_id, client_id, period_kind, start_at, end_at, biweek_ids, sync_code, origin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)
	`, r.TenantID, r.ID, r.BillboardID, r.ClientID, string(r.Period.Kind), r.Period.Start, r.Period.End,
		biweekIDs(r.Period), r.SyncCode, string(r.Origin), r.CreatedAt)
	return classify(err)
}

func (t *pgTx) GetRental(ctx context.Context, tenantID, rentalID string) (model.Rental, error) {
	rs, err := t.queryRentals(ctx, `
		SELECT`+rentalColumns+rentalFrom+`
		WHERE r.tenant_id = $1 AND r.id = $2
		FOR UPDATE OF r
	`, tenantID, rentalID)
	if err != nil {
		return model.Rental{}, err
	}
	if len(rs) == 0 {
		return model.Rental{}, classify(pgx.ErrNoRows)
	}
	return rs[0], nil
}

func (t *pgTx) DeleteRental(ctx context.Context, tenantID, rentalID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM rentals WHERE tenant_id = $1 AND id = $2`, tenantID, rentalID)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return classify(pgx.ErrNoRows)
	}
	return nil
}

func (t *pgTx) ListRentalsBySyncCode(ctx context.Context, tenantID, syncCode string) ([]model.Rental, error) {
	return t.queryRentals(ctx, `
		SELECT`+rentalColumns+rentalFrom+`
		WHERE r.tenant_id = $1 AND r.sync_code = $2
		ORDER BY r.start_at ASC, r.billboard_id ASC
		FOR UPDATE OF r
	`, tenantID, syncCode)
}

func (t *pgTx) UpdateRentalPeriods(ctx context.Context, tenantID, syncCode string, p model.Period) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE rentals
		SET period_kind = $3, start_at = $4, end_at = $5, biweek_ids = $6
		WHERE tenant_id = $1 AND sync_code = $2
	`, tenantID, syncCode, string(p.Kind), p.Start, p.End, biweekIDs(p))
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) InsertProposal(ctx context.Context, p model.Proposal) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO proposals
			(tenant_id, id, client_id, title, period_kind, start_at, end_at, biweek_ids, billboard_ids, sync_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.TenantID, p.ID, p.ClientID, p.Title, string(p.Period.Kind), p.Period.Start, p.Period.End,
		biweekIDs(p.Period), p.BillboardIDs, p.SyncCode, p.CreatedAt, p.UpdatedAt)
	return classify(err)
}

func (t *pgTx) GetProposalForUpdate(ctx context.Context, tenantID, id string) (model.Proposal, error) {
	return scanProposal(t.tx.QueryRow(ctx, `
		SELECT`+proposalColumns+`
		FROM proposals
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE
	`, tenantID, id))
}

func (t *pgTx) UpdateProposal(ctx context.Context, p model.Proposal) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE proposals
		SET title = $3, period_kind = $4, start_at = $5, end_at = $6, biweek_ids = $7, billboard_ids = $8, updated_at = $9
		WHERE tenant_id = $1 AND id = $2
	`, p.TenantID, p.ID, p.Title, string(p.Period.Kind), p.Period.Start, p.Period.End, biweekIDs(p.Period), p.BillboardIDs, p.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return classify(pgx.ErrNoRows)
	}
	return nil
}

func (t *pgTx) DeleteProposal(ctx context.Context, tenantID, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM proposals WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return classify(pgx.ErrNoRows)
	}
	return nil
}

func (t *pgTx) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	return classify(t.outbox.Insert(ctx, t.tx, evt))
}

func (t *pgTx) queryRentals(ctx context.Context, sql string, args ...any) ([]model.Rental, error) {
	return queryRentals(ctx, t.tx, sql, args...)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryRentals(ctx context.Context, q querier, sql string, args ...any) ([]model.Rental, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.Rental
	for rows.Next() {
		var (
			r            model.Rental
			kind, origin string
		)
		if err := rows.Scan(&r.ID, &r.TenantID, &r.BillboardID, &r.ClientID, &r.ClientName,
			&kind, &r.Period.Start, &r.Period.End, &r.Period.BiWeekIDs, &r.SyncCode, &origin, &r.CreatedAt); err != nil {
			return nil, classify(err)
		}
		r.Period = normalize(kind, r.Period)
		r.Origin = model.RentalOrigin(origin)
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return out, nil
}

// normalize restores the in-memory shape of a period read from a row.
func normalize(kind string, p model.Period) model.Period {
	p.Kind = model.PeriodKind(kind)
	p.Start = p.Start.UTC()
	p.End = p.End.UTC()
	if len(p.BiWeekIDs) == 0 {
		p.BiWeekIDs = nil
	}
	return p
}

func biweekIDs(p model.Period) []string {
	if p.BiWeekIDs == nil {
		return []string{}
	}
	return p.BiWeekIDs
}

func scanProposal(row pgx.Row) (model.Proposal, error) {
	var (
		p    model.Proposal
		kind string
	)
	err := row.Scan(&p.ID, &p.TenantID, &p.ClientID, &p.Title, &kind, &p.Period.Start, &p.Period.End,
		&p.Period.BiWeekIDs, &p.BillboardIDs, &p.SyncCode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Proposal{}, classify(err)
	}
	p.Period = normalize(kind, p.Period)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
