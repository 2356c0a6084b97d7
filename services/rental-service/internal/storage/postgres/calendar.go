package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
)

// SaveBiWeeks writes weeks in one transaction. Overwrite replaces bounds but
// keeps each row's active flag.
func (s *Store) SaveBiWeeks(ctx context.Context, tenantID string, weeks []model.BiWeek, mode storage.SaveMode) (storage.SaveResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.SaveResult{}, classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var res storage.SaveResult
	for _, w := range weeks {
		var inserted bool
		switch mode {
		case storage.SaveOverwrite:
			err = tx.QueryRow(ctx, `
				INSERT INTO biweeks (tenant_id, id, year, seq, start_at, end_at, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (tenant_id, id) DO UPDATE
				SET year = EXCLUDED.year, seq = EXCLUDED.seq, start_at = EXCLUDED.start_at, end_at = EXCLUDED.end_at, updated_at = now()
				RETURNING (xmax = 0)
			`, tenantID, w.ID, w.Year, w.Seq, w.Start, w.End, w.Active).Scan(&inserted)
			if err == nil && !inserted {
				res.Updated++
			}
		default:
			err = tx.QueryRow(ctx, `
				INSERT INTO biweeks (tenant_id, id, year, seq, start_at, end_at, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (tenant_id, id) DO NOTHING
				RETURNING TRUE
			`, tenantID, w.ID, w.Year, w.Seq, w.Start, w.End, w.Active).Scan(&inserted)
			if errors.Is(err, pgx.ErrNoRows) {
				err = nil
				res.Skipped++
			}
		}
		if err != nil {
			return storage.SaveResult{}, classify(err)
		}
		if inserted {
			res.Created++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storage.SaveResult{}, classify(err)
	}
	return res, nil
}

func (s *Store) GetBiWeeks(ctx context.Context, tenantID string, ids []string) ([]model.BiWeek, error) {
	return s.queryBiWeeks(ctx, `
		SELECT id, tenant_id, year, seq, start_at, end_at, active
		FROM biweeks
		WHERE tenant_id = $1 AND id = ANY($2)
		ORDER BY start_at ASC
	`, tenantID, ids)
}

func (s *Store) ListBiWeeksOverlapping(ctx context.Context, tenantID string, start, end time.Time) ([]model.BiWeek, error) {
	return s.queryBiWeeks(ctx, `
		SELECT id, tenant_id, year, seq, start_at, end_at, active
		FROM biweeks
		WHERE tenant_id = $1 AND start_at <= $3 AND end_at >= $2
		ORDER BY start_at ASC
	`, tenantID, start, end)
}

func (s *Store) SetBiWeekActive(ctx context.Context, tenantID, id string, active bool) (model.BiWeek, error) {
	var w model.BiWeek
	err := s.pool.QueryRow(ctx, `
		UPDATE biweeks SET active = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING id, tenant_id, year, seq, start_at, end_at, active
	`, tenantID, id, active).Scan(&w.ID, &w.TenantID, &w.Year, &w.Seq, &w.Start, &w.End, &w.Active)
	if err != nil {
		return model.BiWeek{}, classify(err)
	}
	w.Start, w.End = w.Start.UTC(), w.End.UTC()
	return w, nil
}

func (s *Store) queryBiWeeks(ctx context.Context, sql string, args ...any) ([]model.BiWeek, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.BiWeek
	for rows.Next() {
		var w model.BiWeek
		if err := rows.Scan(&w.ID, &w.TenantID, &w.Year, &w.Seq, &w.Start, &w.End, &w.Active); err != nil {
			return nil, classify(err)
		}
		w.Start, w.End = w.Start.UTC(), w.End.UTC()
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return out, nil
}
