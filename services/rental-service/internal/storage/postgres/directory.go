package postgres

import (
	"context"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
)

func (s *Store) PutBillboard(ctx context.Context, b model.Billboard) (model.Billboard, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO billboards (tenant_id, id, code, maintenance_mode)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, id) DO UPDATE
		SET code = EXCLUDED.code, maintenance_mode = EXCLUDED.maintenance_mode, updated_at = now()
		RETURNING occupied_today
	`, b.TenantID, b.ID, b.Code, b.MaintenanceMode).Scan(&b.OccupiedToday)
	if err != nil {
		return model.Billboard{}, classify(err)
	}
	return b, nil
}

func (s *Store) GetBillboard(ctx context.Context, tenantID, id string) (model.Billboard, error) {
	var b model.Billboard
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, code, occupied_today, maintenance_mode
		FROM billboards
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id).Scan(&b.ID, &b.TenantID, &b.Code, &b.OccupiedToday, &b.MaintenanceMode)
	if err != nil {
		return model.Billboard{}, classify(err)
	}
	return b, nil
}

func (s *Store) PutClient(ctx context.Context, c model.Client) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO clients (tenant_id, id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, id) DO UPDATE SET name = EXCLUDED.name
	`, c.TenantID, c.ID, c.Name)
	return classify(err)
}
