package postgres

import (
	"context"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
)

func (s *Store) GetProposal(ctx context.Context, tenantID, id string) (model.Proposal, error) {
	return scanProposal(s.pool.QueryRow(ctx, `
		SELECT`+proposalColumns+`
		FROM proposals
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id))
}

func (s *Store) ListRentalsBySyncCode(ctx context.Context, tenantID, syncCode string) ([]model.Rental, error) {
	return queryRentals(ctx, s.pool, `
		SELECT`+rentalColumns+rentalFrom+`
		WHERE r.tenant_id = $1 AND r.sync_code = $2
		ORDER BY r.start_at ASC, r.billboard_id ASC
	`, tenantID, syncCode)
}
