package batch

import (
	"context"
	"database/sql"
	"fmt"

	id "fieldkey/pkg/domain"
)

// PostgresStore persists sync batches in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed batch store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, b *Batch) error {
	query := `
		INSERT INTO sync_batches (id, tenant_id, territory_id, token_jti, received_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.TenantID.String(), b.TerritoryID.String(), b.TokenJTI, b.ReceivedAt, b.Payload)
	if err != nil {
		return fmt.Errorf("append sync batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) ForTerritory(ctx context.Context, territoryID id.TerritoryID) ([]*Batch, error) {
	query := `
		SELECT id, tenant_id, territory_id, token_jti, received_at, payload
		FROM sync_batches
		WHERE territory_id = $1
		ORDER BY received_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, territoryID.String())
	if err != nil {
		return nil, fmt.Errorf("list sync batches: %w", err)
	}
	defer rows.Close()

	var out []*Batch
	for rows.Next() {
		var (
			b            Batch
			tenantRaw    string
			territoryRaw string
		)
		if err := rows.Scan(&b.ID, &tenantRaw, &territoryRaw, &b.TokenJTI, &b.ReceivedAt, &b.Payload); err != nil {
			return nil, fmt.Errorf("scan sync batch: %w", err)
		}
		if b.TenantID, err = id.ParseTenantID(tenantRaw); err != nil {
			return nil, fmt.Errorf("scan sync batch: %w", err)
		}
		if b.TerritoryID, err = id.ParseTerritoryID(territoryRaw); err != nil {
			return nil, fmt.Errorf("scan sync batch: %w", err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sync batches: %w", err)
	}
	return out, nil
}
