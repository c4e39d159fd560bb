package visit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
)

// PostgresStore persists visit records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed visit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO visit_records
			(tenant_id, territory_id, block_id, house_id, round, completed, visited_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (house_id, round) DO UPDATE SET
			completed = EXCLUDED.completed,
			visited_at = EXCLUDED.visited_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		record.TenantID.String(), record.TerritoryID.String(), record.BlockID.String(),
		record.HouseID.String(), record.Round, record.Completed, record.VisitedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert visit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, houseID id.HouseID, round int) (*Record, error) {
	query := recordSelect + ` WHERE house_id = $1 AND round = $2`
	rows, err := s.db.QueryContext(ctx, query, houseID.String(), round)
	if err != nil {
		return nil, fmt.Errorf("find visit record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("find visit record: %w", err)
		}
		return nil, fmt.Errorf("visit record not found: %w", sentinel.ErrNotFound)
	}
	return scanRecord(rows)
}

func (s *PostgresStore) ForHousesRound(ctx context.Context, houseIDs []id.HouseID, round int) (map[id.HouseID]*Record, error) {
	if len(houseIDs) == 0 {
		return map[id.HouseID]*Record{}, nil
	}
	raw := make([]string, 0, len(houseIDs))
	for _, houseID := range houseIDs {
		raw = append(raw, houseID.String())
	}
	query := recordSelect + ` WHERE round = $1 AND house_id = ANY($2::uuid[])`
	rows, err := s.db.QueryContext(ctx, query, round, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("list visit records: %w", err)
	}
	defer rows.Close()

	out := make(map[id.HouseID]*Record, len(houseIDs))
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[r.HouseID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visit records: %w", err)
	}
	return out, nil
}

const recordSelect = `
	SELECT tenant_id, territory_id, block_id, house_id, round, completed, visited_at, updated_at
	FROM visit_records`

func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		r            Record
		tenantRaw    string
		territoryRaw string
		blockRaw     string
		houseRaw     string
	)
	err := rows.Scan(&tenantRaw, &territoryRaw, &blockRaw, &houseRaw,
		&r.Round, &r.Completed, &r.VisitedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("visit record not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan visit record: %w", err)
	}
	if r.TenantID, err = id.ParseTenantID(tenantRaw); err != nil {
		return nil, fmt.Errorf("scan visit record: %w", err)
	}
	if r.TerritoryID, err = id.ParseTerritoryID(territoryRaw); err != nil {
		return nil, fmt.Errorf("scan visit record: %w", err)
	}
	if r.BlockID, err = id.ParseBlockID(blockRaw); err != nil {
		return nil, fmt.Errorf("scan visit record: %w", err)
	}
	if r.HouseID, err = id.ParseHouseID(houseRaw); err != nil {
		return nil, fmt.Errorf("scan visit record: %w", err)
	}
	return &r, nil
}
