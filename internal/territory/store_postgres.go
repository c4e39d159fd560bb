package territory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
)

// PostgresStore reads the resource tree from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tree store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindTerritory(ctx context.Context, territoryID id.TerritoryID) (*Territory, error) {
	var (
		t         Territory
		idRaw     string
		tenantRaw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name FROM territories WHERE id = $1`, territoryID.String()).
		Scan(&idRaw, &tenantRaw, &t.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("territory not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find territory: %w", err)
	}
	if t.ID, err = id.ParseTerritoryID(idRaw); err != nil {
		return nil, fmt.Errorf("find territory: %w", err)
	}
	if t.TenantID, err = id.ParseTenantID(tenantRaw); err != nil {
		return nil, fmt.Errorf("find territory: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) FindBlock(ctx context.Context, territoryID id.TerritoryID, blockID id.BlockID) (*Block, error) {
	var (
		b            Block
		idRaw        string
		territoryRaw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, territory_id, name FROM blocks WHERE id = $1 AND territory_id = $2`,
		blockID.String(), territoryID.String()).
		Scan(&idRaw, &territoryRaw, &b.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("block not found in territory: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find block: %w", err)
	}
	if b.ID, err = id.ParseBlockID(idRaw); err != nil {
		return nil, fmt.Errorf("find block: %w", err)
	}
	if b.TerritoryID, err = id.ParseTerritoryID(territoryRaw); err != nil {
		return nil, fmt.Errorf("find block: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) ListBlocks(ctx context.Context, territoryID id.TerritoryID) ([]*Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, territory_id, name FROM blocks WHERE territory_id = $1 ORDER BY name`,
		territoryID.String())
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*Block
	for rows.Next() {
		var (
			b            Block
			idRaw        string
			territoryRaw string
		)
		if err := rows.Scan(&idRaw, &territoryRaw, &b.Name); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		if b.ID, err = id.ParseBlockID(idRaw); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		if b.TerritoryID, err = id.ParseTerritoryID(territoryRaw); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return blocks, nil
}

func (s *PostgresStore) ListHouses(ctx context.Context, blockID id.BlockID) ([]*House, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, block_id, territory_id, tenant_id, address FROM houses WHERE block_id = $1 ORDER BY address`,
		blockID.String())
	if err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}
	defer rows.Close()

	var houses []*House
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, err
		}
		houses = append(houses, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}
	return houses, nil
}

func (s *PostgresStore) FindHouse(ctx context.Context, houseID id.HouseID) (*House, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, block_id, territory_id, tenant_id, address FROM houses WHERE id = $1`,
		houseID.String())
	if err != nil {
		return nil, fmt.Errorf("find house: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("find house: %w", err)
		}
		return nil, fmt.Errorf("house not found: %w", sentinel.ErrNotFound)
	}
	return scanHouse(rows)
}

func scanHouse(rows *sql.Rows) (*House, error) {
	var (
		h            House
		idRaw        string
		blockRaw     string
		territoryRaw string
		tenantRaw    string
	)
	if err := rows.Scan(&idRaw, &blockRaw, &territoryRaw, &tenantRaw, &h.Address); err != nil {
		return nil, fmt.Errorf("scan house: %w", err)
	}
	var err error
	if h.ID, err = id.ParseHouseID(idRaw); err != nil {
		return nil, fmt.Errorf("scan house: %w", err)
	}
	if h.BlockID, err = id.ParseBlockID(blockRaw); err != nil {
		return nil, fmt.Errorf("scan house: %w", err)
	}
	if h.TerritoryID, err = id.ParseTerritoryID(territoryRaw); err != nil {
		return nil, fmt.Errorf("scan house: %w", err)
	}
	if h.TenantID, err = id.ParseTenantID(tenantRaw); err != nil {
		return nil, fmt.Errorf("scan house: %w", err)
	}
	return &h, nil
}
