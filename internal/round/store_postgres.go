package round

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
)

// PostgresStore reads round state from PostgreSQL. A round is open for a
// territory when the territory's tenant has a round row whose window
// contains now.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed round store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) OpenRound(ctx context.Context, territoryID id.TerritoryID, now time.Time) (int, error) {
	query := `
		SELECT r.number
		FROM rounds r
		JOIN territories t ON t.tenant_id = r.tenant_id
		WHERE t.id = $1 AND r.starts_at <= $2 AND r.ends_at > $2
		ORDER BY r.number DESC
		LIMIT 1
	`
	var number int
	err := s.db.QueryRowContext(ctx, query, territoryID.String(), now).Scan(&number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("no open round for territory: %w", sentinel.ErrNotFound)
		}
		return 0, fmt.Errorf("find open round: %w", err)
	}
	return number, nil
}

func (s *PostgresStore) Info(ctx context.Context, tenantID id.TenantID, number int) (*Info, error) {
	query := `
		SELECT tenant_id, number, name, theme, starts_at, ends_at
		FROM rounds
		WHERE tenant_id = $1 AND number = $2
	`
	var (
		info      Info
		tenantRaw string
		theme     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, tenantID.String(), number).
		Scan(&tenantRaw, &info.Number, &info.Name, &theme, &info.StartsAt, &info.EndsAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("round info not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find round info: %w", err)
	}
	if info.TenantID, err = id.ParseTenantID(tenantRaw); err != nil {
		return nil, fmt.Errorf("find round info: %w", err)
	}
	info.Theme = theme.String
	return &info, nil
}
