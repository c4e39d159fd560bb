package params

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore reads tenant parameters from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed parameter store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetValue(ctx context.Context, tenantID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM tenant_parameters WHERE tenant_id = $1 AND key = $2`,
		tenantID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get tenant parameter: %w", err)
	}
	return value, true, nil
}
