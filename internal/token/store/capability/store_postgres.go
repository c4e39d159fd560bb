package capability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fieldkey/internal/token/models"
	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
	txcontext "fieldkey/pkg/platform/tx"
)

// PostgresStore persists capability tokens in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed token store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, token *models.CapabilityToken) error {
	query := `
		INSERT INTO capability_tokens (key, tenant_id, signed_token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		token.Key, token.TenantID.String(), token.SignedToken, nullTime(token.ExpiresAt), token.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("token key already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, key string) (*models.CapabilityToken, error) {
	query := `
		SELECT key, tenant_id, signed_token, expires_at, created_at
		FROM capability_tokens
		WHERE key = $1
	`
	var (
		token     models.CapabilityToken
		tenantRaw string
		expiresAt sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, key).
		Scan(&token.Key, &tenantRaw, &token.SignedToken, &expiresAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("token not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	tenantID, err := id.ParseTenantID(tenantRaw)
	if err != nil {
		return nil, fmt.Errorf("find token: bad tenant id: %w", err)
	}
	token.TenantID = tenantID
	if expiresAt.Valid {
		t := expiresAt.Time
		token.ExpiresAt = &t
	}
	return &token, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM capability_tokens WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("token not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

// DeleteByKeys removes tokens in one round trip.
func (s *PostgresStore) DeleteByKeys(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM capability_tokens WHERE key = ANY($1::text[])`, pq.Array(keys))
	if err != nil {
		return 0, fmt.Errorf("delete tokens batch: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ExpiredKeys lists tokens whose expiration is at or before now.
func (s *PostgresStore) ExpiredKeys(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT key FROM capability_tokens WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired tokens: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan expired token: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired tokens: %w", err)
	}
	return keys, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
