package assignment

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

// PostgresStore persists scope bindings in PostgreSQL. Exclusivity is
// enforced by the schema, not by read-then-write sequences: a partial
// unique index allows one unfinished territory assignment per
// (territory, round), and token attachment is a guarded UPDATE that only
// matches rows without a live reference.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed assignment store.
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

func (s *PostgresStore) CreateTerritory(ctx context.Context, a *models.TerritoryAssignment) error {
	query := `
		INSERT INTO territory_assignments
			(tenant_id, territory_id, round, holder, started_at, expires_at, finished, token_key)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		a.TenantID.String(), a.TerritoryID.String(), a.Round, a.Holder,
		a.StartedAt, nullTime(a.ExpiresAt), nullString(a.TokenKey))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("unfinished assignment exists for territory/round: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create territory assignment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindUnfinishedTerritory(ctx context.Context, territoryID id.TerritoryID, round int) (*models.TerritoryAssignment, error) {
	query := territorySelect + ` WHERE territory_id = $1 AND round = $2 AND NOT finished`
	return s.scanTerritory(s.execer(ctx).QueryRowContext(ctx, query, territoryID.String(), round))
}

func (s *PostgresStore) FindLiveTerritory(ctx context.Context, territoryID id.TerritoryID) (*models.TerritoryAssignment, error) {
	query := territorySelect + ` WHERE territory_id = $1 AND NOT finished AND token_key IS NOT NULL`
	return s.scanTerritory(s.execer(ctx).QueryRowContext(ctx, query, territoryID.String()))
}

func (s *PostgresStore) FindTerritoryHistory(ctx context.Context, territoryID id.TerritoryID, round int) (*models.TerritoryAssignment, error) {
	query := territorySelect + `
		WHERE territory_id = $1 AND round = $2
		ORDER BY started_at DESC
		LIMIT 1`
	return s.scanTerritory(s.execer(ctx).QueryRowContext(ctx, query, territoryID.String(), round))
}

func (s *PostgresStore) ReattachTerritoryToken(ctx context.Context, territoryID id.TerritoryID, round int, tokenKey, holder string, expiresAt time.Time) error {
	query := `
		UPDATE territory_assignments
		SET token_key = $1, holder = $2, expires_at = $3
		WHERE territory_id = $4 AND round = $5 AND NOT finished AND token_key IS NULL
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, tokenKey, holder, expiresAt, territoryID.String(), round)
	if err != nil {
		return fmt.Errorf("reattach territory token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either no unfinished row, or one that still holds a token.
		if _, ferr := s.FindUnfinishedTerritory(ctx, territoryID, round); ferr != nil {
			return fmt.Errorf("territory assignment not found: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("assignment already holds a token: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) FinishTerritory(ctx context.Context, territoryID id.TerritoryID, round int, now time.Time) error {
	query := `
		UPDATE territory_assignments
		SET finished = TRUE, expires_at = $1, token_key = NULL
		WHERE territory_id = $2 AND round = $3 AND NOT finished
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, now, territoryID.String(), round)
	if err != nil {
		return fmt.Errorf("finish territory assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("territory assignment not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateBlock(ctx context.Context, a *models.BlockAssignment) error {
	query := `
		INSERT INTO block_assignments (tenant_id, territory_id, block_id, token_key)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		a.TenantID.String(), a.TerritoryID.String(), a.BlockID.String(), nullString(a.TokenKey))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("block assignment exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create block assignment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBlock(ctx context.Context, territoryID id.TerritoryID, blockID id.BlockID) (*models.BlockAssignment, error) {
	query := `
		SELECT tenant_id, territory_id, block_id, token_key
		FROM block_assignments
		WHERE territory_id = $1 AND block_id = $2
	`
	var (
		a            models.BlockAssignment
		tenantRaw    string
		territoryRaw string
		blockRaw     string
		tokenKey     sql.NullString
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, territoryID.String(), blockID.String()).
		Scan(&tenantRaw, &territoryRaw, &blockRaw, &tokenKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("block assignment not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find block assignment: %w", err)
	}
	if a.TenantID, err = id.ParseTenantID(tenantRaw); err != nil {
		return nil, fmt.Errorf("find block assignment: %w", err)
	}
	if a.TerritoryID, err = id.ParseTerritoryID(territoryRaw); err != nil {
		return nil, fmt.Errorf("find block assignment: %w", err)
	}
	if a.BlockID, err = id.ParseBlockID(blockRaw); err != nil {
		return nil, fmt.Errorf("find block assignment: %w", err)
	}
	a.TokenKey = tokenKey.String
	return &a, nil
}

func (s *PostgresStore) AttachBlockToken(ctx context.Context, territoryID id.TerritoryID, blockID id.BlockID, tokenKey string) error {
	query := `
		UPDATE block_assignments
		SET token_key = $1
		WHERE territory_id = $2 AND block_id = $3 AND token_key IS NULL
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, tokenKey, territoryID.String(), blockID.String())
	if err != nil {
		return fmt.Errorf("attach block token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, ferr := s.FindBlock(ctx, territoryID, blockID); ferr != nil {
			return fmt.Errorf("block assignment not found: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("block assignment already holds a token: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) DetachBlockToken(ctx context.Context, territoryID id.TerritoryID, blockID id.BlockID) error {
	query := `
		UPDATE block_assignments
		SET token_key = NULL
		WHERE territory_id = $1 AND block_id = $2
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, territoryID.String(), blockID.String())
	if err != nil {
		return fmt.Errorf("detach block token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("block assignment not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) LiveBlockTokenKeys(ctx context.Context, territoryID id.TerritoryID) ([]string, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT token_key FROM block_assignments WHERE territory_id = $1 AND token_key IS NOT NULL`,
		territoryID.String())
	if err != nil {
		return nil, fmt.Errorf("list live block tokens: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan live block token: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list live block tokens: %w", err)
	}
	return keys, nil
}

// DetachTokenKeys clears references to the given tokens from both binding
// tables in two statements. Callers run it in the same transaction as the
// token deletion so no binding is left dangling.
func (s *PostgresStore) DetachTokenKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ex := s.execer(ctx)
	if _, err := ex.ExecContext(ctx,
		`UPDATE territory_assignments SET token_key = NULL WHERE token_key = ANY($1::text[])`,
		pq.Array(keys)); err != nil {
		return fmt.Errorf("detach territory token refs: %w", err)
	}
	if _, err := ex.ExecContext(ctx,
		`UPDATE block_assignments SET token_key = NULL WHERE token_key = ANY($1::text[])`,
		pq.Array(keys)); err != nil {
		return fmt.Errorf("detach block token refs: %w", err)
	}
	return nil
}

const territorySelect = `
	SELECT tenant_id, territory_id, round, holder, started_at, expires_at, finished, token_key
	FROM territory_assignments`

func (s *PostgresStore) scanTerritory(row *sql.Row) (*models.TerritoryAssignment, error) {
	var (
		a            models.TerritoryAssignment
		tenantRaw    string
		territoryRaw string
		expiresAt    sql.NullTime
		tokenKey     sql.NullString
	)
	err := row.Scan(&tenantRaw, &territoryRaw, &a.Round, &a.Holder, &a.StartedAt, &expiresAt, &a.Finished, &tokenKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("territory assignment not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find territory assignment: %w", err)
	}
	if a.TenantID, err = id.ParseTenantID(tenantRaw); err != nil {
		return nil, fmt.Errorf("find territory assignment: %w", err)
	}
	if a.TerritoryID, err = id.ParseTerritoryID(territoryRaw); err != nil {
		return nil, fmt.Errorf("find territory assignment: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		a.ExpiresAt = &t
	}
	a.TokenKey = tokenKey.String
	return &a, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
