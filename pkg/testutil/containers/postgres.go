//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// project schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// schema is the full DDL. The partial unique index on
// territory_assignments is what enforces the one-live-token-per-
// (territory, round) invariant at the storage layer.
const schema = `
CREATE TABLE territories (
	id        UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	name      TEXT NOT NULL
);

CREATE TABLE blocks (
	id           UUID PRIMARY KEY,
	territory_id UUID NOT NULL REFERENCES territories(id),
	name         TEXT NOT NULL
);

CREATE TABLE houses (
	id           UUID PRIMARY KEY,
	block_id     UUID NOT NULL REFERENCES blocks(id),
	territory_id UUID NOT NULL REFERENCES territories(id),
	tenant_id    UUID NOT NULL,
	address      TEXT NOT NULL
);

CREATE TABLE rounds (
	tenant_id UUID NOT NULL,
	number    INT  NOT NULL,
	name      TEXT NOT NULL,
	theme     TEXT,
	starts_at TIMESTAMPTZ NOT NULL,
	ends_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, number)
);

CREATE TABLE tenant_parameters (
	tenant_id UUID NOT NULL,
	key       TEXT NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (tenant_id, key)
);

CREATE TABLE capability_tokens (
	key          TEXT PRIMARY KEY,
	tenant_id    UUID NOT NULL,
	signed_token TEXT NOT NULL,
	expires_at   TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE territory_assignments (
	tenant_id    UUID NOT NULL,
	territory_id UUID NOT NULL,
	round        INT  NOT NULL,
	holder       TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ,
	finished     BOOLEAN NOT NULL DEFAULT FALSE,
	token_key    TEXT REFERENCES capability_tokens(key)
);
CREATE UNIQUE INDEX territory_assignments_one_unfinished
	ON territory_assignments (territory_id, round)
	WHERE NOT finished;

CREATE TABLE block_assignments (
	tenant_id    UUID NOT NULL,
	territory_id UUID NOT NULL,
	block_id     UUID NOT NULL,
	token_key    TEXT REFERENCES capability_tokens(key),
	PRIMARY KEY (territory_id, block_id)
);

CREATE TABLE visit_records (
	tenant_id    UUID NOT NULL,
	territory_id UUID NOT NULL,
	block_id     UUID NOT NULL,
	house_id     UUID NOT NULL,
	round        INT  NOT NULL,
	completed    BOOLEAN NOT NULL,
	visited_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (house_id, round)
);

CREATE TABLE sync_batches (
	id           UUID PRIMARY KEY,
	tenant_id    UUID NOT NULL,
	territory_id UUID NOT NULL,
	token_jti    TEXT NOT NULL,
	received_at  TIMESTAMPTZ NOT NULL,
	payload      JSONB NOT NULL
);
`

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("fieldkey_test"),
		tcpostgres.WithUsername("fieldkey"),
		tcpostgres.WithPassword("fieldkey"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// Truncate empties every application table. Use between tests.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		TRUNCATE sync_batches, visit_records, territory_assignments,
			block_assignments, capability_tokens, tenant_parameters,
			rounds, houses, blocks, territories CASCADE
	`)
	return err
}
