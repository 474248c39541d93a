package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"payrelay/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx, so the
// same ledger code works inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Compile-time assertion that Postgres satisfies types.Ledger.
var _ types.Ledger = (*Postgres)(nil)

// Postgres is a durable ledger backed by the delivered_events table.
// It gives dedup continuity across process restarts; correctness does not
// depend on it (see package doc).
type Postgres struct {
	db DBTX
}

// NewPostgres creates a ledger over an existing connection pool or
// transaction.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// Connect opens a pgx pool for the given URL, verifies connectivity, ensures
// the ledger schema exists, and returns a ready ledger plus the pool so the
// caller can close it at shutdown.
func Connect(ctx context.Context, databaseURL string) (*Postgres, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("creating ledger pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging ledger database: %w", err)
	}

	l := NewPostgres(pool)
	if err := l.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return l, pool, nil
}

// ensureSchema creates the delivered_events table if it does not exist.
// The relay owns this table exclusively; a single idempotent DDL statement
// at startup replaces a migration framework.
func (p *Postgres) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS delivered_events (
			source    TEXT        NOT NULL,
			event_id  TEXT        NOT NULL,
			marked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (source, event_id)
		)`
	if _, err := p.db.Exec(ctx, ddl); err != nil {
		return types.NewAppError(
			types.ErrCodeInternalLedger,
			"failed to ensure ledger schema",
			err,
		)
	}
	return nil
}

// Seen reports whether the (source, id) pair has already been alerted.
func (p *Postgres) Seen(ctx context.Context, source, id string) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM delivered_events WHERE source = $1 AND event_id = $2
	)`

	var exists bool
	if err := p.db.QueryRow(ctx, q, source, id).Scan(&exists); err != nil {
		return false, types.NewAppError(
			types.ErrCodeInternalLedger,
			"failed to query ledger",
			err,
		)
	}
	return exists, nil
}

// Mark records the (source, id) pair as alerted. Re-marking is a no-op via
// ON CONFLICT DO NOTHING, which also keeps the original marked_at.
func (p *Postgres) Mark(ctx context.Context, source, id string) error {
	const q = `INSERT INTO delivered_events (source, event_id)
		VALUES ($1, $2)
		ON CONFLICT (source, event_id) DO NOTHING`

	if _, err := p.db.Exec(ctx, q, source, id); err != nil {
		return types.NewAppError(
			types.ErrCodeInternalLedger,
			"failed to mark event delivered",
			err,
		)
	}
	return nil
}

// Prune removes entries marked before the cutoff and returns how many were
// removed.
func (p *Postgres) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `DELETE FROM delivered_events WHERE marked_at < $1`

	tag, err := p.db.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, types.NewAppError(
			types.ErrCodeInternalLedger,
			"failed to prune ledger",
			err,
		)
	}
	return int(tag.RowsAffected()), nil
}
