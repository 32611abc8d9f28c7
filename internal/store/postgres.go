package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/dgallion1/syntaxd/internal/forest"
)

const createForestCache = `CREATE TABLE IF NOT EXISTS forest_cache (
	cache_key  TEXT PRIMARY KEY,
	forest     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewDB opens a pgx-backed connection pool.
func NewDB(dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return db, nil
}

// Postgres keeps forests in the forest_cache table. Rows older than ttl are
// treated as misses.
type Postgres struct {
	db  *sqlx.DB
	ttl time.Duration
}

type forestRow struct {
	Forest    []byte    `db:"forest"`
	CreatedAt time.Time `db:"created_at"`
}

func NewPostgres(db *sqlx.DB, ttl time.Duration) *Postgres {
	return &Postgres{db: db, ttl: ttl}
}

// Migrate creates the cache table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createForestCache); err != nil {
		return fmt.Errorf("postgres.Migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (*forest.Forest, bool, error) {
	var row forestRow
	err := p.db.GetContext(ctx, &row,
		"SELECT forest, created_at FROM forest_cache WHERE cache_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres.Get: %w", err)
	}
	if p.ttl > 0 && time.Since(row.CreatedAt) > p.ttl {
		return nil, false, nil
	}
	var f forest.Forest
	if err := json.Unmarshal(row.Forest, &f); err != nil {
		return nil, false, fmt.Errorf("postgres.Get decode: %w", err)
	}
	return &f, true, nil
}

func (p *Postgres) Put(ctx context.Context, key string, f *forest.Forest) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("postgres.Put encode: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO forest_cache (cache_key, forest, created_at) VALUES ($1, $2, now())
		 ON CONFLICT (cache_key) DO UPDATE SET forest = EXCLUDED.forest, created_at = EXCLUDED.created_at`,
		key, data)
	if err != nil {
		return fmt.Errorf("postgres.Put: %w", err)
	}
	return nil
}

// Purge deletes rows older than the TTL and returns how many were removed.
func (p *Postgres) Purge(ctx context.Context) (int64, error) {
	if p.ttl <= 0 {
		return 0, nil
	}
	res, err := p.db.ExecContext(ctx,
		"DELETE FROM forest_cache WHERE created_at < $1", time.Now().Add(-p.ttl))
	if err != nil {
		return 0, fmt.Errorf("postgres.Purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
