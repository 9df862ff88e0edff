package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps every key as a row of a two-column table. Update locks the
// row (or relies on the primary key when inserting) inside a transaction.
type Postgres struct {
	pool  *pgxpool.Pool
	table string // sanitized identifier
}

// OpenPostgres connects with dsn and creates table if it does not exist
func OpenPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+p.table+` (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}
	return nil
}

// Get retrieves a value
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM `+p.table+` WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, nil
}

// Put upserts a value
func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO `+p.table+` (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("postgres put %s: %w", key, err)
	}
	return nil
}

// Delete removes a row
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM `+p.table+` WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

// errInsertRace signals that another writer created the row between our
// SELECT and INSERT
var errInsertRace = errors.New("row created concurrently")

// Update runs fn inside a transaction holding the row lock
func (p *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
			var current []byte
			err := tx.QueryRow(ctx, `SELECT value FROM `+p.table+` WHERE key = $1 FOR UPDATE`, key).Scan(&current)
			exists := true
			if errors.Is(err, pgx.ErrNoRows) {
				current, exists = nil, false
			} else if err != nil {
				return err
			}

			next, err := fn(current, exists)
			if err != nil {
				return err
			}

			if exists {
				_, err = tx.Exec(ctx, `UPDATE `+p.table+` SET value = $2, updated_at = now() WHERE key = $1`, key, next)
				return err
			}

			tag, err := tx.Exec(ctx, `INSERT INTO `+p.table+` (key, value, updated_at) VALUES ($1, $2, now())
				ON CONFLICT (key) DO NOTHING`, key, next)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return errInsertRace
			}
			return nil
		})
		if errors.Is(err, errInsertRace) {
			if err := backoff(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("postgres update %s: %w", key, err)
		}
		return nil
	}

	return ErrConflict
}

// Close closes the pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
