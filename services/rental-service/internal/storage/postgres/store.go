// Package postgres implements the storage contract on PostgreSQL through pgx.
// Transactions run at SERIALIZABLE isolation and rental overlap is also
// enforced by an exclusion constraint.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/billboardrent/libs/db"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/outbox"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL the store expects.
func Schema() string { return schema }

type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

// ApplySchema creates missing tables, indexes and constraints.
func (s *Store) ApplySchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx, outbox: s.outbox}); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

// classify maps driver errors onto the storage sentinels and leaves
// everything else untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %w", storage.ErrTransient, err)
		case "23P01":
			return fmt.Errorf("%w: %w", storage.ErrOverlap, err)
		case "23505":
			return fmt.Errorf("%w: %w", storage.ErrDuplicate, err)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	}
	return err
}

func IsConflict(err error) bool {
	return errors.Is(err, storage.ErrOverlap)
}

func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
