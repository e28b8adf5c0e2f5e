// Package store is the Postgres persistence layer. It mirrors the shape of a
// generated query package: a Queries struct over a DBTX, params/row structs
// per query, and WithTx for transactional composition.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts a pgx pool, connection or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrNotFound normalises pgx.ErrNoRows for callers.
var ErrNotFound = errors.New("record not found")

// Queries bundles all storefront queries over a single DBTX.
type Queries struct {
	db DBTX
}

// New constructs Queries over a pool or connection.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to the provided transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

func wrapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// IsUniqueViolation reports whether the error is a Postgres unique constraint
// violation, used to map races on one-active-cart-per-session.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
