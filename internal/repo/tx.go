package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// beginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx. Beginning on
// a pgx.Tx opens a savepoint, so tests can nest a unit of work inside their
// rolled-back test transaction.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Transactor runs a unit of work inside a single database transaction.
type Transactor interface {
	// WithinTx calls fn with a VisitorRepo bound to a fresh transaction.
	// The transaction commits when fn returns nil and rolls back otherwise,
	// including when fn panics.
	WithinTx(ctx context.Context, fn func(VisitorRepo) error) error
}

type pgTransactor struct {
	db beginner
}

// NewTransactor constructs a Transactor that begins transactions on db.
func NewTransactor(db beginner) Transactor {
	return &pgTransactor{db: db}
}

func (t *pgTransactor) WithinTx(ctx context.Context, fn func(VisitorRepo) error) error {
	err := pgx.BeginFunc(ctx, t.db, func(tx pgx.Tx) error {
		return fn(NewVisitorRepo(tx))
	})
	if err != nil {
		return fmt.Errorf("repo.Transactor.WithinTx: %w", err)
	}
	return nil
}
