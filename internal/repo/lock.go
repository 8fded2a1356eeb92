package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ExportLockKey is the Postgres advisory lock key that serializes visitor
// mutations with export rebuilds across every process sharing the database.
const ExportLockKey int64 = 0x76697369746f72 // "visitor"

// acquirer is satisfied by *pgxpool.Pool.
type acquirer interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// Locker takes a lock that is held until the returned unlock func is called.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

type pgAdvisoryLocker struct {
	pool acquirer
	key  int64
}

// NewAdvisoryLocker returns a Locker backed by a session-level advisory lock
// on ExportLockKey. The lock pins one pooled connection while held, since
// the lock belongs to the session that took it.
func NewAdvisoryLocker(pool acquirer) Locker {
	return &pgAdvisoryLocker{pool: pool, key: ExportLockKey}
}

func (l *pgAdvisoryLocker) Lock(ctx context.Context) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo.Locker.Lock: acquire: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, l.key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("repo.Locker.Lock: %w", err)
	}

	return func() {
		if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			// Closing the session is the only other way to drop the lock.
			_ = conn.Conn().Close(context.Background())
		}
		conn.Release()
	}, nil
}
