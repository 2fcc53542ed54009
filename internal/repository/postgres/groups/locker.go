package groups

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"roommates-app-go/internal/storeerr"
	"roommates-app-go/pkg/logger"
)

const (
	minLockBackoff = 5 * time.Millisecond
	maxLockBackoff = 200 * time.Millisecond
)

// AdvisoryLocker serializes orchestration calls across processes with
// session-level Postgres advisory locks. All keys of one call are held on a
// single dedicated connection.
type AdvisoryLocker struct {
	db  *gorm.DB
	log logger.Logger
}

func NewAdvisoryLocker(db *gorm.DB, log logger.Logger) *AdvisoryLocker {
	if log == nil {
		log = logger.NewNop()
	}
	return &AdvisoryLocker{db: db, log: log}
}

func (l *AdvisoryLocker) Lock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	sqlDB, err := l.db.DB()
	if err != nil {
		return storeerr.Wrap("lock.db_handle", err)
	}

	wait := minLockBackoff
	for {
		conn, held, err := l.tryAcquire(ctx, sqlDB, sorted)
		if err != nil {
			return err
		}
		if conn != nil {
			defer conn.Close()
			defer l.release(conn, held)
			return fn(ctx)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if wait *= 2; wait > maxLockBackoff {
			wait = maxLockBackoff
		}
	}
}

// tryAcquire takes every key or none. Waiters go back to the pool between
// attempts so lock holders can always get a connection for their queries.
func (l *AdvisoryLocker) tryAcquire(ctx context.Context, sqlDB *sql.DB, keys []string) (*sql.Conn, []string, error) {
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, nil, storeerr.Wrap("lock.conn", err)
	}

	held := make([]string, 0, len(keys))
	for i, key := range keys {
		if i > 0 && key == keys[i-1] {
			continue
		}
		var locked bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", key).Scan(&locked); err != nil {
			l.release(conn, held)
			conn.Close()
			return nil, nil, storeerr.Wrap(fmt.Sprintf("lock.acquire %s", key), err)
		}
		if !locked {
			l.release(conn, held)
			conn.Close()
			return nil, nil, nil
		}
		held = append(held, key)
	}
	return conn, held, nil
}

// release unlocks in reverse order. A failed unlock discards the connection so
// the session, and every lock it holds, ends with it.
func (l *AdvisoryLocker) release(conn *sql.Conn, held []string) {
	for i := len(held) - 1; i >= 0; i-- {
		if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(hashtext($1))", held[i]); err != nil {
			l.log.InternalError("lock.release: unlock failed, dropping connection", err, "key", held[i])
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			return
		}
	}
}
