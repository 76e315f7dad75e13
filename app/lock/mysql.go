package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// MySQLLocker uses named advisory locks (GET_LOCK). MySQL ties the lock to a
// session, so each held key pins one pooled connection until released. A nil
// entry in conns reserves a key while GET_LOCK is in flight.
type MySQLLocker struct {
	db    *sql.DB
	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewMySQLLocker constructs a MySQL-based advisory lock manager.
func NewMySQLLocker(db *sql.DB) *MySQLLocker {
	return &MySQLLocker{
		db:    db,
		conns: make(map[string]*sql.Conn),
	}
}

// Acquire waits up to ttl for the named lock. GET_LOCK has no expiry; ttl
// bounds only the wait.
func (l *MySQLLocker) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	l.mu.Lock()
	if _, exists := l.conns[key]; exists {
		l.mu.Unlock()
		return ErrAlreadyHeld
	}
	l.conns[key] = nil
	l.mu.Unlock()

	conn, err := l.db.Conn(ctx)
	if err != nil {
		l.unreserve(key)
		return fmt.Errorf("mysql conn: %w", err)
	}

	timeoutSeconds := int(ttl.Seconds())
	if timeoutSeconds < 1 {
		timeoutSeconds = 1
	}

	var acquired sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", key, timeoutSeconds).Scan(&acquired); err != nil {
		_ = conn.Close()
		l.unreserve(key)
		return fmt.Errorf("get_lock %s: %w", key, err)
	}
	if !acquired.Valid || acquired.Int64 != 1 {
		_ = conn.Close()
		l.unreserve(key)
		return ErrNotAcquired
	}

	l.mu.Lock()
	l.conns[key] = conn
	l.mu.Unlock()

	return nil
}

// Release frees a named MySQL advisory lock and returns its connection.
func (l *MySQLLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	conn := l.conns[key]
	if conn == nil {
		l.mu.Unlock()
		return nil
	}
	delete(l.conns, key)
	l.mu.Unlock()

	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", key); err != nil {
		return fmt.Errorf("release_lock %s: %w", key, err)
	}
	return nil
}

func (l *MySQLLocker) unreserve(key string) {
	l.mu.Lock()
	delete(l.conns, key)
	l.mu.Unlock()
}
