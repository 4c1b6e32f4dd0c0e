package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

const timeLayout = "2006-01-02T15:04:05Z"

// DB wraps the shared connection pool with an explicit single-writer section.
// Every mutation in this package goes through WithWrite, so at most one write
// transaction is open per process and a nil return means it committed.
type DB struct {
	*sqlx.DB
	writeMu sync.Mutex
}

// NewDB wraps an open connection.
func NewDB(db *sqlx.DB) *DB {
	return &DB{DB: db}
}

// WithWrite runs fn in a transaction while holding the write lock. The
// transaction is rolled back when fn fails and committed otherwise.
func (d *DB) WithWrite(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}
