// Package sqlite opens the embedded SQLite engine that backs a narwhal store.
// The storage manager holds one logical connection; statements never run
// concurrently against it.
package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/narwhal/pkg/types"
)

const (
	// DriverName is the database/sql driver registered by modernc.org/sqlite.
	DriverName = "sqlite"

	// DBFileName is the database file created inside Config.DataDir.
	DBFileName = "narwhal.db"

	memoryDSN = ":memory:"
)

// Path returns the database file path for config, or ":memory:" for an
// in-memory engine.
func Path(config types.Config) string {
	if config.InMemory {
		return memoryDSN
	}
	return filepath.Join(config.DataDir, DBFileName)
}

// Open validates config, creates DataDir if needed and opens the engine.
// The pool is pinned to a single connection so that an in-memory database
// survives for the lifetime of the handle and transactions see every
// statement issued by the store.
func Open(config types.Config) (_ *sqlx.DB, rerr error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if !config.InMemory {
		if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
	}

	dsn := Path(config)
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dsn, err)
	}
	// Try to close the handle on any later error.
	defer func() {
		if rerr != nil {
			rerr = errors.Join(rerr, db.Close())
		}
	}()

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", dsn, err)
	}
	return db, nil
}
