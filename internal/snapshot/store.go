// Package snapshot stores named, single-slot model snapshots. Slots are not
// versioned and the last write wins.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrNotFound is returned when a slot has never been written.
var ErrNotFound = errors.New("snapshot not found")

// Store loads and saves opaque snapshot bytes by name.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	Close() error
}

// Options selects and configures a store.
type Options struct {
	Driver       string // file, sqlite or postgres
	Path         string // directory for file, database file for sqlite
	DSN          string // postgres connection string
	Pool         PoolOptions
}

// PoolOptions bounds the database connection pool. Zero values keep the
// database/sql defaults.
type PoolOptions struct {
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Open returns the store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "file", "":
		return NewFileStore(opts.Path)
	case "sqlite":
		// SQLite serializes writers; a second connection only adds lock errors.
		pool := opts.Pool
		pool.MaxOpenConns = 1
		return OpenSQLStore(ctx, "sqlite3", opts.Path, pool)
	case "postgres":
		return OpenSQLStore(ctx, "postgres", opts.DSN, opts.Pool)
	default:
		return nil, fmt.Errorf("unsupported snapshot driver: %s", opts.Driver)
	}
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid snapshot name %q", name)
	}
	return nil
}
