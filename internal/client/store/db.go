// Package store is the local persistent store: a single SQLite file opened
// with the pure-Go modernc driver, migrated with goose, and accessed through
// typed tables described by explicit schemas.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// ErrStorage marks failures of the local store itself (I/O, closed handle,
// failed commit). Callers abort the current run when they see it.
var ErrStorage = errors.New("local storage failure")

const dsnParams = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"

type DB struct {
	db  *sql.DB
	log logging.Logger
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. The pool is limited to one connection.
func Open(ctx context.Context, path string, log logging.Logger) (*DB, error) {
	if _, err := filex.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorage, path, err)
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate %s: %w", ErrStorage, path, err)
	}

	log.Debug(ctx, "local store ready", "path", path)
	return &DB{db: db, log: log}, nil
}

// RunMigrations applies the embedded goose migrations. It is idempotent.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// SQL exposes the underlying handle for repositories.
func (d *DB) SQL() *sql.DB { return d.db }

// InTx runs fn in a transaction. Any error from fn rolls it back and is
// returned as is; failing to begin or commit is reported as ErrStorage.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	var fnErr error
	err := dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		fnErr = fn(ctx, tx)
		return fnErr
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("%w: transaction: %w", ErrStorage, err)
	}
	return err
}

func (d *DB) Close() error {
	return d.db.Close()
}
