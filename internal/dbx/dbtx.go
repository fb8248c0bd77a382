// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// helpers to run functions inside a transaction, and SQLite savepoints.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrUnsupportedHandle is returned by InTx when the handle is neither
// *sql.DB nor *sql.Tx.
var ErrUnsupportedHandle = errors.New("dbx: handle cannot start a transaction")

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    // use tx instead of db
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// InTx runs fn inside a transaction. When h is already a *sql.Tx the
// enclosing transaction is reused and its owner decides about commit;
// when h is a *sql.DB a new transaction is started with WithTx.
func InTx(ctx context.Context, h DBTX, fn func(ctx context.Context, tx DBTX) error) error {
	switch v := h.(type) {
	case *sql.Tx:
		return fn(ctx, v)
	case *sql.DB:
		return WithTx(ctx, v, nil, fn)
	default:
		return ErrUnsupportedHandle
	}
}

// WithSavepoint wraps fn in a named SQLite savepoint on tx. If fn fails the
// work done since the savepoint is rolled back while the enclosing
// transaction stays usable.
func WithSavepoint(ctx context.Context, tx DBTX, name string, fn func(ctx context.Context) error) (err error) {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("dbx: invalid savepoint name %q", name)
	}
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_, _ = tx.ExecContext(ctx, "ROLLBACK TO "+name)
			_, _ = tx.ExecContext(ctx, "RELEASE "+name)
			panic(p)
		}
		if err != nil {
			_, _ = tx.ExecContext(ctx, "ROLLBACK TO "+name)
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE "+name); relErr != nil && err == nil {
			err = relErr
		}
	}()

	err = fn(ctx)
	return err
}
