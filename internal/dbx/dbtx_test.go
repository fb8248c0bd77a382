package dbx

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dbx.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, v TEXT UNIQUE);`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db), "must commit on success")
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('fail')`)
		require.NoError(t, e)
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, countRows(t, db), "must rollback when fn returns error")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countRows(t, db), "must rollback on panic")
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err, "begin should fail when DB is closed")
}

func TestInTx_ReusesEnclosingTransaction(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	err := WithTx(ctx, db, nil, func(ctx context.Context, outer DBTX) error {
		inner := InTx(ctx, outer, func(ctx context.Context, tx DBTX) error {
			assert.Same(t, outer, tx)
			_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('inner')`)
			return err
		})
		require.NoError(t, inner)
		return errors.New("outer fails")
	})
	require.Error(t, err)
	assert.Equal(t, 0, countRows(t, db), "inner work must roll back with the outer transaction")
}

func TestInTx_StartsTransactionOnDB(t *testing.T) {
	db := setupDB(t)

	err := InTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
		_, isTx := tx.(*sql.Tx)
		assert.True(t, isTx)
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('x')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db))
}

type fakeHandle struct{ DBTX }

func TestInTx_UnsupportedHandle(t *testing.T) {
	err := InTx(context.Background(), fakeHandle{}, func(ctx context.Context, tx DBTX) error { return nil })
	require.ErrorIs(t, err, ErrUnsupportedHandle)
}

func TestWithSavepoint_PartialRollbackKeepsTransaction(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('a')`); err != nil {
			return err
		}

		spErr := WithSavepoint(ctx, tx, "dup", func(ctx context.Context) error {
			if _, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('b')`); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('a')`)
			return err
		})
		require.Error(t, spErr)

		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('c')`)
		return err
	})
	require.NoError(t, err)

	var values []string
	rows, err := db.Query(`SELECT v FROM t ORDER BY v`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		values = append(values, v)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"a", "c"}, values)
}

func TestWithSavepoint_RejectsBadName(t *testing.T) {
	db := setupDB(t)
	err := WithSavepoint(context.Background(), db, "bad name;", func(ctx context.Context) error { return nil })
	require.Error(t, err)
}
