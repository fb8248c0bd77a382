package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

// maxVariables keeps multi-row statements under SQLite's historical bound
// parameter limit.
const maxVariables = 999

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Schema maps an entity type onto a table without reflection.
//
// Scan must read the key column followed by Columns, in order. Args must
// return the values of Columns (without the key), in order.
type Schema[T any] struct {
	Table         string
	Key           string
	Columns       []string
	AutoIncrement bool
	ID            func(*T) int64
	SetID         func(*T, int64)
	Args          func(*T) []any
	Scan          func(Scanner, *T) error
}

// Predicate is a WHERE clause with its arguments. Column names come from
// code, never from input.
type Predicate struct {
	clause string
	args   []any
}

func Where(clause string, args ...any) Predicate {
	return Predicate{clause: clause, args: args}
}

func Eq(column string, v any) Predicate {
	return Where(column+" = ?", v)
}

// Table provides typed CRUD over one schema, bound to either the database or
// a transaction.
type Table[T any] struct {
	h      dbx.DBTX
	schema *Schema[T]
}

func NewTable[T any](h dbx.DBTX, schema *Schema[T]) *Table[T] {
	return &Table[T]{h: h, schema: schema}
}

// WithTx returns a copy of the table bound to tx.
func (t *Table[T]) WithTx(tx dbx.DBTX) *Table[T] {
	return &Table[T]{h: tx, schema: t.schema}
}

func (t *Table[T]) Name() string { return t.schema.Table }

func (t *Table[T]) selectList() string {
	return t.schema.Key + ", " + strings.Join(t.schema.Columns, ", ")
}

func (t *Table[T]) query(ctx context.Context, op string, where Predicate) ([]T, error) {
	q := "SELECT " + t.selectList() + " FROM " + t.schema.Table
	if where.clause != "" {
		q += " WHERE " + where.clause
	}
	q += " ORDER BY " + t.schema.Key

	rows, err := t.h.QueryContext(ctx, q, where.args...)
	if err != nil {
		return nil, storageErr(op, t.schema.Table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var v T
		if err := t.schema.Scan(rows, &v); err != nil {
			return nil, storageErr(op+" scan", t.schema.Table, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, t.schema.Table, err)
	}
	return out, nil
}

// GetAll returns every row ordered by key.
func (t *Table[T]) GetAll(ctx context.Context) ([]T, error) {
	return t.query(ctx, "get all", Predicate{})
}

func (t *Table[T]) GetWhere(ctx context.Context, p Predicate) ([]T, error) {
	return t.query(ctx, "get where", p)
}

// GetByID returns the row with the given key, or nil when there is none.
func (t *Table[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	q := "SELECT " + t.selectList() + " FROM " + t.schema.Table + " WHERE " + t.schema.Key + " = ?"

	var v T
	err := t.schema.Scan(t.h.QueryRowContext(ctx, q, id), &v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get", t.schema.Table, err)
	}
	return &v, nil
}

// Exists reports whether a row with the given key is present.
func (t *Table[T]) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := t.CountWhere(ctx, Eq(t.schema.Key, id))
	return n > 0, err
}

func (t *Table[T]) Count(ctx context.Context) (int, error) {
	return t.CountWhere(ctx, Predicate{})
}

func (t *Table[T]) CountWhere(ctx context.Context, p Predicate) (int, error) {
	q := "SELECT COUNT(*) FROM " + t.schema.Table
	if p.clause != "" {
		q += " WHERE " + p.clause
	}
	var n int
	if err := t.h.QueryRowContext(ctx, q, p.args...).Scan(&n); err != nil {
		return 0, storageErr("count", t.schema.Table, err)
	}
	return n, nil
}

func (t *Table[T]) insertSQL(rows int, withKey bool) string {
	cols := t.schema.Columns
	if withKey {
		cols = append([]string{t.schema.Key}, cols...)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	values := strings.TrimSuffix(strings.Repeat(tuple+", ", rows), ", ")
	return "INSERT INTO " + t.schema.Table + " (" + strings.Join(cols, ", ") + ") VALUES " + values
}

func (t *Table[T]) upsertSQL() string {
	sets := make([]string, len(t.schema.Columns))
	for i, c := range t.schema.Columns {
		sets[i] = c + " = excluded." + c
	}
	return t.insertSQL(1, true) + " ON CONFLICT(" + t.schema.Key + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// generated reports whether v should get its key from the database.
func (t *Table[T]) generated(v *T) bool {
	return t.schema.AutoIncrement && t.schema.ID(v) == 0
}

func (t *Table[T]) save(ctx context.Context, v *T) (int64, error) {
	if t.generated(v) {
		res, err := t.h.ExecContext(ctx, t.insertSQL(1, false), t.schema.Args(v)...)
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		t.schema.SetID(v, id)
		return id, nil
	}

	args := append([]any{t.schema.ID(v)}, t.schema.Args(v)...)
	if _, err := t.h.ExecContext(ctx, t.upsertSQL(), args...); err != nil {
		return 0, err
	}
	return t.schema.ID(v), nil
}

// Save inserts v when its key is zero on an auto-increment table (and sets
// the generated key on v), otherwise replaces the row with the same key.
// Row-level failures such as constraint violations are returned unwrapped;
// everything else is ErrStorage.
func (t *Table[T]) Save(ctx context.Context, v *T) (int64, error) {
	id, err := t.save(ctx, v)
	if err != nil {
		if isRowError(err) {
			return 0, fmt.Errorf("save %s: %w", t.schema.Table, err)
		}
		return 0, storageErr("save", t.schema.Table, err)
	}
	return id, nil
}

// SaveAll writes items with multi-row inserts inside a savepoint. If a
// row-level failure occurs the savepoint is rolled back and every item is
// retried as an upsert in its own savepoint; rows that still fail are
// skipped. It returns how many items were applied.
//
// Keys generated for auto-increment rows are not written back to items.
// SaveAll reuses an enclosing transaction or opens its own.
func (t *Table[T]) SaveAll(ctx context.Context, items []T) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	applied := 0
	err := dbx.InTx(ctx, t.h, func(ctx context.Context, tx dbx.DBTX) error {
		bound := t.WithTx(tx)

		bulkErr := dbx.WithSavepoint(ctx, tx, "save_all", func(ctx context.Context) error {
			return bound.insertBulk(ctx, items)
		})
		if bulkErr == nil {
			applied = len(items)
			return nil
		}
		if !isRowError(bulkErr) {
			return storageErr("save all", t.schema.Table, bulkErr)
		}

		for i := range items {
			item := items[i]
			rowErr := dbx.WithSavepoint(ctx, tx, "save_row", func(ctx context.Context) error {
				_, err := bound.save(ctx, &item)
				return err
			})
			switch {
			case rowErr == nil:
				applied++
			case isRowError(rowErr):
				continue
			default:
				return storageErr("save row", t.schema.Table, rowErr)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStorage) {
			return 0, err
		}
		return 0, storageErr("save all", t.schema.Table, err)
	}
	return applied, nil
}

// insertBulk follows the key rules of save: rows with a zero key on an
// auto-increment table get a generated one, all others keep theirs.
func (t *Table[T]) insertBulk(ctx context.Context, items []T) error {
	var keyed, generated []T
	for i := range items {
		if t.generated(&items[i]) {
			generated = append(generated, items[i])
		} else {
			keyed = append(keyed, items[i])
		}
	}
	if err := t.insertRows(ctx, keyed, true); err != nil {
		return err
	}
	return t.insertRows(ctx, generated, false)
}

func (t *Table[T]) insertRows(ctx context.Context, items []T, withKey bool) error {
	width := len(t.schema.Columns)
	if withKey {
		width++
	}
	chunk := maxVariables / width
	if chunk < 1 {
		chunk = 1
	}

	for start := 0; start < len(items); start += chunk {
		end := min(start+chunk, len(items))

		args := make([]any, 0, (end-start)*width)
		for i := start; i < end; i++ {
			if withKey {
				args = append(args, t.schema.ID(&items[i]))
			}
			args = append(args, t.schema.Args(&items[i])...)
		}
		if _, err := t.h.ExecContext(ctx, t.insertSQL(end-start, withKey), args...); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table[T]) Delete(ctx context.Context, id int64) error {
	_, err := t.h.ExecContext(ctx, "DELETE FROM "+t.schema.Table+" WHERE "+t.schema.Key+" = ?", id)
	if err != nil {
		return storageErr("delete", t.schema.Table, err)
	}
	return nil
}

// DeleteWhere removes matching rows and returns how many were deleted.
func (t *Table[T]) DeleteWhere(ctx context.Context, p Predicate) (int64, error) {
	q := "DELETE FROM " + t.schema.Table
	if p.clause != "" {
		q += " WHERE " + p.clause
	}
	res, err := t.h.ExecContext(ctx, q, p.args...)
	if err != nil {
		return 0, storageErr("delete where", t.schema.Table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClearTable deletes every row.
func (t *Table[T]) ClearTable(ctx context.Context) error {
	if _, err := t.h.ExecContext(ctx, "DELETE FROM "+t.schema.Table); err != nil {
		return storageErr("clear", t.schema.Table, err)
	}
	return nil
}

// ResetTable clears the table and restarts its auto-increment sequence.
func (t *Table[T]) ResetTable(ctx context.Context) error {
	return dbx.InTx(ctx, t.h, func(ctx context.Context, tx dbx.DBTX) error {
		if err := t.WithTx(tx).ClearTable(ctx); err != nil {
			return err
		}
		if !t.schema.AutoIncrement {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", t.schema.Table); err != nil {
			return storageErr("reset sequence", t.schema.Table, err)
		}
		return nil
	})
}
