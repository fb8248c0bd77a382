// Package sessions persists the single active session record. It is
// replaced wholesale on login and cleared wholesale on logout.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

const rowID = 1

type Repository interface {
	Get(ctx context.Context) (*models.SessionCredential, error)
	Save(ctx context.Context, cred *models.SessionCredential) error
	Clear(ctx context.Context) error
	WithTx(tx dbx.DBTX) Repository
}

type row struct {
	id   int64
	cred models.SessionCredential
}

var schema = &store.Schema[row]{
	Table:   "session",
	Key:     "id",
	Columns: []string{"token", "expires_at", "user_id", "user_name", "company_id", "online_allowed", "issued_at"},
	ID:      func(r *row) int64 { return r.id },
	SetID:   func(r *row, id int64) { r.id = id },
	Args: func(r *row) []any {
		c := &r.cred
		return []any{c.Token, formatTime(c.ExpiresAt), c.UserID, c.UserName, c.CompanyID, c.OnlineAllowed, formatTime(c.IssuedAt)}
	},
	Scan: func(s store.Scanner, r *row) error {
		var expires, issued string
		c := &r.cred
		if err := s.Scan(&r.id, &c.Token, &expires, &c.UserID, &c.UserName, &c.CompanyID, &c.OnlineAllowed, &issued); err != nil {
			return err
		}
		c.ExpiresAt = parseTime(expires)
		c.IssuedAt = parseTime(issued)
		return nil
	},
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return timex.Format(t)
}

func parseTime(s string) time.Time {
	t, err := timex.Parse(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type SQLiteRepository struct {
	table *store.Table[row]
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{table: store.NewTable(db, schema)}
}

func (r *SQLiteRepository) WithTx(tx dbx.DBTX) Repository {
	return &SQLiteRepository{table: r.table.WithTx(tx)}
}

// Get returns nil when no session is stored.
func (r *SQLiteRepository) Get(ctx context.Context) (*models.SessionCredential, error) {
	got, err := r.table.GetByID(ctx, rowID)
	if err != nil || got == nil {
		return nil, err
	}
	return &got.cred, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, cred *models.SessionCredential) error {
	_, err := r.table.Save(ctx, &row{id: rowID, cred: *cred})
	return err
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	return r.table.ClearTable(ctx)
}
