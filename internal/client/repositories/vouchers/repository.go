// Package vouchers stores records created on the device until the remote
// system accepts them. Presence of a row means the record is pending.
package vouchers

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

type Repository struct {
	db       dbx.DBTX
	supply   *store.Table[models.SupplyVoucher]
	lines    *store.Table[models.SupplyVoucherLine]
	rainfall *store.Table[models.RainfallReading]
	ratTraps *store.Table[models.RatTrapCount]
}

func New(db dbx.DBTX) *Repository {
	return &Repository{
		db:       db,
		supply:   store.NewTable(db, supplySchema),
		lines:    store.NewTable(db, lineSchema),
		rainfall: store.NewTable(db, rainfallSchema),
		ratTraps: store.NewTable(db, ratTrapSchema),
	}
}

func (r *Repository) WithTx(tx dbx.DBTX) *Repository {
	return New(tx)
}

// CreateSupply inserts the voucher and its lines atomically and returns the
// new voucher id. Ids are written back to v and its lines.
func (r *Repository) CreateSupply(ctx context.Context, v *models.SupplyVoucher) (int64, error) {
	v.ID = 0
	err := dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		bound := r.WithTx(tx)
		if _, err := bound.supply.Save(ctx, v); err != nil {
			return err
		}
		return bound.insertLines(ctx, v)
	})
	if err != nil {
		return 0, err
	}
	return v.ID, nil
}

// ReplaceSupply overwrites an existing voucher record and all of its lines.
func (r *Repository) ReplaceSupply(ctx context.Context, v *models.SupplyVoucher) error {
	if v.ID == 0 {
		return fmt.Errorf("replace supply voucher: %w", common.ErrNotFound)
	}
	return dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		bound := r.WithTx(tx)
		ok, err := bound.supply.Exists(ctx, v.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("replace supply voucher %d: %w", v.ID, common.ErrNotFound)
		}
		if _, err := bound.supply.Save(ctx, v); err != nil {
			return err
		}
		if _, err := bound.lines.DeleteWhere(ctx, store.Eq("voucher_id", v.ID)); err != nil {
			return err
		}
		return bound.insertLines(ctx, v)
	})
}

func (r *Repository) insertLines(ctx context.Context, v *models.SupplyVoucher) error {
	for i := range v.Lines {
		v.Lines[i].ID = 0
		v.Lines[i].VoucherID = v.ID
		if _, err := r.lines.Save(ctx, &v.Lines[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetSupply returns the voucher with its lines, or nil when absent.
func (r *Repository) GetSupply(ctx context.Context, id int64) (*models.SupplyVoucher, error) {
	v, err := r.supply.GetByID(ctx, id)
	if err != nil || v == nil {
		return v, err
	}
	if v.Lines, err = r.SupplyLines(ctx, id); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Repository) SupplyLines(ctx context.Context, voucherID int64) ([]models.SupplyVoucherLine, error) {
	return r.lines.GetWhere(ctx, store.Eq("voucher_id", voucherID))
}

// DeleteSupply removes the voucher and its lines in one transaction.
func (r *Repository) DeleteSupply(ctx context.Context, id int64) error {
	return dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		bound := r.WithTx(tx)
		if _, err := bound.lines.DeleteWhere(ctx, store.Eq("voucher_id", id)); err != nil {
			return err
		}
		return bound.supply.Delete(ctx, id)
	})
}

func (r *Repository) CreateRainfall(ctx context.Context, v *models.RainfallReading) (int64, error) {
	v.ID = 0
	return r.rainfall.Save(ctx, v)
}

func (r *Repository) ReplaceRainfall(ctx context.Context, v *models.RainfallReading) error {
	return replace(ctx, r.rainfall, v, v.ID)
}

func (r *Repository) GetRainfall(ctx context.Context, id int64) (*models.RainfallReading, error) {
	return r.rainfall.GetByID(ctx, id)
}

func (r *Repository) DeleteRainfall(ctx context.Context, id int64) error {
	return r.rainfall.Delete(ctx, id)
}

func (r *Repository) CreateRatTrap(ctx context.Context, v *models.RatTrapCount) (int64, error) {
	v.ID = 0
	return r.ratTraps.Save(ctx, v)
}

func (r *Repository) ReplaceRatTrap(ctx context.Context, v *models.RatTrapCount) error {
	return replace(ctx, r.ratTraps, v, v.ID)
}

func (r *Repository) GetRatTrap(ctx context.Context, id int64) (*models.RatTrapCount, error) {
	return r.ratTraps.GetByID(ctx, id)
}

func (r *Repository) DeleteRatTrap(ctx context.Context, id int64) error {
	return r.ratTraps.Delete(ctx, id)
}

func replace[T any](ctx context.Context, t *store.Table[T], v *T, id int64) error {
	if id == 0 {
		return fmt.Errorf("replace %s: %w", t.Name(), common.ErrNotFound)
	}
	ok, err := t.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("replace %s %d: %w", t.Name(), id, common.ErrNotFound)
	}
	_, err = t.Save(ctx, v)
	return err
}

// PendingIDs lists the ids of pending records of kind in ascending order.
func (r *Repository) PendingIDs(ctx context.Context, kind models.VoucherKind) ([]int64, error) {
	var q string
	switch kind {
	case models.KindSupply:
		q = `SELECT id FROM supply_vouchers ORDER BY id`
	case models.KindRainfall:
		q = `SELECT id FROM rainfall_readings ORDER BY id`
	case models.KindRatTrap:
		q = `SELECT id FROM rat_trap_counts ORDER BY id`
	default:
		return nil, fmt.Errorf("unknown voucher kind %q", kind)
	}

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: pending %s: %w", store.ErrStorage, kind, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: pending %s: %w", store.ErrStorage, kind, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: pending %s: %w", store.ErrStorage, kind, err)
	}
	return ids, nil
}

// Count returns the number of pending records per kind.
func (r *Repository) Count(ctx context.Context) (map[models.VoucherKind]int, error) {
	out := make(map[models.VoucherKind]int, len(models.VoucherKinds))
	var err error
	if out[models.KindSupply], err = r.supply.Count(ctx); err != nil {
		return nil, err
	}
	if out[models.KindRainfall], err = r.rainfall.Count(ctx); err != nil {
		return nil, err
	}
	if out[models.KindRatTrap], err = r.ratTraps.Count(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
