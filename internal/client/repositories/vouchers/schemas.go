package vouchers

import (
	"database/sql"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

func scanTime(s string) (time.Time, error) {
	return timex.Parse(s)
}

var supplySchema = &store.Schema[models.SupplyVoucher]{
	Table:         "supply_vouchers",
	Key:           "id",
	Columns:       []string{"warehouse_id", "field_id", "activity_id", "machine_id", "notes", "issued_at", "created_at"},
	AutoIncrement: true,
	ID:            func(v *models.SupplyVoucher) int64 { return v.ID },
	SetID:         func(v *models.SupplyVoucher, id int64) { v.ID = id },
	Args: func(v *models.SupplyVoucher) []any {
		var machine any
		if v.MachineID != nil {
			machine = *v.MachineID
		}
		return []any{v.WarehouseID, v.FieldID, v.ActivityID, machine, v.Notes, timex.Format(v.IssuedAt), timex.Format(v.CreatedAt)}
	},
	Scan: func(s store.Scanner, v *models.SupplyVoucher) error {
		var machine sql.NullInt64
		var issued, created string
		if err := s.Scan(&v.ID, &v.WarehouseID, &v.FieldID, &v.ActivityID, &machine, &v.Notes, &issued, &created); err != nil {
			return err
		}
		if machine.Valid {
			m := machine.Int64
			v.MachineID = &m
		}
		var err error
		if v.IssuedAt, err = scanTime(issued); err != nil {
			return err
		}
		v.CreatedAt, err = scanTime(created)
		return err
	},
}

var lineSchema = &store.Schema[models.SupplyVoucherLine]{
	Table:         "supply_voucher_lines",
	Key:           "id",
	Columns:       []string{"voucher_id", "article_id", "quantity"},
	AutoIncrement: true,
	ID:            func(v *models.SupplyVoucherLine) int64 { return v.ID },
	SetID:         func(v *models.SupplyVoucherLine, id int64) { v.ID = id },
	Args: func(v *models.SupplyVoucherLine) []any {
		return []any{v.VoucherID, v.ArticleID, v.Quantity}
	},
	Scan: func(s store.Scanner, v *models.SupplyVoucherLine) error {
		return s.Scan(&v.ID, &v.VoucherID, &v.ArticleID, &v.Quantity)
	},
}

var rainfallSchema = &store.Schema[models.RainfallReading]{
	Table:         "rainfall_readings",
	Key:           "id",
	Columns:       []string{"field_id", "millimeters", "read_at", "created_at"},
	AutoIncrement: true,
	ID:            func(v *models.RainfallReading) int64 { return v.ID },
	SetID:         func(v *models.RainfallReading, id int64) { v.ID = id },
	Args: func(v *models.RainfallReading) []any {
		return []any{v.FieldID, v.Millimeters, timex.Format(v.ReadAt), timex.Format(v.CreatedAt)}
	},
	Scan: func(s store.Scanner, v *models.RainfallReading) error {
		var read, created string
		if err := s.Scan(&v.ID, &v.FieldID, &v.Millimeters, &read, &created); err != nil {
			return err
		}
		var err error
		if v.ReadAt, err = scanTime(read); err != nil {
			return err
		}
		v.CreatedAt, err = scanTime(created)
		return err
	},
}

var ratTrapSchema = &store.Schema[models.RatTrapCount]{
	Table:         "rat_trap_counts",
	Key:           "id",
	Columns:       []string{"trap_id", "captured", "counted_at", "created_at"},
	AutoIncrement: true,
	ID:            func(v *models.RatTrapCount) int64 { return v.ID },
	SetID:         func(v *models.RatTrapCount, id int64) { v.ID = id },
	Args: func(v *models.RatTrapCount) []any {
		return []any{v.TrapID, v.Captured, timex.Format(v.CountedAt), timex.Format(v.CreatedAt)}
	},
	Scan: func(s store.Scanner, v *models.RatTrapCount) error {
		var counted, created string
		if err := s.Scan(&v.ID, &v.TrapID, &v.Captured, &counted, &created); err != nil {
			return err
		}
		var err error
		if v.CountedAt, err = scanTime(counted); err != nil {
			return err
		}
		v.CreatedAt, err = scanTime(created)
		return err
	},
}
