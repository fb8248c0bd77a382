package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VoucherKind names a kind of locally created record awaiting upload.
type VoucherKind string

const (
	KindSupply   VoucherKind = "supply"
	KindRainfall VoucherKind = "rainfall"
	KindRatTrap  VoucherKind = "rat_trap"
)

// VoucherKinds lists kinds in submission order.
var VoucherKinds = []VoucherKind{KindSupply, KindRainfall, KindRatTrap}

// SupplyVoucher records articles withdrawn from a warehouse for a field
// activity. Its presence in the store means it has not been accepted
// remotely yet.
type SupplyVoucher struct {
	ID          int64
	WarehouseID int64
	FieldID     int64
	ActivityID  int64
	MachineID   *int64
	Notes       string
	IssuedAt    time.Time
	CreatedAt   time.Time
	Lines       []SupplyVoucherLine
}

type SupplyVoucherLine struct {
	ID        int64
	VoucherID int64
	ArticleID int64
	Quantity  decimal.Decimal
}

type RainfallReading struct {
	ID          int64
	FieldID     int64
	Millimeters decimal.Decimal
	ReadAt      time.Time
	CreatedAt   time.Time
}

type RatTrapCount struct {
	ID        int64
	TrapID    int64
	Captured  int
	CountedAt time.Time
	CreatedAt time.Time
}
