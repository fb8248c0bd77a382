package vouchers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 4, 2, 6, 30, 0, 0, time.UTC)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "v.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db.SQL())
}

func supplyVoucher() *models.SupplyVoucher {
	machine := int64(4)
	return &models.SupplyVoucher{
		WarehouseID: 1,
		FieldID:     2,
		ActivityID:  3,
		MachineID:   &machine,
		Notes:       "morning run",
		IssuedAt:    t0,
		CreatedAt:   t0.Add(time.Minute),
		Lines: []models.SupplyVoucherLine{
			{ArticleID: 10, Quantity: decimal.RequireFromString("2.5")},
			{ArticleID: 11, Quantity: decimal.RequireFromString("40")},
		},
	}
}

func TestSupply_CreateGetDelete(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	v := supplyVoucher()
	id, err := r.CreateSupply(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, id, v.Lines[1].VoucherID)

	got, err := r.GetSupply(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, cmp.Diff(v, got, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })))

	require.NoError(t, r.DeleteSupply(ctx, id))
	got, err = r.GetSupply(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	lines, err := r.SupplyLines(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSupply_CreateIsAtomic(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.db.ExecContext(ctx, `CREATE TRIGGER fail_line BEFORE INSERT ON supply_voucher_lines
		WHEN NEW.article_id = 666 BEGIN SELECT RAISE(ABORT, 'bad article'); END`)
	require.NoError(t, err)

	bad := supplyVoucher()
	bad.Lines[1].ArticleID = 666
	_, err = r.CreateSupply(ctx, bad)
	require.Error(t, err)

	counts, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[models.KindSupply])

	var lines int
	require.NoError(t, r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM supply_voucher_lines`).Scan(&lines))
	assert.Zero(t, lines)
}

func TestSupply_ReplaceWhole(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	v := supplyVoucher()
	id, err := r.CreateSupply(ctx, v)
	require.NoError(t, err)

	v.Notes = "edited"
	v.MachineID = nil
	v.Lines = []models.SupplyVoucherLine{{ArticleID: 20, Quantity: decimal.NewFromInt(1)}}
	require.NoError(t, r.ReplaceSupply(ctx, v))

	got, err := r.GetSupply(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Notes)
	assert.Nil(t, got.MachineID)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, int64(20), got.Lines[0].ArticleID)

	missing := supplyVoucher()
	missing.ID = 99
	assert.ErrorIs(t, r.ReplaceSupply(ctx, missing), common.ErrNotFound)
	assert.ErrorIs(t, r.ReplaceSupply(ctx, supplyVoucher()), common.ErrNotFound)
}

func TestReadings_PendingAndCount(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.CreateRainfall(ctx, &models.RainfallReading{
			FieldID: 2, Millimeters: decimal.RequireFromString("12.4"), ReadAt: t0, CreatedAt: t0,
		})
		require.NoError(t, err)
	}
	rt := &models.RatTrapCount{TrapID: 8, Captured: 2, CountedAt: t0, CreatedAt: t0}
	_, err := r.CreateRatTrap(ctx, rt)
	require.NoError(t, err)

	ids, err := r.PendingIDs(ctx, models.KindRainfall)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	require.NoError(t, r.DeleteRainfall(ctx, 2))
	ids, err = r.PendingIDs(ctx, models.KindRainfall)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)

	rt.Captured = 5
	require.NoError(t, r.ReplaceRatTrap(ctx, rt))
	got, err := r.GetRatTrap(ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Captured)
	assert.True(t, got.CountedAt.Equal(t0))

	counts, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.VoucherKind]int{
		models.KindSupply:   0,
		models.KindRainfall: 2,
		models.KindRatTrap:  1,
	}, counts)

	_, err = r.PendingIDs(ctx, "unknown")
	assert.Error(t, err)
}
