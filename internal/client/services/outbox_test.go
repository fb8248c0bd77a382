package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	supplyPath   = "api/vouchers/supply"
	rainfallPath = "api/readings/rainfall"
	ratTrapPath  = "api/readings/rat-traps"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func newSupply(e *env, articles ...int64) *models.SupplyVoucher {
	machine := int64(1)
	v := &models.SupplyVoucher{
		WarehouseID: 1,
		FieldID:     1,
		ActivityID:  1,
		MachineID:   &machine,
		Notes:       "north rows",
		IssuedAt:    e.clock.Now().Add(-time.Hour),
		CreatedAt:   e.clock.Now(),
	}
	for i, a := range articles {
		v.Lines = append(v.Lines, models.SupplyVoucherLine{
			ArticleID: a,
			Quantity:  decimal.NewFromFloat(12.5).Add(decimal.NewFromInt(int64(i))),
		})
	}
	return v
}

// createSupplyWithID stores vouchers until one gets the wanted id and
// removes the ones before it.
func createSupplyWithID(t *testing.T, e *env, want int64, articles ...int64) *models.SupplyVoucher {
	t.Helper()
	ctx := context.Background()
	for {
		v := newSupply(e, articles...)
		id, err := e.vouchers.CreateSupply(ctx, v)
		require.NoError(t, err)
		if id == want {
			return v
		}
		require.Less(t, id, want)
		require.NoError(t, e.vouchers.DeleteSupply(ctx, id))
	}
}

func TestSubmit_AcceptedVoucherIsPurged(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.seedCatalogs(t)
	ctx := context.Background()

	createSupplyWithID(t, e, 7, 1, 2)
	e.api.Set(http.MethodPost, supplyPath, 200, `{"status":200,"data":"ok"}`)

	res, err := e.outboxService().Submit(ctx, models.KindSupply, 7)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Purged)
	assert.Equal(t, models.FailureNone, res.Failure)

	v, err := e.vouchers.GetSupply(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, v)

	lines, err := e.vouchers.SupplyLines(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.Equal(t, 1, e.api.Count(http.MethodPost, supplyPath))
}

func TestSubmit_RejectedVoucherIsKept(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.seedCatalogs(t)
	ctx := context.Background()

	createSupplyWithID(t, e, 7, 1, 2)
	before, err := e.vouchers.GetSupply(ctx, 7)
	require.NoError(t, err)

	e.api.Set(http.MethodPost, supplyPath, 200, `{"status":500}`)
	svc := e.outboxService()

	for attempt := 1; attempt <= 2; attempt++ {
		res, err := svc.Submit(ctx, models.KindSupply, 7)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.False(t, res.Purged)
		assert.Equal(t, models.FailureRemote, res.Failure)

		after, err := e.vouchers.GetSupply(ctx, 7)
		require.NoError(t, err)
		if diff := cmp.Diff(before, after, decimalEqual); diff != "" {
			t.Fatalf("attempt %d changed the voucher (-want +got):\n%s", attempt, diff)
		}
	}

	counts, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.KindSupply])
	assert.Equal(t, 2, e.api.Count(http.MethodPost, supplyPath))
}

func TestSubmit_FailuresKeepVoucher(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *env)
		kind  models.FailureKind
	}{
		{
			name:  "server unreachable",
			setup: func(e *env) { e.api.Close() },
			kind:  models.FailureTransport,
		},
		{
			name:  "gateway error",
			setup: func(e *env) { e.api.Set(http.MethodPost, supplyPath, 502, "bad gateway") },
			kind:  models.FailureTransport,
		},
		{
			name:  "garbage reply",
			setup: func(e *env) { e.api.Set(http.MethodPost, supplyPath, 200, `"ok"`) },
			kind:  models.FailureProtocol,
		},
		{
			name:  "session rejected",
			setup: func(e *env) { e.api.Set(http.MethodPost, supplyPath, 401, "") },
			kind:  models.FailureUnauthorized,
		},
		{
			name:  "legacy failure",
			setup: func(e *env) { e.api.Set(http.MethodPost, supplyPath, 200, testutil.Legacy(false, "closed period", nil)) },
			kind:  models.FailureRemote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.signIn(t)
			e.seedCatalogs(t)
			ctx := context.Background()

			id, err := e.vouchers.CreateSupply(ctx, newSupply(e, 1))
			require.NoError(t, err)
			tt.setup(e)

			res, err := e.outboxService().Submit(ctx, models.KindSupply, id)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.kind, res.Failure)

			v, err := e.vouchers.GetSupply(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, v)
			assert.Len(t, v.Lines, 1)
		})
	}
}

func TestSubmit_UnresolvedReferenceNeverLeavesDevice(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.seedCatalogs(t)
	ctx := context.Background()

	id, err := e.vouchers.CreateSupply(ctx, newSupply(e, 1, 99))
	require.NoError(t, err)

	res, err := e.outboxService().Submit(ctx, models.KindSupply, id)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.FailureReference, res.Failure)
	assert.Contains(t, res.Message, "article 99")

	assert.Zero(t, e.api.Count(http.MethodPost, supplyPath))

	v, err := e.vouchers.GetSupply(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestSubmit_MissingVoucher(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)

	res, err := e.outboxService().Submit(context.Background(), models.KindRainfall, 404)
	require.NoError(t, err)
	assert.Equal(t, models.FailureInvalid, res.Failure)
	assert.Zero(t, e.api.Count(http.MethodPost, rainfallPath))
}

func TestSubmit_UnknownKind(t *testing.T) {
	e := newEnv(t)

	res, err := e.outboxService().Submit(context.Background(), "harvest", 1)
	require.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, models.FailureInvalid, res.Failure)
}

func TestSubmit_PayloadShape(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.seedCatalogs(t)
	ctx := context.Background()

	deviceID, err := e.settings.DeviceID(ctx)
	require.NoError(t, err)

	id, err := e.vouchers.CreateSupply(ctx, newSupply(e, 1, 2))
	require.NoError(t, err)
	e.api.Set(http.MethodPost, supplyPath, 200, testutil.Envelope(200, "ok"))

	_, err = e.outboxService().Submit(ctx, models.KindSupply, id)
	require.NoError(t, err)

	reqs := e.api.Requests(http.MethodPost, supplyPath)
	require.Len(t, reqs, 1)
	assert.Equal(t, deviceID, reqs[0].Header.Get("X-Device-Id"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))

	assert.Equal(t, float64(id), body["localId"])
	assert.Equal(t, deviceID, body["deviceId"])
	assert.Equal(t, float64(1), body["warehouseId"])
	assert.Equal(t, float64(1), body["machineId"])
	assert.Equal(t, "2025-03-10T06:00:00Z", body["issuedAt"])

	lines, ok := body["lines"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 2)
	first := lines[0].(map[string]any)
	assert.Equal(t, float64(1), first["articleId"])
	assert.Equal(t, 12.5, first["quantity"])
	assert.Equal(t, 13.5, lines[1].(map[string]any)["quantity"])
}

func TestSubmit_PurgeFailureIsReported(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.seedCatalogs(t)
	ctx := context.Background()

	id, err := e.vouchers.CreateSupply(ctx, newSupply(e, 1, 2))
	require.NoError(t, err)

	_, err = e.db.SQL().Exec(`CREATE TRIGGER keep_supply BEFORE DELETE ON supply_vouchers
		BEGIN SELECT RAISE(ABORT, 'locked'); END`)
	require.NoError(t, err)
	e.api.Set(http.MethodPost, supplyPath, 200, testutil.Envelope(200, "ok"))

	res, err := e.outboxService().Submit(ctx, models.KindSupply, id)
	require.ErrorIs(t, err, store.ErrStorage)

	assert.True(t, res.Success)
	assert.False(t, res.Purged)
	assert.Equal(t, models.FailureStorage, res.Failure)

	lines, err := e.vouchers.SupplyLines(ctx, id)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestSubmitPending_OrderAndOutcome(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.seedCatalogs(t)
	ctx := context.Background()

	rain, err := e.vouchers.CreateRainfall(ctx, &models.RainfallReading{
		FieldID: 1, Millimeters: decimal.RequireFromString("4.2"), ReadAt: e.clock.Now(), CreatedAt: e.clock.Now(),
	})
	require.NoError(t, err)
	trap, err := e.vouchers.CreateRatTrap(ctx, &models.RatTrapCount{
		TrapID: 1, Captured: 3, CountedAt: e.clock.Now(), CreatedAt: e.clock.Now(),
	})
	require.NoError(t, err)
	first, err := e.vouchers.CreateSupply(ctx, newSupply(e, 1))
	require.NoError(t, err)
	second, err := e.vouchers.CreateSupply(ctx, newSupply(e, 2))
	require.NoError(t, err)

	ok := testutil.Envelope(200, "ok")
	e.api.Set(http.MethodPost, supplyPath, 200, ok)
	e.api.Set(http.MethodPost, rainfallPath, 200, `{"status":409,"message":"duplicate reading"}`)
	e.api.Set(http.MethodPost, ratTrapPath, 200, ok)

	svc := e.outboxService()
	results, err := svc.SubmitPending(ctx)
	require.NoError(t, err)

	got := make([]models.SubmissionResult, len(results))
	for i, r := range results {
		r.Message = ""
		got[i] = r
	}
	want := []models.SubmissionResult{
		{Kind: models.KindSupply, ID: first, Success: true, Purged: true},
		{Kind: models.KindSupply, ID: second, Success: true, Purged: true},
		{Kind: models.KindRainfall, ID: rain, Failure: models.FailureRemote},
		{Kind: models.KindRatTrap, ID: trap, Success: true, Purged: true},
	}
	assert.Equal(t, want, got)
	assert.Contains(t, results[2].Message, "duplicate reading")

	counts, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.VoucherKind]int{
		models.KindSupply:   0,
		models.KindRainfall: 1,
		models.KindRatTrap:  0,
	}, counts)

	var body map[string]any
	reqs := e.api.Requests(http.MethodPost, rainfallPath)
	require.Len(t, reqs, 1)
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, 4.2, body["millimeters"])
}

func TestSubmitPending_NothingPending(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)

	results, err := e.outboxService().SubmitPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
