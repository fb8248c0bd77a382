package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/catalogs"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/vouchers"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"github.com/shopspring/decimal"
)

// VoucherHandler knows how to upload and purge one kind of voucher.
type VoucherHandler interface {
	Kind() models.VoucherKind
	// Pending lists ids of records awaiting upload, oldest first.
	Pending(ctx context.Context) ([]int64, error)
	// Payload loads the record and builds the request body. Every catalog
	// id it carries must resolve against the local catalogs.
	Payload(ctx context.Context, id int64) (any, error)
	// Purge removes the record and its lines using tx.
	Purge(ctx context.Context, tx dbx.DBTX, id int64) error
}

type supplyLinePayload struct {
	ArticleID int64       `json:"articleId"`
	Quantity  json.Number `json:"quantity"`
}

type supplyPayload struct {
	LocalID     int64               `json:"localId"`
	DeviceID    string              `json:"deviceId,omitempty"`
	WarehouseID int64               `json:"warehouseId"`
	FieldID     int64               `json:"fieldId"`
	ActivityID  int64               `json:"activityId"`
	MachineID   *int64              `json:"machineId"`
	Notes       string              `json:"notes,omitempty"`
	IssuedAt    string              `json:"issuedAt"`
	CreatedAt   string              `json:"createdAt"`
	Lines       []supplyLinePayload `json:"lines"`
}

type rainfallPayload struct {
	LocalID     int64       `json:"localId"`
	DeviceID    string      `json:"deviceId,omitempty"`
	FieldID     int64       `json:"fieldId"`
	Millimeters json.Number `json:"millimeters"`
	ReadAt      string      `json:"readAt"`
	CreatedAt   string      `json:"createdAt"`
}

type ratTrapPayload struct {
	LocalID   int64  `json:"localId"`
	DeviceID  string `json:"deviceId,omitempty"`
	TrapID    int64  `json:"trapId"`
	Captured  int    `json:"captured"`
	CountedAt string `json:"countedAt"`
	CreatedAt string `json:"createdAt"`
}

// number renders d as a JSON number rather than the quoted string the
// decimal package marshals to.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// exists fails with ErrUnresolvedReference when id is not in t.
func exists[T any](ctx context.Context, t *store.Table[T], what string, id int64) error {
	ok, err := t.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %d", ErrUnresolvedReference, what, id)
	}
	return nil
}

func notFound(kind models.VoucherKind, id int64) error {
	return fmt.Errorf("%s voucher %d: %w", kind, id, common.ErrNotFound)
}

type deviceSource interface {
	DeviceID(ctx context.Context) (string, error)
}

func deviceID(ctx context.Context, d deviceSource) string {
	if d == nil {
		return ""
	}
	id, err := d.DeviceID(ctx)
	if err != nil {
		return ""
	}
	return id
}

type supplyHandler struct {
	vouchers *vouchers.Repository
	catalogs *catalogs.Repository
	device   deviceSource
}

func (h *supplyHandler) Kind() models.VoucherKind { return models.KindSupply }

func (h *supplyHandler) Pending(ctx context.Context) ([]int64, error) {
	return h.vouchers.PendingIDs(ctx, models.KindSupply)
}

func (h *supplyHandler) Payload(ctx context.Context, id int64) (any, error) {
	v, err := h.vouchers.GetSupply(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, notFound(models.KindSupply, id)
	}

	if err := exists(ctx, h.catalogs.Warehouses, "warehouse", v.WarehouseID); err != nil {
		return nil, err
	}
	if err := exists(ctx, h.catalogs.Fields, "field", v.FieldID); err != nil {
		return nil, err
	}
	if err := exists(ctx, h.catalogs.Activities, "activity", v.ActivityID); err != nil {
		return nil, err
	}
	if v.MachineID != nil {
		if err := exists(ctx, h.catalogs.Machines, "machine", *v.MachineID); err != nil {
			return nil, err
		}
	}

	p := supplyPayload{
		LocalID:     v.ID,
		DeviceID:    deviceID(ctx, h.device),
		WarehouseID: v.WarehouseID,
		FieldID:     v.FieldID,
		ActivityID:  v.ActivityID,
		MachineID:   v.MachineID,
		Notes:       v.Notes,
		IssuedAt:    timex.Format(v.IssuedAt),
		CreatedAt:   timex.Format(v.CreatedAt),
		Lines:       make([]supplyLinePayload, 0, len(v.Lines)),
	}
	for _, l := range v.Lines {
		if err := exists(ctx, h.catalogs.Articles, "article", l.ArticleID); err != nil {
			return nil, err
		}
		p.Lines = append(p.Lines, supplyLinePayload{ArticleID: l.ArticleID, Quantity: number(l.Quantity)})
	}
	return p, nil
}

func (h *supplyHandler) Purge(ctx context.Context, tx dbx.DBTX, id int64) error {
	return h.vouchers.WithTx(tx).DeleteSupply(ctx, id)
}

type rainfallHandler struct {
	vouchers *vouchers.Repository
	catalogs *catalogs.Repository
	device   deviceSource
}

func (h *rainfallHandler) Kind() models.VoucherKind { return models.KindRainfall }

func (h *rainfallHandler) Pending(ctx context.Context) ([]int64, error) {
	return h.vouchers.PendingIDs(ctx, models.KindRainfall)
}

func (h *rainfallHandler) Payload(ctx context.Context, id int64) (any, error) {
	v, err := h.vouchers.GetRainfall(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, notFound(models.KindRainfall, id)
	}
	if err := exists(ctx, h.catalogs.Fields, "field", v.FieldID); err != nil {
		return nil, err
	}
	return rainfallPayload{
		LocalID:     v.ID,
		DeviceID:    deviceID(ctx, h.device),
		FieldID:     v.FieldID,
		Millimeters: number(v.Millimeters),
		ReadAt:      timex.Format(v.ReadAt),
		CreatedAt:   timex.Format(v.CreatedAt),
	}, nil
}

func (h *rainfallHandler) Purge(ctx context.Context, tx dbx.DBTX, id int64) error {
	return h.vouchers.WithTx(tx).DeleteRainfall(ctx, id)
}

type ratTrapHandler struct {
	vouchers *vouchers.Repository
	catalogs *catalogs.Repository
	device   deviceSource
}

func (h *ratTrapHandler) Kind() models.VoucherKind { return models.KindRatTrap }

func (h *ratTrapHandler) Pending(ctx context.Context) ([]int64, error) {
	return h.vouchers.PendingIDs(ctx, models.KindRatTrap)
}

func (h *ratTrapHandler) Payload(ctx context.Context, id int64) (any, error) {
	v, err := h.vouchers.GetRatTrap(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, notFound(models.KindRatTrap, id)
	}
	if err := exists(ctx, h.catalogs.Traps, "trap", v.TrapID); err != nil {
		return nil, err
	}
	return ratTrapPayload{
		LocalID:   v.ID,
		DeviceID:  deviceID(ctx, h.device),
		TrapID:    v.TrapID,
		Captured:  v.Captured,
		CountedAt: timex.Format(v.CountedAt),
		CreatedAt: timex.Format(v.CreatedAt),
	}, nil
}

func (h *ratTrapHandler) Purge(ctx context.Context, tx dbx.DBTX, id int64) error {
	return h.vouchers.WithTx(tx).DeleteRatTrap(ctx, id)
}
