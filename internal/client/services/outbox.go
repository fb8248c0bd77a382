package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/catalogs"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/vouchers"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

type OutboxOptions struct {
	DB     *store.DB
	Client client.Client
	// Device stamps payloads with the installation id. Optional.
	Device client.DeviceSource
	Logger logging.Logger
}

// OutboxService uploads pending vouchers and removes each one only after
// the remote system confirmed it.
type OutboxService struct {
	db       *store.DB
	remote   client.Client
	vouchers *vouchers.Repository
	handlers map[models.VoucherKind]VoucherHandler
	locks    keyedMutex
	log      logging.Logger
}

func NewOutboxService(opts OutboxOptions) *OutboxService {
	vs := vouchers.New(opts.DB.SQL())
	cs := catalogs.New(opts.DB.SQL())

	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	s := &OutboxService{
		db:       opts.DB,
		remote:   opts.Client,
		vouchers: vs,
		handlers: make(map[models.VoucherKind]VoucherHandler),
		log:      log.With("component", "outbox"),
	}
	s.register(&supplyHandler{vouchers: vs, catalogs: cs, device: opts.Device})
	s.register(&rainfallHandler{vouchers: vs, catalogs: cs, device: opts.Device})
	s.register(&ratTrapHandler{vouchers: vs, catalogs: cs, device: opts.Device})
	return s
}

func (s *OutboxService) register(h VoucherHandler) {
	s.handlers[h.Kind()] = h
}

// Vouchers gives access to the pending records for creating and editing.
func (s *OutboxService) Vouchers() *vouchers.Repository {
	return s.vouchers
}

// Pending returns the number of records awaiting upload per kind.
func (s *OutboxService) Pending(ctx context.Context) (map[models.VoucherKind]int, error) {
	return s.vouchers.Count(ctx)
}

// Submit uploads one voucher. On confirmed success the voucher and its
// lines are deleted in one transaction; on any failure they stay as they
// were. Only a failure to purge an accepted voucher is returned as an
// error.
func (s *OutboxService) Submit(ctx context.Context, kind models.VoucherKind, id int64) (models.SubmissionResult, error) {
	res := models.SubmissionResult{Kind: kind, ID: id}

	h, ok := s.handlers[kind]
	if !ok {
		res.Failure = models.FailureInvalid
		res.Message = ErrUnknownKind.Error()
		return res, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	unlock := s.locks.Lock(string(kind) + ":" + strconv.FormatInt(id, 10))
	defer unlock()

	payload, err := h.Payload(ctx, id)
	if err != nil {
		res.Failure = classify(err)
		res.Message = err.Error()
		if errors.Is(err, store.ErrStorage) {
			return res, err
		}
		s.log.Warn(ctx, "voucher not submitted", "kind", string(kind), "id", id, "error", err)
		return res, nil
	}

	reply, err := s.remote.SubmitVoucher(ctx, kind, payload)
	if err != nil {
		res.Failure = classify(err)
		res.Message = err.Error()
		s.log.Warn(ctx, "voucher submission failed", "kind", string(kind), "id", id, "error", err)
		return res, nil
	}
	if !reply.Success {
		res.Failure = models.FailureRemote
		res.Message = (&client.RemoteError{Status: reply.Status, Message: reply.Message}).Error()
		s.log.Warn(ctx, "voucher rejected", "kind", string(kind), "id", id, "status", reply.Status, "message", reply.Message)
		return res, nil
	}
	res.Success = true

	// The remote side has applied the voucher: finish the purge even if
	// the caller gives up now.
	purgeCtx := context.WithoutCancel(ctx)
	err = s.db.InTx(purgeCtx, func(ctx context.Context, tx dbx.DBTX) error {
		return h.Purge(ctx, tx, id)
	})
	if err != nil {
		res.Failure = models.FailureStorage
		res.Message = err.Error()
		s.log.Error(ctx, "accepted voucher could not be purged", "kind", string(kind), "id", id, "error", err)
		return res, fmt.Errorf("purge %s voucher %d: %w", kind, id, err)
	}
	res.Purged = true

	s.log.Info(ctx, "voucher submitted", "kind", string(kind), "id", id)
	return res, nil
}

// SubmitPending submits every pending voucher: kinds in models.VoucherKinds
// order, oldest first within a kind. It stops only on a storage failure.
func (s *OutboxService) SubmitPending(ctx context.Context) ([]models.SubmissionResult, error) {
	var results []models.SubmissionResult
	for _, kind := range models.VoucherKinds {
		ids, err := s.handlers[kind].Pending(ctx)
		if err != nil {
			return results, err
		}
		for _, id := range ids {
			res, err := s.Submit(ctx, kind, id)
			results = append(results, res)
			if err != nil {
				return results, err
			}
		}
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.log.Info(ctx, "outbox run finished", "submitted", len(results)-failed, "failed", failed)
	return results, nil
}
