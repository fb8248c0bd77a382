// Package services holds the application services of the client: catalog
// synchronization, the voucher outbox, authentication and authorization
// decisions.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

var (
	ErrUnknownCatalog = errors.New("unknown catalog")
	ErrUnknownKind    = errors.New("unknown voucher kind")

	// ErrEmptySnapshot means the remote returned no rows; the local table
	// is left as it was.
	ErrEmptySnapshot = errors.New("remote snapshot is empty")
	// ErrIncompleteSnapshot means the snapshot could not be stored in full.
	ErrIncompleteSnapshot = errors.New("snapshot not stored in full")
	// ErrUnresolvedReference means a voucher points at a catalog row that
	// is not in the local cache.
	ErrUnresolvedReference = errors.New("unresolved catalog reference")
)

// classify maps an error onto the failure kind reported in results.
func classify(err error) models.FailureKind {
	var remote *client.RemoteError
	switch {
	case err == nil:
		return models.FailureNone
	case errors.Is(err, store.ErrStorage):
		return models.FailureStorage
	case errors.Is(err, client.ErrUnauthorized):
		return models.FailureUnauthorized
	case errors.Is(err, client.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return models.FailureTransport
	case errors.Is(err, client.ErrProtocol):
		return models.FailureProtocol
	case errors.As(err, &remote):
		return models.FailureRemote
	case errors.Is(err, ErrEmptySnapshot):
		return models.FailureEmpty
	case errors.Is(err, ErrIncompleteSnapshot):
		return models.FailureAnomaly
	case errors.Is(err, ErrUnresolvedReference):
		return models.FailureReference
	case errors.Is(err, common.ErrNotFound), errors.Is(err, ErrUnknownCatalog), errors.Is(err, ErrUnknownKind):
		return models.FailureInvalid
	default:
		return models.FailureTransport
	}
}
