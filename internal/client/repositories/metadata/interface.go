// Package metadata is a key/value table holding the local configuration
// record: base address, device id, cached token, offline verifier and
// per-catalog sync times.
package metadata

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
	WithTx(tx dbx.DBTX) Repository
}
