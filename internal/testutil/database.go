package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// NewTestDB opens a migrated store in a temporary directory. It is closed
// when the test completes.
func NewTestDB(t *testing.T) *store.DB {
	t.Helper()

	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "fieldsync.db"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
