package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/catalogs"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/vouchers"
	"github.com/dmitrijs2005/fieldsync/internal/client/session"
	"github.com/dmitrijs2005/fieldsync/internal/client/settings"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/testutil"
	"github.com/stretchr/testify/require"
)

type env struct {
	db       *store.DB
	api      *testutil.FakeAPI
	client   *client.HTTPClient
	guard    *session.Guard
	settings *settings.Store
	clock    *testutil.StubClock
	catalogs *catalogs.Repository
	vouchers *vouchers.Repository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	db := testutil.NewTestDB(t)
	api := testutil.NewFakeAPI(t)
	clock := testutil.FixedClock()

	st := settings.New(metadata.NewSQLiteRepository(db.SQL()), clock)
	require.NoError(t, st.SetBaseURL(ctx, api.URL()))

	guard := session.NewGuard(session.Options{DB: db, Settings: st, Clock: clock})
	c := client.NewHTTPClient(client.Options{
		Address:        st,
		Device:         st,
		Tokens:         guard,
		OnUnauthorized: guard,
		Timeout:        2 * time.Second,
	})
	t.Cleanup(func() { _ = c.Close() })

	return &env{
		db:       db,
		api:      api,
		client:   c,
		guard:    guard,
		settings: st,
		clock:    clock,
		catalogs: catalogs.New(db.SQL()),
		vouchers: vouchers.New(db.SQL()),
	}
}

// signIn installs a valid online session.
func (e *env) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, e.guard.Set(context.Background(), &models.SessionCredential{
		Token:         "tok",
		ExpiresAt:     e.clock.Now().Add(time.Hour),
		UserName:      "ana",
		CompanyID:     1,
		OnlineAllowed: true,
	}))
}

func (e *env) catalogService() *CatalogService {
	return NewCatalogService(CatalogOptions{DB: e.db, Client: e.client, Settings: e.settings, Workers: 3, Clock: e.clock})
}

func (e *env) outboxService() *OutboxService {
	return NewOutboxService(OutboxOptions{DB: e.db, Client: e.client, Device: e.settings})
}

func (e *env) authService() *AuthService {
	return NewAuthService(AuthOptions{DB: e.db, Client: e.client, Guard: e.guard, Settings: e.settings, Clock: e.clock})
}

func catalogPath(name string) string {
	return "api/catalogs/" + name
}

// serveCatalog makes the fake API answer the catalog with rows.
func (e *env) serveCatalog(name string, rows any) {
	e.api.Set("GET", catalogPath(name), 200, testutil.Envelope(200, rows))
}

// seedCatalogs stores a minimal set of reference rows for vouchers.
func (e *env) seedCatalogs(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := e.catalogs.Warehouses.SaveAll(ctx, []models.Warehouse{{ID: 1, Name: "Central", CompanyID: 1}})
	require.NoError(t, err)
	_, err = e.catalogs.Fields.SaveAll(ctx, []models.Field{{ID: 1, Name: "Lot 12", CompanyID: 1}})
	require.NoError(t, err)
	_, err = e.catalogs.Activities.SaveAll(ctx, []models.Activity{{ID: 1, Code: "FER", Name: "Fertilizing"}})
	require.NoError(t, err)
	_, err = e.catalogs.Articles.SaveAll(ctx, []models.Article{{ID: 1, Code: "UREA", Name: "Urea", Unit: "kg"}, {ID: 2, Code: "KCL", Name: "Potash", Unit: "kg"}})
	require.NoError(t, err)
	_, err = e.catalogs.Machines.SaveAll(ctx, []models.Machine{{ID: 1, Code: "T-01", Name: "Tractor"}})
	require.NoError(t, err)
	_, err = e.catalogs.Traps.SaveAll(ctx, []models.Trap{{ID: 1, Code: "RT-1", FieldID: 1}})
	require.NoError(t, err)
}
