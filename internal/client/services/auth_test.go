package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/session"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPath = "api/auth/login"

var creds = models.Credentials{CompanyID: 1, UserName: "ana", Password: "s3cret"}

func (e *env) serveLogin(t *testing.T, exp time.Time) string {
	t.Helper()
	token := testutil.JWT(t, "ana", exp)
	e.api.Set(http.MethodPost, loginPath, 200, testutil.Envelope(200, models.LoginResponse{
		Token:     token,
		UserID:    42,
		UserName:  "ana",
		CompanyID: 1,
	}))
	return token
}

func TestLogin_OnlineStoresSessionAndVerifier(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	exp := e.clock.Now().Add(8 * time.Hour)
	token := e.serveLogin(t, exp)

	res, err := e.authService().Login(ctx, creds)
	require.NoError(t, err)

	require.True(t, res.Success, res.Message)
	assert.False(t, res.Offline)
	require.NotNil(t, res.Session)
	assert.Equal(t, token, res.Session.Token)
	assert.True(t, res.Session.ExpiresAt.Equal(exp))
	assert.Equal(t, int64(42), res.Session.UserID)
	assert.True(t, res.Session.OnlineAllowed)

	assert.Equal(t, token, e.guard.Token())
	assert.True(t, e.guard.TokenValid())

	v, err := e.settings.OfflineVerifier(ctx)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "ana", v.UserName)
	assert.Equal(t, "1", v.CompanyID)
	assert.NotEmpty(t, v.Salt)
	assert.NotEmpty(t, v.Verifier)

	restored, err := session.NewGuard(session.Options{DB: e.db, Settings: e.settings, Clock: e.clock}).Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, token, restored.Token)

	cached, _, err := e.settings.CachedToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, cached)

	reqs := e.api.Requests(http.MethodPost, loginPath)
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Header.Get("Authorization"))
	var body models.Credentials
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, creds, body)
}

func TestLogin_FallsBackToOfflineVerifier(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.serveLogin(t, e.clock.Now().Add(time.Hour))
	auth := e.authService()

	_, err := auth.Login(ctx, creds)
	require.NoError(t, err)
	e.api.Close()

	tests := []struct {
		name    string
		creds   models.Credentials
		success bool
		kind    models.FailureKind
	}{
		{name: "same user", creds: creds, success: true},
		{name: "user name case differs", creds: models.Credentials{CompanyID: 1, UserName: "ANA", Password: "s3cret"}, success: true},
		{name: "wrong password", creds: models.Credentials{CompanyID: 1, UserName: "ana", Password: "guess"}, kind: models.FailureUnauthorized},
		{name: "other company", creds: models.Credentials{CompanyID: 2, UserName: "ana", Password: "s3cret"}, kind: models.FailureUnauthorized},
		{name: "other user", creds: models.Credentials{CompanyID: 1, UserName: "bob", Password: "s3cret"}, kind: models.FailureUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := auth.Login(ctx, tt.creds)
			require.NoError(t, err)

			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.kind, res.Kind)
			if !tt.success {
				assert.Equal(t, common.ErrInvalidCredentials.Error(), res.Message)
				return
			}

			assert.True(t, res.Offline)
			require.NotNil(t, res.Session)
			assert.False(t, res.Session.OnlineAllowed)
			assert.Empty(t, res.Session.Token)
			assert.Equal(t, "ana", res.Session.UserName)
			assert.False(t, e.guard.TokenValid())
		})
	}
}

func TestLogin_OfflineWithoutVerifier(t *testing.T) {
	e := newEnv(t)
	e.api.Close()

	res, err := e.authService().Login(context.Background(), creds)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.FailureTransport, res.Kind)
	assert.Nil(t, e.guard.Current())
}

func TestLogin_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    models.FailureKind
		message string
	}{
		{
			name:    "unauthorized status",
			status:  401,
			kind:    models.FailureUnauthorized,
			message: common.ErrInvalidCredentials.Error(),
		},
		{
			name:    "unauthorized envelope",
			status:  200,
			body:    `{"status":401,"message":"bad password"}`,
			kind:    models.FailureUnauthorized,
			message: common.ErrInvalidCredentials.Error(),
		},
		{
			name:    "remote refusal",
			status:  200,
			body:    `{"status":403,"message":"user locked"}`,
			kind:    models.FailureRemote,
			message: "user locked",
		},
		{
			name:   "no token in reply",
			status: 200,
			body:   testutil.Envelope(200, models.LoginResponse{UserName: "ana"}),
			kind:   models.FailureProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.api.Set(http.MethodPost, loginPath, tt.status, tt.body)

			res, err := e.authService().Login(context.Background(), creds)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.kind, res.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, res.Message)
			}
			assert.Nil(t, e.guard.Current())

			v, err := e.settings.OfflineVerifier(context.Background())
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestLogin_MissingCredentials(t *testing.T) {
	e := newEnv(t)

	res, err := e.authService().Login(context.Background(), models.Credentials{UserName: "  ", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, models.FailureInvalid, res.Kind)
	assert.Zero(t, e.api.Count(http.MethodPost, loginPath))
}

func TestLogout_KeepsOfflineVerifier(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.serveLogin(t, e.clock.Now().Add(time.Hour))
	auth := e.authService()

	_, err := auth.Login(ctx, creds)
	require.NoError(t, err)
	require.NoError(t, auth.Logout(ctx))

	assert.Nil(t, e.guard.Current())
	cached, _, err := e.settings.CachedToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached)

	v, err := e.settings.OfflineVerifier(ctx)
	require.NoError(t, err)
	assert.NotNil(t, v)

	require.NoError(t, auth.ClearOfflineData(ctx))
	e.api.Close()

	res, err := auth.Login(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, models.FailureTransport, res.Kind)
}

func TestCompanies_RemoteThenLocal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	auth := e.authService()

	e.api.Set(http.MethodGet, "api/companies", 200, testutil.Legacy(true, "", []models.Company{{ID: 1, Name: "Agro"}, {ID: 2, Name: "Citrus"}}))

	list, remote, err := auth.Companies(ctx)
	require.NoError(t, err)
	assert.True(t, remote)
	assert.Len(t, list, 2)

	_, err = e.catalogs.Companies.SaveAll(ctx, []models.Company{{ID: 1, Name: "Agro"}})
	require.NoError(t, err)
	e.api.Close()

	list, remote, err = auth.Companies(ctx)
	require.NoError(t, err)
	assert.False(t, remote)
	assert.Equal(t, []models.Company{{ID: 1, Name: "Agro"}}, list)
}

func TestPing(t *testing.T) {
	e := newEnv(t)
	auth := e.authService()

	require.NoError(t, auth.Ping(context.Background()))
	e.api.Close()
	assert.Error(t, auth.Ping(context.Background()))
}
