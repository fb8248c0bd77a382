package session

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromLogin_ExpirationLayouts(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	want := time.Date(2025, 3, 10, 19, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		expiration string
		want       time.Time
	}{
		{"rfc3339", "2025-03-10T19:30:00Z", want},
		{"rfc3339 offset", "2025-03-10T21:30:00+02:00", want},
		{"no zone", "2025-03-10T19:30:00", want},
		{"fractional no zone", "2025-03-10T19:30:00.000", want},
		{"space separated", "2025-03-10 19:30:00", want},
		{"us date", "03/10/2025 19:30:00", want},
		{"dotted date", "10.03.2025 19:30:00", want},
		{"garbage", "tomorrow", time.Time{}},
		{"empty", "", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := FromLogin(models.LoginResponse{Token: "opaque", Expiration: tt.expiration}, models.Credentials{}, now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(cred.ExpiresAt), "got %v", cred.ExpiresAt)
		})
	}
}

func TestFromLogin_FallsBackToTokenClaims(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	exp := now.Add(8 * time.Hour)
	token := testutil.JWT(t, "maria", exp)

	cred, err := FromLogin(models.LoginResponse{Token: token}, models.Credentials{CompanyID: 4, UserName: "typed"}, now)
	require.NoError(t, err)
	assert.True(t, exp.Equal(cred.ExpiresAt))
	assert.Equal(t, "maria", cred.UserName)
	assert.Equal(t, int64(4), cred.CompanyID)
	assert.True(t, cred.OnlineAllowed)
	assert.Equal(t, now, cred.IssuedAt)
}

func TestFromLogin_ResponseIdentityWins(t *testing.T) {
	token := testutil.JWT(t, "maria", time.Time{})
	cred, err := FromLogin(models.LoginResponse{Token: token, UserName: "Maria P.", UserID: 12, CompanyID: 2},
		models.Credentials{CompanyID: 4, UserName: "typed"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Maria P.", cred.UserName)
	assert.Equal(t, int64(12), cred.UserID)
	assert.Equal(t, int64(2), cred.CompanyID)
	assert.True(t, cred.ExpiresAt.IsZero())
}

func TestFromLogin_NoToken(t *testing.T) {
	_, err := FromLogin(models.LoginResponse{Token: "  "}, models.Credentials{}, time.Now())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	got, ok := TokenExpiry(testutil.JWT(t, "x", exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry(testutil.JWT(t, "x", time.Time{}))
	assert.False(t, ok)

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}

func TestOffline(t *testing.T) {
	now := time.Now()
	cred := Offline(models.Credentials{UserName: "ana", CompanyID: 3, Password: "secret"}, now)
	assert.Empty(t, cred.Token)
	assert.False(t, cred.OnlineAllowed)
	assert.Equal(t, "ana", cred.UserName)
	assert.False(t, cred.TokenValid(now))
}
