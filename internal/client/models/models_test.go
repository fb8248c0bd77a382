package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionCredential_TokenValid(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cred *SessionCredential
		want bool
	}{
		{"nil", nil, false},
		{"no token", &SessionCredential{ExpiresAt: now.Add(time.Hour)}, false},
		{"unknown expiry", &SessionCredential{Token: "t"}, true},
		{"future expiry", &SessionCredential{Token: "t", ExpiresAt: now.Add(time.Minute)}, true},
		{"expires now", &SessionCredential{Token: "t", ExpiresAt: now}, false},
		{"expired", &SessionCredential{Token: "t", ExpiresAt: now.Add(-time.Second)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.TokenValid(now))
		})
	}
}

func TestIntegrityReport(t *testing.T) {
	r := IntegrityReport{Catalogs: []CatalogIntegrity{
		{Catalog: "warehouses", Status: IntegrityPopulated},
		{Catalog: "fields", Status: IntegrityEmpty},
		{Catalog: "traps", Status: IntegrityErrored},
		{Catalog: "recipes", Status: IntegrityEmpty},
	}}

	assert.False(t, r.Healthy())
	assert.Equal(t, []string{"fields", "recipes"}, r.With(IntegrityEmpty))
	assert.Equal(t, []string{"traps"}, r.With(IntegrityErrored))
	assert.True(t, IntegrityReport{}.Healthy())
}

func TestConnectivitySnapshot(t *testing.T) {
	s := ConnectivitySnapshot{State: StateOffline, NetworkAvailable: true, InternetReachable: true}
	assert.True(t, s.IsConnected())
	assert.False(t, s.UseRemoteServices())
	assert.Equal(t, "offline", s.State.String())

	s = ConnectivitySnapshot{State: StateOnline, NetworkAvailable: true, RemoteReachable: true}
	assert.True(t, s.UseRemoteServices())
	assert.Equal(t, "unknown", StateUnknown.String())
}
