// Package settings is a typed view over the metadata table: the local
// configuration record that survives restarts and exists before any session.
package settings

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"github.com/google/uuid"
)

const (
	KeyBaseURL         = "server.base_url"
	KeyDeviceID        = "device.id"
	KeySavedAt         = "settings.saved_at"
	KeyToken           = "auth.token"
	KeyTokenExpiresAt  = "auth.expires_at"
	KeyOfflinePrefix   = "offline."
	KeyOfflineUser     = "offline.user"
	KeyOfflineCompany  = "offline.company"
	KeyOfflineSalt     = "offline.salt"
	KeyOfflineVerifier = "offline.verifier"
)

func syncedAtKey(catalog string) string {
	return "catalog." + catalog + ".synced_at"
}

type Store struct {
	repo  metadata.Repository
	clock timex.Clock
}

func New(repo metadata.Repository, clock timex.Clock) *Store {
	if clock == nil {
		clock = timex.RealClock{}
	}
	return &Store{repo: repo, clock: clock}
}

func (s *Store) WithTx(tx dbx.DBTX) *Store {
	return &Store{repo: s.repo.WithTx(tx), clock: s.clock}
}

func (s *Store) getString(ctx context.Context, key string) (string, error) {
	b, err := s.repo.Get(ctx, key)
	return string(b), err
}

func (s *Store) getTime(ctx context.Context, key string) (time.Time, error) {
	v, err := s.getString(ctx, key)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	t, err := timex.Parse(v)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (s *Store) touch(ctx context.Context) error {
	return s.repo.Set(ctx, KeySavedAt, []byte(timex.Format(s.clock.Now())))
}

// BaseURL returns the configured remote address, empty when unset.
func (s *Store) BaseURL(ctx context.Context) (string, error) {
	return s.getString(ctx, KeyBaseURL)
}

// SetBaseURL stores a new remote address. A trailing slash is added so
// relative endpoint paths resolve under it.
func (s *Store) SetBaseURL(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url != "" && !strings.HasSuffix(url, "/") {
		url += "/"
	}
	if err := s.repo.Set(ctx, KeyBaseURL, []byte(url)); err != nil {
		return err
	}
	return s.touch(ctx)
}

// SavedAt is when the configuration was last changed.
func (s *Store) SavedAt(ctx context.Context) (time.Time, error) {
	return s.getTime(ctx, KeySavedAt)
}

// DeviceID returns the installation id, generating it on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	id, err := s.getString(ctx, KeyDeviceID)
	if err != nil || id != "" {
		return id, err
	}
	id = uuid.NewString()
	if err := s.repo.Set(ctx, KeyDeviceID, []byte(id)); err != nil {
		return "", err
	}
	return id, s.touch(ctx)
}

// CachedToken returns the bearer token cached outside of the session record
// and its expiry (zero when unknown).
func (s *Store) CachedToken(ctx context.Context) (string, time.Time, error) {
	token, err := s.getString(ctx, KeyToken)
	if err != nil || token == "" {
		return "", time.Time{}, err
	}
	exp, err := s.getTime(ctx, KeyTokenExpiresAt)
	return token, exp, err
}

func (s *Store) SetCachedToken(ctx context.Context, token string, expiresAt time.Time) error {
	if err := s.repo.Set(ctx, KeyToken, []byte(token)); err != nil {
		return err
	}
	exp := ""
	if !expiresAt.IsZero() {
		exp = timex.Format(expiresAt)
	}
	if err := s.repo.Set(ctx, KeyTokenExpiresAt, []byte(exp)); err != nil {
		return err
	}
	return s.touch(ctx)
}

func (s *Store) ClearCachedToken(ctx context.Context) error {
	if err := s.repo.Delete(ctx, KeyToken); err != nil {
		return err
	}
	return s.repo.Delete(ctx, KeyTokenExpiresAt)
}

// CatalogSyncedAt returns the time of the last successful sync of catalog.
func (s *Store) CatalogSyncedAt(ctx context.Context, catalog string) (time.Time, error) {
	return s.getTime(ctx, syncedAtKey(catalog))
}

func (s *Store) SetCatalogSyncedAt(ctx context.Context, catalog string, at time.Time) error {
	return s.repo.Set(ctx, syncedAtKey(catalog), []byte(timex.Format(at)))
}

// OfflineVerifier is what is kept to let a known user sign in offline.
type OfflineVerifier struct {
	UserName  string
	CompanyID string
	Salt      []byte
	Verifier  []byte
}

// OfflineVerifier returns nil when no user has logged in online yet.
func (s *Store) OfflineVerifier(ctx context.Context) (*OfflineVerifier, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	v := &OfflineVerifier{
		UserName:  string(all[KeyOfflineUser]),
		CompanyID: string(all[KeyOfflineCompany]),
		Salt:      all[KeyOfflineSalt],
		Verifier:  all[KeyOfflineVerifier],
	}
	if v.UserName == "" || len(v.Salt) == 0 || len(v.Verifier) == 0 {
		return nil, nil
	}
	return v, nil
}

func (s *Store) SetOfflineVerifier(ctx context.Context, v OfflineVerifier) error {
	if err := s.repo.DeletePrefix(ctx, KeyOfflinePrefix); err != nil {
		return err
	}
	for key, value := range map[string][]byte{
		KeyOfflineUser:     []byte(v.UserName),
		KeyOfflineCompany:  []byte(v.CompanyID),
		KeyOfflineSalt:     v.Salt,
		KeyOfflineVerifier: v.Verifier,
	} {
		if err := s.repo.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ClearOfflineVerifier(ctx context.Context) error {
	return s.repo.DeletePrefix(ctx, KeyOfflinePrefix)
}
