package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/catalogs"
	"github.com/dmitrijs2005/fieldsync/internal/client/session"
	"github.com/dmitrijs2005/fieldsync/internal/client/settings"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/cryptox"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

type AuthOptions struct {
	DB       *store.DB
	Client   client.Client
	Guard    *session.Guard
	Settings *settings.Store
	Clock    timex.Clock
	Logger   logging.Logger
}

// AuthService signs users in against the remote API and falls back to the
// locally cached verifier when the server cannot be reached.
type AuthService struct {
	db       *store.DB
	remote   client.Client
	guard    *session.Guard
	settings *settings.Store
	catalogs *catalogs.Repository
	clock    timex.Clock
	log      logging.Logger
}

func NewAuthService(opts AuthOptions) *AuthService {
	a := &AuthService{
		db:       opts.DB,
		remote:   opts.Client,
		guard:    opts.Guard,
		settings: opts.Settings,
		catalogs: catalogs.New(opts.DB.SQL()),
		clock:    opts.Clock,
		log:      opts.Logger,
	}
	if a.clock == nil {
		a.clock = timex.RealClock{}
	}
	if a.log == nil {
		a.log = logging.Discard()
	}
	a.log = a.log.With("component", "auth")
	return a
}

// Login tries the remote API first. When it is unavailable, a user who
// has signed in online on this device before is let in offline with a
// session pinned to offline mode.
func (a *AuthService) Login(ctx context.Context, creds models.Credentials) (models.SessionResult, error) {
	creds.UserName = strings.TrimSpace(creds.UserName)
	if creds.UserName == "" || creds.Password == "" {
		return models.SessionResult{Kind: models.FailureInvalid, Message: "user name and password are required"}, nil
	}

	reply, err := a.remote.Login(ctx, creds)
	switch {
	case err == nil:
		return a.onlineLogin(ctx, creds, reply)
	case errors.Is(err, client.ErrUnavailable):
		a.log.Info(ctx, "server unavailable, trying offline login", "error", err)
		return a.offlineLogin(ctx, creds)
	default:
		kind := classify(err)
		msg := err.Error()
		var remote *client.RemoteError
		if errors.As(err, &remote) && remote.Message != "" {
			msg = remote.Message
		}
		if kind == models.FailureUnauthorized {
			msg = common.ErrInvalidCredentials.Error()
		}
		a.log.Warn(ctx, "login rejected", "user", creds.UserName, "kind", string(kind))
		return models.SessionResult{Kind: kind, Message: msg}, nil
	}
}

func (a *AuthService) onlineLogin(ctx context.Context, creds models.Credentials, reply *client.Result) (models.SessionResult, error) {
	resp, err := client.DecodeData[models.LoginResponse](reply)
	if err != nil {
		return models.SessionResult{Kind: models.FailureProtocol, Message: err.Error()}, nil
	}
	cred, err := session.FromLogin(resp, creds, a.clock.Now())
	if err != nil {
		return models.SessionResult{Kind: models.FailureProtocol, Message: err.Error()}, nil
	}

	password := []byte(creds.Password)
	salt := cryptox.NewSalt()
	key := cryptox.DeriveKey(password, salt)
	verifier := cryptox.MakeVerifier(key)
	common.WipeByteArray(key)
	common.WipeByteArray(password)

	err = a.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := a.guard.Persist(ctx, tx, cred); err != nil {
			return err
		}
		return a.settings.WithTx(tx).SetOfflineVerifier(ctx, settings.OfflineVerifier{
			UserName:  creds.UserName,
			CompanyID: strconv.FormatInt(creds.CompanyID, 10),
			Salt:      salt,
			Verifier:  verifier,
		})
	})
	if err != nil {
		return models.SessionResult{Kind: models.FailureStorage, Message: err.Error()}, err
	}
	a.guard.Activate(cred)

	a.log.Info(ctx, "logged in", "user", cred.UserName, "company", cred.CompanyID, "expires_at", cred.ExpiresAt)
	return models.SessionResult{Success: true, Session: cred}, nil
}

func (a *AuthService) offlineLogin(ctx context.Context, creds models.Credentials) (models.SessionResult, error) {
	v, err := a.settings.OfflineVerifier(ctx)
	if err != nil {
		return models.SessionResult{Kind: models.FailureStorage, Message: err.Error()}, err
	}
	if v == nil {
		return models.SessionResult{
			Kind:    models.FailureTransport,
			Message: "server unavailable and no offline credentials on this device",
		}, nil
	}

	password := []byte(creds.Password)
	defer common.WipeByteArray(password)

	if !strings.EqualFold(v.UserName, creds.UserName) ||
		v.CompanyID != strconv.FormatInt(creds.CompanyID, 10) ||
		!cryptox.Verify(password, v.Salt, v.Verifier) {
		a.log.Warn(ctx, "offline login rejected", "user", creds.UserName)
		return models.SessionResult{Kind: models.FailureUnauthorized, Message: common.ErrInvalidCredentials.Error()}, nil
	}

	cred := session.Offline(models.Credentials{UserName: v.UserName, CompanyID: creds.CompanyID}, a.clock.Now())
	if err := a.guard.Set(ctx, cred); err != nil {
		return models.SessionResult{Kind: models.FailureStorage, Message: err.Error()}, err
	}

	a.log.Info(ctx, "logged in offline", "user", cred.UserName)
	return models.SessionResult{Success: true, Offline: true, Session: cred}, nil
}

// Logout ends the session. The offline verifier is kept so the same user
// can still sign in without a connection.
func (a *AuthService) Logout(ctx context.Context) error {
	return a.guard.Clear(ctx)
}

// ClearOfflineData forgets the cached offline credentials.
func (a *AuthService) ClearOfflineData(ctx context.Context) error {
	return a.settings.ClearOfflineVerifier(ctx)
}

// Companies lists the companies available on the login screen. The remote
// list is used when reachable; otherwise the local companies catalog.
func (a *AuthService) Companies(ctx context.Context) ([]models.Company, bool, error) {
	reply, err := a.remote.Companies(ctx)
	if err == nil {
		list, derr := client.DecodeList[models.Company](reply)
		if derr == nil {
			return list, true, nil
		}
		err = derr
	}
	a.log.Debug(ctx, "remote companies unavailable, using local catalog", "error", err)

	list, lerr := a.catalogs.Companies.GetAll(ctx)
	if lerr != nil {
		return nil, false, lerr
	}
	return list, false, nil
}

// Ping checks that the remote API answers.
func (a *AuthService) Ping(ctx context.Context) error {
	return a.remote.Ping(ctx)
}
