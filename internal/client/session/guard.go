// Package session owns the current session credential and turns
// unauthorized responses into a single forced logout.
package session

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/sessions"
	"github.com/dmitrijs2005/fieldsync/internal/client/settings"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"golang.org/x/sync/singleflight"
)

// Reason tells the user why the session ended.
type Reason string

const (
	ReasonExpired    Reason = "expired"
	ReasonSuperseded Reason = "superseded"
)

// Notifier surfaces the forced logout to the user.
type Notifier interface {
	SessionInvalidated(ctx context.Context, reason Reason)
}

// Navigator sends the user back to the login entry point.
type Navigator interface {
	ToLogin(ctx context.Context)
}

type Options struct {
	DB        *store.DB
	Settings  *settings.Store
	Notifier  Notifier
	Navigator Navigator
	Clock     timex.Clock
	Logger    logging.Logger
}

type Guard struct {
	db       *store.DB
	sessions sessions.Repository
	settings *settings.Store
	notifier Notifier
	nav      Navigator
	clock    timex.Clock
	log      logging.Logger

	mu      sync.RWMutex
	current *models.SessionCredential

	flight singleflight.Group
}

func NewGuard(opts Options) *Guard {
	g := &Guard{
		db:       opts.DB,
		sessions: sessions.NewSQLiteRepository(opts.DB.SQL()),
		settings: opts.Settings,
		notifier: opts.Notifier,
		nav:      opts.Navigator,
		clock:    opts.Clock,
		log:      opts.Logger,
	}
	if g.clock == nil {
		g.clock = timex.RealClock{}
	}
	if g.log == nil {
		g.log = logging.Discard()
	}
	g.log = g.log.With("component", "session")
	return g
}

// Restore loads the persisted session record into memory. It returns nil
// when there is none.
func (g *Guard) Restore(ctx context.Context) (*models.SessionCredential, error) {
	cred, err := g.sessions.Get(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.current = cred
	g.mu.Unlock()

	if cred != nil {
		g.log.Info(ctx, "session restored", "user", cred.UserName, "online_allowed", cred.OnlineAllowed)
	}
	return clone(cred), nil
}

// Persist writes cred as the session record and the cached token using tx.
// The in-memory credential is not touched; call Activate after commit.
func (g *Guard) Persist(ctx context.Context, tx dbx.DBTX, cred *models.SessionCredential) error {
	if err := g.sessions.WithTx(tx).Save(ctx, cred); err != nil {
		return err
	}
	st := g.settings.WithTx(tx)
	if cred.Token == "" {
		return st.ClearCachedToken(ctx)
	}
	return st.SetCachedToken(ctx, cred.Token, cred.ExpiresAt)
}

// Activate makes cred the current credential.
func (g *Guard) Activate(cred *models.SessionCredential) {
	g.mu.Lock()
	g.current = clone(cred)
	g.mu.Unlock()
}

// Set replaces the session wholesale.
func (g *Guard) Set(ctx context.Context, cred *models.SessionCredential) error {
	err := g.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return g.Persist(ctx, tx, cred)
	})
	if err != nil {
		return err
	}
	g.Activate(cred)
	return nil
}

// Current returns a copy of the current credential, or nil.
func (g *Guard) Current() *models.SessionCredential {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return clone(g.current)
}

// Clear drops the current credential, the session record and the cached
// token.
func (g *Guard) Clear(ctx context.Context) error {
	g.mu.Lock()
	g.current = nil
	g.mu.Unlock()
	return g.clearPersisted(ctx)
}

func (g *Guard) clearPersisted(ctx context.Context) error {
	return g.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := g.sessions.WithTx(tx).Clear(ctx); err != nil {
			return err
		}
		return g.settings.WithTx(tx).ClearCachedToken(ctx)
	})
}

// clearPersistedToken clears the session record only while it still holds
// token, so a login committed after the rejection survives.
func (g *Guard) clearPersistedToken(ctx context.Context, token string) error {
	return g.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		stored, err := g.sessions.WithTx(tx).Get(ctx)
		if err != nil {
			return err
		}
		if stored != nil && stored.Token != token {
			g.log.Debug(ctx, "session record replaced since the rejection, kept")
			return nil
		}
		if err := g.sessions.WithTx(tx).Clear(ctx); err != nil {
			return err
		}
		return g.settings.WithTx(tx).ClearCachedToken(ctx)
	})
}

// IsTokenDifferent reports whether candidate is not the token of the
// current credential.
func (g *Guard) IsTokenDifferent(candidate string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current == nil || g.current.Token != candidate
}

// Token returns the bearer token of the current credential.
func (g *Guard) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current == nil {
		return ""
	}
	return g.current.Token
}

func (g *Guard) TokenValid() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current.TokenValid(g.clock.Now())
}

// HandleUnauthorized is called by the gateway when a request made with
// token was rejected. Concurrent calls for the same token share one
// logout; a token that is no longer current is ignored. It reports whether
// a logout was performed.
func (g *Guard) HandleUnauthorized(ctx context.Context, token string) bool {
	v, _, _ := g.flight.Do(token, func() (any, error) {
		return g.invalidate(ctx, token), nil
	})
	return v.(bool)
}

func (g *Guard) invalidate(ctx context.Context, token string) bool {
	g.mu.Lock()
	cur := g.current
	if cur == nil || cur.Token != token {
		g.mu.Unlock()
		g.log.Debug(ctx, "unauthorized response for a stale token ignored")
		return false
	}
	reason := ReasonSuperseded
	if cur.Expired(g.clock.Now()) {
		reason = ReasonExpired
	}
	g.current = nil
	g.mu.Unlock()

	g.log.Warn(ctx, "session invalidated", "user", cur.UserName, "reason", string(reason))

	if g.notifier != nil {
		g.notifier.SessionInvalidated(ctx, reason)
	}
	if err := g.clearPersistedToken(ctx, token); err != nil {
		g.log.Error(ctx, "failed to clear session record", "error", err)
	}
	if g.nav != nil {
		g.nav.ToLogin(ctx)
	}
	return true
}

func clone(c *models.SessionCredential) *models.SessionCredential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
