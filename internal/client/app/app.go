// Package app wires the local store, the remote gateway, the session guard,
// the connectivity monitor and the sync services into the single surface
// the user interface talks to.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/connectivity"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/vouchers"
	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/client/session"
	"github.com/dmitrijs2005/fieldsync/internal/client/settings"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotStarted     = errors.New("app: background monitoring not started")
	ErrAlreadyStarted = errors.New("app: already started")
	ErrClosed         = errors.New("app: closed")
)

// networkPollInterval is how often interface changes are looked for.
const networkPollInterval = 5 * time.Second

// Events is what the user interface is told about. Implementations must be
// safe for use from several goroutines.
type Events interface {
	session.Notifier
	session.Navigator
	connectivity.Notifier
	// OutboxPending follows ConnectionRestored when vouchers wait for upload.
	OutboxPending(ctx context.Context, pending map[models.VoucherKind]int)
}

type Options struct {
	// Events is optional.
	Events Events
	// Network overrides the interface based detector.
	Network connectivity.NetworkDetector
	// Transport builds the round tripper for the remote API and the
	// internet probes. Defaults to clones of http.DefaultTransport.
	Transport func() http.RoundTripper
	Clock     timex.Clock
	Logger    logging.Logger
}

// connectivityEvents forwards monitor notifications and offers the outbox
// once the connection is back.
type connectivityEvents struct {
	app    *App
	events Events
}

func (e connectivityEvents) ConnectionRestored(ctx context.Context, snap models.ConnectivitySnapshot) {
	e.events.ConnectionRestored(ctx, snap)

	pending, err := e.app.outbox.Pending(ctx)
	if err != nil {
		e.app.log.Warn(ctx, "failed to count pending vouchers", "error", err)
		return
	}
	total := 0
	for _, n := range pending {
		total += n
	}
	if total > 0 {
		e.events.OutboxPending(ctx, pending)
	}
}

func (e connectivityEvents) WentOffline(ctx context.Context, snap models.ConnectivitySnapshot) {
	e.events.WentOffline(ctx, snap)
}

type networkWatcher interface {
	Watch(ctx context.Context, interval time.Duration, onChange func())
}

type App struct {
	cfg      *config.Config
	db       *store.DB
	settings *settings.Store
	guard    *session.Guard
	client   *client.HTTPClient
	monitor  *connectivity.Monitor
	network  connectivity.NetworkDetector

	catalogs       *services.CatalogService
	outbox         *services.OutboxService
	auth           *services.AuthService
	authorizations *services.AuthorizationService

	log logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
	closed  bool
}

// New opens the local store at cfg.DatabasePath, restores the persisted
// session and builds every component. The caller must call Close.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	clock := opts.Clock
	if clock == nil {
		clock = timex.RealClock{}
	}

	db, err := store.Open(ctx, cfg.DatabasePath, log)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: db, log: log.With("component", "app")}
	a.settings = settings.New(metadata.NewSQLiteRepository(db.SQL()), clock)

	if err := a.applyBaseURL(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	a.guard = session.NewGuard(session.Options{
		DB:        db,
		Settings:  a.settings,
		Notifier:  opts.Events,
		Navigator: opts.Events,
		Clock:     clock,
		Logger:    log,
	})
	if _, err := a.guard.Restore(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	a.client = client.NewHTTPClient(client.Options{
		Address:        a.settings,
		Device:         a.settings,
		Tokens:         a.guard,
		OnUnauthorized: a.guard,
		Timeout:        cfg.RequestTimeout,
		Transport:      opts.Transport,
		Logger:         log,
	})

	a.network = opts.Network
	if a.network == nil {
		a.network = connectivity.InterfaceDetector{}
	}
	var notifier connectivity.Notifier
	if opts.Events != nil {
		notifier = connectivityEvents{app: a, events: opts.Events}
	}
	var internet connectivity.Prober
	if len(cfg.ProbeFallbackURLs) > 0 {
		hc := &http.Client{Timeout: cfg.ProbeTimeout}
		if opts.Transport != nil {
			hc.Transport = opts.Transport()
		}
		internet = connectivity.URLProber{
			Client: hc,
			URLs:   cfg.ProbeFallbackURLs,
		}
	}
	a.monitor = connectivity.NewMonitor(connectivity.Options{
		Network:      a.network,
		Remote:       a.client,
		Internet:     internet,
		Session:      a.guard,
		Tokens:       a.settings,
		Notifier:     notifier,
		Interval:     cfg.OnlineCheckInterval,
		Debounce:     cfg.NetworkDebounce,
		ProbeTimeout: cfg.ProbeTimeout,
		Cooldown:     cfg.NotifyCooldown,
		Clock:        clock,
		Logger:       log,
	})

	a.catalogs = services.NewCatalogService(services.CatalogOptions{
		DB:       db,
		Client:   a.client,
		Settings: a.settings,
		Workers:  cfg.SyncWorkers,
		Clock:    clock,
		Logger:   log,
	})
	a.outbox = services.NewOutboxService(services.OutboxOptions{
		DB:     db,
		Client: a.client,
		Device: a.settings,
		Logger: log,
	})
	a.auth = services.NewAuthService(services.AuthOptions{
		DB:       db,
		Client:   a.client,
		Guard:    a.guard,
		Settings: a.settings,
		Clock:    clock,
		Logger:   log,
	})
	a.authorizations = services.NewAuthorizationService(a.client, log)

	return a, nil
}

func (a *App) applyBaseURL(ctx context.Context) error {
	if a.cfg.ServerBaseURL == "" {
		return nil
	}
	stored, err := a.settings.BaseURL(ctx)
	if err != nil {
		return err
	}
	if stored == a.cfg.ServerBaseURL {
		return nil
	}
	return a.settings.SetBaseURL(ctx, a.cfg.ServerBaseURL)
}

// Start runs the connectivity monitor and, when the network detector
// supports it, the interface watcher until Close.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.monitor.Run(gctx) })
	if w, ok := a.network.(networkWatcher); ok {
		g.Go(func() error {
			w.Watch(gctx, networkPollInterval, a.monitor.NetworkChanged)
			return nil
		})
	}

	a.cancel = cancel
	a.group = g
	a.started = true
	a.log.Debug(ctx, "background monitoring started")
	return nil
}

// SyncAllCatalogs refreshes every catalog in dependency order.
func (a *App) SyncAllCatalogs(ctx context.Context, progress models.ProgressFunc) ([]models.SyncResult, error) {
	return a.catalogs.SyncAll(ctx, progress)
}

// SyncCatalog refreshes a single catalog by name.
func (a *App) SyncCatalog(ctx context.Context, name string) (models.SyncResult, error) {
	return a.catalogs.Sync(ctx, name)
}

func (a *App) CatalogNames() []string {
	return a.catalogs.Names()
}

// ForceFullResync rebuilds every catalog from scratch.
func (a *App) ForceFullResync(ctx context.Context, progress models.ProgressFunc) ([]models.SyncResult, error) {
	return a.catalogs.ForceFullResync(ctx, progress)
}

func (a *App) VerifyIntegrity(ctx context.Context) (models.IntegrityReport, error) {
	return a.catalogs.VerifyIntegrity(ctx)
}

// SubmitPendingVouchers uploads every pending voucher.
func (a *App) SubmitPendingVouchers(ctx context.Context) ([]models.SubmissionResult, error) {
	return a.outbox.SubmitPending(ctx)
}

func (a *App) SubmitVoucher(ctx context.Context, kind models.VoucherKind, id int64) (models.SubmissionResult, error) {
	return a.outbox.Submit(ctx, kind, id)
}

// PendingCount returns the number of vouchers awaiting upload per kind.
func (a *App) PendingCount(ctx context.Context) (map[models.VoucherKind]int, error) {
	return a.outbox.Pending(ctx)
}

// Vouchers gives access to the pending records.
func (a *App) Vouchers() *vouchers.Repository {
	return a.outbox.Vouchers()
}

func (a *App) Authorizations() *services.AuthorizationService {
	return a.authorizations
}

// ConnectivityState re-evaluates connectivity and returns the result. It
// needs Start.
func (a *App) ConnectivityState(ctx context.Context) (models.ConnectivitySnapshot, error) {
	a.mu.Lock()
	started := a.started && !a.closed
	a.mu.Unlock()
	if !started {
		return a.monitor.Snapshot(), ErrNotStarted
	}
	return a.monitor.Refresh(ctx)
}

func (a *App) Login(ctx context.Context, creds models.Credentials) (models.SessionResult, error) {
	res, err := a.auth.Login(ctx, creds)
	if err == nil && res.Success {
		a.monitor.NetworkChanged()
	}
	return res, err
}

func (a *App) Logout(ctx context.Context) error {
	return a.auth.Logout(ctx)
}

// ClearOfflineData forgets the credentials kept for offline login.
func (a *App) ClearOfflineData(ctx context.Context) error {
	return a.auth.ClearOfflineData(ctx)
}

// Session returns a copy of the current session, or nil.
func (a *App) Session() *models.SessionCredential {
	return a.guard.Current()
}

// Companies lists the companies offered at login and whether the list came
// from the server.
func (a *App) Companies(ctx context.Context) ([]models.Company, bool, error) {
	return a.auth.Companies(ctx)
}

func (a *App) BaseURL(ctx context.Context) (string, error) {
	return a.settings.BaseURL(ctx)
}

// SetBaseURL stores a new server address. Calls already in flight finish
// against the old one.
func (a *App) SetBaseURL(ctx context.Context, url string) error {
	if err := a.settings.SetBaseURL(ctx, url); err != nil {
		return err
	}
	a.log.Info(ctx, "server address changed", "url", url)
	a.monitor.NetworkChanged()
	return nil
}

// Close stops background work and releases the store. Later calls are
// no-ops.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cancel, g := a.cancel, a.group
	a.mu.Unlock()

	var err error
	if cancel != nil {
		cancel()
		err = multierr.Append(err, g.Wait())
	}
	err = multierr.Append(err, a.client.Close())
	err = multierr.Append(err, a.db.Close())
	return err
}
