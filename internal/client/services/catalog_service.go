package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/catalogs"
	"github.com/dmitrijs2005/fieldsync/internal/client/settings"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const DefaultSyncWorkers = 4

type CatalogOptions struct {
	DB       *store.DB
	Client   client.Client
	Settings *settings.Store
	// Workers bounds how many catalogs of one tier a forced resync runs
	// at the same time.
	Workers int
	Clock   timex.Clock
	Logger  logging.Logger
}

// CatalogService performs full-replace synchronization of the reference
// catalogs.
type CatalogService struct {
	settings *settings.Store
	registry []catalog
	byName   map[string]catalog
	locks    keyedMutex
	workers  int
	clock    timex.Clock
	log      logging.Logger
}

func NewCatalogService(opts CatalogOptions) *CatalogService {
	repo := catalogs.New(opts.DB.SQL())

	s := &CatalogService{
		settings: opts.Settings,
		workers:  opts.Workers,
		clock:    opts.Clock,
		log:      opts.Logger,
	}
	if s.workers <= 0 {
		s.workers = DefaultSyncWorkers
	}
	if s.clock == nil {
		s.clock = timex.RealClock{}
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	s.log = s.log.With("component", "catalogs")

	s.registry = []catalog{
		flat(opts, repo, catalogs.Companies, 0, func(r *catalogs.Repository) *store.Table[models.Company] { return r.Companies }),
		flat(opts, repo, catalogs.Warehouses, 0, func(r *catalogs.Repository) *store.Table[models.Warehouse] { return r.Warehouses }),
		flat(opts, repo, catalogs.Fields, 0, func(r *catalogs.Repository) *store.Table[models.Field] { return r.Fields }),
		flat(opts, repo, catalogs.Articles, 0, func(r *catalogs.Repository) *store.Table[models.Article] { return r.Articles }),
		flat(opts, repo, catalogs.Machines, 0, func(r *catalogs.Repository) *store.Table[models.Machine] { return r.Machines }),
		flat(opts, repo, catalogs.Activities, 0, func(r *catalogs.Repository) *store.Table[models.Activity] { return r.Activities }),
		flat(opts, repo, catalogs.Traps, 1, func(r *catalogs.Repository) *store.Table[models.Trap] { return r.Traps }),
		&recipeCatalog{db: opts.DB, remote: opts.Client, repo: repo},
	}
	sort.SliceStable(s.registry, func(i, j int) bool { return s.registry[i].tier() < s.registry[j].tier() })

	s.byName = make(map[string]catalog, len(s.registry))
	for _, c := range s.registry {
		s.byName[c.name()] = c
	}
	return s
}

func flat[T any](opts CatalogOptions, repo *catalogs.Repository, name string, tier int, table func(*catalogs.Repository) *store.Table[T]) catalog {
	return &flatCatalog[T]{
		catalogName: name,
		catalogTier: tier,
		db:          opts.DB,
		remote:      opts.Client,
		repo:        repo,
		table:       table,
	}
}

// Names lists the registered catalogs in dependency order.
func (s *CatalogService) Names() []string {
	names := make([]string, len(s.registry))
	for i, c := range s.registry {
		names[i] = c.name()
	}
	return names
}

// Sync synchronizes one catalog. A failed attempt is reported in the
// result; only storage failures are returned as errors.
func (s *CatalogService) Sync(ctx context.Context, name string) (models.SyncResult, error) {
	c, ok := s.byName[name]
	if !ok {
		return models.SyncResult{Catalog: name, Kind: models.FailureInvalid, Message: ErrUnknownCatalog.Error()},
			fmt.Errorf("%w: %q", ErrUnknownCatalog, name)
	}
	return s.run(ctx, c, modeReplace)
}

// SyncAll synchronizes every catalog in dependency order, one at a time.
// A failing catalog does not stop the run; a storage failure does.
func (s *CatalogService) SyncAll(ctx context.Context, progress models.ProgressFunc) ([]models.SyncResult, error) {
	results := make([]models.SyncResult, 0, len(s.registry))
	for i, c := range s.registry {
		report(progress, models.SyncProgress{Catalog: c.name(), Index: i, Total: len(s.registry)})

		res, err := s.run(ctx, c, modeReplace)
		results = append(results, res)
		report(progress, models.SyncProgress{Catalog: c.name(), Index: i, Total: len(s.registry), Result: &res})
		if err != nil {
			return results, err
		}
	}
	s.summarize(ctx, "sync", results)
	return results, nil
}

// ForceFullResync rebuilds every catalog from scratch. Tiers run in order;
// catalogs within a tier run concurrently.
func (s *CatalogService) ForceFullResync(ctx context.Context, progress models.ProgressFunc) ([]models.SyncResult, error) {
	results := make([]models.SyncResult, len(s.registry))
	total := len(s.registry)

	var mu sync.Mutex
	emit := func(p models.SyncProgress) {
		mu.Lock()
		defer mu.Unlock()
		report(progress, p)
	}

	for start := 0; start < total; {
		end := start
		for end < total && s.registry[end].tier() == s.registry[start].tier() {
			end++
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i := start; i < end; i++ {
			c := s.registry[i]
			g.Go(func() error {
				emit(models.SyncProgress{Catalog: c.name(), Index: i, Total: total})
				res, err := s.run(gctx, c, modeReset)
				results[i] = res
				emit(models.SyncProgress{Catalog: c.name(), Index: i, Total: total, Result: &res})
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return compact(results), err
		}
		start = end
	}

	s.summarize(ctx, "full resync", results)
	return results, nil
}

// VerifyIntegrity recounts every catalog table.
func (s *CatalogService) VerifyIntegrity(ctx context.Context) (models.IntegrityReport, error) {
	out := models.IntegrityReport{CheckedAt: s.clock.Now()}
	for _, c := range s.registry {
		entry := models.CatalogIntegrity{Catalog: c.name()}

		n, err := c.count(ctx)
		switch {
		case err != nil:
			entry.Status = models.IntegrityErrored
			entry.Error = err.Error()
		case n == 0:
			entry.Status = models.IntegrityEmpty
		default:
			entry.Status = models.IntegrityPopulated
			entry.Rows = n
		}

		if at, err := s.settings.CatalogSyncedAt(ctx, c.name()); err == nil {
			entry.LastSyncedAt = at
		}
		out.Catalogs = append(out.Catalogs, entry)
	}

	if !out.Healthy() {
		s.log.Warn(ctx, "catalog integrity check found problems",
			"empty", out.With(models.IntegrityEmpty), "errored", out.With(models.IntegrityErrored))
	}
	return out, nil
}

func (s *CatalogService) run(ctx context.Context, c catalog, mode syncMode) (models.SyncResult, error) {
	unlock := s.locks.Lock(c.name())
	defer unlock()

	started := s.clock.Now()
	stats, err := c.sync(ctx, mode)

	res := models.SyncResult{
		Catalog:  c.name(),
		Fetched:  stats.fetched,
		Stored:   stats.stored,
		Anomaly:  stats.anomaly,
		Duration: s.clock.Now().Sub(started),
	}

	if err != nil {
		res.Kind = classify(err)
		res.Message = err.Error()
		if errors.Is(err, store.ErrStorage) {
			s.log.Error(ctx, "catalog sync aborted", "catalog", c.name(), "error", err)
			return res, fmt.Errorf("sync %s: %w", c.name(), err)
		}
		if n, cerr := c.count(ctx); cerr == nil {
			res.Stored = n
		}
		s.log.Warn(ctx, "catalog sync failed", "catalog", c.name(), "kind", string(res.Kind), "error", err)
		return res, nil
	}

	if err := s.settings.SetCatalogSyncedAt(ctx, c.name(), s.clock.Now()); err != nil {
		res.Kind = models.FailureStorage
		res.Message = err.Error()
		return res, fmt.Errorf("sync %s: %w", c.name(), err)
	}

	res.Success = true
	if res.Anomaly != "" {
		s.log.Warn(ctx, "catalog stored with anomaly", "catalog", c.name(), "anomaly", res.Anomaly)
	} else {
		s.log.Info(ctx, "catalog synced", "catalog", c.name(), "rows", res.Stored, "elapsed", res.Duration)
	}
	return res, nil
}

func (s *CatalogService) summarize(ctx context.Context, op string, results []models.SyncResult) {
	var failed error
	for _, r := range results {
		if !r.Success {
			failed = multierr.Append(failed, fmt.Errorf("%s: %s", r.Catalog, r.Message))
		}
	}
	if failed != nil {
		s.log.Warn(ctx, op+" finished with failures", "failed", len(multierr.Errors(failed)), "error", failed)
		return
	}
	s.log.Info(ctx, op+" finished", "catalogs", len(results))
}

func report(progress models.ProgressFunc, p models.SyncProgress) {
	if progress != nil {
		progress(p)
	}
}

// compact drops the slots of catalogs that never ran.
func compact(results []models.SyncResult) []models.SyncResult {
	out := results[:0:0]
	for _, r := range results {
		if r.Catalog != "" {
			out = append(out, r)
		}
	}
	return out
}
