package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/catalogs"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

type syncMode int

const (
	// modeReplace clears the table before storing the snapshot.
	modeReplace syncMode = iota
	// modeReset also restarts auto-increment sequences.
	modeReset
)

type syncStats struct {
	fetched int
	stored  int
	anomaly string
}

// catalog is one entry of the sync registry.
type catalog interface {
	name() string
	// tier orders catalogs by dependency: a catalog only references
	// catalogs of lower tiers.
	tier() int
	sync(ctx context.Context, mode syncMode) (syncStats, error)
	count(ctx context.Context) (int, error)
}

// flatCatalog replaces one table with the remote snapshot.
type flatCatalog[T any] struct {
	catalogName string
	catalogTier int
	db          *store.DB
	remote      client.Client
	repo        *catalogs.Repository
	table       func(*catalogs.Repository) *store.Table[T]
}

func (c *flatCatalog[T]) name() string { return c.catalogName }
func (c *flatCatalog[T]) tier() int    { return c.catalogTier }

func (c *flatCatalog[T]) count(ctx context.Context) (int, error) {
	return c.table(c.repo).Count(ctx)
}

func (c *flatCatalog[T]) sync(ctx context.Context, mode syncMode) (syncStats, error) {
	rows, err := fetch[T](ctx, c.remote, c.catalogName)
	if err != nil {
		return syncStats{}, err
	}
	stats := syncStats{fetched: len(rows)}

	err = c.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		t := c.table(c.repo.WithTx(tx))

		wipe := t.ClearTable
		if mode == modeReset {
			wipe = t.ResetTable
		}
		if err := wipe(ctx); err != nil {
			return err
		}

		applied, err := t.SaveAll(ctx, rows)
		if err != nil {
			return err
		}
		if applied < len(rows) {
			return fmt.Errorf("%w: %d of %d rows applied", ErrIncompleteSnapshot, applied, len(rows))
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	return verify(ctx, stats, c.count)
}

// recipeCatalog keeps recipes and their items in step: both tables are
// rewritten in one transaction.
type recipeCatalog struct {
	db     *store.DB
	remote client.Client
	repo   *catalogs.Repository
}

func (c *recipeCatalog) name() string { return catalogs.Recipes }
func (c *recipeCatalog) tier() int    { return 1 }

func (c *recipeCatalog) count(ctx context.Context) (int, error) {
	return c.repo.Recipes.Count(ctx)
}

func (c *recipeCatalog) sync(ctx context.Context, mode syncMode) (syncStats, error) {
	recipes, err := fetch[models.Recipe](ctx, c.remote, catalogs.Recipes)
	if err != nil {
		return syncStats{}, err
	}
	stats := syncStats{fetched: len(recipes)}

	err = c.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := c.repo.WithTx(tx)

		if mode == modeReset {
			if err := repo.RecipeItems.ResetTable(ctx); err != nil {
				return err
			}
			if err := repo.Recipes.ResetTable(ctx); err != nil {
				return err
			}
		}

		seen := make(map[int64]struct{}, len(recipes))
		for i := range recipes {
			if err := c.replaceRecipe(ctx, repo, recipes[i]); err != nil {
				return err
			}
			seen[recipes[i].ID] = struct{}{}
		}
		return c.dropAbsent(ctx, repo, seen)
	})
	if err != nil {
		return stats, err
	}

	return verify(ctx, stats, c.count)
}

// replaceRecipe upserts the scalar fields of r, then swaps its items.
func (c *recipeCatalog) replaceRecipe(ctx context.Context, repo *catalogs.Repository, r models.Recipe) error {
	items := r.Items
	r.Items = nil

	if _, err := repo.Recipes.Save(ctx, &r); err != nil {
		return rowFailure(err, "recipe %d", r.ID)
	}
	if _, err := repo.RecipeItems.DeleteWhere(ctx, store.Eq("recipe_id", r.ID)); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	for i := range items {
		items[i].ID = 0
		items[i].RecipeID = r.ID
	}
	applied, err := repo.RecipeItems.SaveAll(ctx, items)
	if err != nil {
		return err
	}
	if applied < len(items) {
		return fmt.Errorf("%w: recipe %d: %d of %d items applied", ErrIncompleteSnapshot, r.ID, applied, len(items))
	}
	return nil
}

// dropAbsent removes recipes missing from the snapshot and any item left
// without a parent.
func (c *recipeCatalog) dropAbsent(ctx context.Context, repo *catalogs.Repository, seen map[int64]struct{}) error {
	local, err := repo.Recipes.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range local {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		if _, err := repo.RecipeItems.DeleteWhere(ctx, store.Eq("recipe_id", r.ID)); err != nil {
			return err
		}
		if err := repo.Recipes.Delete(ctx, r.ID); err != nil {
			return err
		}
	}
	_, err = repo.RecipeItems.DeleteWhere(ctx, store.Where("recipe_id NOT IN (SELECT id FROM recipes)"))
	return err
}

// fetch downloads and decodes a catalog snapshot. An empty snapshot is an
// error so that callers never clear a table for it.
func fetch[T any](ctx context.Context, remote client.Client, name string) ([]T, error) {
	res, err := remote.FetchCatalog(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := client.DecodeList[T](res)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptySnapshot
	}
	return rows, nil
}

// verify recounts the table after commit.
func verify(ctx context.Context, stats syncStats, count func(context.Context) (int, error)) (syncStats, error) {
	n, err := count(ctx)
	if err != nil {
		return stats, err
	}
	stats.stored = n

	if n == 0 {
		return stats, fmt.Errorf("%w: table empty after storing %d rows", ErrIncompleteSnapshot, stats.fetched)
	}
	if n != stats.fetched {
		stats.anomaly = fmt.Sprintf("%d rows fetched, %d stored: duplicate remote ids", stats.fetched, n)
	}
	return stats, nil
}

// rowFailure turns a row-level store error into an incomplete snapshot.
// Storage errors pass through untouched.
func rowFailure(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrIncompleteSnapshot, fmt.Sprintf(format, args...), err)
}
