// Package catalogs maps the reference-data entities onto their local tables.
package catalogs

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

// Names of the catalogs as used by the remote API and in sync reports.
const (
	Companies  = "companies"
	Warehouses = "warehouses"
	Fields     = "fields"
	Articles   = "articles"
	Machines   = "machines"
	Activities = "activities"
	Traps      = "traps"
	Recipes    = "recipes"
)

type Repository struct {
	Companies   *store.Table[models.Company]
	Warehouses  *store.Table[models.Warehouse]
	Fields      *store.Table[models.Field]
	Articles    *store.Table[models.Article]
	Machines    *store.Table[models.Machine]
	Activities  *store.Table[models.Activity]
	Traps       *store.Table[models.Trap]
	Recipes     *store.Table[models.Recipe]
	RecipeItems *store.Table[models.RecipeItem]
}

func New(db dbx.DBTX) *Repository {
	return &Repository{
		Companies:   store.NewTable(db, CompanySchema),
		Warehouses:  store.NewTable(db, WarehouseSchema),
		Fields:      store.NewTable(db, FieldSchema),
		Articles:    store.NewTable(db, ArticleSchema),
		Machines:    store.NewTable(db, MachineSchema),
		Activities:  store.NewTable(db, ActivitySchema),
		Traps:       store.NewTable(db, TrapSchema),
		Recipes:     store.NewTable(db, RecipeSchema),
		RecipeItems: store.NewTable(db, RecipeItemSchema),
	}
}

// WithTx returns a repository whose tables are bound to tx.
func (r *Repository) WithTx(tx dbx.DBTX) *Repository {
	return New(tx)
}

// Recipe returns a recipe with its items, or nil when absent.
func (r *Repository) Recipe(ctx context.Context, id int64) (*models.Recipe, error) {
	rec, err := r.Recipes.GetByID(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}
	rec.Items, err = r.RecipeItems.GetWhere(ctx, store.Eq("recipe_id", id))
	if err != nil {
		return nil, err
	}
	return rec, nil
}
