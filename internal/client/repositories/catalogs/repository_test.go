package catalogs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "c.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db.SQL())
}

func TestFieldRoundTripKeepsDecimal(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	in := models.Field{ID: 12, Name: "North block", Code: "N1", Hectares: decimal.RequireFromString("12.375"), CompanyID: 2}
	_, err := r.Fields.Save(ctx, &in)
	require.NoError(t, err)

	got, err := r.Fields.GetByID(ctx, 12)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, in.Hectares.Equal(got.Hectares))
	assert.Equal(t, "North block", got.Name)
}

func TestRequiredNameRejectsRow(t *testing.T) {
	r := newRepo(t)

	applied, err := r.Warehouses.SaveAll(context.Background(), []models.Warehouse{
		{ID: 1, Name: "Main"},
		{ID: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
}

func TestRecipeWithItems(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Recipes.Save(ctx, &models.Recipe{ID: 5, Name: "Herbicide mix", ActivityID: 3})
	require.NoError(t, err)
	applied, err := r.RecipeItems.SaveAll(ctx, []models.RecipeItem{
		{RecipeID: 5, ArticleID: 100, DosePerHectare: decimal.RequireFromString("1.5"), Unit: "l"},
		{RecipeID: 5, ArticleID: 101, DosePerHectare: decimal.RequireFromString("0.25"), Unit: "kg"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, applied)

	rec, err := r.Recipe(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, rec.Items, 2)
	assert.Equal(t, int64(100), rec.Items[0].ArticleID)
	assert.Equal(t, "0.25", rec.Items[1].DosePerHectare.String())

	missing, err := r.Recipe(ctx, 6)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecipeItemsNeedParent(t *testing.T) {
	r := newRepo(t)

	applied, err := r.RecipeItems.SaveAll(context.Background(), []models.RecipeItem{{RecipeID: 99, ArticleID: 1}})
	require.NoError(t, err)
	assert.Zero(t, applied)
}
