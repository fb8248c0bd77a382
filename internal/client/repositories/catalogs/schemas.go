package catalogs

import (
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
)

// required maps an empty string to NULL so NOT NULL columns reject rows that
// arrived without the field.
func required(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var CompanySchema = &store.Schema[models.Company]{
	Table:   "companies",
	Key:     "id",
	Columns: []string{"name", "code"},
	ID:      func(v *models.Company) int64 { return v.ID },
	SetID:   func(v *models.Company, id int64) { v.ID = id },
	Args:    func(v *models.Company) []any { return []any{required(v.Name), v.Code} },
	Scan: func(s store.Scanner, v *models.Company) error {
		return s.Scan(&v.ID, &v.Name, &v.Code)
	},
}

var WarehouseSchema = &store.Schema[models.Warehouse]{
	Table:   "warehouses",
	Key:     "id",
	Columns: []string{"name", "code", "company_id"},
	ID:      func(v *models.Warehouse) int64 { return v.ID },
	SetID:   func(v *models.Warehouse, id int64) { v.ID = id },
	Args:    func(v *models.Warehouse) []any { return []any{required(v.Name), v.Code, v.CompanyID} },
	Scan: func(s store.Scanner, v *models.Warehouse) error {
		return s.Scan(&v.ID, &v.Name, &v.Code, &v.CompanyID)
	},
}

var FieldSchema = &store.Schema[models.Field]{
	Table:   "fields",
	Key:     "id",
	Columns: []string{"name", "code", "hectares", "company_id"},
	ID:      func(v *models.Field) int64 { return v.ID },
	SetID:   func(v *models.Field, id int64) { v.ID = id },
	Args:    func(v *models.Field) []any { return []any{required(v.Name), v.Code, v.Hectares, v.CompanyID} },
	Scan: func(s store.Scanner, v *models.Field) error {
		return s.Scan(&v.ID, &v.Name, &v.Code, &v.Hectares, &v.CompanyID)
	},
}

var ArticleSchema = &store.Schema[models.Article]{
	Table:   "articles",
	Key:     "id",
	Columns: []string{"code", "name", "unit", "category_id"},
	ID:      func(v *models.Article) int64 { return v.ID },
	SetID:   func(v *models.Article, id int64) { v.ID = id },
	Args:    func(v *models.Article) []any { return []any{v.Code, required(v.Name), v.Unit, v.CategoryID} },
	Scan: func(s store.Scanner, v *models.Article) error {
		return s.Scan(&v.ID, &v.Code, &v.Name, &v.Unit, &v.CategoryID)
	},
}

var MachineSchema = &store.Schema[models.Machine]{
	Table:   "machines",
	Key:     "id",
	Columns: []string{"code", "name", "kind"},
	ID:      func(v *models.Machine) int64 { return v.ID },
	SetID:   func(v *models.Machine, id int64) { v.ID = id },
	Args:    func(v *models.Machine) []any { return []any{v.Code, required(v.Name), v.Kind} },
	Scan: func(s store.Scanner, v *models.Machine) error {
		return s.Scan(&v.ID, &v.Code, &v.Name, &v.Kind)
	},
}

var ActivitySchema = &store.Schema[models.Activity]{
	Table:   "activities",
	Key:     "id",
	Columns: []string{"code", "name"},
	ID:      func(v *models.Activity) int64 { return v.ID },
	SetID:   func(v *models.Activity, id int64) { v.ID = id },
	Args:    func(v *models.Activity) []any { return []any{v.Code, required(v.Name)} },
	Scan: func(s store.Scanner, v *models.Activity) error {
		return s.Scan(&v.ID, &v.Code, &v.Name)
	},
}

var TrapSchema = &store.Schema[models.Trap]{
	Table:   "traps",
	Key:     "id",
	Columns: []string{"code", "field_id", "latitude", "longitude"},
	ID:      func(v *models.Trap) int64 { return v.ID },
	SetID:   func(v *models.Trap, id int64) { v.ID = id },
	Args:    func(v *models.Trap) []any { return []any{required(v.Code), v.FieldID, v.Latitude, v.Longitude} },
	Scan: func(s store.Scanner, v *models.Trap) error {
		return s.Scan(&v.ID, &v.Code, &v.FieldID, &v.Latitude, &v.Longitude)
	},
}

// RecipeSchema covers only the scalar part; items live in recipe_items.
var RecipeSchema = &store.Schema[models.Recipe]{
	Table:   "recipes",
	Key:     "id",
	Columns: []string{"name", "activity_id"},
	ID:      func(v *models.Recipe) int64 { return v.ID },
	SetID:   func(v *models.Recipe, id int64) { v.ID = id },
	Args:    func(v *models.Recipe) []any { return []any{required(v.Name), v.ActivityID} },
	Scan: func(s store.Scanner, v *models.Recipe) error {
		return s.Scan(&v.ID, &v.Name, &v.ActivityID)
	},
}

var RecipeItemSchema = &store.Schema[models.RecipeItem]{
	Table:         "recipe_items",
	Key:           "id",
	Columns:       []string{"recipe_id", "article_id", "dose_per_hectare", "unit"},
	AutoIncrement: true,
	ID:            func(v *models.RecipeItem) int64 { return v.ID },
	SetID:         func(v *models.RecipeItem, id int64) { v.ID = id },
	Args: func(v *models.RecipeItem) []any {
		return []any{v.RecipeID, v.ArticleID, v.DosePerHectare, v.Unit}
	},
	Scan: func(s store.Scanner, v *models.RecipeItem) error {
		return s.Scan(&v.ID, &v.RecipeID, &v.ArticleID, &v.DosePerHectare, &v.Unit)
	},
}
