package models

import "github.com/shopspring/decimal"

// Catalog entities are reference data owned by the remote system. Their ids
// are assigned remotely and unique per type; the local copy is always one
// complete remote snapshot.

type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Warehouse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	CompanyID int64  `json:"companyId"`
}

type Field struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	Hectares  decimal.Decimal `json:"hectares"`
	CompanyID int64           `json:"companyId"`
}

type Article struct {
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	CategoryID int64  `json:"categoryId"`
}

type Machine struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type Activity struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Trap is a rat trap placed on a field.
type Trap struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	FieldID   int64   `json:"fieldId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Recipe is a parent catalog: its items live in their own table and are
// replaced together with the recipe.
type Recipe struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	ActivityID int64        `json:"activityId"`
	Items      []RecipeItem `json:"items"`
}

type RecipeItem struct {
	// ID is local only.
	ID             int64           `json:"-"`
	RecipeID       int64           `json:"recipeId"`
	ArticleID      int64           `json:"articleId"`
	DosePerHectare decimal.Decimal `json:"dosePerHectare"`
	Unit           string          `json:"unit"`
}
