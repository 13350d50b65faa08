package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Recipe struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	ImageURL    *string         `json:"image_url"`
	Servings    int             `json:"servings"`
	FinalPrice  decimal.Decimal `json:"final_price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RecipeIngredient is one line item. Price is the unit price captured when
// the line was written; TotalPrice is always Quantity * Price.
type RecipeIngredient struct {
	ID         int64           `json:"id"`
	RecipeID   int64           `json:"recipe_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Measure    Unit            `json:"measure"`
	Price      decimal.Decimal `json:"price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

type IngredientWithProduct struct {
	RecipeIngredient
	Product Product `json:"product"`
}

type RecipeDetail struct {
	Recipe      Recipe                  `json:"recipe"`
	Ingredients []IngredientWithProduct `json:"ingredients"`
}

type RecipeInput struct {
	Title       string
	Description *string
	ImageURL    *string
	Servings    int
}

// IngredientInput is a line item as submitted. An empty Measure or nil
// Price is filled in from the product.
type IngredientInput struct {
	ProductID int64
	Quantity  decimal.Decimal
	Measure   Unit
	Price     *decimal.Decimal
}
