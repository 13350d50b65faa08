// Package costing holds the price arithmetic for recipes: line totals,
// recipe totals, and the serving-ratio view shown on a recipe's detail page.
package costing

import (
	"errors"
	"fmt"

	"github.com/dukerupert/recipecost/internal/model"
	"github.com/shopspring/decimal"
)

const (
	moneyPlaces    = 2
	quantityPlaces = 3
)

// ErrInvalidServings is returned when a serving count is not positive.
var ErrInvalidServings = errors.New("servings must be greater than 0")

// LineTotal is quantity × unit price.
func LineTotal(quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price)
}

// RecipeTotal sums the line totals of the given ingredients.
func RecipeTotal(lines []model.RecipeIngredient) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TotalPrice)
	}
	return total
}

// CostPerServing divides total by servings, returning zero for a
// non-positive serving count.
func CostPerServing(total decimal.Decimal, servings int) decimal.Decimal {
	if servings <= 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(servings)))
}

// ScaledIngredient is an ingredient restated for a different serving count.
type ScaledIngredient struct {
	model.IngredientWithProduct
	ScaledQuantity decimal.Decimal `json:"scaled_quantity"`
	ScaledTotal    decimal.Decimal `json:"scaled_total"`
}

// View is a recipe's cost roll-up at a chosen serving count.
type View struct {
	Recipe         model.Recipe       `json:"recipe"`
	Ingredients    []ScaledIngredient `json:"ingredients"`
	BaseServings   int                `json:"base_servings"`
	Servings       int                `json:"servings"`
	Ratio          decimal.Decimal    `json:"ratio"`
	TotalCost      decimal.Decimal    `json:"total_cost"`
	CostPerServing decimal.Decimal    `json:"cost_per_serving"`
}

// Scale recalculates a recipe's costs for servings. The recipe's stored
// final price is the total at its own serving count; every figure is
// multiplied by servings / base servings.
func Scale(detail model.RecipeDetail, servings int) (View, error) {
	if servings <= 0 {
		return View{}, ErrInvalidServings
	}
	base := detail.Recipe.Servings
	if base <= 0 {
		return View{}, fmt.Errorf("recipe %d: stored %w", detail.Recipe.ID, ErrInvalidServings)
	}

	target := decimal.NewFromInt(int64(servings))
	ratio := target.Div(decimal.NewFromInt(int64(base)))

	scaled := make([]ScaledIngredient, 0, len(detail.Ingredients))
	for _, ing := range detail.Ingredients {
		scaled = append(scaled, ScaledIngredient{
			IngredientWithProduct: ing,
			ScaledQuantity:        ing.Quantity.Mul(ratio).Round(quantityPlaces),
			ScaledTotal:           ing.TotalPrice.Mul(ratio).Round(moneyPlaces),
		})
	}

	total := detail.Recipe.FinalPrice.Mul(ratio)
	return View{
		Recipe:         detail.Recipe,
		Ingredients:    scaled,
		BaseServings:   base,
		Servings:       servings,
		Ratio:          ratio.Round(4),
		TotalCost:      total.Round(moneyPlaces),
		CostPerServing: total.Div(target).Round(moneyPlaces),
	}, nil
}
