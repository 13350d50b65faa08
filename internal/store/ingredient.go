package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/recipecost/internal/costing"
	"github.com/dukerupert/recipecost/internal/model"
	"github.com/shopspring/decimal"
)

// IngredientStore edits single recipe lines. Every write reprices the line
// and the owning recipe in the same transaction.
type IngredientStore struct {
	db *sql.DB
}

func NewIngredientStore(db *sql.DB) *IngredientStore {
	return &IngredientStore{db: db}
}

const ingredientCols = `ri.id, ri.recipe_id, ri.product_id, ri.quantity, ri.measure, ri.price, ri.total_price, ri.created_at`

func scanIngredient(s scanner) (*model.RecipeIngredient, error) {
	var ri model.RecipeIngredient
	var measure string
	err := s.Scan(&ri.ID, &ri.RecipeID, &ri.ProductID, &ri.Quantity, &measure, &ri.Price, &ri.TotalPrice, &ri.CreatedAt)
	if err != nil {
		return nil, err
	}
	ri.Measure = model.Unit(measure)
	return &ri, nil
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getIngredient(q queryRower, userID, id int64) (*model.RecipeIngredient, error) {
	row := q.QueryRow(
		`SELECT `+ingredientCols+`
		FROM recipe_ingredients ri
		JOIN recipes r ON r.id = ri.recipe_id
		WHERE ri.id = ? AND r.user_id = ?`,
		id, userID,
	)
	ri, err := scanIngredient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ingredient: %w", err)
	}
	return ri, nil
}

// Get returns the ingredient if it belongs to one of the user's recipes.
func (s *IngredientStore) Get(userID, id int64) (*model.RecipeIngredient, error) {
	return getIngredient(s.db, userID, id)
}

func recipeOwned(tx *sql.Tx, userID, recipeID int64) (bool, error) {
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM recipes WHERE id = ? AND user_id = ?`, recipeID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check recipe owner: %w", err)
	}
	return n > 0, nil
}

// Add appends a line to the recipe. Returns nil if the user has no such recipe.
func (s *IngredientStore) Add(userID, recipeID int64, in model.IngredientInput) (*model.RecipeIngredient, error) {
	var added *model.RecipeIngredient
	err := withTx(s.db, func(tx *sql.Tx) error {
		owned, err := recipeOwned(tx, userID, recipeID)
		if err != nil || !owned {
			return err
		}
		id, err := insertIngredient(tx, userID, recipeID, in)
		if err != nil {
			return err
		}
		if err := recomputeFinalPrice(tx, recipeID); err != nil {
			return err
		}
		added, err = getIngredient(tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// Update changes the quantity, measure and unit price of a line. An empty
// measure or nil price keeps the current value. Returns nil if not found.
func (s *IngredientStore) Update(userID, id int64, quantity decimal.Decimal, measure model.Unit, price *decimal.Decimal) (*model.RecipeIngredient, error) {
	var updated *model.RecipeIngredient
	err := withTx(s.db, func(tx *sql.Tx) error {
		current, err := getIngredient(tx, userID, id)
		if err != nil || current == nil {
			return err
		}
		if measure == "" {
			measure = current.Measure
		}
		unitPrice := current.Price
		if price != nil {
			unitPrice = *price
		}

		_, err = tx.Exec(
			`UPDATE recipe_ingredients SET quantity = ?, measure = ?, price = ?, total_price = ? WHERE id = ?`,
			quantity, string(measure), unitPrice, costing.LineTotal(quantity, unitPrice), id,
		)
		if err != nil {
			return fmt.Errorf("update ingredient: %w", err)
		}
		if err := recomputeFinalPrice(tx, current.RecipeID); err != nil {
			return err
		}
		updated, err = getIngredient(tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a line and reprices its recipe. It returns the removed
// line, or nil if there was none.
func (s *IngredientStore) Delete(userID, id int64) (*model.RecipeIngredient, error) {
	var removed *model.RecipeIngredient
	err := withTx(s.db, func(tx *sql.Tx) error {
		var err error
		removed, err = getIngredient(tx, userID, id)
		if err != nil || removed == nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM recipe_ingredients WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete ingredient: %w", err)
		}
		return recomputeFinalPrice(tx, removed.RecipeID)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteByRecipe removes every line of the recipe and returns how many were
// removed. The recipe's final price drops to zero.
func (s *IngredientStore) DeleteByRecipe(userID, recipeID int64) (int64, error) {
	var count int64
	err := withTx(s.db, func(tx *sql.Tx) error {
		owned, err := recipeOwned(tx, userID, recipeID)
		if err != nil || !owned {
			return err
		}
		result, err := tx.Exec(`DELETE FROM recipe_ingredients WHERE recipe_id = ?`, recipeID)
		if err != nil {
			return fmt.Errorf("delete recipe ingredients: %w", err)
		}
		if count, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return recomputeFinalPrice(tx, recipeID)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
