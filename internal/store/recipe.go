package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/recipecost/internal/costing"
	"github.com/dukerupert/recipecost/internal/model"
	"github.com/shopspring/decimal"
)

type RecipeStore struct {
	db *sql.DB
}

func NewRecipeStore(db *sql.DB) *RecipeStore {
	return &RecipeStore{db: db}
}

const recipeCols = `id, user_id, title, description, image_url, servings, final_price, created_at, updated_at`

func scanRecipe(s scanner) (*model.Recipe, error) {
	var r model.Recipe
	var desc, image sql.NullString
	err := s.Scan(&r.ID, &r.UserID, &r.Title, &desc, &image, &r.Servings, &r.FinalPrice, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Description = stringPtr(desc)
	r.ImageURL = stringPtr(image)
	return &r, nil
}

func (s *RecipeStore) queryList(query string, args ...any) ([]model.Recipe, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []model.Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, *r)
	}
	return recipes, rows.Err()
}

// List returns the user's recipes, newest first.
func (s *RecipeStore) List(userID int64) ([]model.Recipe, error) {
	return s.queryList(
		`SELECT `+recipeCols+` FROM recipes WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

// SearchByTitle returns recipes whose title contains q, newest first.
func (s *RecipeStore) SearchByTitle(userID int64, q string) ([]model.Recipe, error) {
	return s.queryList(
		`SELECT `+recipeCols+` FROM recipes WHERE user_id = ? AND title LIKE ? ESCAPE '\' ORDER BY created_at DESC, id DESC`,
		userID, containsPattern(q),
	)
}

func (s *RecipeStore) Get(userID, id int64) (*model.Recipe, error) {
	row := s.db.QueryRow(`SELECT `+recipeCols+` FROM recipes WHERE id = ? AND user_id = ?`, id, userID)
	r, err := scanRecipe(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return r, nil
}

const ingredientProductCols = `ri.id, ri.recipe_id, ri.product_id, ri.quantity, ri.measure, ri.price, ri.total_price, ri.created_at,
	p.id, p.user_id, p.name, p.emoji, p.unit, p.price, p.created_at, p.updated_at`

func scanIngredientWithProduct(s scanner) (*model.IngredientWithProduct, error) {
	var iw model.IngredientWithProduct
	var measure, unit string
	err := s.Scan(
		&iw.ID, &iw.RecipeID, &iw.ProductID, &iw.Quantity, &measure, &iw.Price, &iw.TotalPrice, &iw.CreatedAt,
		&iw.Product.ID, &iw.Product.UserID, &iw.Product.Name, &iw.Product.Emoji, &unit, &iw.Product.Price,
		&iw.Product.CreatedAt, &iw.Product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	iw.Measure = model.Unit(measure)
	iw.Product.Unit = model.Unit(unit)
	return &iw, nil
}

// GetDetail returns the recipe with its ingredients and their products, or
// nil if the user has no such recipe.
func (s *RecipeStore) GetDetail(userID, id int64) (*model.RecipeDetail, error) {
	recipe, err := s.Get(userID, id)
	if err != nil || recipe == nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT `+ingredientProductCols+`
		FROM recipe_ingredients ri
		JOIN products p ON p.id = ri.product_id
		WHERE ri.recipe_id = ?
		ORDER BY ri.id ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("list recipe ingredients: %w", err)
	}
	defer rows.Close()

	detail := &model.RecipeDetail{Recipe: *recipe, Ingredients: []model.IngredientWithProduct{}}
	for rows.Next() {
		iw, err := scanIngredientWithProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe ingredient: %w", err)
		}
		detail.Ingredients = append(detail.Ingredients, *iw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return detail, nil
}

// Create inserts the recipe and its ingredients in one transaction and
// sets final_price to the sum of the line totals.
func (s *RecipeStore) Create(userID int64, in model.RecipeInput, ingredients []model.IngredientInput) (*model.RecipeDetail, error) {
	var id int64
	err := withTx(s.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		result, err := tx.Exec(
			`INSERT INTO recipes (user_id, title, description, image_url, servings, final_price, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, '0', ?, ?)`,
			userID, in.Title, nullString(in.Description), nullString(in.ImageURL), in.Servings, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		for _, ing := range ingredients {
			if _, err := insertIngredient(tx, userID, id, ing); err != nil {
				return err
			}
		}
		return recomputeFinalPrice(tx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.GetDetail(userID, id)
}

// Update rewrites the recipe's fields. When ingredients is non-nil the
// recipe's line items are replaced by it. Returns nil if the user has no
// such recipe.
func (s *RecipeStore) Update(userID, id int64, in model.RecipeInput, ingredients []model.IngredientInput) (*model.RecipeDetail, error) {
	found := false
	err := withTx(s.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`UPDATE recipes SET title = ?, description = ?, image_url = ?, servings = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`,
			in.Title, nullString(in.Description), nullString(in.ImageURL), in.Servings, time.Now().UTC(), id, userID,
		)
		if err != nil {
			return fmt.Errorf("update recipe: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		found = true

		if ingredients == nil {
			return nil
		}
		if _, err := tx.Exec(`DELETE FROM recipe_ingredients WHERE recipe_id = ?`, id); err != nil {
			return fmt.Errorf("clear recipe ingredients: %w", err)
		}
		for _, ing := range ingredients {
			if _, err := insertIngredient(tx, userID, id, ing); err != nil {
				return err
			}
		}
		return recomputeFinalPrice(tx, id)
	})
	if err != nil || !found {
		return nil, err
	}
	return s.GetDetail(userID, id)
}

// Delete removes the recipe; its ingredients go with it.
func (s *RecipeStore) Delete(userID, id int64) error {
	_, err := s.db.Exec(`DELETE FROM recipes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	return nil
}

// insertIngredient prices one line from the user's product and inserts it.
// The caller must recompute the recipe's final price afterwards.
func insertIngredient(tx *sql.Tx, userID, recipeID int64, in model.IngredientInput) (int64, error) {
	var unit string
	var productPrice decimal.Decimal
	err := tx.QueryRow(
		`SELECT unit, price FROM products WHERE id = ? AND user_id = ?`,
		in.ProductID, userID,
	).Scan(&unit, &productPrice)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("product %d: %w", in.ProductID, ErrProductNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get ingredient product: %w", err)
	}

	measure := in.Measure
	if measure == "" {
		measure = model.Unit(unit)
	}
	price := productPrice
	if in.Price != nil {
		price = *in.Price
	}

	result, err := tx.Exec(
		`INSERT INTO recipe_ingredients (recipe_id, product_id, quantity, measure, price, total_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		recipeID, in.ProductID, in.Quantity, string(measure), price,
		costing.LineTotal(in.Quantity, price), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert ingredient: %w", err)
	}
	return result.LastInsertId()
}

// recomputeFinalPrice sets the recipe's final price to the sum of its line
// totals. Totals are stored as exact decimal text, so the sum is done here
// rather than with SQL SUM.
func recomputeFinalPrice(tx *sql.Tx, recipeID int64) error {
	rows, err := tx.Query(`SELECT total_price FROM recipe_ingredients WHERE recipe_id = ?`, recipeID)
	if err != nil {
		return fmt.Errorf("list line totals: %w", err)
	}
	var lines []model.RecipeIngredient
	for rows.Next() {
		var l model.RecipeIngredient
		if err := rows.Scan(&l.TotalPrice); err != nil {
			rows.Close()
			return fmt.Errorf("scan line total: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = tx.Exec(
		`UPDATE recipes SET final_price = ?, updated_at = ? WHERE id = ?`,
		costing.RecipeTotal(lines), time.Now().UTC(), recipeID,
	)
	if err != nil {
		return fmt.Errorf("update final price: %w", err)
	}
	return nil
}
