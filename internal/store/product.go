package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/recipecost/internal/model"
)

type ProductStore struct {
	db *sql.DB
}

func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

const productCols = `id, user_id, name, emoji, unit, price, created_at, updated_at`

func scanProduct(s scanner) (*model.Product, error) {
	var p model.Product
	var unit string
	err := s.Scan(&p.ID, &p.UserID, &p.Name, &p.Emoji, &unit, &p.Price, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Unit = model.Unit(unit)
	return &p, nil
}

func (s *ProductStore) queryList(query string, args ...any) ([]model.Product, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// List returns the user's products ordered by name.
func (s *ProductStore) List(userID int64) ([]model.Product, error) {
	return s.queryList(
		`SELECT `+productCols+` FROM products WHERE user_id = ? ORDER BY name COLLATE NOCASE ASC, id ASC`,
		userID,
	)
}

// Search returns products whose name contains q. Case is ignored for ASCII
// letters only, as with SQLite's LIKE.
func (s *ProductStore) Search(userID int64, q string) ([]model.Product, error) {
	return s.queryList(
		`SELECT `+productCols+` FROM products WHERE user_id = ? AND name LIKE ? ESCAPE '\' ORDER BY name COLLATE NOCASE ASC, id ASC`,
		userID, containsPattern(q),
	)
}

func (s *ProductStore) Get(userID, id int64) (*model.Product, error) {
	row := s.db.QueryRow(`SELECT `+productCols+` FROM products WHERE id = ? AND user_id = ?`, id, userID)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *ProductStore) Create(userID int64, in model.ProductInput) (*model.Product, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO products (user_id, name, emoji, unit, price, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, in.Name, in.Emoji, string(in.Unit), in.Price, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(userID, id)
}

// Update rewrites the product. Existing recipe lines keep the unit price
// they were written with.
func (s *ProductStore) Update(userID, id int64, in model.ProductInput) (*model.Product, error) {
	_, err := s.db.Exec(
		`UPDATE products SET name = ?, emoji = ?, unit = ?, price = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		in.Name, in.Emoji, string(in.Unit), in.Price, time.Now().UTC(), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return s.Get(userID, id)
}

// Delete removes the product, or returns ErrProductInUse while any recipe
// line still references it.
func (s *ProductStore) Delete(userID, id int64) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		var refs int
		err := tx.QueryRow(`SELECT COUNT(*) FROM recipe_ingredients WHERE product_id = ?`, id).Scan(&refs)
		if err != nil {
			return fmt.Errorf("count product references: %w", err)
		}
		if refs > 0 {
			return ErrProductInUse
		}
		if _, err := tx.Exec(`DELETE FROM products WHERE id = ? AND user_id = ?`, id, userID); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return nil
	})
}
