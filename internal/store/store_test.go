package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/recipecost/internal/database"
	"github.com/dukerupert/recipecost/internal/model"
	"github.com/shopspring/decimal"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, email string) *model.User {
	t.Helper()
	u, err := NewUserStore(db).Create(email, "hash", "cook")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func createTestProduct(t *testing.T, db *sql.DB, userID int64, name string, unit model.Unit, price string) *model.Product {
	t.Helper()
	p, err := NewProductStore(db).Create(userID, model.ProductInput{
		Name:  name,
		Emoji: "🥕",
		Unit:  unit,
		Price: decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
