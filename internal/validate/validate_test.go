package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func fields(t *testing.T, err error) Errors {
	t.Helper()
	if err == nil {
		return Errors{}
	}
	var errs Errors
	if !errors.As(err, &errs) {
		t.Fatalf("expected validate.Errors, got %T", err)
	}
	return errs
}

func intPtr(n int) *int { return &n }

func TestProduct(t *testing.T) {
	valid := ProductForm{Name: "Flour", Emoji: "🌾", Unit: "g", Price: decimal.RequireFromString("0.8")}
	if err := Product(valid); err != nil {
		t.Fatalf("valid product: %v", err)
	}

	legacy := valid
	legacy.Unit = "гр"
	if err := Product(legacy); err != nil {
		t.Errorf("legacy unit label rejected: %v", err)
	}

	got := fields(t, Product(ProductForm{Name: " ", Emoji: "", Unit: "kg", Price: decimal.NewFromInt(-1)}))
	want := Errors{
		"name":  "Name is required",
		"emoji": "Emoji is required",
		"unit":  "Unit must be one of pcs, g, ml",
		"price": "Price must be positive",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRecipe(t *testing.T) {
	if err := Recipe(RecipeForm{Title: "Soup", Servings: 2, Ingredients: intPtr(1)}); err != nil {
		t.Fatalf("valid recipe: %v", err)
	}
	if err := Recipe(RecipeForm{Title: "Soup", Servings: 2}); err != nil {
		t.Errorf("ingredient list untouched should pass: %v", err)
	}

	got := fields(t, Recipe(RecipeForm{Title: "", Servings: 0, Ingredients: intPtr(0)}))
	want := Errors{
		"title":       "Recipe title is required",
		"servings":    "Servings must be greater than 0",
		"ingredients": "At least one ingredient is required",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestIngredient(t *testing.T) {
	ok := IngredientForm{ProductID: 3, Quantity: decimal.RequireFromString("0.5"), Price: decimal.Zero}
	if err := Ingredient(ok); err != nil {
		t.Fatalf("valid ingredient: %v", err)
	}

	got := fields(t, Ingredient(IngredientForm{Quantity: decimal.Zero, Price: decimal.NewFromInt(-2)}))
	want := Errors{
		"product_id": "Please select a product",
		"quantity":   "Quantity must be greater than 0",
		"price":      "Price cannot be negative",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCredentials(t *testing.T) {
	tests := []struct {
		name string
		form CredentialsForm
		want Errors
	}{
		{"valid sign in", CredentialsForm{Email: "a@b.co", Password: "secret"}, Errors{}},
		{"valid sign up", CredentialsForm{Email: "a@b.co", Password: "secret", Username: "cook", SignUp: true}, Errors{}},
		{"missing", CredentialsForm{}, Errors{"email": "Email is required", "password": "Password is required"}},
		{"malformed", CredentialsForm{Email: "nope", Password: "12345"}, Errors{"email": "Email is invalid", "password": "Password must be at least 6 characters"}},
		{"short in characters", CredentialsForm{Email: "a@b.co", Password: "абвгд"}, Errors{"password": "Password must be at least 6 characters"}},
		{"six cyrillic characters", CredentialsForm{Email: "a@b.co", Password: "абвгде"}, Errors{}},
		{"over bcrypt limit", CredentialsForm{Email: "a@b.co", Password: strings.Repeat("x", 73)}, Errors{"password": "Password must be at most 72 bytes"}},
		{"at bcrypt limit", CredentialsForm{Email: "a@b.co", Password: strings.Repeat("x", 72)}, Errors{}},
		{"sign up needs username", CredentialsForm{Email: "a@b.co", Password: "secret", SignUp: true}, Errors{"username": "Username is required"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fields(t, Credentials(tt.form))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"0.002", true},
		{"12.345678", true},
		{"999999999999", true},
		{"999999999999.999999", true},
		{"1000000000000", false},
		{"1e12", false},
		{"0.0000001", false},
		{"1e10000000", false},
		{"1e-10000000", false},
	}
	for _, tt := range tests {
		if got := Amount(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("Amount(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAmountLimitsApplyToForms(t *testing.T) {
	huge := decimal.RequireFromString("1e10000000")

	product := ProductForm{Name: "Flour", Emoji: "🌾", Unit: "g", Price: huge}
	if got := fields(t, Product(product)); got["price"] != amountMessage {
		t.Errorf("product price error = %q", got["price"])
	}

	got := fields(t, Ingredient(IngredientForm{ProductID: 1, Quantity: huge, Price: huge}))
	if got["quantity"] != amountMessage || got["price"] != amountMessage {
		t.Errorf("ingredient errors = %v", got)
	}

	got = fields(t, Recipe(RecipeForm{Title: "Soup", Servings: MaxServings + 1}))
	if got["servings"] != "Servings must be at most 1000" {
		t.Errorf("servings error = %q", got["servings"])
	}
}

func TestSettings(t *testing.T) {
	if err := Settings(map[string]string{"theme": "dark", "default_sort": "title"}); err != nil {
		t.Fatalf("valid settings: %v", err)
	}

	got := fields(t, Settings(map[string]string{"theme": "neon", "font": "serif", "default_sort_order": "desc"}))
	want := Errors{
		"theme": "Must be one of light, dark, auto",
		"font":  "Unknown setting",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestProfile(t *testing.T) {
	if err := Profile("chef"); err != nil {
		t.Errorf("valid profile: %v", err)
	}
	if got := fields(t, Profile("  ")); got["username"] != "Username is required" {
		t.Errorf("username error = %q", got["username"])
	}
}

func TestErrorsMessageIsSorted(t *testing.T) {
	errs := Errors{"title": "a", "servings": "b"}
	if got, want := errs.Error(), "servings: b; title: a"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if (Errors{}).Err() != nil {
		t.Error("empty Errors should be a nil error")
	}
}
