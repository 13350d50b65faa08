// Package validate checks submitted forms and reports problems per field,
// with the messages shown next to each input.
package validate

import (
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/recipecost/internal/model"
	"github.com/shopspring/decimal"
)

const (
	minPasswordLength = 6
	// bcrypt ignores input past 72 bytes and x/crypto rejects it.
	maxPasswordBytes = 72

	// MaxServings caps stored and requested serving counts.
	MaxServings = 1000

	maxIntegerDigits = 12
	maxDecimalPlaces = 6
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Errors maps a field name to its message. A nil or empty Errors means the
// form is valid.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return strings.Join(parts, "; ")
}

// Err returns e as an error, or nil when there are no problems.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Amount reports whether d fits in 12 integer digits and 6 decimal places.
// Only the exponent and digit count are inspected, so values such as
// "1e10000000" are rejected without being expanded.
func Amount(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -maxDecimalPlaces || exp > maxIntegerDigits {
		return false
	}
	if d.IsZero() {
		return true
	}
	return int64(d.NumDigits())+exp <= maxIntegerDigits
}

func (e Errors) add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

const amountMessage = "Use at most 12 digits before and 6 after the decimal point"

type ProductForm struct {
	Name  string
	Emoji string
	Unit  string
	Price decimal.Decimal
}

func Product(f ProductForm) error {
	errs := Errors{}
	if strings.TrimSpace(f.Name) == "" {
		errs.add("name", "Name is required")
	}
	if strings.TrimSpace(f.Emoji) == "" {
		errs.add("emoji", "Emoji is required")
	}
	if _, err := model.ParseUnit(f.Unit); err != nil {
		errs.add("unit", "Unit must be one of pcs, g, ml")
	}
	switch {
	case f.Price.IsNegative():
		errs.add("price", "Price must be positive")
	case !Amount(f.Price):
		errs.add("price", amountMessage)
	}
	return errs.Err()
}

type RecipeForm struct {
	Title    string
	Servings int
	// Ingredients is the number of line items; nil when the form does not
	// touch the ingredient list.
	Ingredients *int
}

func Recipe(f RecipeForm) error {
	errs := Errors{}
	if strings.TrimSpace(f.Title) == "" {
		errs.add("title", "Recipe title is required")
	}
	switch {
	case f.Servings <= 0:
		errs.add("servings", "Servings must be greater than 0")
	case f.Servings > MaxServings:
		errs.add("servings", "Servings must be at most 1000")
	}
	if f.Ingredients != nil && *f.Ingredients == 0 {
		errs.add("ingredients", "At least one ingredient is required")
	}
	return errs.Err()
}

type IngredientForm struct {
	ProductID int64
	Quantity  decimal.Decimal
	Price     decimal.Decimal
}

func Ingredient(f IngredientForm) error {
	errs := Errors{}
	if f.ProductID <= 0 {
		errs.add("product_id", "Please select a product")
	}
	switch {
	case !f.Quantity.IsPositive():
		errs.add("quantity", "Quantity must be greater than 0")
	case !Amount(f.Quantity):
		errs.add("quantity", amountMessage)
	}
	switch {
	case f.Price.IsNegative():
		errs.add("price", "Price cannot be negative")
	case !Amount(f.Price):
		errs.add("price", amountMessage)
	}
	return errs.Err()
}

type CredentialsForm struct {
	Email    string
	Password string
	Username string
	SignUp   bool
}

func Credentials(f CredentialsForm) error {
	errs := Errors{}
	switch {
	case f.Email == "":
		errs.add("email", "Email is required")
	case !emailPattern.MatchString(f.Email):
		errs.add("email", "Email is invalid")
	}
	switch {
	case f.Password == "":
		errs.add("password", "Password is required")
	case utf8.RuneCountInString(f.Password) < minPasswordLength:
		errs.add("password", "Password must be at least 6 characters")
	case len(f.Password) > maxPasswordBytes:
		errs.add("password", "Password must be at most 72 bytes")
	}
	if f.SignUp && strings.TrimSpace(f.Username) == "" {
		errs.add("username", "Username is required")
	}
	return errs.Err()
}

func Profile(username string) error {
	errs := Errors{}
	if strings.TrimSpace(username) == "" {
		errs.add("username", "Username is required")
	}
	return errs.Err()
}

// Setting values accepted per key.
var settingValues = map[string][]string{
	model.SettingTheme:            {"light", "dark", "auto"},
	model.SettingCardSize:         {"small", "medium", "large"},
	model.SettingDefaultSort:      {"created_at", "title", "final_price"},
	model.SettingDefaultSortOrder: {"asc", "desc"},
}

// Settings checks a partial settings update keyed by setting name.
func Settings(values map[string]string) error {
	errs := Errors{}
	for key, value := range values {
		allowed, ok := settingValues[key]
		if !ok {
			errs.add(key, "Unknown setting")
			continue
		}
		if !slices.Contains(allowed, value) {
			errs.add(key, "Must be one of "+strings.Join(allowed, ", "))
		}
	}
	return errs.Err()
}
