// Package catalog composes the search, price filter and sort applied to a
// user's recipe list, and the name filter on the product page.
package catalog

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/dukerupert/recipecost/internal/model"
	"github.com/dukerupert/recipecost/internal/validate"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortField string

const (
	SortByCreatedAt  SortField = "created_at"
	SortByTitle      SortField = "title"
	SortByFinalPrice SortField = "final_price"
)

type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

type Filters struct {
	Search    string
	MaxPrice  *decimal.Decimal
	SortBy    SortField
	SortOrder SortOrder
}

// DefaultFilters is newest first with no search or price cap.
func DefaultFilters() Filters {
	return Filters{SortBy: SortByCreatedAt, SortOrder: Descending}
}

// Active reports whether the filters narrow the list, as opposed to only
// reordering it.
func (f Filters) Active() bool {
	return f.Search != "" || f.MaxPrice != nil
}

// FiltersFromSettings returns the default filters with the user's saved
// sort field and order. Unrecognized values are ignored.
func FiltersFromSettings(s model.Settings) Filters {
	f := DefaultFilters()
	switch v := SortField(s[model.SettingDefaultSort]); v {
	case SortByCreatedAt, SortByTitle, SortByFinalPrice:
		f.SortBy = v
	}
	switch v := SortOrder(s[model.SettingDefaultSortOrder]); v {
	case Ascending, Descending:
		f.SortOrder = v
	}
	return f
}

// ParseFilters reads q, max_price, sort_by and order from a query string.
// Missing parameters keep their defaults.
func ParseFilters(q url.Values) (Filters, error) {
	return ParseFiltersFrom(q, DefaultFilters())
}

// ParseFiltersFrom is ParseFilters with base supplying the sort used when
// sort_by or order is absent.
func ParseFiltersFrom(q url.Values, base Filters) (Filters, error) {
	f := base
	f.MaxPrice = nil
	f.Search = strings.TrimSpace(q.Get("q"))

	if raw := strings.TrimSpace(q.Get("max_price")); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("invalid max_price %q", raw)
		}
		if p.IsNegative() {
			return f, fmt.Errorf("max_price cannot be negative")
		}
		if !validate.Amount(p) {
			return f, fmt.Errorf("max_price %q is out of range", raw)
		}
		f.MaxPrice = &p
	}

	switch s := SortField(q.Get("sort_by")); s {
	case "":
	case SortByCreatedAt, SortByTitle, SortByFinalPrice:
		f.SortBy = s
	default:
		return f, fmt.Errorf("invalid sort_by %q", s)
	}

	switch o := SortOrder(q.Get("order")); o {
	case "":
	case Ascending, Descending:
		f.SortOrder = o
	default:
		return f, fmt.Errorf("invalid order %q", o)
	}

	return f, nil
}

// Apply returns the recipes matching f, sorted by f. Titles are compared
// with the collation rules of tag. The input slice is left untouched.
func Apply(recipes []model.Recipe, f Filters, tag language.Tag) []model.Recipe {
	fold := cases.Fold()
	needle := fold.String(f.Search)

	result := make([]model.Recipe, 0, len(recipes))
	for _, r := range recipes {
		if needle != "" && !matchesRecipe(fold, r, needle) {
			continue
		}
		if f.MaxPrice != nil && r.FinalPrice.GreaterThan(*f.MaxPrice) {
			continue
		}
		result = append(result, r)
	}

	compare := comparator(f.SortBy, tag)
	if f.SortOrder == Ascending {
		slices.SortStableFunc(result, compare)
	} else {
		slices.SortStableFunc(result, func(a, b model.Recipe) int { return compare(b, a) })
	}
	return result
}

func matchesRecipe(fold cases.Caser, r model.Recipe, needle string) bool {
	if strings.Contains(fold.String(r.Title), needle) {
		return true
	}
	return r.Description != nil && strings.Contains(fold.String(*r.Description), needle)
}

func comparator(field SortField, tag language.Tag) func(a, b model.Recipe) int {
	switch field {
	case SortByTitle:
		coll := collate.New(tag, collate.IgnoreCase)
		return func(a, b model.Recipe) int {
			return coll.CompareString(a.Title, b.Title)
		}
	case SortByFinalPrice:
		return func(a, b model.Recipe) int {
			return a.FinalPrice.Cmp(b.FinalPrice)
		}
	default:
		return func(a, b model.Recipe) int {
			return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
		}
	}
}

// MatchProducts keeps the products whose name contains q, ignoring case.
func MatchProducts(products []model.Product, q string) []model.Product {
	q = strings.TrimSpace(q)
	result := make([]model.Product, 0, len(products))
	if q == "" {
		return append(result, products...)
	}

	fold := cases.Fold()
	needle := fold.String(q)
	for _, p := range products {
		if strings.Contains(fold.String(p.Name), needle) {
			result = append(result, p)
		}
	}
	return result
}
