package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/dukerupert/recipecost/internal/auth"
	"github.com/dukerupert/recipecost/internal/cache"
	"github.com/dukerupert/recipecost/internal/catalog"
	"github.com/dukerupert/recipecost/internal/costing"
	"github.com/dukerupert/recipecost/internal/model"
	"github.com/dukerupert/recipecost/internal/store"
	"github.com/dukerupert/recipecost/internal/validate"
)

const defaultServings = 2

type RecipeHandler struct {
	recipeStore   *store.RecipeStore
	settingsStore *store.SettingsStore
	queries       *cache.Queries
	collation     language.Tag
	logger        *slog.Logger
}

func NewRecipeHandler(rs *store.RecipeStore, ss *store.SettingsStore, queries *cache.Queries, collation language.Tag, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{recipeStore: rs, settingsStore: ss, queries: queries, collation: collation, logger: logger}
}

type ingredientRequest struct {
	ProductID int64            `json:"product_id"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Measure   string           `json:"measure"`
	Price     *decimal.Decimal `json:"price"`
}

type recipeRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	ImageURL    *string              `json:"image_url"`
	Servings    *int                 `json:"servings"`
	Ingredients *[]ingredientRequest `json:"ingredients"`
}

type recipeListResponse struct {
	Recipes  []model.Recipe `json:"recipes"`
	Count    int            `json:"count"`
	Total    int            `json:"total"`
	Filtered bool           `json:"filtered"`
}

// validateIngredient checks one line and converts it. Problems are added to
// errs under prefix.
func validateIngredient(errs validate.Errors, prefix string, req ingredientRequest) model.IngredientInput {
	var price decimal.Decimal
	if req.Price != nil {
		price = *req.Price
	}
	var verrs validate.Errors
	if errors.As(validate.Ingredient(validate.IngredientForm{
		ProductID: req.ProductID, Quantity: req.Quantity, Price: price,
	}), &verrs) {
		for field, msg := range verrs {
			errs[prefix+field] = msg
		}
	}

	var measure model.Unit
	if strings.TrimSpace(req.Measure) != "" {
		u, err := model.ParseUnit(req.Measure)
		if err != nil {
			errs[prefix+"measure"] = "Unit must be one of pcs, g, ml"
		}
		measure = u
	}
	return model.IngredientInput{ProductID: req.ProductID, Quantity: req.Quantity, Measure: measure, Price: req.Price}
}

// parseRecipe validates the request. baseServings is used when the request
// omits them.
func parseRecipe(req recipeRequest, baseServings int) (model.RecipeInput, []model.IngredientInput, error) {
	var title string
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
	}
	in := model.RecipeInput{
		Title:       title,
		Description: optionalText(req.Description),
		ImageURL:    optionalText(req.ImageURL),
		Servings:    baseServings,
	}
	if req.Servings != nil {
		in.Servings = *req.Servings
	}

	form := validate.RecipeForm{Title: in.Title, Servings: in.Servings}
	if req.Ingredients != nil {
		n := len(*req.Ingredients)
		form.Ingredients = &n
	}
	errs := validate.Errors{}
	var verrs validate.Errors
	if errors.As(validate.Recipe(form), &verrs) {
		for field, msg := range verrs {
			errs[field] = msg
		}
	}

	var lines []model.IngredientInput
	if req.Ingredients != nil {
		lines = make([]model.IngredientInput, 0, len(*req.Ingredients))
		for i, ing := range *req.Ingredients {
			lines = append(lines, validateIngredient(errs, fmt.Sprintf("ingredients[%d].", i), ing))
		}
	}
	return in, lines, errs.Err()
}

// keepStored fills the fields a PUT omits from the stored recipe. An empty
// string still clears description or image_url.
func keepStored(req *recipeRequest, existing *model.Recipe) {
	if req.Title == nil {
		req.Title = &existing.Title
	}
	if req.Description == nil {
		req.Description = existing.Description
	}
	if req.ImageURL == nil {
		req.ImageURL = existing.ImageURL
	}
	if req.Servings == nil {
		req.Servings = &existing.Servings
	}
}

// listDefaults returns the filters applied before the query string: the
// user's saved default sort.
func (h *RecipeHandler) listDefaults(ctx context.Context, userID int64) (catalog.Filters, error) {
	if h.settingsStore == nil {
		return catalog.DefaultFilters(), nil
	}
	settings, err := cache.Fetch(ctx, h.queries, userID, cache.SettingsKey(), func() (model.Settings, error) {
		return h.settingsStore.GetAll(userID)
	})
	if err != nil {
		return catalog.Filters{}, err
	}
	return catalog.FiltersFromSettings(settings), nil
}

// List returns the user's recipes filtered and sorted by the query string.
// Without sort_by or order the user's saved default sort applies.
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	base, err := h.listDefaults(r.Context(), userID)
	if err != nil {
		h.logger.Error("get settings", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list recipes")
		return
	}
	filters, err := catalog.ParseFiltersFrom(r.URL.Query(), base)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recipes, err := cache.Fetch(r.Context(), h.queries, userID, cache.RecipesKey(), func() ([]model.Recipe, error) {
		return h.recipeStore.List(userID)
	})
	if err != nil {
		h.logger.Error("list recipes", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list recipes")
		return
	}

	shown := catalog.Apply(recipes, filters, h.collation)
	if shown == nil {
		shown = []model.Recipe{}
	}
	writeJSON(w, http.StatusOK, recipeListResponse{
		Recipes:  shown,
		Count:    len(shown),
		Total:    len(recipes),
		Filtered: filters.Active(),
	})
}

// Search matches recipe titles. An empty query returns nothing.
func (h *RecipeHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []model.Recipe{})
		return
	}

	recipes, err := cache.Fetch(r.Context(), h.queries, userID, cache.RecipeSearchKey(q), func() ([]model.Recipe, error) {
		return h.recipeStore.SearchByTitle(userID, q)
	})
	if err != nil {
		h.logger.Error("search recipes", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search recipes")
		return
	}
	if recipes == nil {
		recipes = []model.Recipe{}
	}
	writeJSON(w, http.StatusOK, recipes)
}

// Get returns a recipe with its ingredients, scaled to ?servings= when given.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	detail, err := cache.Fetch(r.Context(), h.queries, userID, cache.RecipeKey(id), func() (*model.RecipeDetail, error) {
		return h.recipeStore.GetDetail(userID, id)
	})
	if err != nil {
		h.logger.Error("get recipe", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get recipe")
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	servings := detail.Recipe.Servings
	if s := r.URL.Query().Get("servings"); s != "" {
		servings, err = strconv.Atoi(s)
		if err != nil || servings <= 0 || servings > validate.MaxServings {
			writeError(w, http.StatusBadRequest, "servings must be between 1 and 1000")
			return
		}
	}

	view, err := costing.Scale(*detail, servings)
	if err != nil {
		h.logger.Error("scale recipe", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cost recipe")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Ingredients == nil {
		req.Ingredients = &[]ingredientRequest{}
	}
	in, lines, err := parseRecipe(req, defaultServings)
	if writeValidation(w, err) {
		return
	}

	detail, err := h.recipeStore.Create(userID, in, lines)
	if errors.Is(err, store.ErrProductNotFound) {
		writeError(w, http.StatusBadRequest, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("create recipe", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create recipe")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.RecipesKey())
	writeJSON(w, http.StatusCreated, detail)
}

// Update changes the fields the request names and keeps the rest. The
// ingredient set is replaced only when the request carries an ingredients
// array.
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	existing, err := h.recipeStore.Get(userID, id)
	if err != nil {
		h.logger.Error("get recipe", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get recipe")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	keepStored(&req, existing)
	in, lines, err := parseRecipe(req, existing.Servings)
	if writeValidation(w, err) {
		return
	}

	detail, err := h.recipeStore.Update(userID, id, in, lines)
	if errors.Is(err, store.ErrProductNotFound) {
		writeError(w, http.StatusBadRequest, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("update recipe", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update recipe")
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.RecipesKey())
	writeJSON(w, http.StatusOK, detail)
}

func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	existing, err := h.recipeStore.Get(userID, id)
	if err != nil {
		h.logger.Error("get recipe", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get recipe")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	if err := h.recipeStore.Delete(userID, id); err != nil {
		h.logger.Error("delete recipe", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete recipe")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.RecipesKey())
	w.WriteHeader(http.StatusNoContent)
}
