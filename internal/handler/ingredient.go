package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/recipecost/internal/auth"
	"github.com/dukerupert/recipecost/internal/cache"
	"github.com/dukerupert/recipecost/internal/store"
	"github.com/dukerupert/recipecost/internal/validate"
)

// IngredientHandler edits single recipe lines. Every change reprices the
// recipe, so recipe queries are invalidated.
type IngredientHandler struct {
	ingredientStore *store.IngredientStore
	recipeStore     *store.RecipeStore
	queries         *cache.Queries
	logger          *slog.Logger
}

func NewIngredientHandler(is *store.IngredientStore, rs *store.RecipeStore, queries *cache.Queries, logger *slog.Logger) *IngredientHandler {
	return &IngredientHandler{ingredientStore: is, recipeStore: rs, queries: queries, logger: logger}
}

type ingredientUpdateRequest struct {
	Quantity decimal.Decimal  `json:"quantity"`
	Measure  string           `json:"measure"`
	Price    *decimal.Decimal `json:"price"`
}

func (h *IngredientHandler) Add(w http.ResponseWriter, r *http.Request) {
	recipeID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	var req ingredientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	errs := validate.Errors{}
	in := validateIngredient(errs, "", req)
	if writeValidation(w, errs.Err()) {
		return
	}

	ing, err := h.ingredientStore.Add(userID, recipeID, in)
	if errors.Is(err, store.ErrProductNotFound) {
		writeError(w, http.StatusBadRequest, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("add ingredient", "recipe_id", recipeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add ingredient")
		return
	}
	if ing == nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.RecipesKey())
	writeJSON(w, http.StatusCreated, ing)
}

func (h *IngredientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	existing, err := h.ingredientStore.Get(userID, id)
	if err != nil {
		h.logger.Error("get ingredient", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get ingredient")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "ingredient not found")
		return
	}

	var req ingredientUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	errs := validate.Errors{}
	in := validateIngredient(errs, "", ingredientRequest{
		ProductID: existing.ProductID,
		Quantity:  req.Quantity,
		Measure:   req.Measure,
		Price:     req.Price,
	})
	if writeValidation(w, errs.Err()) {
		return
	}

	ing, err := h.ingredientStore.Update(userID, id, in.Quantity, in.Measure, in.Price)
	if err != nil {
		h.logger.Error("update ingredient", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update ingredient")
		return
	}
	if ing == nil {
		writeError(w, http.StatusNotFound, "ingredient not found")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.RecipesKey())
	writeJSON(w, http.StatusOK, ing)
}

func (h *IngredientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	removed, err := h.ingredientStore.Delete(userID, id)
	if err != nil {
		h.logger.Error("delete ingredient", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete ingredient")
		return
	}
	if removed == nil {
		writeError(w, http.StatusNotFound, "ingredient not found")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.RecipesKey())
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll clears a recipe's ingredient list.
func (h *IngredientHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	recipeID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	recipe, err := h.recipeStore.Get(userID, recipeID)
	if err != nil {
		h.logger.Error("get recipe", "id", recipeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get recipe")
		return
	}
	if recipe == nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	n, err := h.ingredientStore.DeleteByRecipe(userID, recipeID)
	if err != nil {
		h.logger.Error("delete recipe ingredients", "recipe_id", recipeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete ingredients")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.RecipesKey())
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

