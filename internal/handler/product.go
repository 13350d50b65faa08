package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/recipecost/internal/auth"
	"github.com/dukerupert/recipecost/internal/cache"
	"github.com/dukerupert/recipecost/internal/catalog"
	"github.com/dukerupert/recipecost/internal/model"
	"github.com/dukerupert/recipecost/internal/store"
	"github.com/dukerupert/recipecost/internal/validate"
)

type ProductHandler struct {
	productStore *store.ProductStore
	queries      *cache.Queries
	logger       *slog.Logger
}

func NewProductHandler(ps *store.ProductStore, queries *cache.Queries, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{productStore: ps, queries: queries, logger: logger}
}

type productRequest struct {
	Name  string          `json:"name"`
	Emoji string          `json:"emoji"`
	Unit  string          `json:"unit"`
	Price decimal.Decimal `json:"price"`
}

type productListResponse struct {
	Products []model.Product `json:"products"`
	Count    int             `json:"count"`
	Total    int             `json:"total"`
	Filtered bool            `json:"filtered"`
}

// List returns the user's products by name, optionally narrowed by ?q=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	products, err := cache.Fetch(r.Context(), h.queries, userID, cache.ProductsKey(), func() ([]model.Product, error) {
		return h.productStore.List(userID)
	})
	if err != nil {
		h.logger.Error("list products", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []model.Product{}
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	matched := catalog.MatchProducts(products, q)
	writeJSON(w, http.StatusOK, productListResponse{
		Products: matched,
		Count:    len(matched),
		Total:    len(products),
		Filtered: q != "",
	})
}

// Search is the picker lookup. An empty query returns nothing.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []model.Product{})
		return
	}

	products, err := cache.Fetch(r.Context(), h.queries, userID, cache.ProductSearchKey(q), func() ([]model.Product, error) {
		return h.productStore.Search(userID, q)
	})
	if err != nil {
		h.logger.Error("search products", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search products")
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	product, err := h.productStore.Get(userID, id)
	if err != nil {
		h.logger.Error("get product", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) parseInput(w http.ResponseWriter, r *http.Request) (model.ProductInput, bool) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return model.ProductInput{}, false
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Emoji = strings.TrimSpace(req.Emoji)

	err := validate.Product(validate.ProductForm{Name: req.Name, Emoji: req.Emoji, Unit: req.Unit, Price: req.Price})
	if writeValidation(w, err) {
		return model.ProductInput{}, false
	}
	unit, _ := model.ParseUnit(req.Unit)
	return model.ProductInput{Name: req.Name, Emoji: req.Emoji, Unit: unit, Price: req.Price}, true
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	in, ok := h.parseInput(w, r)
	if !ok {
		return
	}

	product, err := h.productStore.Create(userID, in)
	if err != nil {
		h.logger.Error("create product", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.ProductsKey())
	writeJSON(w, http.StatusCreated, product)
}

// Update changes a product. Recipes keep the prices captured on their lines
// but embed the product's name and emoji, so both caches are dropped.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	in, ok := h.parseInput(w, r)
	if !ok {
		return
	}

	product, err := h.productStore.Update(userID, id, in)
	if err != nil {
		h.logger.Error("update product", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.ProductsKey(), cache.RecipesKey())
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	existing, err := h.productStore.Get(userID, id)
	if err != nil {
		h.logger.Error("get product", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	err = h.productStore.Delete(userID, id)
	if errors.Is(err, store.ErrProductInUse) {
		writeError(w, http.StatusConflict, "product is used in a recipe")
		return
	}
	if err != nil {
		h.logger.Error("delete product", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.ProductsKey(), cache.RecipesKey())
	w.WriteHeader(http.StatusNoContent)
}
