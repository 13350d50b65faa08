package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/recipecost/internal/auth"
	"github.com/dukerupert/recipecost/internal/cache"
	"github.com/dukerupert/recipecost/internal/model"
	"github.com/dukerupert/recipecost/internal/store"
	"github.com/dukerupert/recipecost/internal/validate"
)

type SettingsHandler struct {
	settingsStore *store.SettingsStore
	queries       *cache.Queries
	logger        *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, queries *cache.Queries, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settingsStore: ss, queries: queries, logger: logger}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	settings, err := cache.Fetch(r.Context(), h.queries, userID, cache.SettingsKey(), func() (model.Settings, error) {
		return h.settingsStore.GetAll(userID)
	})
	if err != nil {
		h.logger.Error("get settings", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Update saves the settings present in the body, e.g. {"theme":"dark"}, and
// returns the full set.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req map[string]string
	if !decodeJSON(w, r, &req) {
		return
	}
	if writeValidation(w, validate.Settings(req)) {
		return
	}

	settings, err := h.settingsStore.Set(userID, req)
	if err != nil {
		h.logger.Error("save settings", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.SettingsKey())
	writeJSON(w, http.StatusOK, settings)
}

// Reset restores the defaults.
func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if err := h.settingsStore.Reset(userID); err != nil {
		h.logger.Error("reset settings", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset settings")
		return
	}

	h.queries.Invalidate(r.Context(), userID, cache.SettingsKey())
	writeJSON(w, http.StatusOK, model.DefaultSettings())
}
