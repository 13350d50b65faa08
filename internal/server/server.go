package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/recipecost/internal/cache"
	"github.com/dukerupert/recipecost/internal/config"
	"github.com/dukerupert/recipecost/internal/handler"
	"github.com/dukerupert/recipecost/internal/middleware"
	"github.com/dukerupert/recipecost/internal/store"
	ws "github.com/dukerupert/recipecost/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	queries      *cache.Queries
	authH        *handler.AuthHandler
	profileH     *handler.ProfileHandler
	productH     *handler.ProductHandler
	recipeH      *handler.RecipeHandler
	ingredientH  *handler.IngredientHandler
	settingsH    *handler.SettingsHandler
	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	wsOrigins    []string
	logger       *slog.Logger
}

// New wires stores, handlers and the WebSocket hub. Query results are cached
// in c; invalidations are pushed to the affected user's open connections.
func New(db *sql.DB, c cache.Cache, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	queries := cache.NewQueries(c, hub, cfg.CacheTTL, logger.With("component", "cache"))

	userStore := store.NewUserStore(db)
	profileStore := store.NewProfileStore(db)
	sessionStore := store.NewSessionStore(db)
	productStore := store.NewProductStore(db)
	recipeStore := store.NewRecipeStore(db)
	ingredientStore := store.NewIngredientStore(db)
	settingsStore := store.NewSettingsStore(db)

	return &Server{
		db:           db,
		hub:          hub,
		queries:      queries,
		authH:        handler.NewAuthHandler(userStore, profileStore, sessionStore, hub, cfg.SessionTTL, cfg.CookieSecure, logger.With("component", "auth")),
		profileH:     handler.NewProfileHandler(profileStore, logger.With("component", "profile")),
		productH:     handler.NewProductHandler(productStore, queries, logger.With("component", "product")),
		recipeH:      handler.NewRecipeHandler(recipeStore, settingsStore, queries, cfg.Collation, logger.With("component", "recipe")),
		ingredientH:  handler.NewIngredientHandler(ingredientStore, recipeStore, queries, logger.With("component", "ingredient")),
		settingsH:    handler.NewSettingsHandler(settingsStore, queries, logger.With("component", "settings")),
		sessionStore: sessionStore,
		rateLimiter:  middleware.NewRateLimiter(),
		wsOrigins:    cfg.WSOrigins,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Queries returns the query cache.
func (s *Server) Queries() *cache.Queries {
	return s.queries
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler(s.authH.SignUp))
	mux.HandleFunc("POST /api/auth/signin", s.rateLimitedHandler(s.authH.SignIn))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.registerProtectedRoutes(mux)

	// Metrics wraps the mux directly so it sees the matched pattern
	return middleware.RequestLogger(s.logger.With("component", "http"))(middleware.Metrics(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP, authRateLimit, authRateWindow)
	return rl(h).ServeHTTP
}

// registerProtectedRoutes mounts routes behind RequireAuth. Each route is
// wrapped individually so the mux records its own pattern for metrics.
func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	requireAuth := middleware.RequireAuth(s.sessionStore)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireAuth(h))
	}

	// Session
	handle("POST /api/auth/signout", s.authH.SignOut)
	handle("POST /api/auth/signout-all", s.authH.SignOutEverywhere)
	handle("GET /api/auth/session", s.authH.Session)

	// Profile
	handle("GET /api/profile", s.profileH.Get)
	handle("PUT /api/profile", s.profileH.Update)

	// Settings
	handle("GET /api/settings", s.settingsH.Get)
	handle("PUT /api/settings", s.settingsH.Update)
	handle("DELETE /api/settings", s.settingsH.Reset)

	// Products
	handle("GET /api/products", s.productH.List)
	handle("GET /api/products/search", s.productH.Search)
	handle("POST /api/products", s.productH.Create)
	handle("GET /api/products/{id}", s.productH.Get)
	handle("PUT /api/products/{id}", s.productH.Update)
	handle("DELETE /api/products/{id}", s.productH.Delete)

	// Recipes
	handle("GET /api/recipes", s.recipeH.List)
	handle("GET /api/recipes/search", s.recipeH.Search)
	handle("POST /api/recipes", s.recipeH.Create)
	handle("GET /api/recipes/{id}", s.recipeH.Get)
	handle("PUT /api/recipes/{id}", s.recipeH.Update)
	handle("DELETE /api/recipes/{id}", s.recipeH.Delete)

	// Ingredients
	handle("POST /api/recipes/{id}/ingredients", s.ingredientH.Add)
	handle("DELETE /api/recipes/{id}/ingredients", s.ingredientH.DeleteAll)
	handle("PUT /api/ingredients/{id}", s.ingredientH.Update)
	handle("DELETE /api/ingredients/{id}", s.ingredientH.Delete)

	// WebSocket
	handle("GET /ws", ws.HandleWebSocket(s.hub, s.wsOrigins))
}
