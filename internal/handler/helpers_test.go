package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/recipecost/internal/auth"
	"github.com/dukerupert/recipecost/internal/cache"
	"github.com/dukerupert/recipecost/internal/database"
	"github.com/dukerupert/recipecost/internal/model"
	"github.com/dukerupert/recipecost/internal/store"
	"github.com/shopspring/decimal"
)

type invalidation struct {
	userID int64
	key    string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []invalidation
}

func (n *recordingNotifier) Invalidate(userID int64, key []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, invalidation{userID, strings.Join(key, "/")})
}

func (n *recordingNotifier) keys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.calls))
	for i, c := range n.calls {
		out[i] = c.key
	}
	return out
}

type testEnv struct {
	users       *store.UserStore
	profiles    *store.ProfileStore
	sessions    *store.SessionStore
	products    *store.ProductStore
	recipes     *store.RecipeStore
	ingredients *store.IngredientStore
	settings    *store.SettingsStore
	queries     *cache.Queries
	notifier    *recordingNotifier
	user        *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	n := &recordingNotifier{}
	env := &testEnv{
		users:       store.NewUserStore(db),
		profiles:    store.NewProfileStore(db),
		sessions:    store.NewSessionStore(db),
		products:    store.NewProductStore(db),
		recipes:     store.NewRecipeStore(db),
		ingredients: store.NewIngredientStore(db),
		settings:    store.NewSettingsStore(db),
		queries:     cache.NewQueries(cache.NewMemory(), n, time.Minute, slog.Default()),
		notifier:    n,
	}
	env.user = env.createUser(t, "cook@example.com")
	return env
}

func (e *testEnv) createUser(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := e.users.Create(email, "hash", "cook")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) createProduct(t *testing.T, userID int64, name string, unit model.Unit, price string) *model.Product {
	t.Helper()
	p, err := e.products.Create(userID, model.ProductInput{Name: name, Emoji: "🥕", Unit: unit, Price: decimal.RequireFromString(price)})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func (e *testEnv) createRecipe(t *testing.T, userID int64, title string, servings int, lines ...model.IngredientInput) *model.RecipeDetail {
	t.Helper()
	d, err := e.recipes.Create(userID, model.RecipeInput{Title: title, Servings: servings}, lines)
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	return d
}

// request builds a request signed in as userID (0 for anonymous) with the
// given path values set.
func request(method, target, body string, userID int64, pathValues ...string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	if userID != 0 {
		req = req.WithContext(auth.WithAuth(context.Background(), auth.AuthContext{UserID: userID, SessionID: 1}))
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

type validationBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}
