package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var (
	lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipecost",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Query cache lookups by result.",
		},
		[]string{"result"},
	)
	invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipecost",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Query cache invalidations by key root.",
		},
		[]string{"key"},
	)
)

// Key identifies a cached query. A key is a prefix of every key that
// extends it, so invalidating Key{"recipes"} also drops Key{"recipes", "7"}.
type Key []string

// Root names of cached queries.
const (
	Products = "products"
	Recipes  = "recipes"
	Settings = "settings"
	search   = "search"
)

func ProductsKey() Key              { return Key{Products} }
func ProductSearchKey(q string) Key { return Key{Products, search, q} }
func RecipesKey() Key               { return Key{Recipes} }
func RecipeSearchKey(q string) Key  { return Key{Recipes, search, q} }
func SettingsKey() Key              { return Key{Settings} }

func RecipeKey(id int64) Key {
	return Key{Recipes, strconv.FormatInt(id, 10)}
}

// Notifier is told when a user's cached queries are invalidated so live
// clients can refetch.
type Notifier interface {
	Invalidate(userID int64, key []string)
}

// Queries caches per-user query results as JSON.
//
// Each user has a generation that Invalidate bumps. A load that started
// under an older generation is returned to its caller but not kept, so a
// read racing a mutation cannot cache rows from before it.
type Queries struct {
	cache    Cache
	notifier Notifier
	ttl      time.Duration
	logger   *slog.Logger

	loads singleflight.Group

	mu          sync.Mutex
	generations map[int64]uint64
}

// NewQueries creates a Queries. notifier may be nil.
func NewQueries(c Cache, notifier Notifier, ttl time.Duration, logger *slog.Logger) *Queries {
	return &Queries{
		cache:       c,
		notifier:    notifier,
		ttl:         ttl,
		logger:      logger,
		generations: make(map[int64]uint64),
	}
}

func (q *Queries) generation(userID int64) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generations[userID]
}

func (q *Queries) bump(userID int64) {
	q.mu.Lock()
	q.generations[userID]++
	q.mu.Unlock()
}

// storageKey renders a key for one user. Every segment is escaped and
// terminated with "/" so that prefixes only match whole segments.
func storageKey(userID int64, key Key) string {
	var b strings.Builder
	b.WriteString("recipecost:")
	b.WriteString(strconv.FormatInt(userID, 10))
	b.WriteString(":")
	for _, seg := range key {
		b.WriteString(url.QueryEscape(seg))
		b.WriteByte('/')
	}
	return b.String()
}

// Fetch returns the cached result for key, or calls load and caches what it
// returns. Concurrent misses for the same key share one load. Load errors
// are not cached. A nil Queries always calls load.
func Fetch[T any](ctx context.Context, q *Queries, userID int64, key Key, load func() (T, error)) (T, error) {
	if q == nil {
		return load()
	}
	sk := storageKey(userID, key)

	if data, ok := q.cache.Get(ctx, sk); ok {
		var v T
		err := json.Unmarshal(data, &v)
		if err == nil {
			lookups.WithLabelValues("hit").Inc()
			return v, nil
		}
		q.logger.Warn("discarding unreadable cache entry", "key", sk, "error", err)
	}
	lookups.WithLabelValues("miss").Inc()

	gen := q.generation(userID)
	res, err, _ := q.loads.Do(sk+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		v, err := load()
		if err != nil {
			return v, err
		}
		q.store(ctx, userID, gen, sk, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// store caches v unless userID's queries were invalidated since gen was
// read. The generation is checked again after the write because an
// Invalidate may have deleted before the entry landed.
func (q *Queries) store(ctx context.Context, userID int64, gen uint64, sk string, v any) {
	if q.generation(userID) != gen {
		lookups.WithLabelValues("stale").Inc()
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		q.logger.Warn("cache marshal failed", "key", sk, "error", err)
		return
	}
	q.cache.Set(ctx, sk, data, q.ttl)

	if q.generation(userID) != gen {
		lookups.WithLabelValues("stale").Inc()
		if _, err := q.cache.DeletePrefix(ctx, sk); err != nil {
			q.logger.Error("drop stale cache entry", "key", sk, "error", err)
		}
	}
}

// Invalidate drops every cached query of the user that starts with one of
// keys and notifies the user's live clients about each key.
func (q *Queries) Invalidate(ctx context.Context, userID int64, keys ...Key) {
	if q == nil {
		return
	}
	// Bump before deleting so in-flight loads see it.
	q.bump(userID)
	for _, key := range keys {
		n, err := q.cache.DeletePrefix(ctx, storageKey(userID, key))
		if err != nil {
			q.logger.Error("cache invalidate failed", "user_id", userID, "key", []string(key), "error", err)
		}
		root := "all"
		if len(key) > 0 {
			root = key[0]
		}
		invalidations.WithLabelValues(root).Inc()
		q.logger.Debug("cache invalidated", "user_id", userID, "key", []string(key), "removed", n)

		if q.notifier != nil {
			q.notifier.Invalidate(userID, key)
		}
	}
}

// Stats returns the underlying cache's counters.
func (q *Queries) Stats() Stats {
	return q.cache.Stats()
}
