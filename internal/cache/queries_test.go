package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) Invalidate(userID int64, key []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, storageKey(userID, key))
}

type item struct {
	Name string `json:"name"`
}

func TestStorageKeyEscapesSegments(t *testing.T) {
	got := storageKey(3, ProductSearchKey("a/b c*"))
	want := "recipecost:3:products/search/a%2Fb+c%2A/"
	if got != want {
		t.Errorf("storageKey = %q, want %q", got, want)
	}
}

func TestFetchReadThrough(t *testing.T) {
	q := NewQueries(NewMemory(), nil, time.Minute, slog.Default())
	ctx := context.Background()

	calls := 0
	load := func() ([]item, error) {
		calls++
		return []item{{Name: "Flour"}}, nil
	}

	for range 3 {
		got, err := Fetch(ctx, q, 1, ProductsKey(), load)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if diff := cmp.Diff([]item{{Name: "Flour"}}, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}
}

func TestFetchIsPerUser(t *testing.T) {
	q := NewQueries(NewMemory(), nil, time.Minute, slog.Default())
	ctx := context.Background()

	Fetch(ctx, q, 1, ProductsKey(), func() (string, error) { return "alice", nil })
	got, _ := Fetch(ctx, q, 2, ProductsKey(), func() (string, error) { return "bob", nil })
	if got != "bob" {
		t.Errorf("user 2 got %q", got)
	}
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	q := NewQueries(NewMemory(), nil, time.Minute, slog.Default())
	ctx := context.Background()
	boom := errors.New("boom")

	if _, err := Fetch(ctx, q, 1, RecipesKey(), func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	got, err := Fetch(ctx, q, 1, RecipesKey(), func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Errorf("Fetch = %d, %v; want 42", got, err)
	}
}

func TestFetchDiscardsLoadRacingInvalidate(t *testing.T) {
	q := NewQueries(NewMemory(), nil, time.Minute, slog.Default())
	ctx := context.Background()

	// The rows are read, then a product is written and invalidated before
	// the load returns.
	got, err := Fetch(ctx, q, 1, ProductsKey(), func() ([]item, error) {
		rows := []item{}
		q.Invalidate(ctx, 1, ProductsKey())
		return rows, nil
	})
	if err != nil || len(got) != 0 {
		t.Fatalf("first Fetch = %v, %v", got, err)
	}
	if size := q.Stats().CurrentSize; size != 0 {
		t.Errorf("entries after racing load = %d, want 0", size)
	}

	got, _ = Fetch(ctx, q, 1, ProductsKey(), func() ([]item, error) {
		return []item{{Name: "Flour"}}, nil
	})
	if diff := cmp.Diff([]item{{Name: "Flour"}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchOtherUsersInvalidateDoesNotDiscard(t *testing.T) {
	q := NewQueries(NewMemory(), nil, time.Minute, slog.Default())
	ctx := context.Background()

	Fetch(ctx, q, 1, ProductsKey(), func() (string, error) {
		q.Invalidate(ctx, 2, ProductsKey())
		return "alice", nil
	})
	if size := q.Stats().CurrentSize; size != 1 {
		t.Errorf("entries = %d, want 1", size)
	}
}

func TestFetchSharesConcurrentLoads(t *testing.T) {
	q := NewQueries(NewMemory(), nil, time.Minute, slog.Default())
	ctx := context.Background()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	load := func() (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = Fetch(ctx, q, 1, RecipesKey(), load)
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = Fetch(ctx, q, 1, RecipesKey(), load)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("load called %d times, want 1", n)
	}
	for i, r := range results {
		if r != "shared" {
			t.Errorf("result %d = %q", i, r)
		}
	}
}

func TestFetchNilQueries(t *testing.T) {
	got, err := Fetch(context.Background(), nil, 1, RecipesKey(), func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("Fetch = %d, %v; want 7", got, err)
	}
}

func TestInvalidatePrefix(t *testing.T) {
	n := &recordingNotifier{}
	q := NewQueries(NewMemory(), n, time.Minute, slog.Default())
	ctx := context.Background()

	load := func(v string) func() (string, error) {
		return func() (string, error) { return v, nil }
	}
	Fetch(ctx, q, 1, RecipesKey(), load("list"))
	Fetch(ctx, q, 1, RecipeKey(7), load("detail"))
	Fetch(ctx, q, 1, ProductsKey(), load("products"))
	Fetch(ctx, q, 2, RecipesKey(), load("other user"))

	q.Invalidate(ctx, 1, RecipesKey())

	if got := q.Stats().CurrentSize; got != 2 {
		t.Errorf("entries left = %d, want 2", got)
	}

	reloaded := false
	Fetch(ctx, q, 1, RecipeKey(7), func() (string, error) {
		reloaded = true
		return "fresh", nil
	})
	if !reloaded {
		t.Error("recipe detail should have been invalidated")
	}

	want := []string{storageKey(1, RecipesKey())}
	if diff := cmp.Diff(want, n.calls); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidateWithRedis(t *testing.T) {
	mr, rc := setupMiniRedis(t)
	q := NewQueries(rc, nil, time.Minute, slog.Default())
	ctx := context.Background()

	Fetch(ctx, q, 1, ProductSearchKey("fl"), func() ([]item, error) { return []item{{Name: "Flour"}}, nil })
	if len(mr.Keys()) != 1 {
		t.Fatalf("redis keys = %v", mr.Keys())
	}

	q.Invalidate(ctx, 1, ProductsKey())
	if len(mr.Keys()) != 0 {
		t.Errorf("redis keys after invalidate = %v", mr.Keys())
	}
}
