package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/recipecost/internal/cache"
	"github.com/dukerupert/recipecost/internal/config"
	"github.com/dukerupert/recipecost/internal/database"
	"github.com/dukerupert/recipecost/internal/logging"
	"github.com/dukerupert/recipecost/internal/server"
)

const cleanupInterval = time.Hour

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	srv := server.New(db, c, cfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("recipecost running", "addr", "http://localhost:"+cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		cleanupLoop(ctx, srv, c, logger)
		return nil
	})

	return g.Wait()
}

func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Cache, error) {
	if !cfg.Redis.Enabled() {
		logger.Info("using in-memory cache")
		return cache.NewMemory(), nil
	}
	rc, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger.With("component", "redis"))
	if err != nil {
		return nil, err
	}
	logger.Info("using redis cache", "addr", cfg.Redis.Addr)
	return rc, nil
}

// cleanupLoop drops expired sessions, stale rate limit windows and expired
// in-memory cache entries.
func cleanupLoop(ctx context.Context, srv *server.Server, c cache.Cache, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := srv.SessionStore().DeleteExpired()
			if err != nil {
				logger.Error("delete expired sessions", "error", err)
			} else if n > 0 {
				logger.Info("deleted expired sessions", "count", n)
			}
			srv.RateLimiter().Cleanup()
			if mc, ok := c.(*cache.MemoryCache); ok {
				if swept := mc.Sweep(); swept > 0 {
					logger.Debug("swept cache entries", "count", swept)
				}
			}
		}
	}
}
