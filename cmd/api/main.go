package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/secondchance/internal/auth"
	"github.com/geocoder89/secondchance/internal/config"
	"github.com/geocoder89/secondchance/internal/db"
	httpx "github.com/geocoder89/secondchance/internal/http"
	"github.com/geocoder89/secondchance/internal/observability"
	"github.com/geocoder89/secondchance/internal/redisclient"
	"github.com/geocoder89/secondchance/internal/repo/memory"
	"github.com/geocoder89/secondchance/internal/repo/postgres"
	"github.com/geocoder89/secondchance/internal/repo/redisstore"
	"github.com/geocoder89/secondchance/internal/security"
	"github.com/geocoder89/secondchance/internal/service"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

type credentialStore interface {
	service.Store
	Ping(ctx context.Context) error
}

func main() {
	// a missing .env is fine outside local dev
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "secondchance-api", cfg.Env, cfg.OTLPEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				sctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdownTracer(sctx)
			}()
		}
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	store, closeStore, err := openStore(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	tokens, err := auth.NewManager(cfg.JWTSecret)
	if err != nil {
		log.Error("token manager init failed", "err", err)
		os.Exit(1)
	}

	svc := service.NewCredentialService(store, security.NewHasher(cfg.BcryptCost), tokens, log, prom, cfg.StoreTimeout)

	var draining atomic.Bool

	router := httpx.NewRouter(httpx.Deps{
		Log:          log,
		Cfg:          cfg,
		Credentials:  svc,
		Tokens:       tokens,
		Ping:         store.Ping,
		Prom:         prom,
		ShuttingDown: draining.Load,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	draining.Store(true)
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// openStore builds the configured credential store and returns its release func.
func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (credentialStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}

		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}

		log.Info("postgres store ready")
		return postgres.NewUsersRepo(pool, prom), pool.Close, nil

	case config.StoreRedis:
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		if err := rc.Ping(pctx); err != nil {
			_ = rc.Close()
			return nil, nil, err
		}

		log.Info("redis store ready", "addr", cfg.RedisAddr)
		return redisstore.NewUsersRepo(rc.Raw(), prom), func() { _ = rc.Close() }, nil

	case config.StoreMemory:
		log.Warn("memory store in use; users are lost on restart")
		return memory.NewUsersRepo(), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
