package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/agenda-sync/internal/api"
	"github.com/clinicore/agenda-sync/internal/cache"
	"github.com/clinicore/agenda-sync/internal/config"
	"github.com/clinicore/agenda-sync/internal/db"
	"github.com/clinicore/agenda-sync/internal/prefs"
	redisclient "github.com/clinicore/agenda-sync/internal/redis"
	"github.com/clinicore/agenda-sync/internal/schedule"
	"github.com/clinicore/agenda-sync/internal/upstream"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const version = "0.3.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("agenda-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s upstream=%s", cfg.Env, cfg.HTTPPort, cfg.UpstreamBaseURL)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ttls := cache.TTLConfig{
		Agenda:   cfg.AgendaCacheTTL,
		Patients: cfg.PatientCacheTTL,
		Records:  cfg.RecordCacheTTL,
	}

	// Offline cache: Postgres when configured, in-memory otherwise. Storage
	// is best-effort here, so a missing or unreachable database degrades
	// instead of failing startup.
	var pgPool *pgxpool.Pool
	var cacheStore cache.Store
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Printf("postgres unavailable, falling back to in-memory cache: %v", err)
		} else if err := db.EnsureCacheSchema(rootCtx, pool); err != nil {
			log.Printf("cache schema bootstrap failed, falling back to in-memory cache: %v", err)
			pool.Close()
		} else {
			pgPool = pool
			defer pgPool.Close()
			cacheStore = cache.NewPgStore(pgPool, ttls)
			log.Println("connected to Postgres")
		}
	}
	if cacheStore == nil {
		cacheStore = cache.NewMemoryStore(ttls)
		log.Println("offline cache running in memory")
	}

	// Preferences: redis when configured, in-memory otherwise.
	var rdb *redis.Client
	var provider prefs.Provider
	if cfg.RedisAddr != "" {
		client, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Printf("redis unavailable, falling back to in-memory preferences: %v", err)
		} else {
			rdb = client
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Printf("error closing redis: %v", err)
				}
			}()
			provider = prefs.NewRedisProvider(rdb)
			log.Println("connected to Redis")
		}
	}
	if provider == nil {
		provider = prefs.NewMemoryProvider()
		log.Println("preferences running in memory")
	}

	upstreamClient := upstream.NewClient(cfg.UpstreamBaseURL)
	probe := upstream.NewProbe(upstreamClient, cfg.ProbeInterval)
	prefStore := prefs.NewStore(provider)

	reconciler := schedule.NewReconciler(schedule.ReconcilerConfig{
		Source: upstreamClient,
		Prefs:  prefStore,
		Cache:  cacheStore,
		Online: probe,
	})

	router := api.NewRouter(api.RouterConfig{
		Reconciler: reconciler,
		Prefs:      prefStore,
		Cache:      cacheStore,
		PgPool:     pgPool,
		Redis:      rdb,
		Upstream:   upstreamClient,
		Env:        cfg.Env,
		Version:    version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down agenda-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
