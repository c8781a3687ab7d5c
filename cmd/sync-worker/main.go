package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/agenda-sync/internal/cache"
	"github.com/clinicore/agenda-sync/internal/config"
	"github.com/clinicore/agenda-sync/internal/db"
	"github.com/clinicore/agenda-sync/internal/prefs"
	"github.com/clinicore/agenda-sync/internal/schedule"
	"github.com/clinicore/agenda-sync/internal/upstream"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("sync-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running sync worker in env=%s interval=%s", cfg.Env, cfg.SyncInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ttls := cache.TTLConfig{
		Agenda:   cfg.AgendaCacheTTL,
		Patients: cfg.PatientCacheTTL,
		Records:  cfg.RecordCacheTTL,
	}

	// A worker without a database would only refresh snapshots in its own
	// memory, which helps nobody. Unlike the server, this one requires it.
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required for the sync worker")
	}

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	if err := db.EnsureCacheSchema(rootCtx, pgPool); err != nil {
		log.Fatalf("cache schema bootstrap error: %v", err)
	}
	log.Println("connected to Postgres")

	upstreamClient := upstream.NewClient(cfg.UpstreamBaseURL)
	probe := upstream.NewProbe(upstreamClient, cfg.ProbeInterval)

	reconciler := schedule.NewReconciler(schedule.ReconcilerConfig{
		Source: upstreamClient,
		Prefs:  prefs.NewStore(prefs.NewMemoryProvider()),
		Cache:  cache.NewPgStore(pgPool, ttls),
		Online: probe,
	})

	// Run once at startup
	runOnce(rootCtx, reconciler)

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping sync worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, reconciler)
		}
	}
}

func runOnce(ctx context.Context, rec *schedule.Reconciler) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	if err := rec.RefreshOfflineCache(runCtx); err != nil {
		log.Printf("sync run error: %v", err)
		return
	}
	log.Printf("sync run complete in %s", time.Since(start))
}
