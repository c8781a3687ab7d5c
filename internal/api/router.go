package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/agenda-sync/internal/cache"
	"github.com/clinicore/agenda-sync/internal/prefs"
	"github.com/clinicore/agenda-sync/internal/schedule"
	"github.com/clinicore/agenda-sync/internal/upstream"
)

type RouterConfig struct {
	Reconciler *schedule.Reconciler
	Prefs      *prefs.Store
	Cache      cache.Store
	PgPool     *pgxpool.Pool // nil when running on the in-memory cache
	Redis      *redis.Client // nil when running on in-memory preferences
	Upstream   *upstream.Client
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Upstream, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/agenda/day", agendaDayHandler(cfg.Reconciler))
	r.Get("/agenda/day/summary", daySummaryHandler(cfg.Reconciler))
	r.Get("/agenda/week", agendaWeekHandler(cfg.Reconciler))

	r.Get("/preferences", getPreferencesHandler(cfg.Prefs))
	r.Put("/preferences", savePreferencesHandler(cfg.Prefs))
	r.Post("/preferences/clear-filters", clearFiltersHandler(cfg.Prefs))

	r.Get("/offline/{table}", offlineSnapshotHandler(cfg.Cache))
	r.Post("/offline/refresh", refreshCachesHandler(cfg.Reconciler))
	r.Delete("/offline", clearCachesHandler(cfg.Cache))

	return r
}
