package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/quipu-erp/quipu-erp/internal/coa"
	"github.com/quipu-erp/quipu-erp/internal/ledger"
	"github.com/quipu-erp/quipu-erp/internal/observability"
	"github.com/quipu-erp/quipu-erp/internal/periods"
	"github.com/quipu-erp/quipu-erp/internal/platform/httpx"
	"github.com/quipu-erp/quipu-erp/internal/shared"
)

// Dependencies wires the handlers the router mounts.
type Dependencies struct {
	Logger  *slog.Logger
	Config  *Config
	Pool    *pgxpool.Pool
	Metrics *observability.Metrics
	// Cache is optional; without it entry reads skip the cache layer.
	Cache *redis.Client
}

// NewRouter assembles the API router.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: deps.Logger, Config: deps.Config, Metrics: deps.Metrics}) {
		r.Use(mw)
	}

	ledgerRepo := ledger.NewRepository(deps.Pool)
	resolver := &ledger.Resolver{RequireConfidentMatch: deps.Config.StrictResolution}
	var engineMetrics ledger.Metrics
	if deps.Metrics != nil {
		engineMetrics = deps.Metrics.Engine()
	}
	ledgerService := ledger.NewService(ledgerRepo, resolver, engineMetrics, deps.Logger)
	idempotency := shared.NewIdempotencyStore(deps.Pool, "LEDGER")
	ledgerHandler := ledger.NewHandler(deps.Logger, ledgerService, idempotency)
	if deps.Cache != nil {
		ledgerHandler.WithCache(deps.Cache)
	}

	coaService := coa.NewService(coa.NewRepository(deps.Pool))
	coaHandler := coa.NewHandler(deps.Logger, coaService)

	periodsService := periods.NewService(periods.NewRepository(deps.Pool))
	periodsHandler := periods.NewHandler(deps.Logger, periodsService)

	r.Route("/api", func(api chi.Router) {
		api.Route("/ledger", ledgerHandler.MountRoutes)
		api.Route("/accounts", coaHandler.MountRoutes)
		api.Route("/periods", periodsHandler.MountRoutes)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	return r
}
