package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/threadline/reconciler/internal/config"
	"github.com/threadline/reconciler/internal/ingestion"
	"github.com/threadline/reconciler/internal/middleware"
	"github.com/threadline/reconciler/internal/reconcile"
	"github.com/threadline/reconciler/internal/repository"
)

// NewRouter creates the chi router with all API routes mounted.
func NewRouter(
	cfg config.Config,
	orderRepo *repository.OrderRepo,
	shipmentRepo *repository.ShipmentRepo,
	matchRepo *repository.MatchRepo,
	importRepo *repository.ImportRepo,
	ingestionSvc *ingestion.Service,
	reconcileSvc *reconcile.Service,
	logger zerolog.Logger,
) http.Handler {
	h := &Handlers{
		orderRepo:    orderRepo,
		shipmentRepo: shipmentRepo,
		matchRepo:    matchRepo,
		importRepo:   importRepo,
		ingestionSvc: ingestionSvc,
		reconcileSvc: reconcileSvc,
		log:          logger.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()

	// Order matters: recover -> request-id -> logging -> cors -> limit.
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) * 1024 * 1024))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion.
		r.Post("/imports/orders", h.ImportOrders)
		r.Post("/imports/shipments", h.ImportShipments)
		r.Get("/imports", h.ListImports)

		// Matching runs.
		r.Post("/reconcile", h.Reconcile)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
		r.Get("/runs/{id}/export", h.ExportRun)

		// Match links and review workflow.
		r.Get("/matches", h.ListMatches)
		r.Get("/matches/review-queue", h.ReviewQueue)
		r.Post("/matches/{id}/approve", h.ApproveMatch)
		r.Post("/matches/{id}/reject", h.RejectMatch)

		// Raw feeds.
		r.Get("/orders", h.ListOrders)
		r.Get("/shipments", h.ListShipments)

		// Dashboard.
		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}
