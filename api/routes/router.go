package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lotkeeper/lotkeeper-backend/api/controllers"
	"github.com/lotkeeper/lotkeeper-backend/api/middleware"
	lotsvc "github.com/lotkeeper/lotkeeper-backend/internal/lots"
	productsvc "github.com/lotkeeper/lotkeeper-backend/internal/products"
	"github.com/lotkeeper/lotkeeper-backend/pkg/config"
	"github.com/lotkeeper/lotkeeper-backend/pkg/logger"
	"github.com/lotkeeper/lotkeeper-backend/pkg/metrics"
	pkgredis "github.com/lotkeeper/lotkeeper-backend/pkg/redis"
)

// Deps collects everything the HTTP layer needs.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       *pkgredis.Client
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Lots        *lotsvc.Service
	Products    *productsvc.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}

	ready := map[string]controllers.Pinger{"database": deps.DB}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		r.Route("/lots", func(r chi.Router) {
			r.Post("/", controllers.ReceiveLot(deps.Lots, logg))
			r.Get("/", controllers.ListLots(deps.Lots, logg))
			r.Route("/{lotId}", func(r chi.Router) {
				r.Get("/", controllers.GetLot(deps.Lots, logg))
				r.Patch("/", controllers.UpdateLot(deps.Lots, logg))
				r.Delete("/", controllers.ScrapLot(deps.Lots, logg))
				r.Post("/split", controllers.SplitLot(deps.Lots, logg))
				r.Get("/split", controllers.LotSplitHistory(deps.Lots, logg))
				r.Post("/consume", controllers.ConsumeLot(deps.Lots, logg))
				r.Post("/reserve", controllers.ReserveLot(deps.Lots, logg))
				r.Post("/unreserve", controllers.UnreserveLot(deps.Lots, logg))
				r.Post("/adjust", controllers.AdjustLot(deps.Lots, logg))
				r.Get("/transactions", controllers.ListLotTransactions(deps.Lots, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.CreateProduct(deps.Products, logg))
			r.Get("/", controllers.ListProducts(deps.Products, logg))
			r.Route("/{productId}", func(r chi.Router) {
				r.Get("/", controllers.GetProduct(deps.Products, logg))
				r.Route("/stock", func(r chi.Router) {
					r.Get("/", controllers.GetProductStock(deps.Products, logg))
					r.Post("/reconcile", controllers.ReconcileProductStock(deps.Products, logg))
					r.Post("/adjust", controllers.AdjustProductStock(deps.Lots, logg))
				})
			})
		})
	})

	return r
}
