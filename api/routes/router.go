package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/backoffice-backend/api/controllers"
	"github.com/angelmondragon/backoffice-backend/api/middleware"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	productService controllers.ProductService,
	sessionService controllers.SessionService,
	movementService controllers.MovementReader,
	invoiceService controllers.InvoiceBalancer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Station(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// Redis is optional; keep the interfaces nil when it is off so the
	// middleware degrades to a passthrough.
	var (
		redisPinger controllers.Pinger
		idemStore   redis.IdempotencyStore
	)
	if redisClient != nil {
		redisPinger = redisClient
		idemStore = redisClient
	}
	scanPolicy := middleware.NewScanRateLimitPolicy(cfg.RateLimit.ScanWindow, cfg.RateLimit.ScanLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/by-code/{code}", controllers.ProductByCode(productService, logg))
			r.Get("/expiring", controllers.ProductsExpiring(productService, logg))
		})

		r.Route("/scan-sessions", func(r chi.Router) {
			r.Post("/", controllers.ScanSessionCreate(sessionService, logg))
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", controllers.ScanSessionDetail(sessionService, logg))
				r.Delete("/", controllers.ScanSessionClose(sessionService, logg))
				r.With(scanRateLimit(scanPolicy, redisClient, logg)).Post("/scans", controllers.ScanSessionScan(sessionService, logg))
				r.Get("/cart", controllers.ScanSessionCart(sessionService, logg))
				r.Put("/cart", controllers.ScanSessionCartReplace(sessionService, logg))
				r.Patch("/cart/{code}", controllers.ScanSessionCartUpdate(sessionService, logg))
				r.Delete("/cart/{code}", controllers.ScanSessionCartRemove(sessionService, logg))
				r.Post("/clear", controllers.ScanSessionClear(sessionService, logg))
				r.Get("/notifications", controllers.ScanSessionNotifications(sessionService, logg))
				r.Post("/submit", controllers.ScanSessionSubmit(sessionService, logg))
			})
		})

		r.Get("/movements/{movementId}", controllers.MovementDetail(movementService, logg))
		r.Get("/invoices/{invoiceId}/balance", controllers.InvoiceBalance(invoiceService, logg))
	})

	return r
}

func scanRateLimit(policy middleware.ScanRateLimitPolicy, client *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return middleware.ScanRateLimit(policy, nil, logg)
	}
	return middleware.ScanRateLimit(policy, client, logg)
}
