package api

import (
	"log/slog"
	"net/http"
	"time"

	"collections-engine/internal/api/handler"
	mw "collections-engine/internal/api/middleware"
	"collections-engine/internal/batch"
	"collections-engine/internal/config"
	"collections-engine/internal/domain/customer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(
	customerService customer.Service,
	dailyCallJob *batch.DailyCallJob,
	links handler.PaymentLinkService,
	messenger handler.MessageGateway,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupWebhookRoutes(router, customerService, links, messenger, cfg, logger)
	setupAdminRoutes(router, customerService, dailyCallJob, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

// setupWebhookRoutes wires the telephony provider's callbacks. These carry no
// bearer token, so they stay outside the auth middleware.
func setupWebhookRoutes(
	router *chi.Mux,
	customerService customer.Service,
	links handler.PaymentLinkService,
	messenger handler.MessageGateway,
	cfg *config.Config,
	logger *slog.Logger,
) {
	voiceHandler := handler.NewVoiceHandler(customerService, links, messenger, cfg.Twilio.AgentNumber, logger)
	smsHandler := handler.NewSMSHandler(customerService, links, logger)

	router.Get("/voice", voiceHandler.Menu)
	router.Post("/voice", voiceHandler.Menu)
	router.Post("/voice/key", voiceHandler.HandleKey)
	router.Post("/sms", smsHandler.Reply)
}

func setupAdminRoutes(
	router *chi.Mux,
	customerService customer.Service,
	dailyCallJob *batch.DailyCallJob,
	cfg *config.Config,
	logger *slog.Logger,
) {
	customerHandler := handler.NewCustomerHandler(customerService, dailyCallJob, cfg.Batch.DailyCallTimeout, logger)
	authHandler := handler.NewAuthHandler(*cfg, logger)

	router.Post("/auth/token", authHandler.GenerateBearerToken)

	router.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))

		r.Post("/customers", customerHandler.CreateCustomer)
		r.Get("/customers/{phone}", customerHandler.GetCustomer)
		r.Post("/admin/runs", customerHandler.TriggerDailyRun)
	})
}
