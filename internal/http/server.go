package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/edupay/edupay/internal/config"
	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
	"github.com/edupay/edupay/internal/http/handler"
	"github.com/edupay/edupay/internal/http/middleware"
	"github.com/edupay/edupay/internal/poller"
	redisRepo "github.com/edupay/edupay/internal/repository/redis"
	"github.com/edupay/edupay/internal/service"
)

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	config *config.Config
	cache  *redisRepo.Cache
	logger *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	paymentService *service.PaymentService,
	gateways gateway.Provider,
	watcher *poller.Poller,
	authMiddleware *middleware.Auth,
	cache *redisRepo.Cache,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()
	validate := validator.New()

	server := &Server{
		router: router,
		config: cfg,
		cache:  cache,
		logger: logger,
	}

	paymentHandler := handler.NewPaymentHandler(paymentService, watcher, validate, logger)
	webhookHandler := handler.NewWebhookHandler(paymentService, gateways, cache, cfg.Cache.WebhookDedupTTL, watcher, logger)
	adminHandler := handler.NewAdminHandler(paymentService, watcher, logger)

	rateLimits := middleware.NewRateLimitMiddleware(cache,
		cfg.RateLimit.PaymentPerMinute,
		cfg.RateLimit.APIPerMinute,
		cfg.RateLimit.AdminPerMinute,
	)

	server.setupMiddleware(logger)
	server.setupRoutes(paymentHandler, webhookHandler, adminHandler, authMiddleware, rateLimits)

	return server
}

// setupMiddleware configures global middleware
func (s *Server) setupMiddleware(logger *slog.Logger) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Timeout(30 * time.Second))

	s.router.Use(middleware.Logger(logger))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(
	paymentHandler *handler.PaymentHandler,
	webhookHandler *handler.WebhookHandler,
	adminHandler *handler.AdminHandler,
	authMiddleware *middleware.Auth,
	rateLimits *middleware.RateLimitMiddleware,
) {
	// Health checks (no rate limit)
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readinessCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Learner payment routes
		r.Route("/payments", func(r chi.Router) {
			r.With(rateLimits.Payment()).Post("/", paymentHandler.Create)

			r.Group(func(r chi.Router) {
				r.Use(rateLimits.API())
				r.Get("/{id}", paymentHandler.GetByID)
				r.Post("/{id}/cancel", paymentHandler.Cancel)
			})
		})

		// Webhook routes (no rate limit, signature verified)
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/paystack", webhookHandler.Handle(payment.GatewayPaystack))
			r.Post("/flutterwave", webhookHandler.Handle(payment.GatewayFlutterwave))
			r.Post("/stripe", webhookHandler.Handle(payment.GatewayStripe))
		})

		// Admin routes (JWT protected)
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware.Middleware())
			r.Use(authMiddleware.RequireRole("admin"))
			r.Use(rateLimits.Admin())

			r.Post("/payments/{id}/refund", adminHandler.Refund)
			r.Post("/payments/{id}/requery", adminHandler.Requery)
			r.Get("/payments/{id}/logs", adminHandler.Logs)
		})
	})
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// healthCheck handles GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// readinessCheck handles GET /ready
func (s *Server) readinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := s.cache.Ping(r.Context()); err != nil {
		s.logger.Error("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
