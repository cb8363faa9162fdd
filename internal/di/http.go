package di

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bytepad-backend/internal/config"
	"bytepad-backend/internal/infrastructure/observability"
	"bytepad-backend/internal/interfaces/http/handlers"
	"bytepad-backend/internal/middleware"
)

// SetupRouter creates and configures the command API router with all routes
// and middleware.
func SetupRouter(
	cfg *config.Config,
	commandHandler *handlers.CommandHandler,
	healthHandler *handlers.HealthHandler,
	collector *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.AccessLog(logger.Named("http")))
	r.Use(observability.HTTPMiddleware(collector, tracer))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler.Health)
	if collector != nil {
		r.Method(http.MethodGet, "/metrics", collector.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

		r.Get("/commands", commandHandler.List)
		r.Post("/commands/{name}", commandHandler.Execute)
	})

	return r
}
