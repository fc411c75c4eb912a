package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/sukhavati-ingest/pkg/middleware"
	"github.com/FACorreiaa/sukhavati-ingest/pkg/observability"
)

const uploadsPath = "/v1/uploads"

// SetupRouter configures all routes and returns the HTTP handler
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	jwtSecret := []byte(deps.Config.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		deps.Logger.Warn("JWT secret is empty; authentication middleware will reject requests")
	}

	publicPaths := []string{
		"/health",
		"/health/details",
		"/ready",
		"/metrics",
	}

	tracer := otel.GetTracerProvider().Tracer("sukhavati/api")

	var limiter *rate.Limiter
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter = rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
	}

	registerIngestRoutes(mux, deps)
	registerUtilityRoutes(mux, deps)

	handler := middleware.Chain(mux,
		middleware.RequestID("X-Request-ID"),
		middleware.Tracing(tracer),
		middleware.Logging(deps.Logger),
		middleware.Recovery(deps.Logger),
		middleware.RateLimit(limiter),
		middleware.Auth(jwtSecret, publicPaths...),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           7200,
	})

	return corsHandler.Handler(handler)
}

// registerIngestRoutes registers the spreadsheet upload endpoint
func registerIngestRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.Handle(uploadsPath, observability.MetricsMiddleware(uploadsPath, http.HandlerFunc(deps.UploadHandler.Upload)))
	deps.Logger.Info("registered upload endpoint", "path", uploadsPath)
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if err := deps.DB.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, writeErr := w.Write([]byte("database unhealthy")); writeErr != nil {
				deps.Logger.Error("failed to write health response", slog.Any("error", writeErr))
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			deps.Logger.Error("failed to write health response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health check", "path", "/health")

	mux.HandleFunc("/health/details", func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status string `json:"status"`
			Detail string `json:"detail,omitempty"`
		}
		result := map[string]status{
			"db":    {Status: "ok"},
			"auth":  {Status: "ok"},
			"ready": {Status: "ok"},
		}

		if err := deps.DB.Health(); err != nil {
			result["db"] = status{Status: "fail", Detail: err.Error()}
			result["ready"] = status{Status: "fail", Detail: "db unavailable"}
		}

		if deps.Config.Auth.JWTSecret == "" {
			result["auth"] = status{Status: "warn", Detail: "JWT_SECRET missing"}
		}

		code := http.StatusOK
		for _, v := range result {
			if v.Status == "fail" {
				code = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.Logger.Error("failed to encode health details", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health details", "path", "/health/details")

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
