package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"remotebuild/internal/api/handlers"
	"remotebuild/internal/api/middleware"
	"remotebuild/internal/config"
	"remotebuild/internal/engine"
	"remotebuild/internal/logger"
	"remotebuild/internal/storage"
)

// NewRouter builds the service-mode HTTP handler
func NewRouter(cfg config.Config, ciEngine engine.CIEngine) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LimitBodySize(cfg.Server.MaxBodySize))
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	buildHandler := handlers.NewBuildHandler(ciEngine)
	recordsHandler := handlers.NewRecordsHandler()
	authMiddleware := middleware.NewAuthMiddleware(cfg.API)

	// Public routes
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		writeInfo(w)
	})
	r.Get("/healthz", healthzHandler)

	// Protected routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware.Middleware)
		r.Post("/builds", buildHandler.TriggerBuild)
		r.Get("/builds", recordsHandler.ListBuildRecords)
	})

	return r
}

func writeInfo(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"message":"remotebuild API","endpoints":["/healthz - Health check","/api/v1/builds - Trigger and list tracked builds"]}` + "\n")); err != nil {
		logger.Error("Failed to write info response", "error", err)
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := storage.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte(`{"status":"unhealthy","error":"database connection failed"}` + "\n")); err != nil {
			logger.Error("Failed to write health check error", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"healthy"}` + "\n")); err != nil {
		logger.Error("Failed to write health check response", "error", err)
	}
}

// corsMiddleware handles CORS headers and preflight requests.
// An empty allowed list means allow all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			origin := req.Header.Get("Origin")

			if len(allowedOrigins) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				if !isValidOrigin(origin) {
					logger.Warn("Invalid origin format", "origin", origin, "request_id", middleware.GetRequestID(req))
				} else if isOriginAllowed(origin, allowedOrigins) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				} else {
					// Same-origin requests proceed without CORS headers
					logger.Warn("Origin not allowed", "origin", origin, "request_id", middleware.GetRequestID(req))
				}
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// isValidOrigin validates the origin format (must be http:// or https://)
func isValidOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://")
}

// isOriginAllowed checks if the given origin is in the allowed list
func isOriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(origin, a) {
			return true
		}
	}
	return false
}
