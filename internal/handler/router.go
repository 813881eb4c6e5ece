package handler

import (
	"net/http"

	"pdf-watermark-api/internal/domain"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// ServiceName is reported by the health check.
const ServiceName = "pdf-watermark-api"

// RouterDeps groups what NewRouter needs to mount the API
type RouterDeps struct {
	WatermarkHandler *WatermarkHandler
	UsageHandler     *UsageHandler
	// WatermarkAuth guards the watermark routes, UsageAuth the usage routes.
	// They are separate so rejected watermark calls can be counted on their own.
	WatermarkAuth  func(http.Handler) http.Handler
	UsageAuth      func(http.Handler) http.Handler
	MetricsHandler http.Handler
	AllowedOrigins []string
	Logger         domain.Logger
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(deps RouterDeps) http.Handler {
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware)
	if deps.Logger != nil {
		router.Use(AccessLogMiddleware(deps.Logger))
	}

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": ServiceName})
	}).Methods(http.MethodGet)

	if deps.MetricsHandler != nil {
		router.Handle("/metrics", deps.MetricsHandler).Methods(http.MethodGet)
	}

	watermark := http.HandlerFunc(deps.WatermarkHandler.Watermark)
	router.Handle("/watermark", deps.WatermarkAuth(watermark)).Methods(http.MethodPost)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Handle("/watermark", deps.WatermarkAuth(watermark)).Methods(http.MethodPost)
	api.Handle("/usage/{company}", deps.UsageAuth(http.HandlerFunc(deps.UsageHandler.GetUsage))).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	c := cors.New(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			RequestIDHeader,
		},
		ExposedHeaders: []string{
			"Content-Disposition",
			"X-Page-Count",
			RequestIDHeader,
		},
		MaxAge: 300,
	})

	return c.Handler(router)
}
