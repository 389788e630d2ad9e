package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the gateway routes
func NewRouter(images *ImageHandler, middleware *Middleware) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggerMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/generateImages", images.HandleGenerateImages)
	r.Get("/imageStyles", images.HandleImageStyles)

	// Legacy path used by the web client
	r.Post("/api/generateImages", images.HandleGenerateImages)

	return r
}
