// Package server assembles the HTTP surface: middleware, catalog and import
// routes, health checks and API docs.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"swapiapi/internal/catalog"
	"swapiapi/internal/config"
	"swapiapi/internal/httpx"
	"swapiapi/internal/ingest"

	_ "swapiapi/docs"
)

const maxBodyBytes = 1 << 20

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Catalog  *catalog.Service
	Importer ingest.Importer
	Store    Pinger
}

type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
	limiter    *httpx.RateLimitMiddleware
}

func New(d Deps) *Server {
	limiter := httpx.NewRateLimitMiddleware(d.Config.RateLimitMaxRequests, d.Config.RateLimitWindow, d.Config.BlockedIPs)

	// Imports run inside the request, so the write timeout has to cover a
	// full upstream crawl.
	httpServer := &http.Server{
		Addr:              d.Config.AppAddr,
		Handler:           newRouter(d, limiter),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{httpServer: httpServer, logger: d.Logger, limiter: limiter}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error().Err(err).Msg("server error")
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	defer s.limiter.Stop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("server shutdown error")
		return err
	}
	s.logger.Info().Msg("server shutdown complete")
	return nil
}

func newRouter(d Deps, limiter *httpx.RateLimitMiddleware) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httpx.RequestIDMiddleware)
	r.Use(httpx.AccessLogMiddleware(d.Logger))
	r.Use(httpx.RecoveryMiddleware)
	r.Use(httpx.SecurityHeadersMiddleware(d.Config.EnableHSTS))
	r.Use(httpx.CORSMiddleware(d.Config.CORSAllowedOrigins))
	r.Use(httpx.RequestSizeLimitMiddleware(maxBodyBytes))
	r.Use(limiter.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/", rootHandler(d.Config))
	r.Get("/healthz", healthHandler)
	r.Get("/readyz", readyHandler(d.Store))

	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/index.html", http.StatusMovedPermanently)
	})
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))
	r.Get("/redoc", redocHandler(d.Config.AppName))

	importHandler := ingest.NewHTTPHandler(d.Importer)
	r.Route("/import", func(r chi.Router) {
		r.Get("/runs", importHandler.Runs)
		r.Post("/{kind}", importHandler.Import)
	})

	catalog.NewHTTPHandler(d.Catalog).Register(r)

	return r
}

type rootResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Docs    string `json:"docs"`
	Redoc   string `json:"redoc"`
}

// rootHandler handles GET /
// @Summary Service metadata
// @Tags root
// @Produce json
// @Success 200 {object} map[string]string
// @Router / [get]
func rootHandler(cfg *config.Config) http.HandlerFunc {
	body := rootResponse{
		Service: cfg.AppName,
		Version: cfg.AppVersion,
		Status:  "online",
		Message: "Import, store and explore Star Wars characters, films and starships. Visit /docs for interactive documentation.",
		Docs:    "/docs",
		Redoc:   "/redoc",
	}
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, body)
	}
}

// healthHandler handles GET /healthz
// @Summary Liveness check
// @Tags health
// @Produce plain
// @Success 200 {string} string
// @Router /healthz [get]
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyHandler handles GET /readyz
// @Summary Readiness check
// @Tags health
// @Produce plain
// @Success 200 {string} string
// @Failure 503 {string} string
// @Router /readyz [get]
func readyHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
