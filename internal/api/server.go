// Package api serves the dam catalog, measurement history and sync triggers
// over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/damsync/internal/damsync"
	"github.com/sells-group/damsync/internal/model"
)

// Syncer runs catalog and measurement syncs on demand.
type Syncer interface {
	SyncCatalog(ctx context.Context) (model.CatalogOutcome, error)
	SyncToday(ctx context.Context) model.SyncOutcome
	SyncDate(ctx context.Context, date string) (model.SyncOutcome, error)
	SyncRange(ctx context.Context, start, end string) ([]model.SyncOutcome, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the server.
type Options struct {
	Addr           string
	AllowedOrigins []string
}

// Server exposes the REST API plus health and metrics endpoints.
type Server struct {
	httpServer *http.Server
	query      *damsync.Query
	syncer     Syncer
	pinger     Pinger
	log        *zap.Logger
}

// NewServer builds the router and the underlying http.Server.
func NewServer(opts Options, query *damsync.Query, syncer Syncer, pinger Pinger) *Server {
	s := &Server{
		query:  query,
		syncer: syncer,
		pinger: pinger,
		log:    zap.L().With(zap.String("component", "api")),
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/dams", func(r chi.Router) {
		r.Get("/geojson", s.handleDamsGeoJSON)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", s.handleListDams)
			r.Get("/sihKey/{sihKey}", s.handleGetDam)
			r.Get("/state/{state}", s.handleDamsByState)
			r.Get("/sync", s.handleSyncCatalog)
		})

		r.Route("/measurements", func(r chi.Router) {
			r.Get("/", s.handleListMeasurements)
			r.Post("/", s.handleQueryMeasurements)
			r.Get("/sync/date/today", s.handleSyncToday)
			r.Get("/sync/date/{date}", s.handleSyncDate)
			r.Post("/sync/dates", s.handleSyncDates)
		})

		r.Route("/info", func(r chi.Router) {
			r.Get("/", s.handleInfoAll)
			r.Post("/sihKey", s.handleInfoByKey)
			r.Post("/state", s.handleInfoByState)
			r.Post("/dates", s.handleInfoByDates)
		})
	})

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
