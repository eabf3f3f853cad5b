package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"microtrader/internal/audit"
	"microtrader/internal/events"
	"microtrader/internal/ledger"
	"microtrader/internal/market"
)

// Config holds server configuration
type Config struct {
	Port    int
	Log     zerolog.Logger
	Ledger  *ledger.Ledger
	Journal *audit.Journal // nil when auditing is disabled
	Market  *market.Hub
	Events  *events.Hub
}

// Server exposes the portfolio and quote services over HTTP.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	ledger  *ledger.Ledger
	journal *audit.Journal
	market  *market.Hub
	events  *events.Hub
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		ledger:  cfg.Ledger,
		journal: cfg.Journal,
		market:  cfg.Market,
		events:  cfg.Events,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/portfolio", func(r chi.Router) {
		r.Get("/", s.handlePortfolio)
		r.Get("/evaluate", s.handleEvaluate)
		r.Post("/buy", s.handleBuy)
		r.Post("/sell", s.handleSell)
	})

	s.router.Route("/quotes", func(r chi.Router) {
		r.Get("/", s.handleQuotes)
		r.Get("/{symbol}", s.handleQuote)
	})

	s.router.Get("/operations", s.handleOperations)
	s.router.Get("/feed", s.handleFeed)
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}
