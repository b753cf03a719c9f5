package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tripledger/internal/log"
	"tripledger/internal/services"
)

type Server struct {
	http.Server
	ledger  *services.LedgerService
	logger  *log.Logger
	access  *log.StructuredLogger
	limiter *rateLimiter

	shutdownOnce sync.Once
}

// Options tune the server. Zero values fall back to the defaults below.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, ledger *services.LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	perMinute := opts.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:           addr,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		ledger:  ledger,
		logger:  logger.WithComponent(log.ComponentHTTP),
		limiter: newRateLimiter(perMinute),
	}
	s.access = log.NewStructuredLogger(s.logger)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/facets", s.handleFacets)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)

	mux.HandleFunc("GET /api/trips", s.handleListTrips)
	mux.HandleFunc("POST /api/trips", s.handleCreateTrip)
	mux.HandleFunc("GET /api/trips/usage", s.handleTripUsage)
	mux.HandleFunc("GET /api/trips/{id}", s.handleGetTrip)

	mux.HandleFunc("GET /api/reports/summary", s.handleSummary)
	mux.HandleFunc("GET /api/reports/monthly", s.handleMonthly)
	mux.HandleFunc("GET /api/reports/categories", s.handleCategories)
	mux.HandleFunc("GET /api/reports/trips", s.handleTripBreakdowns)

	mux.HandleFunc("GET /export/expenses.csv", s.handleExportExpenses)
	mux.HandleFunc("GET /export/report.csv", s.handleExportReport)

	s.Handler = s.withMiddleware(mux)
	return s
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
