package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	applog "conti/internal/log"
	"conti/internal/middleware/ratelimit"
	"conti/internal/middleware/security"
	"conti/internal/middleware/trace"
	"conti/internal/services"
)

// Deps are the services the API is built on.
type Deps struct {
	Groups      *services.GroupService
	Expenses    *services.ExpenseService
	Settlements *services.SettlementService
	Balances    *services.BalanceService

	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error

	// RateLimit applies to writes; a zero RequestsPerSecond disables it.
	RateLimit ratelimit.Config

	Logger *slog.Logger
}

type Server struct {
	http.Server
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		deps:     deps,
		detector: security.NewDetector(),
		now:      time.Now,
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)
	if deps.RateLimit.RequestsPerSecond > 0 {
		s.limiter = ratelimit.NewLimiter(deps.RateLimit)
	}

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	logger := applog.New(applog.Config{Component: applog.ComponentHTTP, Handler: s.deps.Logger.Handler()})

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(logger))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) }))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(applog.ComponentMiddleware(applog.ComponentAPI))

		// Reads
		r.Get("/groups", s.handleListGroups)
		r.Get("/groups/{groupID}", s.handleGetGroup)
		r.Get("/groups/{groupID}/expenses", s.handleListExpenses)
		r.Get("/groups/{groupID}/balances", s.handleBalances)
		r.Get("/groups/{groupID}/settled", s.handleSettled)
		r.Get("/groups/{groupID}/settlements", s.handleListSettlements)
		r.Get("/members/{memberID}/settlements", s.handleMemberSettlements)

		// Writes
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, nil))
			}
			r.Post("/groups", s.handleCreateGroup)
			r.Post("/groups/{groupID}/members", s.handleAddMember)
			r.Post("/groups/{groupID}/expenses", s.handleCreateExpense)
			r.Put("/groups/{groupID}/expenses/{expenseID}", s.handleUpdateExpense)
			r.Delete("/groups/{groupID}/expenses/{expenseID}", s.handleDeleteExpense)
			r.Post("/groups/{groupID}/settlements", s.handleCreateSettlement)
		})
	})

	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			slog.WarnContext(ctx, "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
