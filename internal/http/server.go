// Package http serves the fund ledger JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"labfunds/internal/auth"
	"labfunds/internal/log"
	"labfunds/internal/middleware/ratelimit"
	"labfunds/internal/middleware/security"
	"labfunds/internal/middleware/trace"
	"labfunds/internal/services"
)

// Pinger reports backend readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr              string
	Auth              auth.Provider
	Ready             Pinger
	Logger            *log.Logger
	RequestsPerMinute int
}

type Server struct {
	http.Server
	funds    *services.FundService
	expenses *services.ExpenseService
	auth     auth.Provider
	ready    Pinger
	logger   *log.Logger

	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(fundService *services.FundService, expenseService *services.ExpenseService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()
	s := &Server{
		funds:    fundService,
		expenses: expenseService,
		auth:     opts.Auth,
		ready:    opts.Ready,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/projects", s.handleListProjects)
	api.HandleFunc("POST /api/projects", s.handleCreateProject)
	api.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	api.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	api.HandleFunc("PUT /api/projects/{id}/heads", s.handleUpdateHeads)
	api.HandleFunc("GET /api/projects/{id}/total-expenses", s.handleTotalExpenses)
	api.HandleFunc("GET /api/projects/{id}/balance", s.handleProjectBalance)
	api.HandleFunc("POST /api/projects/{id}/carry", s.handleCarryForward)
	api.HandleFunc("POST /api/projects/{id}/override", s.handleSetOverride)
	api.HandleFunc("DELETE /api/projects/{id}/override", s.handleClearOverride)
	api.HandleFunc("GET /api/projects/{id}/institute-expenses", s.handleListInstituteExpenses)
	api.HandleFunc("GET /api/projects/{id}/reimbursements", s.handleListReimbursements)

	api.HandleFunc("GET /api/expenses", s.handleListExpenses)
	api.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	api.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	api.HandleFunc("POST /api/institute-expenses", s.handleFileInstituteExpense)
	api.HandleFunc("POST /api/reimbursements", s.handleFileReimbursement)
	api.HandleFunc("POST /api/reimbursements/paid", s.handleMarkPaid)

	api.HandleFunc("GET /api/accounts", s.handleListAccounts)
	api.HandleFunc("POST /api/accounts", s.handleAppendAccount)
	api.HandleFunc("GET /api/accounts/balance", s.handleAccountBalance)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", s.limiter.Middleware(s.rateKey, s.onLimit)(s.authenticate(api)))

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// authenticate resolves the bearer token. Reads need any identity; writes
// need a role that may change funds.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok || s.auth == nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="labfunds"`)
			writeError(w, r, auth.ErrUnauthenticated)
			return
		}
		id, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="labfunds", error="invalid_token"`)
			ErrorResponse(http.StatusUnauthorized, auth.ErrUnauthenticated.Error()).Write(w)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead && !id.CanWrite() {
			writeError(w, r, auth.ErrForbidden)
			return
		}
		ctx := auth.NewContext(r.Context(), id)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUser, id.Email, log.FieldRole, id.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rateKey(r *http.Request) string {
	return s.detector.ExtractClientIP(r)
}

func (s *Server) onLimit(w http.ResponseWriter, _ *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse(map[string]string{"status": "ready"}).Write(w)
}

// Shutdown stops the rate limiter and drains the server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
