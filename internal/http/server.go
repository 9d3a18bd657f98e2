package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"expenseledger/internal/categories"
	"expenseledger/internal/core"
	applog "expenseledger/internal/log"
	"expenseledger/internal/services"
)

const (
	writesPerMinute = 120
	readyTimeout    = 2 * time.Second
)

// Ledger is the operation boundary the tool handlers call.
type Ledger interface {
	AddExpense(ctx context.Context, e core.Expense) services.AddResult
	ListExpenses(ctx context.Context, start, end string) services.ListResult
	Summarize(ctx context.Context, start, end, category string) services.SummaryResult
	DeleteExpenses(ctx context.Context, e core.Expense) services.DeleteResult
	UpdateExpense(ctx context.Context, id int64, upd core.ExpenseUpdate) services.UpdateResult
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	ledger      Ledger
	categories  *categories.Reader
	health      Pinger
	logger      *applog.Logger
	rateLimiter *rateLimiter
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// health may be nil, in which case readiness always succeeds.
func NewServer(addr string, ledger Ledger, cats *categories.Reader, health Pinger, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		ledger:      ledger,
		categories:  cats,
		health:      health,
		logger:      logger,
		rateLimiter: newRateLimiter(writesPerMinute, time.Minute),
		started:     time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("POST /tools/add_expense", s.handleAddExpense)
	mux.HandleFunc("POST /tools/list_expenses", s.handleListExpenses)
	mux.HandleFunc("POST /tools/summarize", s.handleSummarize)
	mux.HandleFunc("POST /tools/delete_expenses", s.handleDeleteExpenses)
	mux.HandleFunc("POST /tools/update", s.handleUpdate)
	mux.HandleFunc("GET /resources/categories", s.handleCategories)

	var handler http.Handler = mux
	handler = s.withTracing(handler)
	handler = applog.RequestIDMiddleware(func(r *http.Request) string { return r.Header.Get(headerRequestID) })(handler)
	handler = withRequestID(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady pings the store so readiness fails while the database is unusable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	checks := map[string]string{"store": "ok"}

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}
	checks["rate_limiter_clients"] = strconv.Itoa(s.rateLimiter.activeClients())

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleCategories serves the categories document exactly as stored on disk.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.categories == nil {
		writeJSON(w, http.StatusNotFound, services.ErrorOutcome(KindResource, "categories resource not configured"))
		return
	}

	data, err := s.categories.Read(ctx)
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Failed to read categories", err,
			applog.ErrorTypeInternal, applog.OpRead, nil)
		writeJSON(w, http.StatusInternalServerError, services.ErrorOutcome(KindResource, err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Location", categories.URI)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// KindResource marks failures reading a static resource.
const KindResource = "resource_error"
