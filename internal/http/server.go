package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"budgetsim/internal/broadcast"
	"budgetsim/internal/core"
	"budgetsim/internal/ledger"
	"budgetsim/internal/log"
	"budgetsim/internal/middleware/ratelimit"
	"budgetsim/internal/middleware/security"
	"budgetsim/internal/middleware/trace"
)

// Ledger is every write the server exposes. *ledger.Service satisfies it.
type Ledger interface {
	Deposit(ctx context.Context, familyID int64, amount decimal.Decimal) (*core.Family, error)
	Withdraw(ctx context.Context, familyID int64, amount decimal.Decimal) (*core.Family, error)
	PayBill(ctx context.Context, familyID int64, billType string, amount decimal.Decimal, week int) (*core.Family, error)
	PayEmployee(ctx context.Context, familyID, personID int64, week int, amount decimal.Decimal) (*ledger.Payroll, error)
	SetPersonStatus(ctx context.Context, personID int64, status string, value bool) (*core.Person, error)

	CreateFamily(ctx context.Context, f core.Family) (*core.Family, error)
	DeleteFamily(ctx context.Context, id int64) error
	CreatePerson(ctx context.Context, p core.Person) (*core.Person, error)
	UpdatePerson(ctx context.Context, id int64, profile ledger.PersonProfile) (*core.Person, error)
	DeletePerson(ctx context.Context, id int64) error
}

// Reader serves family and person state. *readmodel.Reader satisfies it.
type Reader interface {
	ListFamilies(ctx context.Context) ([]core.Family, error)
	GetFamily(ctx context.Context, id int64) (*core.Family, error)
	FindFamiliesByName(ctx context.Context, name string) ([]core.Family, error)
	ListPeople(ctx context.Context, familyID int64) ([]core.Person, error)
	GetPerson(ctx context.Context, id int64) (*core.Person, error)
}

// Pinger reports whether a dependency is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires the server to its collaborators. Ledger, Reader and Stream are
// required; the rest have defaults.
type Config struct {
	Addr   string
	Ledger Ledger
	Reader Reader
	Stream broadcast.Source

	// Ready is checked by /readyz. Nil means always ready.
	Ready Pinger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Observer receives per-request timings.
	Observer trace.Observer

	RateLimit ratelimit.Config
	Headers   security.HeadersConfig
	// TrustedProxies are extra CIDRs whose forwarding headers are believed.
	TrustedProxies []string

	// KeepAlive is the interval between SSE comment frames.
	KeepAlive time.Duration
	Logger    *log.Logger
}

// DefaultKeepAlive keeps idle SSE streams open through proxies.
const DefaultKeepAlive = 15 * time.Second

type Server struct {
	http.Server

	ledger    Ledger
	reader    Reader
	stream    broadcast.Source
	ready     Pinger
	keepAlive time.Duration
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector

	// streams is cancelled on Shutdown so SSE handlers return and
	// http.Server.Shutdown does not wait on them.
	streams      context.Context
	stopStreams  context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.Headers.XContentTypeOptions == "" {
		cfg.Headers = security.DefaultHeadersConfig()
	}
	if len(cfg.RateLimit.Methods) == 0 {
		cfg.RateLimit.Methods = ratelimit.DefaultConfig().Methods
	}

	detector := security.NewDetector(logger)
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	streams, stopStreams := context.WithCancel(context.Background())
	s := &Server{
		ledger:      cfg.Ledger,
		reader:      cfg.Reader,
		stream:      cfg.Stream,
		ready:       cfg.Ready,
		keepAlive:   cfg.KeepAlive,
		logger:      logger.WithComponent(log.ComponentHTTP),
		limiter:     ratelimit.NewLimiter(cfg.RateLimit),
		detector:    detector,
		streams:     streams,
		stopStreams: stopStreams,
	}

	mux := http.NewServeMux()

	mux.Handle("GET /families/{$}", routed(s.handleListFamilies))
	mux.Handle("POST /families/{$}", routed(s.handleCreateFamily))
	mux.Handle("GET /families/stream", routed(s.handleStream))
	mux.Handle("GET /families/search/{name}", routed(s.handleSearchFamilies))
	mux.Handle("GET /families/{id}", routed(s.handleGetFamily))
	mux.Handle("DELETE /families/{id}", routed(s.handleDeleteFamily))

	mux.Handle("GET /people", routed(s.handleListPeople))
	mux.Handle("POST /people", routed(s.handleCreatePerson))
	mux.Handle("GET /people/{id}", routed(s.handleGetPerson))
	mux.Handle("PUT /people/{id}", routed(s.handleUpdatePerson))
	mux.Handle("DELETE /people/{id}", routed(s.handleDeletePerson))

	mux.Handle("POST /api/transactions/deposit", routed(s.handleDeposit))
	mux.Handle("POST /api/transactions/withdraw", routed(s.handleWithdraw))
	mux.Handle("POST /api/transactions/pay-bill", routed(s.handlePayBill))
	mux.Handle("POST /api/transactions/pay-employee", routed(s.handlePayEmployee))
	mux.Handle("POST /api/transactions/set-status", routed(s.handleSetStatus))

	mux.Handle("GET /healthz", routed(handleHealth))
	mux.Handle("GET /readyz", routed(s.handleReady))
	if cfg.Metrics != nil {
		metrics := cfg.Metrics
		mux.Handle("GET /metrics", routed(metrics.ServeHTTP))
	}

	// Outermost first: headers, probe rejection, tracing, then the write budget.
	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimit)(handler)
	handler = trace.NewMiddleware(logger, detector.ExtractClientIP, cfg.Observer).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(cfg.Headers).Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Limiter exposes the write rate limiter so the caller can run its cleanup loop.
func (s *Server) Limiter() *ratelimit.Limiter { return s.limiter }

// Shutdown ends open event streams, then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopStreams()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
