package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

// Server wraps http.Server and exposes the tracker as a JSON API.
type Server struct {
	http.Server

	tracker *services.Tracker
	clock   core.Clock
	logger  *log.Logger
	ready   func(context.Context) error

	clientIP    *security.ClientIPResolver
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	// Summaries keyed by period, ledger revision and day
	summaryCache *cache.LRUCache[core.Summary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Options configures NewServer. Zero values fall back to defaults.
type Options struct {
	Logger *log.Logger
	Clock  core.Clock
	// Ready reports backend readiness on /readyz.
	Ready              func(context.Context) error
	RateLimitPerMinute int
	TrustedProxies     []string
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, tracker *services.Tracker, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock
	}

	s := &Server{
		tracker:      tracker,
		clock:        opts.Clock,
		logger:       opts.Logger.WithComponent(log.ComponentHTTP),
		ready:        opts.Ready,
		clientIP:     security.NewClientIPResolver(),
		summaryCache: cache.NewLRUCache[core.Summary](32, 5*time.Minute),
		cacheManager: cache.NewManager(opts.Logger),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.clientIP.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}

	rl := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rl.RequestsPerMinute = opts.RateLimitPerMinute
	}
	s.rateLimiter = ratelimit.NewLimiter(rl)
	s.tracer = trace.NewMiddleware(opts.Logger, s.clientIP.ClientIP)

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	api := http.NewServeMux()
	s.registerLedgerRoutes(api)
	s.registerGoalRoutes(api)
	s.registerAlertRoutes(api)
	s.registerDataRoutes(api)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /statusz", s.handleStatus)
	mux.Handle("/api/", s.rateLimiter.Middleware(s.clientIP.ClientIP, handleRateLimited)(api))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(security.Headers(security.DefaultHeadersConfig())(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "too many requests").
		Header("Retry-After", "60").
		Write(w)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type statusResponse struct {
	Requests          int64       `json:"requests"`
	AvgResponseMillis float64     `json:"avgResponseMs"`
	RateLimitClients  int         `json:"rateLimitClients"`
	RateLimitRejected int64       `json:"rateLimitRejected"`
	SummaryCache      cache.Stats `json:"summaryCache"`
	SummaryCacheSize  int         `json:"summaryCacheSize"`
	Revision          uint64      `json:"revision"`
	UnreadAlerts      int         `json:"unreadAlerts"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	m := s.tracer.GetMetrics()
	NewJSONResponse().Data(statusResponse{
		Requests:          m.TotalRequests,
		AvgResponseMillis: float64(m.AverageResponseTime.Microseconds()) / 1000,
		RateLimitClients:  s.rateLimiter.ActiveClients(),
		RateLimitRejected: s.rateLimiter.Rejected(),
		SummaryCache:      s.summaryCache.Stats(),
		SummaryCacheSize:  s.summaryCache.Size(),
		Revision:          s.tracker.Revision(),
		UnreadAlerts:      s.tracker.UnreadAlerts(),
	}).Write(w)
}

func (s *Server) summaryKey(p core.Period) string {
	return string(p) + "|" + strconv.FormatUint(s.tracker.Revision(), 10) + "|" + core.Today(s.clock).String()
}
