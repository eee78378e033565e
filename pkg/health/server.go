package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streampay-hq/streampay-engine/pkg/logger"
)

// EngineStatus is the subset of the engine the status endpoint reports on.
type EngineStatus interface {
	InFlightCount() int
	QueueDepth() int
	BreakerStates() map[string]bool
}

// StorePinger reports database reachability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ChainPinger reports RPC reachability.
type ChainPinger interface {
	Connected(ctx context.Context) bool
}

// Server exposes health, readiness, status and metrics endpoints.
type Server struct {
	port          string
	engine        EngineStatus
	store         StorePinger
	chain         ChainPinger
	metricsAPIKey string
	logger        logger.Logger
}

func NewServer(port string, engine EngineStatus, store StorePinger, chain ChainPinger, log logger.Logger) *Server {
	return &Server{
		port:          port,
		engine:        engine,
		store:         store,
		chain:         chain,
		metricsAPIKey: os.Getenv("METRICS_API_KEY"),
		logger:        log,
	}
}

// metricsAuthMiddleware checks for a valid API key when one is configured.
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler builds the HTTP mux. Split out from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness requires both the database and the RPC endpoint.
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Database not reachable"))
			return
		}
		if !s.chain.Connected(r.Context()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Chain RPC not reachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		breakers := make(map[string]string)
		for name, open := range s.engine.BreakerStates() {
			state := "closed"
			if open {
				state = "open"
			}
			breakers[name] = state
		}

		status := map[string]interface{}{
			"in_flight":   s.engine.InFlightCount(),
			"queue_depth": s.engine.QueueDepth(),
			"breakers":    breakers,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.ErrorWithScope(logger.Health, "Error encoding status JSON: %v", err)
		}
	})

	mux.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	return mux
}

// Start serves until the listener fails. Run it on its own goroutine.
func (s *Server) Start() {
	s.logger.InfoWithScope(logger.Health, "Starting health and metrics server on port %s", s.port)
	if err := http.ListenAndServe(":"+s.port, s.Handler()); err != nil {
		s.logger.ErrorWithScope(logger.Health, "Health server error: %v", err)
	}
}
