package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/FairForge/otpload/internal/loadtest"
)

// StatsSource reports live counters. *loadtest.Runner implements it.
type StatsSource interface {
	IsRunning() bool
	CurrentStats() loadtest.Stats
}

// Status is the /status response body.
type Status struct {
	Test    string         `json:"test"`
	Running bool           `json:"running"`
	Stats   loadtest.Stats `json:"stats"`
	Time    time.Time      `json:"time"`
}

// Server serves /metrics, /status and /health while a run is in flight.
type Server struct {
	test       string
	metrics    *Metrics
	source     StatsSource
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a status server listening on addr.
func NewServer(addr, test string, m *Metrics, source StatsSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		test:    test,
		metrics: m,
		source:  source,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := Status{
		Test:    s.test,
		Running: s.source.IsRunning(),
		Stats:   s.source.CurrentStats(),
		Time:    time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("status server stopped")
	return nil
}
