package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server is the monitoring-mode status endpoint: /metrics in Prometheus
// text format and /healthz as JSON. It is only bound while the monitor loop
// runs; one-shot invocations never open a listener.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer wires the status endpoint on the given port.
func NewServer(port uint16, metrics *Metrics, health *HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           Routes(metrics, health),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the endpoint mux. Exposed separately so tests can drive the
// handlers without binding a port.
func Routes(metrics *Metrics, health *HealthChecker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := health.Status()
		w.Header().Set("Content-Type", "application/json")
		if !st.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(st)
	})
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully. A clean
// shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	s.logger.Info("status endpoint listening", zap.String("addr", s.srv.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status endpoint shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status endpoint: %w", err)
	}
}
