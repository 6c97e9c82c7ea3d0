package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinelguard/actiongate/internal/domain/shutdown"
	"github.com/sentinelguard/actiongate/internal/service"
)

// Server is the gateway's HTTP façade: POST /v1/validate, GET /healthz,
// GET /readyz, and GET /metrics. It carries no routing or protocol
// concerns beyond that; every decision belongs to the gateway service.
type Server struct {
	server      *http.Server
	coordinator *shutdown.Coordinator
	logger      *slog.Logger
}

// NewServer builds the façade's http.Server, registering reg's collectors
// alongside the gateway's own instruments so /metrics exposes both.
func NewServer(addr string, gateway *service.GatewayService, coordinator *shutdown.Coordinator, reg *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/v1/validate", NewValidateHandler(gateway))
	mux.Handle("/healthz", LivenessHandler())
	mux.Handle("/readyz", ReadinessHandler(coordinator))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	handler := RequestIDMiddleware(logger)(mux)

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
		coordinator: coordinator,
		logger:      logger,
	}
}

// Run starts the façade and blocks until ctx is cancelled, then drains for
// up to drainDeadline before forcing shutdown (spec §4.9's shutdown
// coordinator).
func (s *Server) Run(ctx context.Context, drainDeadline time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting validate façade", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, draining")
	case err := <-errCh:
		return err
	}

	if s.coordinator != nil {
		s.coordinator.Drain()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainDeadline)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during façade shutdown", "error", err)
		return err
	}
	s.logger.Info("façade shutdown complete")
	return nil
}
