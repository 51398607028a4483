package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/matheus3301/tgtriage/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsServer exposes the Prometheus registry over HTTP. It is a no-op
// when daemon.metrics_addr is empty.
type MetricsServer struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewMetricsServer(cfg *config.Config, logger *zap.Logger) *MetricsServer {
	ms := &MetricsServer{logger: logger}
	if cfg.Daemon.MetricsAddr == "" {
		return ms
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	ms.srv = &http.Server{
		Addr:              cfg.Daemon.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ms
}

func (m *MetricsServer) Start() {
	if m.srv == nil {
		return
	}
	m.logger.Info("metrics server starting", zap.String("addr", m.srv.Addr))
	go func() {
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

func (m *MetricsServer) Stop(ctx context.Context) {
	if m.srv == nil {
		return
	}
	_ = m.srv.Shutdown(ctx)
}
