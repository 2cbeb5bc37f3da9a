package bootstrap

import (
	"errors"
	"net/http"

	"shrike/util/goroutine"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StartMetricsServer exposes /metrics on the configured address. The
// server runs on its own goroutine; the caller shuts it down via
// http.Server.Shutdown.
func StartMetricsServer(listen string, sugar *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    listen,
		Handler: mux,
	}

	goroutine.Go("metrics-server", sugar, func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Errorf("Metrics server failed: %v", err)
		}
	})

	sugar.Infof("Metrics endpoint listening on http://%s/metrics", listen)
	return server
}
