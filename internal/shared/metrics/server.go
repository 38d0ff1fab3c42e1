package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthFunc func(ctx context.Context) error

// StartMetricsServer sobe um servidor HTTP leve só pra /metrics e /healthz.
// extra permite pendurar rotas de diagnóstico (ex.: /snapshot no feed-ingest).
func StartMetricsServer(port string, healthFn HealthFunc, extra map[string]http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewMux(healthFn, extra),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}

// NewMux monta as rotas de métricas/health sem subir o servidor
func NewMux(healthFn HealthFunc, extra map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if healthFn != nil {
			if err := healthFn(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	for path, h := range extra {
		mux.Handle(path, h)
	}

	return mux
}
