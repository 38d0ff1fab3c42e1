package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/shared/config"
	"github.com/radieske/sports-picks-engine/internal/shared/logger"
	"github.com/radieske/sports-picks-engine/internal/shared/metrics"
	"github.com/radieske/sports-picks-engine/internal/simulator"
)

// Métricas Prometheus para monitoramento de conexões, mensagens e versão
var (
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simulator_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
	packetVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simulator_packet_version",
		Help: "Versão corrente do pacote",
	})
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_http_requests_total",
		Help: "Requisições por endpoint",
	}, []string{"endpoint"})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent, packetVersion, httpRequests)

	loc, err := time.LoadLocation(cfg.ResultsTimezone)
	if err != nil {
		log.Fatal("load results timezone", zap.String("tz", cfg.ResultsTimezone), zap.Error(err))
	}

	sim := simulator.New(
		simulator.WithFailureRate(cfg.SimulatorFailureRate),
		simulator.WithHooks(simulator.Hooks{
			OnTick:    func(v int64) { packetVersion.Set(float64(v)) },
			OnRequest: func(endpoint string) { httpRequests.WithLabelValues(endpoint).Inc() },
		}),
	)
	hub := simulator.NewHub(log, simulator.HubHooks{
		OnConnect:    wsConnections.Inc,
		OnDisconnect: wsConnections.Dec,
		OnSent:       wsMessagesSent.Inc,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Avança a linha e envia o delta para os clientes WS a cada 3 segundos
	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hub.Broadcast(sim.Tick())
			}
		}
	}()

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, nil)
	log.Info("feed simulator (metrics) running", zap.String("port", cfg.MetricsPort), zap.String("paths", "/healthz,/metrics"))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           (&simulator.Server{Sim: sim, Hub: hub, Log: log, Loc: loc}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("feed simulator (public) running",
			zap.String("port", cfg.HTTPPort),
			zap.String("paths", "/events/list,/results/v2/getByDate,/ws"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("feed simulator stopped")
}
