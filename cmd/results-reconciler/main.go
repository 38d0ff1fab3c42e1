package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/results/client"
	"github.com/radieske/sports-picks-engine/internal/results/reconciler"
	resultsrepo "github.com/radieske/sports-picks-engine/internal/results/repo"
	"github.com/radieske/sports-picks-engine/internal/shared/config"
	"github.com/radieske/sports-picks-engine/internal/shared/db"
	"github.com/radieske/sports-picks-engine/internal/shared/logger"
	"github.com/radieske/sports-picks-engine/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Datas do feed de resultados são calendário do fuso do provedor
	loc, err := time.LoadLocation(cfg.ResultsTimezone)
	if err != nil {
		log.Fatal("load results timezone", zap.String("tz", cfg.ResultsTimezone), zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	if err := db.EnsureSchema(ctx, pg); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "results_cycles_total", Help: "ciclos de reconciliação por resultado"}, []string{"result"})
	updates := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "results_updates_total", Help: "campos atualizados"}, []string{"field"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "results_skipped_total", Help: "eventos ignorados por motivo"}, []string{"reason"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "results_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(cycles, updates, skipped, errorsBy)

	rc := reconciler.New(
		client.NewClient(cfg.ResultsBaseURL, client.WithTimeout(cfg.FeedTimeout)),
		resultsrepo.NewPostgres(pg),
		log,
		reconciler.WithLocation(loc),
		reconciler.WithInterval(cfg.ResultsPollInterval),
		reconciler.WithHooks(reconciler.Hooks{
			OnCycle:   func(result string) { cycles.WithLabelValues(result).Inc() },
			OnUpdate:  func(field string) { updates.WithLabelValues(field).Inc() },
			OnSkipped: func(reason string) { skipped.WithLabelValues(reason).Inc() },
			OnError:   func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
		}),
	)

	srv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	}, nil)
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	log.Info("results-reconciler started", zap.Duration("interval", cfg.ResultsPollInterval), zap.String("tz", loc.String()))
	rc.Run(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("results-reconciler stopped")
}
