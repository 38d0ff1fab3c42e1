package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/ingest/feed"
	"github.com/radieske/sports-picks-engine/internal/ingest/filter"
	"github.com/radieske/sports-picks-engine/internal/ingest/publisher"
	"github.com/radieske/sports-picks-engine/internal/ingest/repo"
	"github.com/radieske/sports-picks-engine/internal/ingest/stream"
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres: destino write-once dos eventos admitidos
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	if err := db.EnsureSchema(ctx, pg); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	// Kafka: registros de mudança para o quote-processor
	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))
	pub, err := publisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.TopicFeedChanges, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer pub.Close()

	// Métricas Prometheus do ciclo de polling
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "feed_ingest_cycles_total", Help: "ciclos de polling por resultado"}, []string{"result"})
	changed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "feed_ingest_changes_total", Help: "registros alterados por tipo"}, []string{"kind"})
	persisted := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_ingest_events_persisted_total", Help: "eventos gravados no banco"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "feed_ingest_errors_total", Help: "erros por estágio"}, []string{"stage"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_ingest_changes_dropped_total", Help: "mudanças descartadas com o buffer cheio"})
	version := prometheus.NewGauge(prometheus.GaugeOpts{Name: "feed_ingest_version", Help: "cursor de versão corrente"})
	prometheus.MustRegister(cycles, changed, persisted, errorsBy, dropped, version)

	client := feed.NewClient(cfg.FeedBaseURL,
		feed.WithTimeout(cfg.FeedTimeout),
		feed.WithRateLimit(cfg.FeedRateLimit, 1),
		feed.WithLang(cfg.FeedLang),
		feed.WithScopeMarket(cfg.FeedScopeMarket),
	)

	st := stream.New(client, repo.NewPostgresRepo(pg), filter.New(cfg.AllowedSports), log,
		stream.WithInterval(cfg.FeedPollInterval),
		stream.WithFetchTimeout(cfg.FeedTimeout),
		stream.WithHooks(stream.Hooks{
			OnCycle:     func(result string) { cycles.WithLabelValues(result).Inc() },
			OnChanged:   func(kind string) { changed.WithLabelValues(kind).Inc() },
			OnPersisted: func(n int) { persisted.Add(float64(n)) },
			OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
			OnVersion:   func(v int64) { version.Set(float64(v)) },
			OnDropped:   func() { dropped.Inc() },
		}),
	)

	// Metrics, health e snapshot de diagnóstico
	srv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	}, map[string]http.Handler{"/snapshot": st.SnapshotHandler()})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	go publisher.Forward(ctx, st.Changes(), log,
		func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
		publisher.Target{Name: "kafka", Handler: pub},
	)

	st.Start()
	log.Info("feed-ingest started", zap.Duration("interval", cfg.FeedPollInterval), zap.Strings("sports", cfg.AllowedSports))

	<-ctx.Done()
	log.Info("shutdown signal received")
	st.Stop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("feed-ingest stopped")
}
