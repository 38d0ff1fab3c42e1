package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/ingest/consumer"
	"github.com/radieske/sports-picks-engine/internal/ingest/quotecache"
	sharedcache "github.com/radieske/sports-picks-engine/internal/shared/cache"
	sharedkafka "github.com/radieske/sports-picks-engine/internal/shared/kafka"
	"github.com/radieske/sports-picks-engine/internal/shared/config"
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

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Cache da cotação corrente + broadcast no canal Pub/Sub lido pelo picks-service
	rcache := quotecache.NewRedisCache(redisClient, cfg.QuoteCacheTTL, cfg.RedisPubSubChannel)

	// Consumer group: cada partição (chave = evento) é lida em ordem
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  sharedkafka.SplitBrokers(cfg.KafkaBrokers),
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.TopicFeedChanges,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "quote_proc_messages_consumed_total", Help: "mensagens consumidas por tipo"}, []string{"kind"})
	handled := prometheus.NewCounter(prometheus.CounterOpts{Name: "quote_proc_cache_writes_total", Help: "mudanças aplicadas no cache"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "quote_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, handled, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Handler:    rcache,
		OnConsumed: func(kind string) { consumed.WithLabelValues(kind).Inc() },
		OnHandled:  func() { handled.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}, nil)
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("quote-processor started", zap.String("topic", cfg.TopicFeedChanges), zap.String("group", cfg.KafkaGroupID))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("quote-processor stopped")
}
