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

	"github.com/radieske/sports-picks-engine/internal/ingest/quotecache"
	httpapi "github.com/radieske/sports-picks-engine/internal/picks/http"
	picksrepo "github.com/radieske/sports-picks-engine/internal/picks/repo"
	"github.com/radieske/sports-picks-engine/internal/picks/selection"
	"github.com/radieske/sports-picks-engine/internal/picks/ws"
	resultsrepo "github.com/radieske/sports-picks-engine/internal/results/repo"
	sharedcache "github.com/radieske/sports-picks-engine/internal/shared/cache"
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

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	if err := db.EnsureSchema(ctx, pg); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "picks_requests_total", Help: "seleções por resultado"}, []string{"result"})
	picks := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "picks_served_total", Help: "eventos servidos por esporte"}, []string{"sport"})
	prometheus.MustRegister(requests, picks)

	store := picksrepo.NewPostgres(pg, cfg.StartingAttempts)
	engine := selection.New(store, log,
		selection.WithWindow(cfg.SelectionWindow),
		selection.WithOverfetch(cfg.SelectionOverfetch),
		selection.WithSports(cfg.AllowedSports),
		selection.WithHooks(selection.Hooks{
			OnRequest: func(result string) { requests.WithLabelValues(result).Inc() },
			OnPick:    func(sport string) { picks.WithLabelValues(sport).Inc() },
		}),
	)

	// WebSocket: cotações ao vivo vindas do canal Pub/Sub do quote-processor
	hub := ws.NewHub(log, allowOrigin(cfg.CORSOrigins))
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)

	api := &httpapi.API{
		Selector:       engine,
		Users:          store,
		Maintenance:    resultsrepo.NewPostgres(pg),
		Quotes:         quotecache.NewRedisCache(redisClient, cfg.QuoteCacheTTL, cfg.RedisPubSubChannel),
		WS:             hub.HandleWS,
		Log:            log,
		AllowedOrigins: cfg.CORSOrigins,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("picks-service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	}, map[string]http.Handler{"/admin/": api.AdminRouter()})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("picks-service stopped")
}

// allowOrigin aplica a mesma lista do CORS ao upgrade do WebSocket
func allowOrigin(origins []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
