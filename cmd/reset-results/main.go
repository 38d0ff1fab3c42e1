package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	resultsrepo "github.com/radieske/sports-picks-engine/internal/results/repo"
	"github.com/radieske/sports-picks-engine/internal/shared/config"
	"github.com/radieske/sports-picks-engine/internal/shared/db"
	"github.com/radieske/sports-picks-engine/internal/shared/logger"
)

// reset-results limpa status/results/winning_outcome de todos os eventos para
// que o results-reconciler recalcule tudo no próximo ciclo
func main() {
	cfg := config.Load()
	log, err := logger.New("reset-results", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := resultsrepo.NewPostgres(pg).ResetResults(ctx)
	if err != nil {
		log.Fatal("reset results", zap.Error(err))
	}
	log.Info("results reset", zap.Int64("events", n))
}
