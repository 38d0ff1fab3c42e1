package publisher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/pkg/contracts/events"
)

// ChangeHandler consome registros de mudança (Kafka, cache Redis, ...)
type ChangeHandler interface {
	HandleChange(ctx context.Context, c events.Change) error
}

// Target é um destino nomeado; o nome vira o label "stage" das métricas de erro
type Target struct {
	Name    string
	Handler ChangeHandler
}

// Forward lê o canal de mudanças do stream e entrega cada registro a todos os destinos.
// Falha em um destino é logada e contada, nunca interrompe os demais.
// Retorna quando ctx termina ou o canal é fechado.
func Forward(ctx context.Context, in <-chan events.Change, log *zap.Logger, onError func(stage string), targets ...Target) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-in:
			if !ok {
				return
			}
			for _, t := range targets {
				hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := t.Handler.HandleChange(hctx, c)
				cancel()
				if err != nil {
					log.Warn("forward change failed",
						zap.String("target", t.Name),
						zap.String("kind", string(c.Kind)),
						zap.String("key", c.Key),
						zap.Error(err),
					)
					if onError != nil {
						onError(t.Name)
					}
				}
			}
		}
	}
}
