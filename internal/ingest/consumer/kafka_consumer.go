package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/ingest/publisher"
	"github.com/radieske/sports-picks-engine/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado aqui
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Processor consome registros de mudança do tópico feed_changes e aplica cada um no handler
// (cache Redis de cotações + broadcast). Callbacks de métricas são opcionais.
type Processor struct {
	Log     *zap.Logger
	Reader  MessageReader
	Handler publisher.ChangeHandler

	// métricas por tipo de registro e por fase de erro
	OnConsumed func(kind string)
	OnHandled  func()
	OnError    func(stage string)
}

// Run é o loop principal; retorna quando ctx é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.callError("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		var c events.Change
		if err := json.Unmarshal(m.Value, &c); err != nil || c.Kind == "" {
			p.Log.Warn("invalid change message", zap.ByteString("key", m.Key), zap.Error(err))
			p.callError("decode")
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed(string(c.Kind))
		}

		hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = p.Handler.HandleChange(hctx, c)
		cancel()
		if err != nil {
			// cache é best-effort: a próxima mudança do mesmo evento regrava a chave
			p.Log.Warn("apply change failed", zap.String("kind", string(c.Kind)), zap.String("key", c.Key), zap.Error(err))
			p.callError("handle")
			continue
		}
		if p.OnHandled != nil {
			p.OnHandled()
		}
	}
}

func (p *Processor) callError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
