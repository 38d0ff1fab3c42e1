package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/sports-picks-engine/internal/shared/kafka"
	"github.com/radieske/sports-picks-engine/pkg/contracts/events"
)

// messageWriter é o subconjunto do kafka.Writer usado aqui
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publica os registros de mudança do feed-ingest em "feed_changes"
type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

// NewKafkaPublisher cria o publisher para o tópico. Em ambiente local/dev garante
// a existência do tópico via controller do cluster antes de criar o writer.
func NewKafkaPublisher(brokers, topic, env string, log *zap.Logger) (*KafkaPublisher, error) {
	if strings.TrimSpace(brokers) == "" {
		return nil, fmt.Errorf("kafka brokers not provided")
	}

	if env == "local" || env == "dev" {
		if err := ensureTopic(brokers, topic); err != nil {
			log.Warn("failed to ensure kafka topic", zap.String("topic", topic), zap.Error(err))
		}
	}

	return &KafkaPublisher{
		writer: sharedkafka.NewWriter(brokers, topic),
		log:    log,
	}, nil
}

// ensureTopic cria o tópico com 1 partição/1 réplica (compatível com single-broker)
func ensureTopic(brokers, topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := strings.TrimSpace(strings.Split(brokers, ",")[0])
	conn, err := kafka.DialContext(ctx, "tcp", first)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}

	cconn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cconn.Close()

	err = cconn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

// Publish serializa o registro em JSON; a chave é o id do objeto, então
// mudanças do mesmo evento ficam ordenadas na mesma partição
func (p *KafkaPublisher) Publish(ctx context.Context, c events.Change) error {
	value, err := json.Marshal(c)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(c.Key),
		Value: value,
		Time:  c.EmittedAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s change: %w", c.Kind, err)
	}

	p.log.Debug("published feed change", zap.String("kind", string(c.Kind)), zap.String("key", c.Key))
	return nil
}

// HandleChange permite usar o publisher como destino do Forward
func (p *KafkaPublisher) HandleChange(ctx context.Context, c events.Change) error {
	return p.Publish(ctx, c)
}

// Close finaliza o writer e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
