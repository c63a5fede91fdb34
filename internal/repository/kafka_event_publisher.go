package repository

import (
	"context"
	"time"

	"DeepInfo/internal/domain/models"
	domrepo "DeepInfo/internal/domain/repository"
	pkgkafka "DeepInfo/pkg/kafka"
	applogger "DeepInfo/pkg/logger"
)

// ChartEvent is published whenever a session accepts new fetch parameters.
type ChartEvent struct {
	Type       string             `json:"type"`
	SessionID  string             `json:"session_id"`
	Generation uint64             `json:"generation"`
	Params     models.FetchParams `json:"params"`
	At         time.Time          `json:"at"`
}

const EventParamUpdate = "chart.params_updated"

// KafkaEventPublisher sends chart events keyed by session id, and serves as the
// log collector sink.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishParamUpdate(ctx context.Context, sessionID string, generation uint64, params models.FetchParams) error {
	return p.producer.Publish(ctx, p.topic, []byte(sessionID), ChartEvent{
		Type:       EventParamUpdate,
		SessionID:  sessionID,
		Generation: generation,
		Params:     params,
		At:         time.Now().UTC(),
	})
}

// PublishMessage publishes an arbitrary payload on topic.
func (p *KafkaEventPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var (
	_ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
	_ applogger.Publisher    = (*KafkaEventPublisher)(nil)
)
