// Package broker publishes activity records to Kafka for downstream
// consumers such as reporting and search.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"opsdesk/internal/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer struct {
	log   *zap.Logger
	w     *kafka.Writer
	topic string
}

func NewProducer(log *zap.Logger, brokers []string, topic string) *Producer {
	log = log.Named("kafka").With(zap.String("topic", topic))
	sugar := log.Sugar()

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		Logger:                 kafka.LoggerFunc(sugar.Debugf),
		ErrorLogger:            kafka.LoggerFunc(sugar.Errorf),
		AllowAutoTopicCreation: true,
	}

	return &Producer{log: log, w: w, topic: topic}
}

// ActivityEvent is the wire shape of an activity record.
type ActivityEvent struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id,omitempty"`
	ActorEmail  string    `json:"actor_email"`
	ActionType  string    `json:"action_type"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	EntityName  string    `json:"entity_name,omitempty"`
	Description string    `json:"description"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PublishActivity enqueues the record and returns; write errors surface
// through the error logger only.
func (p *Producer) PublishActivity(ctx context.Context, entry model.ActivityLog) {
	msg, err := p.message(entry)
	if err != nil {
		p.log.Error("marshal activity event", zap.Error(err))
		return
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.log.Error("write kafka message", zap.Error(err))
	}
}

// message keys by entity so events about one entity stay ordered within a
// partition.
func (p *Producer) message(entry model.ActivityLog) (kafka.Message, error) {
	ev := ActivityEvent{
		ID:          entry.ID.String(),
		ActorEmail:  entry.ActorEmail,
		ActionType:  entry.ActionType,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		EntityName:  entry.EntityName,
		Description: entry.Description,
		Comment:     entry.Comment,
		CreatedAt:   entry.CreatedAt,
	}
	if entry.ActorID != nil {
		ev.ActorID = entry.ActorID.String()
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: p.topic,
		Key:   []byte(fmt.Sprintf("%s:%s", entry.EntityType, entry.EntityID)),
		Value: b,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(entry.ActionType)},
		},
	}, nil
}

func (p *Producer) Close() {
	if err := p.w.Close(); err != nil {
		p.log.Error("close kafka writer", zap.Error(err))
	}
}

// Noop drops every record. It stands in when no brokers are configured.
type Noop struct{}

func (Noop) PublishActivity(context.Context, model.ActivityLog) {}

func (Noop) Close() {}
