package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yourusername/race-predictor/internal/config"
)

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes prediction events as JSON to a Kafka topic,
// keyed by race id so events for one race stay ordered.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewWriter creates a Kafka writer for the configured brokers and topic
func NewWriter(cfg config.EventsConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
	}
}

// NewKafkaPublisher creates a publisher over an existing writer
func NewKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

// NewPublisher returns a Kafka publisher when events are enabled, otherwise a no-op
func NewPublisher(cfg config.EventsConfig) Publisher {
	if !cfg.Enabled {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(NewWriter(cfg), cfg.Topic)
}

func (p *KafkaPublisher) PublishPredictionCompleted(ctx context.Context, e PredictionCompleted) error {
	stamp(&e, time.Now())
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(e.RaceID, 10)),
		Value: b,
		Time:  time.UnixMilli(e.TsUnixMs),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event to %s: %w", e.Type, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
