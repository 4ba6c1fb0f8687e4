package kafka

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"clipgram/internal/config"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// EventProducer publishes serialized events to a Kafka topic.
// 调用方负责序列化，producer 只管投递。
type EventProducer interface {
	Publish(ctx context.Context, topic string, key, payload []byte) error
	Close()
}

type eventProducer struct {
	producer *kafka.Producer
}

// NewEventProducer connects to the brokers in cfg and returns a producer
// that waits for the delivery report on every Publish.
func NewEventProducer(cfg config.KafkaConfig) (EventProducer, error) {
	cm := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"security.protocol": cfg.Protocol,
	}
	if cfg.ClientID != "" {
		_ = cm.SetKey("client.id", cfg.ClientID)
	}

	p, err := kafka.NewProducer(cm)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return &eventProducer{producer: p}, nil
}

// Publish enqueues one message and blocks until the broker acks it or ctx
// is canceled. Produce 只报本地错误（如队列满），真正的投递结果走 delivery channel。
func (p *eventProducer) Publish(ctx context.Context, topic string, key, payload []byte) error {
	delivery := make(chan kafka.Event, 1)
	defer close(delivery)

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          payload,
		Timestamp:      time.Now(),
	}
	if err := p.producer.Produce(msg, delivery); err != nil {
		return fmt.Errorf("kafka producer: enqueue to %s: %w", topic, err)
	}

	select {
	case ev := <-delivery:
		report, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("kafka producer: unexpected delivery event %T", ev)
		}
		if report.TopicPartition.Error != nil {
			return fmt.Errorf("kafka producer: deliver to %s: %w", topic, report.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("kafka producer: waiting for delivery report on %s: %w", topic, ctx.Err())
	}
}

// Close flushes outstanding messages (up to 15s) and releases the producer.
func (p *eventProducer) Close() {
	if p.producer == nil {
		return
	}
	if remaining := p.producer.Flush(15 * 1000); remaining > 0 {
		log.Printf("kafka producer: %d messages unflushed at close", remaining)
	}
	p.producer.Close()
}
