package kafka

import (
	"context"
	"fmt"
	"log"
	"strings"

	"clipgram/internal/config"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// EventHandler processes one consumed message. Returning an error leaves the
// offset uncommitted so the message is redelivered.
type EventHandler func(ctx context.Context, msg *kafka.Message) error

// EventConsumer runs a blocking poll loop over a set of topics.
type EventConsumer interface {
	Run(ctx context.Context, topics []string, groupID string, handler EventHandler) error
	Close()
}

type eventConsumer struct {
	cfg      config.KafkaConfig
	consumer *kafka.Consumer
	groupID  string
}

// NewEventConsumer returns a consumer bound to cfg. The underlying Kafka
// consumer is created in Run, once the group ID is known.
func NewEventConsumer(cfg config.KafkaConfig) (EventConsumer, error) {
	return &eventConsumer{cfg: cfg}, nil
}

// Run subscribes to topics and polls until ctx is canceled or a fatal broker
// error occurs. Offsets 手动提交：handler 成功返回后才前移。
func (c *eventConsumer) Run(ctx context.Context, topics []string, groupID string, handler EventHandler) error {
	if len(topics) == 0 {
		return fmt.Errorf("kafka consumer: no topics to subscribe")
	}
	c.groupID = groupID

	cm := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(c.cfg.Brokers, ","),
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": "false",
		"security.protocol":  c.cfg.Protocol,
	}
	if c.cfg.ClientID != "" {
		_ = cm.SetKey("client.id", c.cfg.ClientID)
	}

	consumer, err := kafka.NewConsumer(cm)
	if err != nil {
		return fmt.Errorf("kafka consumer: create for group %s: %w", groupID, err)
	}
	c.consumer = consumer

	if err := consumer.SubscribeTopics(topics, nil); err != nil {
		_ = consumer.Close()
		return fmt.Errorf("kafka consumer: subscribe %v: %w", topics, err)
	}
	log.Printf("kafka consumer: group %s subscribed to %v", groupID, topics)

	for {
		select {
		case <-ctx.Done():
			log.Printf("kafka consumer: group %s shutting down", groupID)
			return nil
		default:
		}

		ev := consumer.Poll(1000)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := handler(ctx, e); err != nil {
				// 不提交 offset，等待重投
				log.Printf("kafka consumer: handler failed at %s[%d]@%v: %v",
					*e.TopicPartition.Topic, e.TopicPartition.Partition, e.TopicPartition.Offset, err)
				continue
			}
			if _, err := consumer.CommitMessage(e); err != nil {
				log.Printf("kafka consumer: commit %s@%v: %v",
					*e.TopicPartition.Topic, e.TopicPartition.Offset, err)
			}
		case kafka.Error:
			log.Printf("kafka consumer: group %s error: %v (fatal=%t)", groupID, e, e.IsFatal())
			if e.IsFatal() {
				return e
			}
		case kafka.AssignedPartitions:
			_ = consumer.Assign(e.Partitions)
		case kafka.RevokedPartitions:
			_ = consumer.Unassign()
		}
	}
}

// Close releases the underlying consumer if Run created one.
func (c *eventConsumer) Close() {
	if c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		log.Printf("kafka consumer: close group %s: %v", c.groupID, err)
	}
	c.consumer = nil
}
