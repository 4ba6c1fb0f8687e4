package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"clipgram/internal/config"
	"clipgram/internal/kafka"
	"clipgram/internal/models"
	"clipgram/internal/storage"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
)

var (
	ErrNotificationNotFound = errors.New("通知不存在")
)

// NotificationEvent defines the structure for Kafka messages carrying notifications.
// EventID 是发布端生成的去重键，消费者重试投递时不会落出重复行。
type NotificationEvent struct {
	EventID     string                  `json:"eventId"`
	RecipientID uint                    `json:"recipientUserId"`
	ActorID     uint                    `json:"actorUserId"`
	Type        models.NotificationType `json:"type"`
	TargetRef   string                  `json:"targetRef,omitempty"`
	Timestamp   time.Time               `json:"timestamp"`
}

// NotificationService defines the interface for notification operations.
type NotificationService interface {
	// Emit 发布一条通知事件。actor 对自己的操作不产生通知。
	Emit(ctx context.Context, recipientID, actorID uint, ntype models.NotificationType, targetRef string) error
	// ProcessNotificationEvent handles incoming notification events from Kafka.
	ProcessNotificationEvent(ctx context.Context, kafkaMsg *confluentKafka.Message) error
	ListNotifications(ctx context.Context, userID uint, limit, offset int) ([]*models.Notification, error)
	DismissNotification(ctx context.Context, userID, notificationID uint) error
	MarkNotificationRead(ctx context.Context, userID, notificationID uint) error
}

type notificationService struct {
	notificationRepo storage.NotificationRepository
	producer         kafka.EventProducer // 为 nil 时事件同步落库（测试或未接 Kafka 的部署）
	kafkaConfig      config.KafkaConfig
}

// NewNotificationService creates a new NotificationService instance.
func NewNotificationService(
	notificationRepo storage.NotificationRepository,
	producer kafka.EventProducer,
	cfg config.KafkaConfig,
) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		producer:         producer,
		kafkaConfig:      cfg,
	}
}

// Emit validates the event and publishes it to Kafka (or persists it directly
// when no producer is configured).
func (s *notificationService) Emit(ctx context.Context, recipientID, actorID uint, ntype models.NotificationType, targetRef string) error {
	if recipientID == actorID {
		// 自己触发的动作不通知自己
		return nil
	}

	eventID, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("生成通知事件ID失败: %w", err)
	}

	event := NotificationEvent{
		EventID:     eventID.String(),
		RecipientID: recipientID,
		ActorID:     actorID,
		Type:        ntype,
		TargetRef:   targetRef,
		Timestamp:   time.Now(),
	}

	if s.producer == nil {
		return s.persistEvent(ctx, &event)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化通知事件失败: %w", err)
	}

	topic := s.kafkaConfig.NotificationsTopic
	key := []byte(fmt.Sprintf("%d", recipientID))

	if err := s.producer.Publish(ctx, topic, key, payload); err != nil {
		log.Printf("Error producing notification event to Kafka topic %s: %v", topic, err)
		return fmt.Errorf("发送通知事件到处理队列失败: %w", err)
	}
	return nil
}

// ProcessNotificationEvent handles incoming notification events from Kafka.
func (s *notificationService) ProcessNotificationEvent(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
	var event NotificationEvent
	if err := json.Unmarshal(kafkaMsg.Value, &event); err != nil {
		log.Printf("Error unmarshalling notification event from Kafka: %v, value: %s", err, string(kafkaMsg.Value))
		return nil // Commit offset for bad message
	}

	if err := s.persistEvent(ctx, &event); err != nil {
		log.Printf("Error saving notification event %s for user %d: %v", event.EventID, event.RecipientID, err)
		return err // Retryable
	}
	return nil
}

// persistEvent 把事件写入通知表。EventID 上的唯一索引配合 DoNothing
// 使重复投递成为无害的空操作。
func (s *notificationService) persistEvent(ctx context.Context, event *NotificationEvent) error {
	notification := &models.Notification{
		RecipientID: event.RecipientID,
		ActorID:     event.ActorID,
		Type:        event.Type,
		TargetRef:   event.TargetRef,
		EventID:     event.EventID,
		CreatedAt:   event.Timestamp,
	}
	return s.notificationRepo.Create(ctx, notification)
}

// ListNotifications returns the user's notifications, newest first.
func (s *notificationService) ListNotifications(ctx context.Context, userID uint, limit, offset int) ([]*models.Notification, error) {
	notifications, err := s.notificationRepo.ListForRecipient(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("获取通知列表失败: %w", err)
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	return notifications, nil
}

// DismissNotification removes a notification owned by the user.
// 删除一条已不存在的通知是空操作，不报错。
func (s *notificationService) DismissNotification(ctx context.Context, userID, notificationID uint) error {
	_, err := s.notificationRepo.DeleteOwned(ctx, notificationID, userID)
	if err != nil {
		return fmt.Errorf("删除通知 %d 失败: %w", notificationID, err)
	}
	return nil
}

// MarkNotificationRead marks a notification owned by the user as read.
func (s *notificationService) MarkNotificationRead(ctx context.Context, userID, notificationID uint) error {
	updated, err := s.notificationRepo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return fmt.Errorf("标记通知 %d 已读失败: %w", notificationID, err)
	}
	if !updated {
		return ErrNotificationNotFound
	}
	return nil
}
