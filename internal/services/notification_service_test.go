package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"clipgram/internal/models"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitToSelfIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")

	require.NoError(t, env.notifications.Emit(context.Background(), alice.ID, alice.ID, models.NotificationTypeLike, ""))
	assert.Empty(t, env.notificationsFor(t, alice.ID))
}

func TestProcessNotificationEventDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	event := NotificationEvent{
		EventID:     "e1f7c8aa-0000-0000-0000-000000000001",
		RecipientID: bob.ID,
		ActorID:     alice.ID,
		Type:        models.NotificationTypeFollow,
		Timestamp:   time.Now(),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	kafkaMsg := &confluentKafka.Message{Value: payload}

	// 同一事件重复投递只落一行
	require.NoError(t, env.notifications.ProcessNotificationEvent(ctx, kafkaMsg))
	require.NoError(t, env.notifications.ProcessNotificationEvent(ctx, kafkaMsg))

	notifications := env.notificationsFor(t, bob.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, alice.ID, notifications[0].ActorID)
}

func TestProcessNotificationEventSkipsBadPayload(t *testing.T) {
	env := newTestEnv(t)
	kafkaMsg := &confluentKafka.Message{Value: []byte("not json")}

	// 格式错误的消息直接跳过，提交 offset
	require.NoError(t, env.notifications.ProcessNotificationEvent(context.Background(), kafkaMsg))
}

func TestDismissNotificationIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	// 删除不存在的通知不报错
	require.NoError(t, env.notifications.DismissNotification(ctx, bob.ID, 12345))

	require.NoError(t, env.notifications.Emit(ctx, bob.ID, alice.ID, models.NotificationTypeFollow, ""))
	notifications := env.notificationsFor(t, bob.ID)
	require.Len(t, notifications, 1)

	require.NoError(t, env.notifications.DismissNotification(ctx, bob.ID, notifications[0].ID))
	require.NoError(t, env.notifications.DismissNotification(ctx, bob.ID, notifications[0].ID))
	assert.Empty(t, env.notificationsFor(t, bob.ID))
}

func TestDismissOnlyOwnNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	require.NoError(t, env.notifications.Emit(ctx, bob.ID, alice.ID, models.NotificationTypeFollow, ""))
	notifications := env.notificationsFor(t, bob.ID)
	require.Len(t, notifications, 1)

	// alice 不能删除 bob 的通知；对她而言该通知等同不存在
	require.NoError(t, env.notifications.DismissNotification(ctx, alice.ID, notifications[0].ID))
	assert.Len(t, env.notificationsFor(t, bob.ID), 1)
}

func TestMarkNotificationRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	err := env.notifications.MarkNotificationRead(ctx, bob.ID, 999)
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	require.NoError(t, env.notifications.Emit(ctx, bob.ID, alice.ID, models.NotificationTypeFollow, ""))
	notifications := env.notificationsFor(t, bob.ID)
	require.Len(t, notifications, 1)
	assert.False(t, notifications[0].IsRead)

	require.NoError(t, env.notifications.MarkNotificationRead(ctx, bob.ID, notifications[0].ID))

	notifications = env.notificationsFor(t, bob.ID)
	require.Len(t, notifications, 1)
	assert.True(t, notifications[0].IsRead)
}
