package services

import (
	"context"
	"fmt"
	"testing"

	"clipgram/internal/config"
	"clipgram/internal/models"
	"clipgram/internal/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 打开内存 SQLite 并迁移全部表。
// TranslateError 必须开启：去重逻辑依赖 gorm.ErrDuplicatedKey。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrateTables(db))
	return db
}

// testEnv 把一套完整的服务连到同一个内存数据库上。
// Kafka 生产者为 nil，通知走同步落库路径；缓存不启用。
type testEnv struct {
	db              *gorm.DB
	userRepo        storage.UserRepository
	followRepo      storage.FollowRepository
	requestRepo     storage.MessageRequestRepository
	threadRepo      storage.ThreadRepository
	messageRepo     storage.MessageRepository
	notifRepo       storage.NotificationRepository
	notifications   NotificationService
	follows         FollowService
	messageRequests MessageRequestService
	threads         ThreadService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	env := &testEnv{
		db:          db,
		userRepo:    storage.NewGormUserRepository(db),
		followRepo:  storage.NewGormFollowRepository(db),
		requestRepo: storage.NewGormMessageRequestRepository(db),
		threadRepo:  storage.NewGormThreadRepository(db),
		messageRepo: storage.NewGormMessageRepository(db),
		notifRepo:   storage.NewGormNotificationRepository(db),
	}
	env.notifications = NewNotificationService(env.notifRepo, nil, config.KafkaConfig{})
	env.follows = NewFollowService(env.userRepo, env.followRepo, nil, env.notifications)
	env.messageRequests = NewMessageRequestService(db, env.userRepo, env.requestRepo, env.followRepo, env.threadRepo, NewPassthroughReviewer(), env.notifications)
	env.threads = NewThreadService(db, env.userRepo, env.threadRepo, env.messageRepo, env.followRepo)
	return env
}

// createUser 写入一个测试用户并返回它。
func (env *testEnv) createUser(t *testing.T, handle string) *models.User {
	t.Helper()
	user := &models.User{
		Handle:       models.NormalizeHandle(handle),
		Email:        fmt.Sprintf("%s@example.com", models.NormalizeHandle(handle)),
		PasswordHash: "x",
	}
	require.NoError(t, env.userRepo.Create(context.Background(), user))
	return user
}

// makeMutual 建立双向关注。
func (env *testEnv) makeMutual(t *testing.T, a, b *models.User) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.follows.Follow(ctx, a.ID, b.Handle))
	require.NoError(t, env.follows.Follow(ctx, b.ID, a.Handle))
}

// notificationsFor 返回某个用户当前的全部通知。
func (env *testEnv) notificationsFor(t *testing.T, userID uint) []*models.Notification {
	t.Helper()
	notifications, err := env.notifications.ListNotifications(context.Background(), userID, 0, 0)
	require.NoError(t, err)
	return notifications
}
