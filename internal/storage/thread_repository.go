package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"clipgram/internal/models"
)

// ThreadRepository 定义了会话数据操作的接口。
type ThreadRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Thread, error)
	// FindByPairKey 按规范化键查找两人会话；查不到返回 (nil, nil)。
	FindByPairKey(ctx context.Context, pairKey string) (*models.Thread, error)
	// CreateWithParticipants 创建会话及其两条参与者记录。
	// 调用方负责把它放进事务里；PairKey 唯一索引冲突以 gorm.ErrDuplicatedKey 返回。
	CreateWithParticipants(ctx context.Context, thread *models.Thread, userID1, userID2 uint) error
	GetParticipant(ctx context.Context, threadID uint, userID uint) (*models.ThreadParticipant, error)
	GetParticipants(ctx context.Context, threadID uint) ([]*models.ThreadParticipant, error)
	// ListForUser 返回用户参与的会话，按最近活跃排序。
	ListForUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Thread, error)
	// Touch 把会话的 updated_at 提到 now，用于收件箱排序。
	Touch(ctx context.Context, threadID uint, now time.Time) error

	// GetDB 返回底层数据库连接，用于事务操作
	GetDB() *gorm.DB
}

// gormThreadRepository 使用 GORM 实现 ThreadRepository。
type gormThreadRepository struct {
	db *gorm.DB
}

// NewGormThreadRepository 创建一个新的基于 GORM 的 ThreadRepository。
func NewGormThreadRepository(db *gorm.DB) ThreadRepository {
	return &gormThreadRepository{db: db}
}

func (r *gormThreadRepository) GetByID(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	err := r.db.WithContext(ctx).First(&thread, id).Error
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *gormThreadRepository) FindByPairKey(ctx context.Context, pairKey string) (*models.Thread, error) {
	var thread models.Thread
	err := r.db.WithContext(ctx).Where("pair_key = ?", pairKey).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

// CreateWithParticipants 创建会话和参与者。PairKey 的唯一索引是去重的最终防线：
// 两个用户同时首次互发消息时，输掉竞争的一方会收到 gorm.ErrDuplicatedKey，
// 由服务层重新查找获胜方创建的会话。
func (r *gormThreadRepository) CreateWithParticipants(ctx context.Context, thread *models.Thread, userID1, userID2 uint) error {
	if err := r.db.WithContext(ctx).Create(thread).Error; err != nil {
		return err
	}

	now := time.Now()
	participants := []models.ThreadParticipant{
		{ThreadID: thread.ID, UserID: userID1, JoinedAt: now},
		{ThreadID: thread.ID, UserID: userID2, JoinedAt: now},
	}
	return r.db.WithContext(ctx).Create(&participants).Error
}

func (r *gormThreadRepository) GetParticipant(ctx context.Context, threadID uint, userID uint) (*models.ThreadParticipant, error) {
	var participant models.ThreadParticipant
	err := r.db.WithContext(ctx).Where("thread_id = ? AND user_id = ?", threadID, userID).First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *gormThreadRepository) GetParticipants(ctx context.Context, threadID uint) ([]*models.ThreadParticipant, error) {
	var participants []*models.ThreadParticipant
	err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).Find(&participants).Error
	return participants, err
}

// ListForUser 连接 thread_participants 表，按会话更新时间倒序。
func (r *gormThreadRepository) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Thread, error) {
	var threads []*models.Thread
	query := r.db.WithContext(ctx).
		Joins("JOIN thread_participants tp ON tp.thread_id = threads.id").
		Where("tp.user_id = ?", userID).
		Order("threads.updated_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&threads).Error
	return threads, err
}

func (r *gormThreadRepository) Touch(ctx context.Context, threadID uint, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Thread{}).
		Where("id = ?", threadID).
		Update("updated_at", now).Error
}

// GetDB 返回底层数据库连接，用于事务操作
func (r *gormThreadRepository) GetDB() *gorm.DB {
	return r.db
}
