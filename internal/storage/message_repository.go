package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"clipgram/internal/models"
)

// MessageRepository 定义了消息数据操作的接口。
// 消息创建后不可修改，所以没有 Update/Delete。
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// ListByThread 按时间倒序返回会话消息，created_at 相同时按 id 倒序。
	ListByThread(ctx context.Context, threadID uint, limit, offset int) ([]*models.Message, error)
	// LatestInThread 返回会话中最近的一条消息；没有消息时返回 (nil, nil)。
	LatestInThread(ctx context.Context, threadID uint) (*models.Message, error)
}

// gormMessageRepository 使用 GORM 实现 MessageRepository。
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建一个新的基于 GORM 的 MessageRepository。
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *gormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).First(&message, id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListByThread 分页读取消息。排序键固定为 (created_at DESC, id DESC)，
// 保证跨分页窗口的顺序一致。
func (r *gormMessageRepository) ListByThread(ctx context.Context, threadID uint, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	query := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC").
		Order("id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *gormMessageRepository) LatestInThread(ctx context.Context, threadID uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC").
		Order("id DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}
