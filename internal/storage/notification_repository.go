package storage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clipgram/internal/models"
)

// NotificationRepository defines the interface for notification data operations.
type NotificationRepository interface {
	// Create 以 event_id 去重：消费者重复投递同一事件时不会写入第二行。
	Create(ctx context.Context, notification *models.Notification) error
	ListForRecipient(ctx context.Context, recipientID uint, limit, offset int) ([]*models.Notification, error)
	// DeleteOwned 只删除属于 recipientID 的通知；返回是否真正删除了行。
	DeleteOwned(ctx context.Context, notificationID, recipientID uint) (bool, error)
	// MarkRead 只更新属于 recipientID 的通知；返回是否命中了行。
	MarkRead(ctx context.Context, notificationID, recipientID uint) (bool, error)
}

type gormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GORM-based NotificationRepository.
func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(notification).Error
}

func (r *gormNotificationRepository) ListForRecipient(ctx context.Context, recipientID uint, limit, offset int) ([]*models.Notification, error) {
	var notifications []*models.Notification
	query := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Order("id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&notifications).Error
	return notifications, err
}

func (r *gormNotificationRepository) DeleteOwned(ctx context.Context, notificationID, recipientID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", notificationID, recipientID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormNotificationRepository) MarkRead(ctx context.Context, notificationID, recipientID uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", notificationID, recipientID).
		Update("is_read", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
