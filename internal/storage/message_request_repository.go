package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"clipgram/internal/models"
)

// MessageRequestRepository defines the interface for message request data operations.
type MessageRequestRepository interface {
	Create(ctx context.Context, request *models.MessageRequest) error
	GetByID(ctx context.Context, requestID uint) (*models.MessageRequest, error)
	// FindBetween 查找 sender → recipient 方向上的请求（任意状态）。
	FindBetween(ctx context.Context, senderID, recipientID uint) (*models.MessageRequest, error)
	UpdateStatus(ctx context.Context, requestID uint, status models.MessageRequestStatus) error
	ListPendingForRecipient(ctx context.Context, recipientID uint) ([]models.MessageRequest, error)
}

type gormMessageRequestRepository struct {
	db *gorm.DB
}

// NewGormMessageRequestRepository creates a new GORM-based MessageRequestRepository.
func NewGormMessageRequestRepository(db *gorm.DB) MessageRequestRepository {
	return &gormMessageRequestRepository{db: db}
}

func (r *gormMessageRequestRepository) Create(ctx context.Context, request *models.MessageRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *gormMessageRequestRepository) GetByID(ctx context.Context, requestID uint) (*models.MessageRequest, error) {
	var request models.MessageRequest
	err := r.db.WithContext(ctx).First(&request, requestID).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// FindBetween 方向敏感：a→b 和 b→a 是两条独立的请求。
// 查不到不算错误，返回 (nil, nil)。
func (r *gormMessageRequestRepository) FindBetween(ctx context.Context, senderID, recipientID uint) (*models.MessageRequest, error) {
	var request models.MessageRequest
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND recipient_id = ?", senderID, recipientID).
		First(&request).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *gormMessageRequestRepository) UpdateStatus(ctx context.Context, requestID uint, status models.MessageRequestStatus) error {
	return r.db.WithContext(ctx).Model(&models.MessageRequest{}).Where("id = ?", requestID).Update("status", status).Error
}

func (r *gormMessageRequestRepository) ListPendingForRecipient(ctx context.Context, recipientID uint) ([]models.MessageRequest, error) {
	var requests []models.MessageRequest
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", recipientID, models.MessageRequestStatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}
