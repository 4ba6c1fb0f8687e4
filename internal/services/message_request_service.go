package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"clipgram/internal/models"
	"clipgram/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrSelfMessageRequest  = errors.New("不能向自己发送私信请求")
	ErrMutualFollowers     = errors.New("互相关注的用户可以直接发起会话，无需请求")
	ErrRequestPending      = errors.New("已存在待处理的私信请求")
	ErrRequestDeclined     = errors.New("私信请求已被拒绝，不能重新发送")
	ErrRequestNotFound     = errors.New("私信请求不存在")
	ErrNotRequestRecipient = errors.New("您不是此私信请求的接收者")
	ErrRequestResolved     = errors.New("该私信请求已被处理")
	ErrThreadAlreadyExists = errors.New("你们之间已存在会话")
)

// MessageRequestService defines the interface for message request operations.
// 私信请求是非互关用户之间首次联系的准入网关：接收方接受后才建立会话，
// 请求内容成为会话的第一条消息。
type MessageRequestService interface {
	SubmitRequest(ctx context.Context, senderID uint, recipientHandle string, content string) (*models.MessageRequest, error)
	// RespondToRequest 接受或拒绝一条待处理请求。接受时返回建立的会话。
	RespondToRequest(ctx context.Context, recipientID, requestID uint, accept bool) (*models.Thread, error)
	ListIncomingRequests(ctx context.Context, recipientID uint) ([]*models.MessageRequestWithSender, error)
}

type messageRequestService struct {
	db          *gorm.DB // 接受请求时的事务入口
	userRepo    storage.UserRepository
	requestRepo storage.MessageRequestRepository
	followRepo  storage.FollowRepository
	threadRepo  storage.ThreadRepository
	reviewer    ContentReviewer
	notifier    NotificationService
}

// NewMessageRequestService creates a new MessageRequestService instance.
func NewMessageRequestService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	requestRepo storage.MessageRequestRepository,
	followRepo storage.FollowRepository,
	threadRepo storage.ThreadRepository,
	reviewer ContentReviewer,
	notifier NotificationService,
) MessageRequestService {
	return &messageRequestService{
		db:          db,
		userRepo:    userRepo,
		requestRepo: requestRepo,
		followRepo:  followRepo,
		threadRepo:  threadRepo,
		reviewer:    reviewer,
		notifier:    notifier,
	}
}

// SubmitRequest validates admission rules and creates a pending request.
func (s *messageRequestService) SubmitRequest(ctx context.Context, senderID uint, recipientHandle string, content string) (*models.MessageRequest, error) {
	recipient, err := resolveUserByHandle(ctx, s.userRepo, recipientHandle)
	if err != nil {
		return nil, err
	}
	if recipient.ID == senderID {
		return nil, ErrSelfMessageRequest
	}

	// 1. 互关用户不走请求流程，直接建会话
	mutual, err := s.isMutual(ctx, senderID, recipient.ID)
	if err != nil {
		return nil, err
	}
	if mutual {
		return nil, ErrMutualFollowers
	}

	// 2. 已有会话说明首次联系早已完成
	existingThread, err := s.threadRepo.FindByPairKey(ctx, models.PairKeyFor(senderID, recipient.ID))
	if err != nil {
		return nil, fmt.Errorf("检查现有会话失败: %w", err)
	}
	if existingThread != nil {
		return nil, ErrThreadAlreadyExists
	}

	// 3. 同方向的历史请求：pending 不可重复，declined 是终态
	if err := s.checkExistingRequest(ctx, senderID, recipient.ID); err != nil {
		return nil, err
	}
	// 对方发来的 pending 请求还挂着时也不允许反向再发一条。
	// declined 只对它自己的 (sender, recipient) 方向是终态：
	// 拒绝过对方不妨碍自己主动发起。
	reverse, err := s.requestRepo.FindBetween(ctx, recipient.ID, senderID)
	if err != nil {
		return nil, fmt.Errorf("检查现有请求时出错: %w", err)
	}
	if reverse != nil && reverse.Status == models.MessageRequestStatusPending {
		return nil, ErrRequestPending
	}

	// 4. 内容校验和审核
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if s.reviewer != nil {
		if err := s.reviewer.Review(ctx, content); err != nil {
			return nil, err
		}
	}

	request := &models.MessageRequest{
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Content:     content,
		Status:      models.MessageRequestStatusPending,
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发提交输掉竞争，等价于 pending 已存在
			return nil, ErrRequestPending
		}
		return nil, fmt.Errorf("创建私信请求失败: %w", err)
	}

	log.Printf("Message request %d created: %d -> %d", request.ID, senderID, recipient.ID)
	return request, nil
}

// checkExistingRequest 把该方向上的历史请求状态映射为业务错误。
func (s *messageRequestService) checkExistingRequest(ctx context.Context, senderID, recipientID uint) error {
	existing, err := s.requestRepo.FindBetween(ctx, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("检查现有请求时出错: %w", err)
	}
	if existing == nil {
		return nil
	}
	switch existing.Status {
	case models.MessageRequestStatusPending:
		return ErrRequestPending
	case models.MessageRequestStatusDeclined:
		return ErrRequestDeclined
	case models.MessageRequestStatusAccepted:
		return ErrThreadAlreadyExists
	}
	return nil
}

func (s *messageRequestService) isMutual(ctx context.Context, userID1, userID2 uint) (bool, error) {
	forward, err := s.followRepo.Exists(ctx, userID1, userID2)
	if err != nil {
		return false, fmt.Errorf("检查关注关系失败: %w", err)
	}
	if !forward {
		return false, nil
	}
	backward, err := s.followRepo.Exists(ctx, userID2, userID1)
	if err != nil {
		return false, fmt.Errorf("检查关注关系失败: %w", err)
	}
	return backward, nil
}

// RespondToRequest processes the recipient's decision on a pending request.
// 接受在一个事务里完成：建会话（或复用已有会话）、把请求内容写成第一条消息、
// 翻转请求状态。第一条消息沿用请求的原始时间，会话顺序从首次联系那一刻开始。
func (s *messageRequestService) RespondToRequest(ctx context.Context, recipientID, requestID uint, accept bool) (*models.Thread, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("检索私信请求失败: %w", err)
	}

	if request.RecipientID != recipientID {
		return nil, ErrNotRequestRecipient
	}
	if request.Status != models.MessageRequestStatusPending {
		return nil, ErrRequestResolved
	}

	if !accept {
		if err := s.requestRepo.UpdateStatus(ctx, requestID, models.MessageRequestStatusDeclined); err != nil {
			return nil, fmt.Errorf("更新私信请求状态为已拒绝失败: %w", err)
		}
		log.Printf("Message request %d declined by user %d", requestID, recipientID)
		return nil, nil
	}

	var thread *models.Thread
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRequestRepo := storage.NewGormMessageRequestRepository(tx)
		txThreadRepo := storage.NewGormThreadRepository(tx)
		txMessageRepo := storage.NewGormMessageRepository(tx)

		th, err := findOrCreateThread(ctx, txThreadRepo, request.SenderID, request.RecipientID)
		if err != nil {
			return err
		}

		firstMessage := &models.Message{
			ThreadID:  th.ID,
			SenderID:  request.SenderID,
			Content:   request.Content,
			CreatedAt: request.CreatedAt,
		}
		if err := txMessageRepo.Create(ctx, firstMessage); err != nil {
			return fmt.Errorf("写入首条消息失败: %w", err)
		}

		if err := txThreadRepo.Touch(ctx, th.ID, time.Now()); err != nil {
			return fmt.Errorf("更新会话活跃时间失败: %w", err)
		}

		if err := txRequestRepo.UpdateStatus(ctx, requestID, models.MessageRequestStatusAccepted); err != nil {
			return fmt.Errorf("更新私信请求状态失败: %w", err)
		}

		thread = th
		return nil // Commit transaction
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Printf("Message request %d accepted by user %d, thread %d", requestID, recipientID, thread.ID)

	// 通知失败不回滚接受：通知只是副作用
	targetRef := fmt.Sprintf("thread:%d", thread.ID)
	if err := s.notifier.Emit(ctx, request.SenderID, recipientID, models.NotificationTypeRequestAccepted, targetRef); err != nil {
		log.Printf("Error emitting request accepted notification for request %d: %v", requestID, err)
	}

	return thread, nil
}

// ListIncomingRequests retrieves all pending requests for a recipient, newest first.
func (s *messageRequestService) ListIncomingRequests(ctx context.Context, recipientID uint) ([]*models.MessageRequestWithSender, error) {
	pending, err := s.requestRepo.ListPendingForRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("获取待处理私信请求失败: %w", err)
	}

	if len(pending) == 0 {
		return []*models.MessageRequestWithSender{}, nil
	}

	// Enrich with sender info
	var resultDTOs []*models.MessageRequestWithSender
	for _, req := range pending {
		sender, err := s.userRepo.GetBasicInfoByID(ctx, req.SenderID)
		if err != nil {
			log.Printf("Error fetching sender info for user %d (request %d): %v", req.SenderID, req.ID, err)
			continue
		}
		resultDTOs = append(resultDTOs, &models.MessageRequestWithSender{
			MessageRequest: req,
			Sender:         sender,
		})
	}
	return resultDTOs, nil
}
