package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipgram/internal/models"
	"clipgram/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrSelfThread     = errors.New("不能与自己创建会话")
	ErrNotMutual      = errors.New("只有互相关注的用户才能直接发起会话")
	ErrThreadNotFound = errors.New("会话不存在")
	ErrNotParticipant = errors.New("您不是此会话的参与者")
)

// ThreadService defines the interface for thread and message operations.
type ThreadService interface {
	// StartThread 在互相关注的两个用户之间建立（或复用）会话。
	// firstMessage 非空时作为首条消息一并写入。
	StartThread(ctx context.Context, userID uint, otherHandle, firstMessage string) (*models.Thread, error)
	PostMessage(ctx context.Context, userID, threadID uint, content string) (*models.Message, error)
	// ListThreads 返回用户的收件箱：参与的会话按最近活跃排序。
	ListThreads(ctx context.Context, userID uint, limit, offset int) ([]*models.ThreadSummary, error)
	ListMessages(ctx context.Context, userID, threadID uint, limit, offset int) ([]*models.Message, error)
}

type threadService struct {
	db          *gorm.DB
	userRepo    storage.UserRepository
	threadRepo  storage.ThreadRepository
	messageRepo storage.MessageRepository
	followRepo  storage.FollowRepository
}

// NewThreadService creates a new ThreadService instance.
func NewThreadService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	threadRepo storage.ThreadRepository,
	messageRepo storage.MessageRepository,
	followRepo storage.FollowRepository,
) ThreadService {
	return &threadService{
		db:          db,
		userRepo:    userRepo,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		followRepo:  followRepo,
	}
}

// findOrCreateThread 查找或创建一对用户之间的会话。
// PairKey 唯一索引兜底并发：输掉创建竞争的一方改读获胜方写入的行，
// 因此同一对用户永远只会有一个会话。
func findOrCreateThread(ctx context.Context, threadRepo storage.ThreadRepository, userID1, userID2 uint) (*models.Thread, error) {
	pairKey := models.PairKeyFor(userID1, userID2)

	existing, err := threadRepo.FindByPairKey(ctx, pairKey)
	if err != nil {
		return nil, fmt.Errorf("查找会话失败: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	thread := &models.Thread{PairKey: pairKey}
	if err := threadRepo.CreateWithParticipants(ctx, thread, userID1, userID2); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, err2 := threadRepo.FindByPairKey(ctx, pairKey)
			if err2 != nil {
				return nil, fmt.Errorf("查找会话失败: %w", err2)
			}
			if winner == nil {
				return nil, fmt.Errorf("会话创建冲突后未找到已存在的会话")
			}
			return winner, nil
		}
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}
	return thread, nil
}

// StartThread establishes (or reuses) a thread between two mutual followers.
// 非互关用户的首次联系必须走私信请求流程。
func (s *threadService) StartThread(ctx context.Context, userID uint, otherHandle, firstMessage string) (*models.Thread, error) {
	other, err := resolveUserByHandle(ctx, s.userRepo, otherHandle)
	if err != nil {
		return nil, err
	}
	if other.ID == userID {
		return nil, ErrSelfThread
	}

	forward, err := s.followRepo.Exists(ctx, userID, other.ID)
	if err != nil {
		return nil, fmt.Errorf("检查关注关系失败: %w", err)
	}
	backward, err := s.followRepo.Exists(ctx, other.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("检查关注关系失败: %w", err)
	}
	if !forward || !backward {
		return nil, ErrNotMutual
	}

	if firstMessage != "" {
		if err := validateContent(firstMessage); err != nil {
			return nil, err
		}
	}

	// 会话行、参与者行和首条消息在同一个事务里落库：
	// 中途失败不能留下占用 PairKey 的空会话
	var thread *models.Thread
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txThreadRepo := storage.NewGormThreadRepository(tx)

		th, err := findOrCreateThread(ctx, txThreadRepo, userID, other.ID)
		if err != nil {
			return err
		}

		if firstMessage != "" {
			txMessageRepo := storage.NewGormMessageRepository(tx)
			message := &models.Message{
				ThreadID:  th.ID,
				SenderID:  userID,
				Content:   firstMessage,
				CreatedAt: time.Now(),
			}
			if err := txMessageRepo.Create(ctx, message); err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}
			if err := txThreadRepo.Touch(ctx, th.ID, message.CreatedAt); err != nil {
				return fmt.Errorf("更新会话活跃时间失败: %w", err)
			}
		}

		thread = th
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return thread, nil
}

// PostMessage appends a message to a thread the user participates in.
func (s *threadService) PostMessage(ctx context.Context, userID, threadID uint, content string) (*models.Message, error) {
	if err := s.checkParticipant(ctx, threadID, userID); err != nil {
		return nil, err
	}

	if err := validateContent(content); err != nil {
		return nil, err
	}

	message := &models.Message{
		ThreadID:  threadID,
		SenderID:  userID,
		Content:   content,
		CreatedAt: time.Now(),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMessageRepo := storage.NewGormMessageRepository(tx)
		txThreadRepo := storage.NewGormThreadRepository(tx)

		if err := txMessageRepo.Create(ctx, message); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		// 消息写入和收件箱排序一起提交
		if err := txThreadRepo.Touch(ctx, threadID, message.CreatedAt); err != nil {
			return fmt.Errorf("更新会话活跃时间失败: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return message, nil
}

// ListThreads returns the user's inbox with the other participant and last message.
func (s *threadService) ListThreads(ctx context.Context, userID uint, limit, offset int) ([]*models.ThreadSummary, error) {
	threads, err := s.threadRepo.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("获取会话列表失败: %w", err)
	}

	summaries := make([]*models.ThreadSummary, 0, len(threads))
	for _, thread := range threads {
		summary := &models.ThreadSummary{
			ThreadID:  thread.ID,
			UpdatedAt: thread.UpdatedAt,
		}

		participants, err := s.threadRepo.GetParticipants(ctx, thread.ID)
		if err != nil {
			return nil, fmt.Errorf("获取会话 %d 参与者失败: %w", thread.ID, err)
		}
		for _, p := range participants {
			if p.UserID == userID {
				continue
			}
			info, err := s.userRepo.GetBasicInfoByID(ctx, p.UserID)
			if err != nil {
				// 对方账号可能已被删除，收件箱项保留但不带用户信息
				continue
			}
			summary.Participant = info
		}

		last, err := s.messageRepo.LatestInThread(ctx, thread.ID)
		if err != nil {
			return nil, fmt.Errorf("获取会话 %d 最近消息失败: %w", thread.ID, err)
		}
		summary.LastMessage = last

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ListMessages returns messages in a thread, newest first.
func (s *threadService) ListMessages(ctx context.Context, userID, threadID uint, limit, offset int) ([]*models.Message, error) {
	if err := s.checkParticipant(ctx, threadID, userID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByThread(ctx, threadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("获取会话消息失败: %w", err)
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	return messages, nil
}

// checkParticipant 区分"会话不存在"和"不是参与者"两种失败。
func (s *threadService) checkParticipant(ctx context.Context, threadID, userID uint) error {
	_, err := s.threadRepo.GetParticipant(ctx, threadID, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("检查会话参与者失败: %w", err)
	}

	if _, err := s.threadRepo.GetByID(ctx, threadID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrThreadNotFound
		}
		return fmt.Errorf("查找会话失败: %w", err)
	}
	return ErrNotParticipant
}
