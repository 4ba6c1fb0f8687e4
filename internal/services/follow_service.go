package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"clipgram/internal/models"
	"clipgram/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrSelfFollow = errors.New("不能关注自己")
)

// FollowStatsCache 缓存用户的关注/粉丝计数。
// 实现必须按 userID 划分键并支持显式失效；GetStats 未命中时返回 (nil, nil)。
type FollowStatsCache interface {
	GetStats(ctx context.Context, userID uint) (*models.FollowStats, error)
	SetStats(ctx context.Context, userID uint, stats models.FollowStats) error
	Invalidate(ctx context.Context, userIDs ...uint) error
}

// FollowService defines the interface for follow graph operations.
type FollowService interface {
	// Follow 建立单向关注。重复关注是幂等空操作，只有首次建立才产生通知。
	Follow(ctx context.Context, followerID uint, followeeHandle string) error
	// Unfollow 移除单向关注。移除不存在的关注是幂等空操作。
	Unfollow(ctx context.Context, followerID uint, followeeHandle string) error
	IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error)
	// IsMutual 当且仅当双向关注都存在时为 true。
	IsMutual(ctx context.Context, userID1, userID2 uint) (bool, error)
	ListFollowers(ctx context.Context, handle string) ([]*models.UserBasicInfo, error)
	ListFollowing(ctx context.Context, handle string) ([]*models.UserBasicInfo, error)
	GetStats(ctx context.Context, userID uint) (*models.FollowStats, error)
}

type followService struct {
	userRepo   storage.UserRepository
	followRepo storage.FollowRepository
	statsCache FollowStatsCache // 可以为 nil（不启用缓存）
	notifier   NotificationService
}

// NewFollowService creates a new FollowService instance.
func NewFollowService(
	userRepo storage.UserRepository,
	followRepo storage.FollowRepository,
	statsCache FollowStatsCache,
	notifier NotificationService,
) FollowService {
	return &followService{
		userRepo:   userRepo,
		followRepo: followRepo,
		statsCache: statsCache,
		notifier:   notifier,
	}
}

// resolveUserByHandle 按 handle 查找用户，未找到时返回 ErrUserNotFound。
func resolveUserByHandle(ctx context.Context, userRepo storage.UserRepository, handle string) (*models.User, error) {
	user, err := userRepo.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查找用户 %s 失败: %w", handle, err)
	}
	return user, nil
}

// Follow establishes a one-way follow edge from followerID to followeeHandle.
func (s *followService) Follow(ctx context.Context, followerID uint, followeeHandle string) error {
	followee, err := resolveUserByHandle(ctx, s.userRepo, followeeHandle)
	if err != nil {
		return err
	}
	if followee.ID == followerID {
		return ErrSelfFollow
	}

	inserted, err := s.followRepo.Insert(ctx, followerID, followee.ID)
	if err != nil {
		return fmt.Errorf("建立关注关系失败: %w", err)
	}
	if !inserted {
		// 已经关注过了，幂等返回
		return nil
	}

	s.invalidateStats(ctx, followerID, followee.ID)

	// 通知失败不回滚关注：通知只是副作用
	if err := s.notifier.Emit(ctx, followee.ID, followerID, models.NotificationTypeFollow, ""); err != nil {
		log.Printf("Error emitting follow notification for %d -> %d: %v", followerID, followee.ID, err)
	}
	return nil
}

// Unfollow removes the follow edge from followerID to followeeHandle.
func (s *followService) Unfollow(ctx context.Context, followerID uint, followeeHandle string) error {
	followee, err := resolveUserByHandle(ctx, s.userRepo, followeeHandle)
	if err != nil {
		return err
	}
	if followee.ID == followerID {
		return ErrSelfFollow
	}

	removed, err := s.followRepo.Delete(ctx, followerID, followee.ID)
	if err != nil {
		return fmt.Errorf("移除关注关系失败: %w", err)
	}
	if removed {
		s.invalidateStats(ctx, followerID, followee.ID)
	}
	return nil
}

func (s *followService) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.followRepo.Exists(ctx, followerID, followeeID)
}

// IsMutual reports whether both follow edges exist between the two users.
func (s *followService) IsMutual(ctx context.Context, userID1, userID2 uint) (bool, error) {
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

// ListFollowers returns basic info for everyone following the given handle.
func (s *followService) ListFollowers(ctx context.Context, handle string) ([]*models.UserBasicInfo, error) {
	user, err := resolveUserByHandle(ctx, s.userRepo, handle)
	if err != nil {
		return nil, err
	}
	ids, err := s.followRepo.FollowerIDs(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("获取粉丝列表失败: %w", err)
	}
	return s.basicInfoFor(ctx, ids)
}

// ListFollowing returns basic info for everyone the given handle follows.
func (s *followService) ListFollowing(ctx context.Context, handle string) ([]*models.UserBasicInfo, error) {
	user, err := resolveUserByHandle(ctx, s.userRepo, handle)
	if err != nil {
		return nil, err
	}
	ids, err := s.followRepo.FollowingIDs(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("获取关注列表失败: %w", err)
	}
	return s.basicInfoFor(ctx, ids)
}

// GetStats returns follower/following counts, served from cache when possible.
func (s *followService) GetStats(ctx context.Context, userID uint) (*models.FollowStats, error) {
	if s.statsCache != nil {
		cached, err := s.statsCache.GetStats(ctx, userID)
		if err != nil {
			log.Printf("Error reading follow stats cache for user %d: %v", userID, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	followers, err := s.followRepo.CountFollowers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("统计粉丝数失败: %w", err)
	}
	following, err := s.followRepo.CountFollowing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("统计关注数失败: %w", err)
	}

	stats := &models.FollowStats{Followers: followers, Following: following}
	if s.statsCache != nil {
		if err := s.statsCache.SetStats(ctx, userID, *stats); err != nil {
			log.Printf("Error writing follow stats cache for user %d: %v", userID, err)
		}
	}
	return stats, nil
}

func (s *followService) basicInfoFor(ctx context.Context, ids []uint) ([]*models.UserBasicInfo, error) {
	if len(ids) == 0 {
		return []*models.UserBasicInfo{}, nil
	}
	infos, err := s.userRepo.GetMultipleBasicInfoByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("获取用户信息失败: %w", err)
	}
	return infos, nil
}

// invalidateStats 在关注关系变化后让双方的计数缓存失效。
func (s *followService) invalidateStats(ctx context.Context, userIDs ...uint) {
	if s.statsCache == nil {
		return
	}
	if err := s.statsCache.Invalidate(ctx, userIDs...); err != nil {
		log.Printf("Error invalidating follow stats cache for users %v: %v", userIDs, err)
	}
}
