package services

import (
	"context"
	"fmt"

	"clipgram/internal/models"
	"clipgram/internal/storage"
)

// UserProfile 是用户主页的投影：基本资料加关注计数，
// 以及查看者与该用户的关系。
type UserProfile struct {
	models.User
	Stats        models.FollowStats `json:"stats"`
	IsFollowing  bool               `json:"isFollowing"`  // 查看者是否关注了该用户
	IsFollowedBy bool               `json:"isFollowedBy"` // 该用户是否关注了查看者
}

// UserService 定义了用户相关服务的接口。
type UserService interface {
	GetUserProfile(ctx context.Context, viewerID uint, handle string) (*UserProfile, error)
	UpdateUserProfile(ctx context.Context, userID uint, displayName, photoURL, bio string) (*models.User, error)
	SearchUsers(ctx context.Context, query string, currentUserID uint) ([]models.User, error)
}

// userService 是 UserService 的实现。
type userService struct {
	userRepo      storage.UserRepository
	followService FollowService
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo storage.UserRepository, followService FollowService) UserService {
	return &userService{userRepo: userRepo, followService: followService}
}

// GetUserProfile 获取用户公开的个人资料，附带关注计数和查看者关系。
func (s *userService) GetUserProfile(ctx context.Context, viewerID uint, handle string) (*UserProfile, error) {
	user, err := resolveUserByHandle(ctx, s.userRepo, handle)
	if err != nil {
		return nil, err
	}
	// 清理敏感信息，即使它在 JSON 中通常被忽略
	user.PasswordHash = ""

	stats, err := s.followService.GetStats(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("获取用户 %s 关注计数失败: %w", handle, err)
	}

	profile := &UserProfile{User: *user, Stats: *stats}

	if viewerID != 0 && viewerID != user.ID {
		profile.IsFollowing, err = s.followService.IsFollowing(ctx, viewerID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("检查关注关系失败: %w", err)
		}
		profile.IsFollowedBy, err = s.followService.IsFollowing(ctx, user.ID, viewerID)
		if err != nil {
			return nil, fmt.Errorf("检查关注关系失败: %w", err)
		}
	}

	return profile, nil
}

// UpdateUserProfile 更新用户的个人资料。
func (s *userService) UpdateUserProfile(ctx context.Context, userID uint, displayName, photoURL, bio string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("更新用户资料失败，用户 %d 未找到: %w", userID, err)
	}

	// 按需更新字段
	updated := false
	if displayName != "" && user.DisplayName != displayName {
		user.DisplayName = displayName
		updated = true
	}
	if photoURL != "" && user.PhotoURL != photoURL {
		user.PhotoURL = photoURL
		updated = true
	}
	if bio != "" && user.Bio != bio {
		user.Bio = bio
		updated = true
	}

	if !updated {
		user.PasswordHash = "" // 确保返回前清理
		return user, nil       // 没有字段被更新
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("更新用户 %d 资料失败: %w", userID, err)
	}
	user.PasswordHash = "" // 确保返回前清理
	return user, nil
}

// SearchUsers 实现 SearchUsers 方法
func (s *userService) SearchUsers(ctx context.Context, query string, currentUserID uint) ([]models.User, error) {
	return s.userRepo.SearchUsers(ctx, query, currentUserID)
}
