package storage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clipgram/internal/models"
)

// FollowRepository defines the interface for follow-edge data operations.
type FollowRepository interface {
	// Insert 插入关注边；重复关注不报错。返回是否真正新建了边。
	Insert(ctx context.Context, followerID, followeeID uint) (bool, error)
	// Delete 删除关注边；返回是否真正删除了边。
	Delete(ctx context.Context, followerID, followeeID uint) (bool, error)
	Exists(ctx context.Context, followerID, followeeID uint) (bool, error)
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	CountFollowers(ctx context.Context, userID uint) (int64, error)
	CountFollowing(ctx context.Context, userID uint) (int64, error)
}

type gormFollowRepository struct {
	db *gorm.DB
}

// NewGormFollowRepository creates a new GORM-based FollowRepository.
func NewGormFollowRepository(db *gorm.DB) FollowRepository {
	return &gormFollowRepository{db: db}
}

// Insert 幂等插入：依赖 (follower_id, followee_id) 唯一索引 + ON CONFLICT DO NOTHING。
// RowsAffected 区分真实插入和无操作重复，调用方据此决定是否发通知。
func (r *gormFollowRepository) Insert(ctx context.Context, followerID, followeeID uint) (bool, error) {
	f := &models.Follow{FollowerID: followerID, FolloweeID: followeeID}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormFollowRepository) Delete(ctx context.Context, followerID, followeeID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormFollowRepository) Exists(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// FollowerIDs 返回关注 userID 的用户 ID 列表。
func (r *gormFollowRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", userID).
		Pluck("follower_id", &ids).Error
	return ids, err
}

// FollowingIDs 返回 userID 关注的用户 ID 列表。
func (r *gormFollowRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("followee_id", &ids).Error
	return ids, err
}

func (r *gormFollowRepository) CountFollowers(ctx context.Context, userID uint) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", userID).Count(&cnt).Error
	return cnt, err
}

func (r *gormFollowRepository) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).Count(&cnt).Error
	return cnt, err
}
