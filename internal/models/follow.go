package models

import "time"

// Follow 关注关系（follower 关注 followee）。
// 复合唯一键 idx_follow_pair = (follower_id, followee_id)，避免重复关注。
type Follow struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_pair;index:idx_follow_follower" json:"followerId"`
	FolloweeID uint      `gorm:"not null;uniqueIndex:idx_follow_pair;index:idx_follow_followee" json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`

	Follower User `gorm:"foreignKey:FollowerID" json:"-"`
	Followee User `gorm:"foreignKey:FolloweeID" json:"-"`
}

// TableName 指定 Follow 模型的表名。
func (Follow) TableName() string {
	return "follows"
}

// FollowStats 是某个用户的关注计数投影。
type FollowStats struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}
