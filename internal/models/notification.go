package models

import "time"

// NotificationType 定义通知的类型。
type NotificationType string

const (
	NotificationTypeFollow          NotificationType = "follow"
	NotificationTypeRequestAccepted NotificationType = "request_accepted"
	NotificationTypeLike            NotificationType = "like"
	NotificationTypeComment         NotificationType = "comment"
)

// Notification 是其他操作的副作用产物（关注、请求被接受等），
// 仅由 recipient 消费和删除。
type Notification struct {
	ID          uint             `gorm:"primarykey" json:"id"`
	RecipientID uint             `gorm:"not null;index" json:"recipientId"`
	ActorID     uint             `gorm:"not null" json:"actorId"`
	Type        NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	TargetRef   string           `gorm:"type:varchar(100)" json:"targetRef,omitempty"`
	// EventID 是发布端生成的去重键；消费者重试时不会写入重复行。
	EventID   string    `gorm:"type:varchar(36);uniqueIndex" json:"-"`
	IsRead    bool      `gorm:"default:false" json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定 Notification 模型的表名。
func (Notification) TableName() string {
	return "notifications"
}
