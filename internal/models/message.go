package models

import "time"

// Message 代表存储在数据库中的会话消息。创建后不可修改。
type Message struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	ThreadID uint      `gorm:"index;not null" json:"threadId"`
	SenderID uint      `gorm:"index;not null" json:"senderId"`
	Content  string    `gorm:"type:text;not null" json:"content"`
	// CreatedAt 由调用方显式设置：请求接受路径会沿用请求的原始时间，
	// 保证会话顺序从首次联系那一刻开始。
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}
