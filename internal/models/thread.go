package models

import (
	"fmt"
	"time"
)

// Thread 代表一个两人会话容器，拥有自己的消息和参与者。
type Thread struct {
	BaseModel
	// PairKey 是两个参与者ID的规范化组合 "min:max"。
	// 唯一索引保证同一对用户之间最多存在一个会话，即使并发创建也不会重复。
	PairKey string `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`

	Messages     []Message           `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	Participants []ThreadParticipant `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
}

// TableName 指定 Thread 模型的表名。
func (Thread) TableName() string {
	return "threads"
}

// PairKeyFor 计算一对用户ID的规范化键，顺序无关。
func PairKeyFor(userID1, userID2 uint) string {
	if userID1 > userID2 {
		userID1, userID2 = userID2, userID1
	}
	return fmt.Sprintf("%d:%d", userID1, userID2)
}

// ThreadParticipant 将用户链接到会话。
type ThreadParticipant struct {
	ThreadID uint      `gorm:"primaryKey;autoIncrement:false" json:"threadId"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// TableName 指定 ThreadParticipant 模型的表名。
func (ThreadParticipant) TableName() string {
	return "thread_participants"
}

// ThreadSummary 是收件箱列表的单项投影：会话、对方用户、最近一条消息。
type ThreadSummary struct {
	ThreadID    uint           `json:"threadId"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Participant *UserBasicInfo `json:"participant,omitempty"` // 对方参与者
	LastMessage *Message       `json:"lastMessage,omitempty"`
}
