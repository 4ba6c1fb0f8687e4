package models

// MessageRequestStatus 定义私信请求的状态。
type MessageRequestStatus string

const (
	MessageRequestStatusPending  MessageRequestStatus = "pending"
	MessageRequestStatusAccepted MessageRequestStatus = "accepted"
	MessageRequestStatusDeclined MessageRequestStatus = "declined"
)

// MaxMessageContentRunes bounds the length of request and message content.
const MaxMessageContentRunes = 10000

// MessageRequest 代表一条私信请求记录：非互关用户首次联系的准入网关。
// (sender_id, recipient_id) 全局唯一——同一对用户之间最多一条请求，
// declined 是终态，不允许重新提交。
type MessageRequest struct {
	BaseModel
	SenderID    uint                 `gorm:"not null;uniqueIndex:idx_message_request_pair"`
	RecipientID uint                 `gorm:"not null;uniqueIndex:idx_message_request_pair"`
	Content     string               `gorm:"type:text;not null"` // 首条消息内容，接受后写入 Thread
	Status      MessageRequestStatus `gorm:"type:varchar(20);not null;default:'pending'"`
}

// TableName 指定 MessageRequest 模型的表名。
func (MessageRequest) TableName() string {
	return "message_requests"
}

// MessageRequestWithSender is a DTO that includes request details
// along with basic information about the user who sent it.
// Useful for API responses listing pending requests.
type MessageRequestWithSender struct {
	MessageRequest
	Sender *UserBasicInfo `json:"sender"`
}
