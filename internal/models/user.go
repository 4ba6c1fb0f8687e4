package models

import "strings"

// User 代表系统中的用户。
// Handle 全局唯一且大小写不敏感，存储前统一转为小写。
type User struct {
	BaseModel
	Handle       string `gorm:"type:varchar(100);uniqueIndex;not null" json:"handle"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"` // 不暴露密码哈希
	Email        string `gorm:"type:varchar(100);uniqueIndex" json:"email,omitempty"`
	DisplayName  string `gorm:"type:varchar(100)" json:"displayName,omitempty"`
	PhotoURL     string `gorm:"type:varchar(255)" json:"photoUrl,omitempty"`
	IsVerified   bool   `gorm:"default:false" json:"isVerified,omitempty"`
	Bio          string `gorm:"type:text" json:"bio,omitempty"`
}

// NormalizeHandle lowercases a handle for storage and lookups.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// UserBasicInfo holds minimal public information about a user.
// Used for request sender info, thread participant projections etc.
type UserBasicInfo struct {
	ID          uint   `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}
