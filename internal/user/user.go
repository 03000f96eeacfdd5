package user

import (
	"time"
)

// User 是 users 表的 GORM 模型。
// 密码只保存不可逆的 bcrypt 哈希，任何读响应都不包含它。
type User struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Username     string    `gorm:"uniqueIndex;size:150;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Token 是 tokens 表的 GORM 模型：不透明凭证 -> 用户。
// user_id 上的唯一索引保证每个用户同一时刻只有一个有效 token。
type Token struct {
	Key       string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"uniqueIndex;size:36;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
