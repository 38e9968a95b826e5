package domain

import (
	"time"
)

// EmailStatus 邮箱记录状态
type EmailStatus string

const (
	EmailStatusActive   EmailStatus = "active"
	EmailStatusInactive EmailStatus = "inactive"
	EmailStatusArchived EmailStatus = "archived"
)

// Valid 判断状态是否为已知取值
func (s EmailStatus) Valid() bool {
	switch s {
	case EmailStatusActive, EmailStatusInactive, EmailStatusArchived:
		return true
	}
	return false
}

// Metadata 邮箱记录的自由键值元数据，以 JSON 形式存储在单列中。
type Metadata map[string]any

// Email 表示一条生成的邮箱别名记录。
// 地址全局唯一（包括已软删除的记录），创建后不可修改。
type Email struct {
	ID         int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	Address    string      `json:"email" gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	Domain     string      `json:"domain" gorm:"type:varchar(253);index;not null"`
	Prefix     string      `json:"prefix" gorm:"type:varchar(64)"`
	Suffix     string      `json:"suffix" gorm:"type:varchar(64)"`
	CreatedAt  time.Time   `json:"createdAt" gorm:"index"`
	LastUsedAt *time.Time  `json:"lastUsedAt,omitempty"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	Status     EmailStatus `json:"status" gorm:"type:varchar(16);index;not null"`
	Notes      string      `json:"notes" gorm:"type:text"`
	Metadata   Metadata    `json:"metadata" gorm:"serializer:json;type:text"`
	IsActive   bool        `json:"isActive" gorm:"index;not null"` // 软删除标记
	CreatedBy  string      `json:"createdBy" gorm:"type:varchar(64)"`

	// Tags 读取时填充的标签名称，不落库
	Tags []string `json:"tags,omitempty" gorm:"-"`
}

// TableName 指定表名
func (Email) TableName() string {
	return "emails"
}
