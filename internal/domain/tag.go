package domain

import "time"

// Tag 邮箱分类标签
type Tag struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"` // 标签名称（区分大小写）
	Description string    `json:"description" gorm:"type:text"`
	Color       string    `json:"color" gorm:"type:varchar(7)"` // 十六进制颜色
	Icon        string    `json:"icon" gorm:"type:varchar(64)"`
	IsSystem    bool      `json:"isSystem" gorm:"not null"` // 系统标签不可删除、不可作为合并源被删除
	IsActive    bool      `json:"isActive" gorm:"index;not null"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// UsageCount 读取时由关联表实时统计（只统计有效邮箱），不可写
	UsageCount int `json:"usageCount" gorm:"->;-:migration"`
}

// TableName 指定表名
func (Tag) TableName() string {
	return "tags"
}

// EmailTag 邮箱-标签关联
type EmailTag struct {
	EmailID   int64     `json:"emailId" gorm:"primaryKey;autoIncrement:false"`
	TagID     int64     `json:"tagId" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `json:"createdAt"`

	Email *Email `json:"-" gorm:"foreignKey:EmailID;constraint:OnDelete:CASCADE"`
	Tag   *Tag   `json:"-" gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (EmailTag) TableName() string {
	return "email_tags"
}

// TagUsage 标签使用详情（按记录状态拆分）
type TagUsage struct {
	Tag      Tag `json:"tag"`
	Total    int `json:"total"`    // 关联的有效记录总数
	Active   int `json:"active"`   // status=active
	Inactive int `json:"inactive"` // status=inactive
	Archived int `json:"archived"` // status=archived
	Deleted  int `json:"deleted"`  // 已软删除但仍保留关联的记录
}

// MergeResult 标签合并结果
type MergeResult struct {
	SourceID      int64 `json:"sourceId"`
	TargetID      int64 `json:"targetId"`
	Moved         int   `json:"moved"`   // 重新指向目标标签的关联数
	Skipped       int   `json:"skipped"` // 目标上已存在而跳过的关联数
	SourceDeleted bool  `json:"sourceDeleted"`
}

// TagBatchResult 单条记录上批量增删标签的结果
type TagBatchResult struct {
	Total   int      `json:"total"`
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}
