package domain

import "time"

// 操作日志中的操作类型
const (
	OpEmailCreate     = "email.create"
	OpEmailUpdate     = "email.update"
	OpEmailSoftDelete = "email.soft_delete"
	OpEmailRestore    = "email.restore"
	OpEmailHardDelete = "email.hard_delete"
	OpEmailTouch      = "email.touch"
	OpTagCreate       = "tag.create"
	OpTagUpdate       = "tag.update"
	OpTagDelete       = "tag.delete"
	OpTagMerge        = "tag.merge"
	OpTagReplace      = "tag.replace"
	OpTagAttach       = "tag.attach"
	OpTagDetach       = "tag.detach"
	OpConfigSave      = "config.save"
	OpConfigRollback  = "config.rollback"
	OpBatch           = "batch"
)

// OperationLog 操作日志，与所描述的变更在同一事务中写入
type OperationLog struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Operation  string    `json:"operation" gorm:"type:varchar(64);index;not null"`
	TargetType string    `json:"targetType" gorm:"type:varchar(32)"`
	TargetID   int64     `json:"targetId"`
	Details    Metadata  `json:"details" gorm:"serializer:json;type:text"`
	Success    bool      `json:"success" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"index"`
}

// TableName 指定表名
func (OperationLog) TableName() string {
	return "operation_logs"
}
