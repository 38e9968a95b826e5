package domain

import "time"

// ConfigSection 配置分区
type ConfigSection string

const (
	SectionDomain   ConfigSection = "domain"   // 可用域名等生成参数
	SectionSecurity ConfigSection = "security" // IMAP/API 凭据等敏感配置，始终加密
	SectionSystem   ConfigSection = "system"   // 其余系统参数
)

// Valid 判断分区是否合法
func (s ConfigSection) Valid() bool {
	switch s {
	case SectionDomain, SectionSecurity, SectionSystem:
		return true
	}
	return false
}

// Sensitive 敏感分区的值在有主密码时必须加密存储
func (s ConfigSection) Sensitive() bool {
	return s == SectionSecurity
}

// ConfigEntry 配置项的一个版本。
// 每次保存都会生成新版本，同一 (key, section) 最多只有一个有效版本。
type ConfigEntry struct {
	ID          int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	Key         string        `json:"key" gorm:"column:key;type:varchar(100);not null;index:idx_config_key_section"`
	Value       string        `json:"value" gorm:"type:text"`
	Section     ConfigSection `json:"section" gorm:"column:config_type;type:varchar(20);not null;index:idx_config_key_section"`
	IsEncrypted bool          `json:"isEncrypted" gorm:"not null"`
	Version     int           `json:"version" gorm:"not null"`
	IsActive    bool          `json:"isActive" gorm:"index;not null"`
	Description string        `json:"description" gorm:"type:text"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// TableName 指定表名
func (ConfigEntry) TableName() string {
	return "config_entries"
}
