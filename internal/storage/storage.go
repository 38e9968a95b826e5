package storage

import (
	"context"
	"time"

	"aliasbox/backend/internal/domain"
)

// EmailRepository 定义邮箱记录数据存取操作。
type EmailRepository interface {
	CreateEmail(ctx context.Context, email *domain.Email) error
	GetEmail(ctx context.Context, id int64) (*domain.Email, error)
	GetEmailByAddress(ctx context.Context, address string) (*domain.Email, error)
	UpdateEmail(ctx context.Context, email *domain.Email) error
	SetEmailActive(ctx context.Context, id int64, active bool) error
	TouchEmail(ctx context.Context, id int64, at time.Time) error
	DeleteEmail(ctx context.Context, id int64) error // 物理删除，级联关联
	ListEmails(ctx context.Context, includeDeleted bool) ([]domain.Email, error)
}

// TagRepository 定义标签及邮箱-标签关联的数据存取操作。
type TagRepository interface {
	CreateTag(ctx context.Context, tag *domain.Tag) error
	GetTag(ctx context.Context, id int64) (*domain.Tag, error)
	GetTagByName(ctx context.Context, name string) (*domain.Tag, error)
	ListTags(ctx context.Context, includeInactive bool) ([]domain.Tag, error)
	UpdateTag(ctx context.Context, tag *domain.Tag) error
	DeleteTag(ctx context.Context, id int64) error // 物理删除，级联关联

	AddEmailTag(ctx context.Context, emailID, tagID int64) (bool, error)
	RemoveEmailTag(ctx context.Context, emailID, tagID int64) (bool, error)
	GetEmailTags(ctx context.Context, emailID int64) ([]domain.Tag, error)
	TagNamesByEmail(ctx context.Context, emailIDs []int64) (map[int64][]string, error)
	ListEmailIDsByTag(ctx context.Context, tagID int64) ([]int64, error)
	TagUsage(ctx context.Context, tagID int64) (*domain.TagUsage, error)
}

// SearchRepository 定义检索与统计操作。
type SearchRepository interface {
	SearchEmails(ctx context.Context, query EmailQuery) ([]domain.Email, int64, error)
	EmailsByTags(ctx context.Context, names []string, matchAll bool, limit int) ([]domain.Email, error)
	ListActiveCreation(ctx context.Context) ([]domain.Email, error)
	Overview(ctx context.Context) (*domain.Overview, error)
}

// ConfigRepository 定义配置项版本数据存取操作。
type ConfigRepository interface {
	GetActiveConfig(ctx context.Context, section domain.ConfigSection, key string) (*domain.ConfigEntry, error)
	ListActiveConfig(ctx context.Context, section domain.ConfigSection) ([]domain.ConfigEntry, error)
	ListConfigHistory(ctx context.Context, section domain.ConfigSection, key string) ([]domain.ConfigEntry, error)
	GetConfigVersion(ctx context.Context, section domain.ConfigSection, key string, version int) (*domain.ConfigEntry, error)
	// SaveConfigVersion 使当前有效版本失效并写入新版本（version = 最大版本 + 1）
	SaveConfigVersion(ctx context.Context, entry *domain.ConfigEntry) error
}

// OperationLogRepository 定义操作日志存取操作。
type OperationLogRepository interface {
	AppendOperationLog(ctx context.Context, log *domain.OperationLog) error
	ListOperationLogs(ctx context.Context, limit int) ([]domain.OperationLog, error)
}

// EmailQuery 检索参数，Sort 列名需来自白名单
type EmailQuery struct {
	Filters  domain.SearchFilters
	Page     int
	PageSize int
	SortBy   string // 列名
	Desc     bool
	Limit    int // > 0 时忽略分页，只取前 Limit 条
}

// Store 定义完整的存储接口。
type Store interface {
	EmailRepository
	TagRepository
	SearchRepository
	ConfigRepository
	OperationLogRepository

	// Execute 执行参数化写语句，返回影响行数
	Execute(ctx context.Context, query string, args ...any) (int64, error)
	// Query 执行参数化查询
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	// WithTx 在单个事务内执行 fn，fn 内的所有操作都必须通过 tx 进行
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// 工具方法
	Health(ctx context.Context) error
	Close() error
}
