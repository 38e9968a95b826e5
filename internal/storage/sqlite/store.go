package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/storage"

	_ "modernc.org/sqlite" // 纯 Go SQLite 驱动，无需 CGO
)

// SchemaVersion 当前库结构版本
const SchemaVersion = 1

// Store SQLite 存储实现
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
	log   *zap.Logger
	slow  time.Duration
	inTx  bool
}

var _ storage.Store = (*Store)(nil)

// Open 打开（必要时创建）数据库文件并完成迁移
//
// 参数:
//   - cfg: 数据库配置，Path 为文件路径
//   - log: 日志记录器，可为 nil
//
// 返回值:
//   - *Store: 可用的存储实例
//   - error: 打开或迁移失败时返回错误
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_time_format=sqlite",
		cfg.Path, busy.Milliseconds())

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// 使用已有连接创建 GORM 实例
	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := db.Exec("PRAGMA synchronous = NORMAL;").Error; err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	// SQLite 只支持单写者
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}

	store := &Store{db: db, sqlDB: sqlDB, log: log.Named("sqlite"), slow: slow}

	if err := store.Migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store.log.Info("sqlite database ready", zap.String("path", cfg.Path))
	return store, nil
}

// Migrate 幂等地创建表结构和附加索引
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(
		&domain.Email{},
		&domain.Tag{},
		&domain.EmailTag{},
		&domain.ConfigEntry{},
		&domain.OperationLog{},
	); err != nil {
		return classifyError("migrate", err)
	}

	for _, stmt := range postMigrations {
		if err := db.Exec(stmt).Error; err != nil {
			return classifyError("migrate", err)
		}
	}

	if err := db.Exec("INSERT OR IGNORE INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		SchemaVersion, time.Now().UTC()).Error; err != nil {
		return classifyError("migrate", err)
	}
	return nil
}

// postMigrations AutoMigrate 无法表达的结构
var postMigrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL
	)`,
	// 同一 (key, config_type) 最多一个有效版本
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_config_active ON config_entries(key, config_type) WHERE is_active = 1`,
	`CREATE INDEX IF NOT EXISTS idx_config_type ON config_entries(config_type)`,
}

// AppliedVersion 返回已应用的最高结构版本
func (s *Store) AppliedVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.WithContext(ctx).Raw("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version).Error
	if err != nil {
		return 0, classifyError("applied version", err)
	}
	return version, nil
}

// WithTx 在单个事务内执行 fn
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Store{db: gtx, sqlDB: s.sqlDB, log: s.log, slow: s.slow, inTx: true})
	})
}

var (
	// 语句后还有其它语句
	multiStatement = regexp.MustCompile(`;\s*\S`)
	identPattern   = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// checkStatement 拒绝拼接字面量或多语句的 SQL
func checkStatement(query string) error {
	q := strings.TrimSpace(query)
	if q == "" {
		return domain.NewValidationError("query", "empty statement")
	}
	if multiStatement.MatchString(q) {
		return domain.NewValidationError("query", "multiple statements are not allowed")
	}
	if strings.ContainsRune(q, '\'') {
		return domain.NewValidationError("query", "inline string literals are not allowed, use bound parameters")
	}
	if strings.Contains(q, "--") || strings.Contains(q, "/*") {
		return domain.NewValidationError("query", "comments are not allowed")
	}
	return nil
}

// Execute 执行参数化写语句，返回影响行数
func (s *Store) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	if err := checkStatement(query); err != nil {
		return 0, err
	}
	start := time.Now()
	result := s.db.WithContext(ctx).Exec(query, args...)
	s.observe("execute", query, start, result.Error)
	if result.Error != nil {
		return 0, classifyError("execute", result.Error)
	}
	return result.RowsAffected, nil
}

// Query 执行参数化查询，每行返回列名到值的映射
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if err := checkStatement(query); err != nil {
		return nil, err
	}
	start := time.Now()
	rows := []map[string]any{}
	err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error
	s.observe("query", query, start, err)
	if err != nil {
		return nil, classifyError("query", err)
	}
	return rows, nil
}

// observe 记录失败或慢语句
func (s *Store) observe(op, query string, start time.Time, err error) {
	elapsed := time.Since(start)
	switch {
	case err != nil:
		s.log.Warn("statement failed", zap.String("op", op), zap.String("sql", query), zap.Error(err))
	case elapsed > s.slow:
		s.log.Warn("slow statement", zap.String("op", op), zap.String("sql", query), zap.Duration("elapsed", elapsed))
	default:
		s.log.Debug("statement", zap.String("op", op), zap.Duration("elapsed", elapsed))
	}
}

// schemaColumns 允许插值的表和列
var schemaColumns = map[string][]string{
	"emails":            {"id", "email", "domain", "prefix", "suffix", "created_at", "last_used_at", "updated_at", "status", "notes", "metadata", "is_active", "created_by"},
	"tags":              {"id", "name", "description", "color", "icon", "is_system", "is_active", "created_at", "updated_at"},
	"email_tags":        {"email_id", "tag_id", "created_at"},
	"config_entries":    {"id", "key", "value", "config_type", "is_encrypted", "version", "is_active", "description", "created_at", "updated_at"},
	"operation_logs":    {"id", "operation", "target_type", "target_id", "details", "success", "created_at"},
	"schema_migrations": {"version", "applied_at"},
}

// QuoteIdentifier 校验并引用表名或列名
//
// 接受 "table"、"column" 或 "table.column"，名称必须属于固定的库结构。
func QuoteIdentifier(name string) (string, error) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	switch len(parts) {
	case 1:
		if !identPattern.MatchString(parts[0]) {
			break
		}
		if _, ok := schemaColumns[parts[0]]; ok || isKnownColumn("", parts[0]) {
			return `"` + parts[0] + `"`, nil
		}
	case 2:
		if identPattern.MatchString(parts[0]) && identPattern.MatchString(parts[1]) && isKnownColumn(parts[0], parts[1]) {
			return `"` + parts[0] + `"."` + parts[1] + `"`, nil
		}
	}
	return "", domain.NewValidationError("identifier", "unknown identifier %q", name)
}

func isKnownColumn(table, column string) bool {
	for t, cols := range schemaColumns {
		if table != "" && t != table {
			continue
		}
		for _, c := range cols {
			if c == column {
				return true
			}
		}
	}
	return false
}

// Health 检查数据库连接
func (s *Store) Health(ctx context.Context) error {
	if s.inTx {
		return nil
	}
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return classifyError("ping", err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	return s.sqlDB.Close()
}

// classifyError 将驱动错误转换为领域错误
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		validation *domain.ValidationError
		conflict   *domain.ConflictError
		notFound   *domain.NotFoundError
		storageErr *domain.StorageError
	)
	if errors.As(err, &validation) || errors.As(err, &conflict) || errors.As(err, &notFound) || errors.As(err, &storageErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError(op, "record")
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"), errors.Is(err, gorm.ErrDuplicatedKey):
		return &domain.ConflictError{Resource: op, Msg: msg}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"), errors.Is(err, gorm.ErrForeignKeyViolated):
		return &domain.ValidationError{Field: op, Msg: "referenced record does not exist"}
	}
	return &domain.StorageError{Op: op, Err: err}
}

// notFound 把记录不存在转换为带资源名的 NotFoundError
func notFound(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError(resource, id)
	}
	return classifyError("get "+resource, err)
}
