package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义本地 HTTP 服务的监听配置参数
type ServerConfig struct {
	Host            string        // 监听地址，默认 "127.0.0.1"（仅本机）
	Port            int           // 监听端口，默认 8787
	ReadTimeout     time.Duration // 读超时，默认 15 秒
	WriteTimeout    time.Duration // 写超时，默认 60 秒（导出可能较慢）
	ShutdownTimeout time.Duration // 优雅关闭等待时间，默认 10 秒
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
	MaxSize     int    // 单个日志文件最大 MB
	MaxBackups  int
	MaxAge      int // 天
	Compress    bool
}

// DatabaseConfig 定义 SQLite 数据库配置
type DatabaseConfig struct {
	Path            string        // 数据库文件路径，默认 "aliasbox.db"
	BusyTimeout     time.Duration // 等待写锁的时间，默认 5 秒
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 1 小时
	SlowThreshold   time.Duration // 超过该耗时的语句记录 warn 日志，默认 200ms
}

// DomainsConfig 定义可用域名（首次启动时写入配置库）
type DomainsConfig struct {
	Allowed  []string      // 允许生成邮箱的域名列表
	CacheTTL time.Duration // 域名列表本地缓存时间，默认 1 分钟
}

// SearchConfig 定义分页参数
type SearchConfig struct {
	DefaultPageSize int // 默认每页数量，默认 20
	MaxPageSize     int // 每页最大数量，默认 100
}

// BatchConfig 定义批量操作参数
type BatchConfig struct {
	MaxItems  int // 单次批量操作最多条数，默认 1000
	QueueSize int // 异步批量任务队列长度，默认 16
}

// VaultConfig 定义配置加密参数
type VaultConfig struct {
	MasterPassword string // 主密码，只从环境变量读取，从不落盘
}

// VerificationConfig 定义验证码获取参数
type VerificationConfig struct {
	Timeout       time.Duration // 单次等待验证码的超时，默认 2 分钟
	RatePerSecond float64       // 获取请求速率上限，默认每秒 1 次
	Burst         int           // 突发请求数，默认 3
}

// MonitoringConfig 定义后台告警巡检参数
type MonitoringConfig struct {
	AlertInterval     time.Duration // 巡检间隔，默认 30 秒
	MemoryThresholdMB float64       // 堆内存告警阈值（MB），默认 512
	ErrorBurst        int           // 单个巡检周期内新增错误数告警阈值，默认 50
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server       ServerConfig       // HTTP 服务配置
	CORS         CORSConfig         // 跨域配置
	Log          LogConfig          // 日志配置
	Database     DatabaseConfig     // 数据库配置
	Domains      DomainsConfig      // 域名配置
	Search       SearchConfig       // 检索配置
	Batch        BatchConfig        // 批量操作配置
	Vault        VaultConfig        // 加密配置
	Verification VerificationConfig // 验证码配置
	Monitoring   MonitoringConfig   // 告警配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: ALIASBOX_
// 例如: ALIASBOX_SERVER_PORT, ALIASBOX_DATABASE_PATH, ALIASBOX_VAULT_MASTER_PASSWORD
//
// 返回值:
//   - *Config: 加载成功的配置对象
//   - error: 配置验证失败时返回错误
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("aliasbox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8787)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.path", "aliasbox.db")
	viper.SetDefault("database.busy_timeout", "5s")
	viper.SetDefault("database.conn_max_lifetime", "1h")
	viper.SetDefault("database.slow_threshold", "200ms")
	viper.SetDefault("domains.allowed", "")
	viper.SetDefault("domains.cache_ttl", "1m")
	viper.SetDefault("search.default_page_size", 20)
	viper.SetDefault("search.max_page_size", 100)
	viper.SetDefault("batch.max_items", 1000)
	viper.SetDefault("batch.queue_size", 16)
	viper.SetDefault("vault.master_password", "")
	viper.SetDefault("verification.timeout", "2m")
	viper.SetDefault("verification.rate_per_second", 1.0)
	viper.SetDefault("verification.burst", 3)
	viper.SetDefault("monitoring.alert_interval", "30s")
	viper.SetDefault("monitoring.memory_threshold_mb", 512)
	viper.SetDefault("monitoring.error_burst", 50)

	port := viper.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid server.port: %d", port)
	}

	dbPath := strings.TrimSpace(viper.GetString("database.path"))
	if dbPath == "" {
		return nil, fmt.Errorf("database.path must not be empty")
	}

	defaultPageSize := viper.GetInt("search.default_page_size")
	maxPageSize := viper.GetInt("search.max_page_size")
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	if defaultPageSize <= 0 || defaultPageSize > maxPageSize {
		return nil, fmt.Errorf("search.default_page_size must be between 1 and %d", maxPageSize)
	}

	maxItems := viper.GetInt("batch.max_items")
	if maxItems <= 0 {
		maxItems = 1000
	}
	queueSize := viper.GetInt("batch.queue_size")
	if queueSize <= 0 {
		queueSize = 16
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	rate := viper.GetFloat64("verification.rate_per_second")
	if rate <= 0 {
		rate = 1
	}
	burst := viper.GetInt("verification.burst")
	if burst <= 0 {
		burst = 1
	}

	memoryThreshold := viper.GetFloat64("monitoring.memory_threshold_mb")
	if memoryThreshold <= 0 {
		memoryThreshold = 512
	}
	errorBurst := viper.GetInt("monitoring.error_burst")
	if errorBurst <= 0 {
		errorBurst = 50
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            viper.GetString("server.host"),
			Port:            port,
			ReadTimeout:     parseDuration("server.read_timeout", 15*time.Second),
			WriteTimeout:    parseDuration("server.write_timeout", 60*time.Second),
			ShutdownTimeout: parseDuration("server.shutdown_timeout", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
			MaxSize:     viper.GetInt("log.max_size"),
			MaxBackups:  viper.GetInt("log.max_backups"),
			MaxAge:      viper.GetInt("log.max_age"),
			Compress:    viper.GetBool("log.compress"),
		},
		Database: DatabaseConfig{
			Path:            dbPath,
			BusyTimeout:     parseDuration("database.busy_timeout", 5*time.Second),
			ConnMaxLifetime: parseDuration("database.conn_max_lifetime", time.Hour),
			SlowThreshold:   parseDuration("database.slow_threshold", 200*time.Millisecond),
		},
		Domains: DomainsConfig{
			Allowed:  parseDomains(viper.GetString("domains.allowed")),
			CacheTTL: parseDuration("domains.cache_ttl", time.Minute),
		},
		Search: SearchConfig{
			DefaultPageSize: defaultPageSize,
			MaxPageSize:     maxPageSize,
		},
		Batch: BatchConfig{
			MaxItems:  maxItems,
			QueueSize: queueSize,
		},
		Vault: VaultConfig{
			MasterPassword: viper.GetString("vault.master_password"),
		},
		Verification: VerificationConfig{
			Timeout:       parseDuration("verification.timeout", 2*time.Minute),
			RatePerSecond: rate,
			Burst:         burst,
		},
		Monitoring: MonitoringConfig{
			AlertInterval:     parseDuration("monitoring.alert_interval", 30*time.Second),
			MemoryThresholdMB: memoryThreshold,
			ErrorBurst:        errorBurst,
		},
	}

	return cfg, nil
}

// Address 返回 host:port 监听地址
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// parseDuration 读取时长配置，格式错误时使用兜底值
func parseDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// parseDomains 将逗号分隔的域名字符串解析为小写域名数组
//
// 参数:
//   - value: 逗号分隔的域名字符串，如 "example.com,mail.example.org"
//
// 返回值:
//   - []string: 解析后的小写域名数组
func parseDomains(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
