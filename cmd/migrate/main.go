package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/storage/sqlite"
)

func main() {
	// 解析命令行参数
	dbPath := flag.String("db", "", "SQLite 数据库文件路径，默认读取 ALIASBOX_DATABASE_PATH")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// 打开数据库时执行迁移
	store, err := sqlite.Open(cfg.Database, nil)
	if err != nil {
		fmt.Printf("错误: 无法打开数据库 %s: %v\n", cfg.Database.Path, err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Printf("✓ 成功打开并迁移数据库 %s\n", cfg.Database.Path)

	version, err := store.AppliedVersion(ctx)
	if err != nil {
		fmt.Printf("错误: 读取结构版本失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("当前结构版本: %d（程序支持版本: %d）\n", version, sqlite.SchemaVersion)

	if version < sqlite.SchemaVersion {
		os.Exit(2)
	}
}
