package sqlite

import (
	"context"
	"time"

	"aliasbox/backend/internal/domain"
)

// ========== Config Repository ==========

// GetActiveConfig 获取配置项的有效版本
func (s *Store) GetActiveConfig(ctx context.Context, section domain.ConfigSection, key string) (*domain.ConfigEntry, error) {
	var entry domain.ConfigEntry
	err := s.db.WithContext(ctx).
		Where("key = ? AND config_type = ? AND is_active = ?", key, string(section), true).
		First(&entry).Error
	if err != nil {
		return nil, notFound(err, "config", string(section)+"."+key)
	}
	return &entry, nil
}

// ListActiveConfig 列出分区内全部有效配置
func (s *Store) ListActiveConfig(ctx context.Context, section domain.ConfigSection) ([]domain.ConfigEntry, error) {
	var entries []domain.ConfigEntry
	err := s.db.WithContext(ctx).
		Where("config_type = ? AND is_active = ?", string(section), true).
		Order("key ASC").
		Find(&entries).Error
	if err != nil {
		return nil, classifyError("list config", err)
	}
	return entries, nil
}

// ListConfigHistory 按版本倒序列出配置项的全部版本
func (s *Store) ListConfigHistory(ctx context.Context, section domain.ConfigSection, key string) ([]domain.ConfigEntry, error) {
	var entries []domain.ConfigEntry
	err := s.db.WithContext(ctx).
		Where("key = ? AND config_type = ?", key, string(section)).
		Order("version DESC").
		Find(&entries).Error
	if err != nil {
		return nil, classifyError("config history", err)
	}
	return entries, nil
}

// GetConfigVersion 获取配置项的指定版本
func (s *Store) GetConfigVersion(ctx context.Context, section domain.ConfigSection, key string, version int) (*domain.ConfigEntry, error) {
	var entry domain.ConfigEntry
	err := s.db.WithContext(ctx).
		Where("key = ? AND config_type = ? AND version = ?", key, string(section), version).
		First(&entry).Error
	if err != nil {
		return nil, notFound(err, "config version", version)
	}
	return &entry, nil
}

// SaveConfigVersion 写入新版本并使旧的有效版本失效
//
// 两步写操作需要在调用方的事务中执行。
func (s *Store) SaveConfigVersion(ctx context.Context, entry *domain.ConfigEntry) error {
	db := s.db.WithContext(ctx)

	var latest int
	err := db.Model(&domain.ConfigEntry{}).
		Where("key = ? AND config_type = ?", entry.Key, string(entry.Section)).
		Select("COALESCE(MAX(version), 0)").
		Scan(&latest).Error
	if err != nil {
		return classifyError("save config", err)
	}

	err = db.Model(&domain.ConfigEntry{}).
		Where("key = ? AND config_type = ? AND is_active = ?", entry.Key, string(entry.Section), true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return classifyError("save config", err)
	}

	entry.ID = 0
	entry.Version = latest + 1
	entry.IsActive = true
	if err := db.Create(entry).Error; err != nil {
		return classifyError("save config", err)
	}
	return nil
}

// ========== Operation Log Repository ==========

// AppendOperationLog 追加操作日志
func (s *Store) AppendOperationLog(ctx context.Context, log *domain.OperationLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return classifyError("append operation log", err)
	}
	return nil
}

// ListOperationLogs 按时间倒序列出最近的操作日志
func (s *Store) ListOperationLogs(ctx context.Context, limit int) ([]domain.OperationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []domain.OperationLog
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, classifyError("list operation logs", err)
	}
	return logs, nil
}
