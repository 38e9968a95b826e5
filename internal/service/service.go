package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/storage"
)

// DomainSource 提供当前可用的域名列表
type DomainSource interface {
	Domains(ctx context.Context) ([]string, error)
}

// StaticDomains 固定的域名列表
type StaticDomains []string

// Domains 返回固定列表
func (d StaticDomains) Domains(context.Context) ([]string, error) {
	return []string(d), nil
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// appendLog 在事务内追加一条操作日志
func appendLog(ctx context.Context, tx storage.Store, op, targetType string, targetID int64, details domain.Metadata) error {
	return tx.AppendOperationLog(ctx, &domain.OperationLog{
		Operation:  op,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		Success:    true,
		CreatedAt:  time.Now().UTC(),
	})
}

// attachTags 批量填充记录的标签名
func attachTags(ctx context.Context, st storage.Store, emails []domain.Email) error {
	if len(emails) == 0 {
		return nil
	}
	ids := make([]int64, len(emails))
	for i := range emails {
		ids[i] = emails[i].ID
	}
	names, err := st.TagNamesByEmail(ctx, ids)
	if err != nil {
		return err
	}
	for i := range emails {
		emails[i].Tags = names[emails[i].ID]
	}
	return nil
}

// normalizeTagNames 去除空白、空值和重复项，保持原有顺序
func normalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = domain.NormalizeTagName(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// containsDomain 判断域名是否在列表中（不区分大小写）
func containsDomain(domains []string, d string) bool {
	for _, candidate := range domains {
		if strings.EqualFold(candidate, d) {
			return true
		}
	}
	return false
}
