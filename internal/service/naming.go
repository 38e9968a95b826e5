package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"aliasbox/backend/internal/domain"
)

// NamingOptions 生成邮箱前缀的参数
type NamingOptions struct {
	Strategy    domain.NamingStrategy `json:"strategy"`
	Prefix      string                `json:"prefix"`
	StartNumber int                   `json:"startNumber"` // sequential 起始序号，默认 1
	Padding     int                   `json:"padding"`     // sequential 序号位数，默认 3
	RandomLen   int                   `json:"randomLength"`
	CustomNames []string              `json:"customNames"` // custom 策略，可以是前缀或完整地址
}

// 随机部分长度范围
const (
	defaultRandomLen = 10
	maxRandomLen     = 32
)

// generateLocalParts 按命名策略生成 count 个本地部分
//
// custom 策略直接返回 CustomNames，count 被忽略。
func generateLocalParts(opts NamingOptions, count int, now time.Time) ([]string, error) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = domain.NamingRandom
	}
	if !strategy.Valid() {
		return nil, domain.NewValidationError("strategy", "unknown naming strategy %q", strategy)
	}
	prefix := strings.ToLower(strings.TrimSpace(opts.Prefix))

	if strategy == domain.NamingCustom {
		names := make([]string, 0, len(opts.CustomNames))
		for _, name := range opts.CustomNames {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return nil, domain.NewValidationError("customNames", "custom strategy requires at least one name")
		}
		return names, nil
	}

	if count <= 0 {
		return nil, domain.NewValidationError("count", "count must be positive")
	}

	names := make([]string, 0, count)
	switch strategy {
	case domain.NamingSequential:
		if prefix == "" {
			prefix = "user"
		}
		start := opts.StartNumber
		if start <= 0 {
			start = 1
		}
		padding := opts.Padding
		if padding <= 0 {
			padding = 3
		}
		for i := 0; i < count; i++ {
			names = append(names, fmt.Sprintf("%s%0*d", prefix, padding, start+i))
		}

	case domain.NamingTimestamp:
		if prefix == "" {
			prefix = "mail"
		}
		stamp := now.UTC().Format("20060102150405")
		for i := 0; i < count; i++ {
			names = append(names, fmt.Sprintf("%s%s%03d", prefix, stamp, i+1))
		}

	default:
		n := opts.RandomLen
		if n <= 0 {
			n = defaultRandomLen
		}
		if n > maxRandomLen {
			n = maxRandomLen
		}
		for i := 0; i < count; i++ {
			names = append(names, prefix+randomToken(n))
		}
	}
	return names, nil
}

// randomToken 基于 UUID 生成小写十六进制随机串
func randomToken(n int) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return token[:n]
}
