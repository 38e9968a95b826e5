package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"aliasbox/backend/internal/cache"
	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/storage"
	"aliasbox/backend/internal/vault"
)

// 内部使用的配置键
const (
	domainsKey     = "domains"     // SectionDomain 下的域名列表（JSON 数组）
	vaultCheckKey  = "vault_check" // SectionSystem 下的主密码校验令牌
	domainCacheKey = "config:domains"
	maxConfigKey   = 100
)

// ConfigService 配置服务
//
// 负责配置项的版本化读写、敏感分区加密以及域名列表的缓存。
type ConfigService struct {
	store    storage.Store
	cache    *cache.LocalCache
	defaults []string
	opts     []vault.Option
	logger   *zap.Logger

	mu    sync.RWMutex
	vault *vault.Vault
}

// NewConfigService 创建配置服务
//
// 参数:
//   - store: 存储
//   - cfg: 域名配置，Allowed 作为首次启动时的默认域名
//   - c: 本地缓存，可为 nil
//   - logger: 日志记录器
//   - opts: 主密码派生参数（测试用）
func NewConfigService(store storage.Store, cfg config.DomainsConfig, c *cache.LocalCache, logger *zap.Logger, opts ...vault.Option) *ConfigService {
	return &ConfigService{
		store:    store,
		cache:    c,
		defaults: cfg.Allowed,
		opts:     opts,
		logger:   orNop(logger).Named("config"),
		vault:    vault.New("", opts...),
	}
}

// ConfigExportItem 导出用的配置项
type ConfigExportItem struct {
	Section   domain.ConfigSection `json:"section"`
	Key       string               `json:"key"`
	Value     string               `json:"value"`
	Version   int                  `json:"version"`
	Encrypted bool                 `json:"encrypted"`
	Label     string               `json:"label,omitempty"`
}

// Unlock 使用主密码解锁
//
// 首次解锁时写入校验令牌；之后密码错误返回 CryptoError。
// 解锁后把之前以明文占位保存的敏感配置重新加密。
func (s *ConfigService) Unlock(ctx context.Context, password string) error {
	if password == "" {
		return domain.NewValidationError("password", "master password is required")
	}
	v := vault.New(password, s.opts...)

	entry, err := s.store.GetActiveConfig(ctx, domain.SectionSystem, vaultCheckKey)
	switch {
	case err == nil:
		if err := v.Verify(entry.Value); err != nil {
			s.logger.Warn("master password rejected")
			return err
		}
	case domain.IsNotFound(err):
		token, err := v.Verifier()
		if err != nil {
			return err
		}
		err = s.store.WithTx(ctx, func(tx storage.Store) error {
			return tx.SaveConfigVersion(ctx, &domain.ConfigEntry{
				Key:         vaultCheckKey,
				Value:       token,
				Section:     domain.SectionSystem,
				IsEncrypted: true,
				Description: "master password check token",
			})
		})
		if err != nil {
			return err
		}
	default:
		return err
	}

	s.mu.Lock()
	s.vault = v
	s.mu.Unlock()

	sealed, err := s.sealPlaceholders(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("config vault unlocked", zap.Int("resealed", sealed))
	return nil
}

// sealPlaceholders 加密敏感分区中的明文占位值
func (s *ConfigService) sealPlaceholders(ctx context.Context) (int, error) {
	entries, err := s.store.ListActiveConfig(ctx, domain.SectionSecurity)
	if err != nil {
		return 0, err
	}
	v := s.currentVault()
	sealed := 0
	for _, entry := range entries {
		if !vault.IsPlaceholder(entry.Value) {
			continue
		}
		plain, err := v.Decrypt(entry.Value)
		if err != nil {
			return sealed, err
		}
		if _, err := s.save(ctx, domain.SectionSecurity, entry.Key, plain, entry.Description, domain.OpConfigSave); err != nil {
			return sealed, err
		}
		sealed++
	}
	return sealed, nil
}

// Unlocked 是否已设置主密码
func (s *ConfigService) Unlocked() bool {
	return s.currentVault().HasKey()
}

func (s *ConfigService) currentVault() *vault.Vault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vault
}

func checkSectionKey(section domain.ConfigSection, key string) error {
	if !section.Valid() {
		return domain.NewValidationError("section", "unknown config section %q", section)
	}
	if strings.TrimSpace(key) == "" {
		return domain.NewValidationError("key", "config key is required")
	}
	if len(key) > maxConfigKey {
		return domain.NewValidationError("key", "config key exceeds %d characters", maxConfigKey)
	}
	return nil
}

// Set 保存配置项的新版本
//
// security 分区的值在已解锁时加密保存，未解锁时以 "PLAIN:" 占位保存。
func (s *ConfigService) Set(ctx context.Context, section domain.ConfigSection, key, value, description string) (*domain.ConfigEntry, error) {
	if err := checkSectionKey(section, key); err != nil {
		return nil, err
	}
	if section == domain.SectionSystem && key == vaultCheckKey {
		return nil, domain.NewValidationError("key", "%q is reserved", key)
	}
	return s.save(ctx, section, strings.TrimSpace(key), value, description, domain.OpConfigSave)
}

func (s *ConfigService) save(ctx context.Context, section domain.ConfigSection, key, value, description, op string) (*domain.ConfigEntry, error) {
	stored := value
	if section.Sensitive() {
		var err error
		if stored, err = s.currentVault().Encrypt(value); err != nil {
			return nil, err
		}
	}

	entry := &domain.ConfigEntry{
		Key:         key,
		Value:       stored,
		Section:     section,
		IsEncrypted: section.Sensitive() && vault.IsEncrypted(stored),
		Description: description,
	}
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.SaveConfigVersion(ctx, entry); err != nil {
			return err
		}
		return appendLog(ctx, tx, op, "config", entry.ID, domain.Metadata{
			"section": string(section),
			"key":     key,
			"version": entry.Version,
		})
	})
	if err != nil {
		return nil, err
	}

	if section == domain.SectionDomain && key == domainsKey {
		s.invalidateDomains()
	}
	s.logger.Debug("config saved",
		zap.String("section", string(section)),
		zap.String("key", key),
		zap.Int("version", entry.Version),
		zap.Bool("encrypted", entry.IsEncrypted),
	)
	return entry, nil
}

// Get 读取配置项的当前值（已解密）
func (s *ConfigService) Get(ctx context.Context, section domain.ConfigSection, key string) (string, error) {
	if err := checkSectionKey(section, key); err != nil {
		return "", err
	}
	entry, err := s.store.GetActiveConfig(ctx, section, key)
	if err != nil {
		return "", err
	}
	return s.open(s.currentVault(), section, entry)
}

// open 还原存储值，只有敏感分区或已加密的值才经过 vault
func (s *ConfigService) open(v *vault.Vault, section domain.ConfigSection, entry *domain.ConfigEntry) (string, error) {
	if !section.Sensitive() && !entry.IsEncrypted {
		return entry.Value, nil
	}
	return v.Decrypt(entry.Value)
}

// GetSection 读取分区内全部配置项（已解密）
//
// 任一值解密失败都返回 CryptoError，不会回退为密文或空值。
func (s *ConfigService) GetSection(ctx context.Context, section domain.ConfigSection) (map[string]string, error) {
	if !section.Valid() {
		return nil, domain.NewValidationError("section", "unknown config section %q", section)
	}
	entries, err := s.store.ListActiveConfig(ctx, section)
	if err != nil {
		return nil, err
	}

	v := s.currentVault()
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		if section == domain.SectionSystem && entry.Key == vaultCheckKey {
			continue
		}
		value, err := s.open(v, section, &entry)
		if err != nil {
			return nil, fmt.Errorf("config %s.%s: %w", section, entry.Key, err)
		}
		out[entry.Key] = value
	}
	return out, nil
}

// History 按版本倒序返回配置项的全部版本（值保持存储形式）
func (s *ConfigService) History(ctx context.Context, section domain.ConfigSection, key string) ([]domain.ConfigEntry, error) {
	if err := checkSectionKey(section, key); err != nil {
		return nil, err
	}
	entries, err := s.store.ListConfigHistory(ctx, section, key)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.NewNotFoundError("config", string(section)+"."+key)
	}
	return entries, nil
}

// Rollback 回滚到指定版本
//
// 以旧版本的值写入一个新版本，版本号保持单调递增，历史不会被改写。
func (s *ConfigService) Rollback(ctx context.Context, section domain.ConfigSection, key string, version int) (*domain.ConfigEntry, error) {
	if err := checkSectionKey(section, key); err != nil {
		return nil, err
	}

	var entry *domain.ConfigEntry
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		old, err := tx.GetConfigVersion(ctx, section, key, version)
		if err != nil {
			return err
		}
		entry = &domain.ConfigEntry{
			Key:         key,
			Value:       old.Value,
			Section:     section,
			IsEncrypted: old.IsEncrypted,
			Description: old.Description,
		}
		if err := tx.SaveConfigVersion(ctx, entry); err != nil {
			return err
		}
		return appendLog(ctx, tx, domain.OpConfigRollback, "config", entry.ID, domain.Metadata{
			"section": string(section),
			"key":     key,
			"from":    version,
			"version": entry.Version,
		})
	})
	if err != nil {
		return nil, err
	}

	if section == domain.SectionDomain && key == domainsKey {
		s.invalidateDomains()
	}
	s.logger.Info("config rolled back",
		zap.String("section", string(section)),
		zap.String("key", key),
		zap.Int("from", version),
		zap.Int("version", entry.Version),
	)
	return entry, nil
}

// Domains 返回已配置的域名列表
//
// 首次读取且库中没有记录时，用启动配置中的默认域名初始化。
func (s *ConfigService) Domains(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(domainCacheKey); ok {
			return append([]string(nil), v.([]string)...), nil
		}
	}

	var domains []string
	entry, err := s.store.GetActiveConfig(ctx, domain.SectionDomain, domainsKey)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(entry.Value), &domains); err != nil {
			return nil, &domain.StorageError{Op: "decode domains", Err: err}
		}
	case domain.IsNotFound(err):
		if len(s.defaults) == 0 {
			return []string{}, nil
		}
		return s.SetDomains(ctx, s.defaults)
	default:
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(domainCacheKey, domains, 0)
	}
	return append([]string(nil), domains...), nil
}

// SetDomains 保存域名列表（小写、去重、排序）
func (s *ConfigService) SetDomains(ctx context.Context, list []string) ([]string, error) {
	validator := domain.NewEmailValidator()
	seen := map[string]struct{}{}
	domains := make([]string, 0, len(list))
	for _, d := range list {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if err := validator.ValidateDomain(d); err != nil {
			return nil, domain.NewValidationError("domains", "%q: %v", d, err)
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	sort.Strings(domains)

	data, err := json.Marshal(domains)
	if err != nil {
		return nil, err
	}
	if _, err := s.save(ctx, domain.SectionDomain, domainsKey, string(data), "configured domains", domain.OpConfigSave); err != nil {
		return nil, err
	}
	return domains, nil
}

func (s *ConfigService) invalidateDomains() {
	if s.cache != nil {
		s.cache.Delete(domainCacheKey)
	}
}

// ExportEntries 导出全部有效配置项
//
// 密文原样导出；敏感分区中的明文占位值带有标注。
func (s *ConfigService) ExportEntries(ctx context.Context) ([]ConfigExportItem, error) {
	items := []ConfigExportItem{}
	for _, section := range []domain.ConfigSection{domain.SectionDomain, domain.SectionSecurity, domain.SectionSystem} {
		entries, err := s.store.ListActiveConfig(ctx, section)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if section == domain.SectionSystem && entry.Key == vaultCheckKey {
				continue
			}
			item := ConfigExportItem{
				Section:   section,
				Key:       entry.Key,
				Value:     entry.Value,
				Version:   entry.Version,
				Encrypted: entry.IsEncrypted,
			}
			if section.Sensitive() && !entry.IsEncrypted {
				item.Label = "PLAINTEXT: stored without master password"
			}
			items = append(items, item)
		}
	}
	return items, nil
}
