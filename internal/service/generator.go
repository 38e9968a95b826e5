package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"aliasbox/backend/internal/domain"
)

// GeneratorService 单条生成流程：生成地址、打标签，按需等待验证码
type GeneratorService struct {
	emails  *EmailService
	tags    *TagService
	codes   *CodeService
	domains DomainSource
	logger  *zap.Logger
	now     func() time.Time
}

// NewGeneratorService 创建生成服务，codes 可为 nil
func NewGeneratorService(emails *EmailService, tags *TagService, codes *CodeService, domains DomainSource, logger *zap.Logger) *GeneratorService {
	return &GeneratorService{
		emails:  emails,
		tags:    tags,
		codes:   codes,
		domains: domains,
		logger:  orNop(logger).Named("generator"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GenerateInput 生成输入
type GenerateInput struct {
	NamingOptions
	Domain      string   `json:"domain"`
	Suffix      string   `json:"suffix"`
	Notes       string   `json:"notes"`
	CreatedBy   string   `json:"createdBy"`
	TagNames    []string `json:"tags"`
	WaitForCode bool     `json:"waitForCode"`
}

// GenerateResult 生成结果
type GenerateResult struct {
	Email *domain.Email `json:"email"`
	Code  *CodeResult   `json:"code,omitempty"`
}

// Generate 生成一条记录
//
// WaitForCode 为 true 时等待验证码，取到后写入 metadata 并记录使用时间；
// 未取到验证码不视为错误，记录照常保留。
func (s *GeneratorService) Generate(ctx context.Context, input GenerateInput) (*GenerateResult, error) {
	host := strings.ToLower(strings.TrimSpace(input.Domain))
	if host == "" {
		configured, err := s.domains.Domains(ctx)
		if err != nil {
			return nil, err
		}
		if len(configured) == 0 {
			return nil, domain.NewValidationError("domain", "no domains configured")
		}
		host = configured[0]
	}

	opts := input.NamingOptions
	if opts.Strategy == domain.NamingCustom && len(opts.CustomNames) > 1 {
		opts.CustomNames = opts.CustomNames[:1]
	}
	locals, err := generateLocalParts(opts, 1, s.now())
	if err != nil {
		return nil, err
	}

	create := CreateEmailInput{
		Domain:    host,
		Suffix:    input.Suffix,
		Notes:     input.Notes,
		CreatedBy: input.CreatedBy,
	}
	if strings.Contains(locals[0], "@") {
		create.Address = locals[0]
	} else {
		create.Prefix = locals[0]
	}
	if len(input.TagNames) > 0 {
		tags, err := s.tags.EnsureTags(ctx, input.TagNames)
		if err != nil {
			return nil, err
		}
		for _, tag := range tags {
			create.TagIDs = append(create.TagIDs, tag.ID)
		}
	}

	email, err := s.emails.Create(ctx, create)
	if err != nil {
		return nil, err
	}
	result := &GenerateResult{Email: email}

	if !input.WaitForCode {
		return result, nil
	}
	code, err := s.codes.Fetch(ctx, email.Address)
	if err != nil {
		s.logger.Warn("verification code unavailable", zap.String("email", email.Address), zap.Error(err))
		result.Code = &CodeResult{Error: err.Error()}
		return result, nil
	}
	result.Code = &code
	if !code.Success {
		return result, nil
	}

	email, err = s.emails.RecordUse(ctx, email.ID, domain.Metadata{
		"verificationCode": code.Code,
		"codeReceivedAt":   s.now().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	result.Email = email
	return result, nil
}
