package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrDomainTooLong    = errors.New("domain too long (max 253 chars)")
	ErrInvalidLocalPart = errors.New("invalid local part format")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrInvalidTagName   = errors.New("invalid tag name")
	ErrInvalidColor     = errors.New("invalid color code")
)

// 验证常量
const (
	// RFC 5322 邮箱地址长度限制
	MaxEmailLength     = 254 // 整个邮箱地址最大长度
	MaxLocalPartLength = 64  // 本地部分最大长度(@前面)
	MaxDomainLength    = 253 // 域名最大长度

	MaxTagNameLength = 100
	MaxNotesLength   = 4000
)

// 正则表达式
var (
	// 本地部分验证，允许 + 子地址
	localPartRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

	// 域名验证（支持子域名，至少两级）
	domainRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

	colorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// EmailValidator 邮箱验证器
type EmailValidator struct{}

// NewEmailValidator 创建邮箱验证器
func NewEmailValidator() *EmailValidator {
	return &EmailValidator{}
}

// ValidateEmail 完整验证邮箱地址
func (v *EmailValidator) ValidateEmail(email string) error {
	email = NormalizeAddress(email)

	// 长度检查
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	// 使用标准库进行基础格式验证
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}

	localPart, domain := SplitAddress(email)
	if localPart == "" || domain == "" {
		return ErrInvalidEmail
	}

	if err := v.ValidateLocalPart(localPart); err != nil {
		return err
	}
	return v.ValidateDomain(domain)
}

// ValidateLocalPart 验证邮箱本地部分
func (v *EmailValidator) ValidateLocalPart(localPart string) error {
	if localPart == "" {
		return ErrInvalidLocalPart
	}
	if len(localPart) > MaxLocalPartLength {
		return ErrLocalPartTooLong
	}
	if !localPartRegex.MatchString(localPart) {
		return ErrInvalidLocalPart
	}

	// 不允许连续的特殊字符
	for _, seq := range []string{"..", ".-", "-.", "--", "__", "_.", "._", "++"} {
		if strings.Contains(localPart, seq) {
			return ErrInvalidLocalPart
		}
	}
	return nil
}

// ValidateDomain 验证域名
func (v *EmailValidator) ValidateDomain(domain string) error {
	if domain == "" {
		return ErrInvalidDomain
	}
	if len(domain) > MaxDomainLength {
		return ErrDomainTooLong
	}
	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}

// NormalizeAddress 去除首尾空白并转为小写
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SplitAddress 拆分本地部分和域名，格式不符时返回空串
func SplitAddress(address string) (string, string) {
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return "", ""
	}
	return address[:at], address[at+1:]
}

// NormalizeTagName 标签名只去除首尾空白，保留大小写
func NormalizeTagName(name string) string {
	return strings.TrimSpace(name)
}

// ValidateTagName 验证标签名（需先规范化）
func ValidateTagName(name string) error {
	if name == "" || len(name) > MaxTagNameLength {
		return ErrInvalidTagName
	}
	// 不允许控制字符以及导出时使用的分隔符
	for _, r := range name {
		if r < 32 || r == ';' {
			return ErrInvalidTagName
		}
	}
	return nil
}

// ValidateColorCode 验证 #RGB 或 #RRGGBB 颜色
func ValidateColorCode(color string) error {
	if !colorRegex.MatchString(color) {
		return ErrInvalidColor
	}
	return nil
}
