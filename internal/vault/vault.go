// Package vault 使用主密码派生的密钥加密配置项。
//
// 密文格式: "ENC:v1:" + base64(salt(16) || nonce(12) || ciphertext+tag)。
// 没有主密码时值以 "PLAIN:" 前缀明文保存，导出时需要标注。
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"

	"aliasbox/backend/internal/domain"
)

const (
	EncryptedPrefix = "ENC:"
	PlainPrefix     = "PLAIN:"
	versionV1       = "v1"

	SaltLength  = 16
	NonceLength = 12
	KeyLength   = 32

	verifierPlaintext = "aliasbox-vault-check"
)

// Errors
var (
	ErrMasterPasswordRequired = errors.New("vault: master password required")
	ErrInvalidPassword        = errors.New("vault: invalid master password or tampered data")
	ErrMalformed              = errors.New("vault: malformed ciphertext")
	ErrUnsupportedVersion     = errors.New("vault: unsupported ciphertext version")
)

// KDFParams argon2id 参数
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams 与 v1 密文绑定的参数
var DefaultKDFParams = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

// Vault 持有主密码并缓存按 salt 派生的密钥
type Vault struct {
	password []byte
	params   KDFParams

	mu   sync.Mutex
	keys map[string][]byte
}

// Option 配置 Vault
type Option func(*Vault)

// WithKDFParams 覆盖密钥派生参数
func WithKDFParams(p KDFParams) Option {
	return func(v *Vault) { v.params = p }
}

// New 创建 Vault，password 为空时进入明文占位模式
func New(password string, opts ...Option) *Vault {
	v := &Vault{
		params: DefaultKDFParams,
		keys:   make(map[string][]byte),
	}
	if password != "" {
		v.password = []byte(password)
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HasKey 是否设置了主密码
func (v *Vault) HasKey() bool {
	return len(v.password) > 0
}

// IsEncrypted 判断值是否为格式完整的密文
func IsEncrypted(value string) bool {
	rest, ok := strings.CutPrefix(value, EncryptedPrefix)
	if !ok {
		return false
	}
	version, payload, ok := strings.Cut(rest, ":")
	if !ok || version == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return false
	}
	return len(raw) > SaltLength+NonceLength
}

// IsPlaceholder 判断值是否为明文占位
func IsPlaceholder(value string) bool {
	return strings.HasPrefix(value, PlainPrefix)
}

// Encrypt 加密明文
//
// 已经是密文的值原样返回；没有主密码时返回 "PLAIN:" 占位。
// 其余输入一律按原文处理，Decrypt 总能还原出同一个字符串。
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if IsEncrypted(plaintext) {
		return plaintext, nil
	}
	if !v.HasKey() {
		return PlainPrefix + plaintext, nil
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", &domain.CryptoError{Op: "encrypt", Err: err}
	}
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", &domain.CryptoError{Op: "encrypt", Err: err}
	}

	aead, err := v.aead(salt)
	if err != nil {
		return "", &domain.CryptoError{Op: "encrypt", Err: err}
	}
	header := EncryptedPrefix + versionV1 + ":"
	sealed := aead.Seal(nil, nonce, []byte(plaintext), []byte(header))

	payload := make([]byte, 0, SaltLength+NonceLength+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)
	return header + base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt 解密值
//
// "PLAIN:" 占位直接返回明文；未加前缀的旧值视为明文。
// 密钥错误、数据被篡改或截断时返回 CryptoError，从不返回错误的明文。
func (v *Vault) Decrypt(value string) (string, error) {
	if IsPlaceholder(value) {
		return strings.TrimPrefix(value, PlainPrefix), nil
	}
	rest, ok := strings.CutPrefix(value, EncryptedPrefix)
	if !ok {
		return value, nil
	}
	if !v.HasKey() {
		return "", &domain.CryptoError{Op: "decrypt", Err: ErrMasterPasswordRequired}
	}

	version, payload, ok := strings.Cut(rest, ":")
	if !ok {
		return "", &domain.CryptoError{Op: "decrypt", Err: ErrMalformed}
	}
	if version != versionV1 {
		return "", &domain.CryptoError{Op: "decrypt", Err: ErrUnsupportedVersion}
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) <= SaltLength+NonceLength {
		return "", &domain.CryptoError{Op: "decrypt", Err: ErrMalformed}
	}

	salt := raw[:SaltLength]
	nonce := raw[SaltLength : SaltLength+NonceLength]
	sealed := raw[SaltLength+NonceLength:]

	aead, err := v.aead(salt)
	if err != nil {
		return "", &domain.CryptoError{Op: "decrypt", Err: err}
	}
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(EncryptedPrefix+version+":"))
	if err != nil {
		return "", &domain.CryptoError{Op: "decrypt", Err: ErrInvalidPassword}
	}
	return string(plaintext), nil
}

// EncryptSection 序列化并加密整个配置分区
func (v *Vault) EncryptSection(section map[string]string) (string, error) {
	data, err := json.Marshal(section)
	if err != nil {
		return "", &domain.CryptoError{Op: "encrypt section", Err: err}
	}
	return v.Encrypt(string(data))
}

// DecryptSection 解密并反序列化配置分区
func (v *Vault) DecryptSection(value string) (map[string]string, error) {
	plaintext, err := v.Decrypt(value)
	if err != nil {
		return nil, err
	}
	section := map[string]string{}
	if err := json.Unmarshal([]byte(plaintext), &section); err != nil {
		return nil, &domain.CryptoError{Op: "decrypt section", Err: ErrMalformed}
	}
	return section, nil
}

// Verifier 生成校验令牌，保存后用于检测主密码是否正确
func (v *Vault) Verifier() (string, error) {
	if !v.HasKey() {
		return "", &domain.CryptoError{Op: "verifier", Err: ErrMasterPasswordRequired}
	}
	return v.Encrypt(verifierPlaintext)
}

// Verify 校验令牌
func (v *Vault) Verify(token string) error {
	if !IsEncrypted(token) {
		return &domain.CryptoError{Op: "verify", Err: ErrMalformed}
	}
	plaintext, err := v.Decrypt(token)
	if err != nil {
		return err
	}
	if plaintext != verifierPlaintext {
		return &domain.CryptoError{Op: "verify", Err: ErrInvalidPassword}
	}
	return nil
}

// aead 按 salt 获取（或派生并缓存）密钥
func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	v.mu.Lock()
	key, ok := v.keys[string(salt)]
	if !ok {
		key = argon2.IDKey(v.password, salt, v.params.Time, v.params.Memory, v.params.Threads, KeyLength)
		v.keys[string(salt)] = key
	}
	v.mu.Unlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
