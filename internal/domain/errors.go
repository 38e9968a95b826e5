package domain

import (
	"errors"
	"fmt"
)

// ValidationError 输入不合法（格式错误、域名未配置、标签不存在等）
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Msg
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Msg)
}

// ConflictError 唯一约束冲突（重复地址、重复标签名、合并到自身）
type ConflictError struct {
	Resource string
	Msg      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
}

// NotFoundError 引用的记录不存在
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Resource, e.ID)
}

// StorageError 未能归类的底层存储错误
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CryptoError 解密失败（密钥错误、密文被篡改或格式不支持）
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// NewValidationError 创建校验错误
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NewConflictError 创建冲突错误
func NewConflictError(resource, format string, args ...any) error {
	return &ConflictError{Resource: resource, Msg: fmt.Sprintf(format, args...)}
}

// NewNotFoundError 创建不存在错误
func NewNotFoundError(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsValidation 判断错误链中是否包含 ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict 判断错误链中是否包含 ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound 判断错误链中是否包含 NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsStorage 判断错误链中是否包含 StorageError
func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

// IsCrypto 判断错误链中是否包含 CryptoError
func IsCrypto(err error) bool {
	var target *CryptoError
	return errors.As(err, &target)
}
