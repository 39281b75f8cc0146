// Package util 提供通用工具函数
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword 使用 bcrypt 哈希密码
// 参数:
//   - password: 明文密码
//
// 返回:
//   - string: 密码哈希值
//   - error: 哈希错误
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword 验证密码是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NewID 生成 UUID v4 字符串，用作用户与会话的主键
func NewID() string {
	return uuid.NewString()
}

// TruncateRunes 按字符（rune）截断字符串，不追加省略号
// 参数:
//   - s: 原字符串
//   - maxRunes: 最多保留的字符数
//
// 返回:
//   - string: 截断后的字符串
//   - bool: 是否发生了截断
func TruncateRunes(s string, maxRunes int) (string, bool) {
	if maxRunes <= 0 {
		return "", s != ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s, false
	}
	count := 0
	for i := range s {
		if count == maxRunes {
			return s[:i], true
		}
		count++
	}
	return s, false
}

// StringPtr 返回字符串的指针
func StringPtr(s string) *string {
	return &s
}

// HashToken 计算 Token 的 SHA256 哈希值
// 用于黑名单存储，避免存储原始 Token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
