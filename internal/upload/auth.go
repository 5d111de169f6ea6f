package upload

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	// ErrUnauthorized 表示缺少或不匹配的 Bearer 凭证。
	ErrUnauthorized = errors.New("unauthorized")
	// ErrHostMismatch 表示上传请求的 Host 不是 base_domain。
	ErrHostMismatch = errors.New("upload host mismatch")
)

const bearerScheme = "bearer"

// Gate 校验上传请求的凭证与 Host。先校验凭证，因此错误 token 总是得到 401。
type Gate struct {
	token      []byte
	baseDomain string
}

// NewGate 构造 Gate，token 与 baseDomain 均为必填。
func NewGate(token, baseDomain string) (*Gate, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("api token is required")
	}
	base := normalizeHost(baseDomain)
	if base == "" {
		return nil, errors.New("base domain is required")
	}
	return &Gate{token: []byte(token), baseDomain: base}, nil
}

// Check 校验 Authorization 与 Host 头，返回 ErrUnauthorized 或 ErrHostMismatch。
func (g *Gate) Check(authorization, host string) error {
	presented, ok := bearerToken(authorization)
	if !ok || subtle.ConstantTimeCompare(presented, g.token) != 1 {
		return ErrUnauthorized
	}
	if normalizeHost(host) != g.baseDomain {
		return ErrHostMismatch
	}
	return nil
}

// bearerToken 解析 "Bearer <token>"，scheme 大小写不敏感。
func bearerToken(header string) ([]byte, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return nil, false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}
	return []byte(token), true
}

func normalizeHost(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
