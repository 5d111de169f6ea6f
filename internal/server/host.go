package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pv-hub/pv-hub/internal/site"
	"github.com/pv-hub/pv-hub/internal/slug"
)

var (
	// ErrBareDomain 表示请求直接命中了 base_domain 本身。
	ErrBareDomain = errors.New("bare base domain")
	// ErrForeignHost 表示 Host 不以 .<base_domain> 结尾，或不止一层子域。
	ErrForeignHost = errors.New("host outside base domain")
	// ErrInvalidSlug 表示子域标签含有 slug 字符集之外的字符。
	ErrInvalidSlug = errors.New("invalid slug label")
	// ErrSiteNotFound 表示 slug 对应的站点目录不存在。
	ErrSiteNotFound = errors.New("site not found")
)

// SiteRoute 是 Host 解析成功后的结果，供静态文件处理器直接使用。
type SiteRoute struct {
	// Host 为规整后的请求 Host（小写，保留端口）。
	Host string
	Slug string
	// Dir 为站点目录的绝对路径。
	Dir string
}

// HostRouter 将 <slug>.<base_domain> 形式的 Host 解析为站点目录。
// base_domain 可带端口（例如 localhost:3000），比较时端口也参与匹配。
type HostRouter struct {
	baseDomain string
	store      site.Store
}

// NewHostRouter 构造 HostRouter。调用方应在启动阶段创建一次并复用。
func NewHostRouter(baseDomain string, store site.Store) (*HostRouter, error) {
	base := normalizeHost(baseDomain)
	if base == "" {
		return nil, errors.New("base domain is required")
	}
	if store == nil {
		return nil, errors.New("site store is required")
	}
	return &HostRouter{baseDomain: base, store: store}, nil
}

// BaseDomain 返回规整后的 base_domain。
func (r *HostRouter) BaseDomain() string {
	return r.baseDomain
}

// Resolve 根据 Host 查找站点，失败时返回上面定义的哨兵错误之一（可用 errors.Is 判断）。
func (r *HostRouter) Resolve(ctx context.Context, host string) (*SiteRoute, error) {
	normalized := normalizeHost(host)
	if normalized == r.baseDomain {
		return nil, ErrBareDomain
	}

	label, rest, ok := strings.Cut(normalized, ".")
	if !ok || rest != r.baseDomain {
		return nil, fmt.Errorf("%w: %q", ErrForeignHost, normalized)
	}
	if !slug.Valid(label) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, label)
	}

	found, err := r.store.Lookup(ctx, label)
	if err != nil {
		if errors.Is(err, site.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, label)
		}
		return nil, fmt.Errorf("lookup %s: %w", label, err)
	}

	return &SiteRoute{Host: normalized, Slug: found.Slug, Dir: found.Dir}, nil
}

// normalizeHost 去掉首尾空白并转小写，端口保留参与匹配。
func normalizeHost(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// reason 将解析错误映射为日志/指标使用的短标签。
func reason(err error) string {
	switch {
	case errors.Is(err, ErrBareDomain):
		return "bare_domain"
	case errors.Is(err, ErrForeignHost):
		return "foreign_host"
	case errors.Is(err, ErrInvalidSlug):
		return "invalid_slug"
	case errors.Is(err, ErrSiteNotFound):
		return "site_not_found"
	default:
		return "lookup_error"
	}
}
