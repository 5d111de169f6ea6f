// Package static serves the files of a resolved preview site. Each site
// directory gets its own fiber static handler; handlers are kept in an
// expirable LRU so hot sites skip the construction cost.
package static

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/pv-hub/pv-hub/internal/logging"
	"github.com/pv-hub/pv-hub/internal/server"
)

const (
	// DefaultCacheSize 为未配置时缓存的站点 handler 数量。
	DefaultCacheSize = 256
	// IndexName 是目录请求时尝试的默认文件。
	IndexName = "index.html"
)

// Options 控制 Handler 的缓存行为，零值字段使用默认值。
type Options struct {
	Logger    *logrus.Logger
	CacheSize int
	// CacheTTL 为 handler 在缓存中的存活时间，0 表示只按容量淘汰。
	CacheTTL time.Duration
}

// Handler 按站点目录缓存 fiber static handler，对外满足 server.SiteHandler。
type Handler struct {
	logger   *logrus.Logger
	handlers *expirable.LRU[string, fiber.Handler]
}

// NewHandler constructs a site file handler backed by an expirable LRU.
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	return &Handler{
		logger:   opts.Logger,
		handlers: expirable.NewLRU[string, fiber.Handler](opts.CacheSize, nil, opts.CacheTTL),
	}
}

// Handle 只响应 GET/HEAD；文件缺失、目录无 index.html 或任何 5xx 都改写为空 404。
func (h *Handler) Handle(c fiber.Ctx, route *server.SiteRoute) error {
	method := c.Method()
	if method != fiber.MethodGet && method != fiber.MethodHead {
		return server.RenderNotFound(c)
	}

	started := time.Now()
	if err := h.handlerFor(route.Dir)(c); err != nil {
		h.logResult(c, route, fiber.StatusNotFound, started, err)
		return server.RenderNotFound(c)
	}

	h.logResult(c, route, c.Response().StatusCode(), started, nil)
	return nil
}

// Cached 返回当前缓存的站点 handler 数量。
func (h *Handler) Cached() int {
	return h.handlers.Len()
}

func (h *Handler) handlerFor(dir string) fiber.Handler {
	if cached, ok := h.handlers.Get(dir); ok {
		return cached
	}
	handler := static.New(dir, static.Config{
		IndexNames: []string{IndexName},
		ByteRange:  true,
		// 负值关闭 fasthttp 的文件句柄缓存，淘汰出 LRU 的 handler 不会残留后台清理协程
		CacheDuration:   -1,
		NotFoundHandler: server.RenderNotFound,
		ModifyResponse:  hideServerErrors,
	})
	h.handlers.Add(dir, handler)
	return handler
}

func hideServerErrors(c fiber.Ctx) error {
	if c.Response().StatusCode() >= fiber.StatusInternalServerError {
		return server.RenderNotFound(c)
	}
	return nil
}

func (h *Handler) logResult(c fiber.Ctx, route *server.SiteRoute, status int, started time.Time, err error) {
	fields := logging.RequestFields(server.RequestID(c), route.Host, route.Slug)
	fields["action"] = "site_serve"
	fields["path"] = c.Path()
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		h.logger.WithFields(fields).WithError(err).Error("site_serve_failed")
		return
	}
	h.logger.WithFields(fields).Debug("site_serve")
}
