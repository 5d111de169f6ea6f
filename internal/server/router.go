package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pv-hub/pv-hub/internal/logging"
	"github.com/pv-hub/pv-hub/internal/metrics"
)

// UploadPath 是唯一不经过 Host 路由的接口路径。
const UploadPath = "/upload"

// SiteHandler describes the component responsible for serving files of a
// resolved preview site. It allows injecting fake handlers during tests.
type SiteHandler interface {
	Handle(fiber.Ctx, *SiteRoute) error
}

// SiteHandlerFunc adapts a function to the SiteHandler interface.
type SiteHandlerFunc func(fiber.Ctx, *SiteRoute) error

// Handle makes SiteHandlerFunc satisfy SiteHandler.
func (f SiteHandlerFunc) Handle(c fiber.Ctx, route *SiteRoute) error {
	return f(c, route)
}

// AppOptions controls how the main Fiber application should behave.
type AppOptions struct {
	Logger *logrus.Logger
	Router *HostRouter
	Sites  SiteHandler
	Upload fiber.Handler
	// BodyLimit caps request bodies in bytes; zero keeps fiber's default.
	BodyLimit   int
	ReadTimeout time.Duration
}

const (
	contextKeyRoute     = "_pvhub_route"
	contextKeyRequestID = "_pvhub_request_id"
)

// NewApp builds the Fiber application: POST /upload goes to the upload
// handler, every other request is resolved by Host and handed to Sites.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Router == nil {
		return nil, errors.New("host router is required")
	}
	if opts.Sites == nil {
		return nil, errors.New("site handler is required")
	}
	if opts.Upload == nil {
		return nil, errors.New("upload handler is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		StrictRouting: true,
		BodyLimit:     opts.BodyLimit,
		ReadTimeout:   opts.ReadTimeout,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	app.Post(UploadPath, opts.Upload)
	app.All("/*", func(c fiber.Ctx) error {
		route, ok := getRouteFromContext(c)
		if !ok {
			return RenderNotFound(c)
		}
		return opts.Sites.Handle(c, route)
	})

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并基于 Host 查找 SiteRoute。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		if isUploadRequest(c) {
			return c.Next()
		}

		host := HostHeader(c)
		route, err := opts.Router.Resolve(c.Context(), host)
		if err != nil {
			why := reason(err)
			metrics.SiteRequests.WithLabelValues(why).Inc()
			entry := opts.Logger.WithFields(logging.RequestFields(reqID, host, "")).
				WithField("action", "host_lookup").
				WithField("reason", why)
			if why == "lookup_error" {
				entry.WithError(err).Error("site lookup failed")
			} else {
				entry.Warn("host unmapped")
			}
			return RenderNotFound(c)
		}

		metrics.SiteRequests.WithLabelValues("routed").Inc()
		c.Locals(contextKeyRoute, route)
		return c.Next()
	}
}

// RenderNotFound 返回空响应体的 404，站点缺失、Host 不匹配等情况对外不可区分。
func RenderNotFound(c fiber.Ctx) error {
	return renderEmpty(c, fiber.StatusNotFound)
}

func renderEmpty(c fiber.Ctx, status int) error {
	c.Status(status)
	c.Response().ResetBody()
	c.Response().Header.Del(fiber.HeaderContentType)
	return nil
}

func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		logger.WithFields(logging.RequestFields(RequestID(c), HostHeader(c), "")).
			WithField("action", "request_error").
			WithField("status", status).
			WithError(err).
			Warn("request failed")
		return renderEmpty(c, status)
	}
}

func isUploadRequest(c fiber.Ctx) bool {
	return c.Method() == fiber.MethodPost && string(c.Request().URI().Path()) == UploadPath
}

// HostHeader returns the request host including any port. For absolute-form
// targets (GET http://host:port/path) fasthttp keeps the host in the URI only,
// which Request().Host() covers as well.
func HostHeader(c fiber.Ctx) string {
	return string(c.Request().Host())
}

func getRouteFromContext(c fiber.Ctx) (*SiteRoute, bool) {
	if value := c.Locals(contextKeyRoute); value != nil {
		if route, ok := value.(*SiteRoute); ok {
			return route, true
		}
	}
	return nil, false
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
