// Package upload implements POST /upload: it authenticates the caller,
// reserves a fresh slug directory and extracts the uploaded bundle into it.
package upload

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/pv-hub/pv-hub/internal/archive"
	"github.com/pv-hub/pv-hub/internal/config"
	"github.com/pv-hub/pv-hub/internal/logging"
	"github.com/pv-hub/pv-hub/internal/metrics"
	"github.com/pv-hub/pv-hub/internal/server"
	"github.com/pv-hub/pv-hub/internal/site"
	"github.com/pv-hub/pv-hub/internal/slug"
)

// FormField 是 multipart 请求中承载压缩包的字段名。
const FormField = "file"

// 对外返回的错误文案与成功响应共用 preview_url 字段。
const (
	msgUnauthorized     = "Unauthorized"
	msgInvalidHost      = "Invalid host"
	msgNoFile           = "No file provided"
	msgExtractionFailed = "Extraction failed"
	msgNoSlot           = "No preview slot available"
	msgTooManyRequests  = "Too many requests"
)

var errRateLimited = errors.New("upload rate limited")

// Response 是 /upload 的 JSON 响应体。
type Response struct {
	PreviewURL string `json:"preview_url"`
}

// Handler 串联 Gate → 表单解析 → slug 预留 → 解压。
type Handler struct {
	cfg       *config.Config
	gate      *Gate
	allocator *slug.Allocator
	store     site.Store
	logger    *logrus.Logger
	limiter   *Limiter
}

// NewHandler constructs the upload handler from its collaborators.
func NewHandler(cfg *config.Config, gate *Gate, allocator *slug.Allocator, store site.Store, logger *logrus.Logger) (*Handler, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("config is required")
	case gate == nil:
		return nil, errors.New("gate is required")
	case allocator == nil:
		return nil, errors.New("slug allocator is required")
	case store == nil:
		return nil, errors.New("site store is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{cfg: cfg, gate: gate, allocator: allocator, store: store, logger: logger}, nil
}

// WithLimiter 为上传接口挂上按客户端限速，nil 表示不限速。
func (h *Handler) WithLimiter(l *Limiter) *Handler {
	h.limiter = l
	return h
}

// Handle 处理一次上传，所有失败都以 {"preview_url": "<message>"} 形式返回。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	host := server.HostHeader(c)
	fields := logging.RequestFields(server.RequestID(c), host, "")
	fields["action"] = "upload"

	if h.limiter != nil {
		if ok, wait := h.limiter.Allow(c.IP()); !ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			return h.reject(c, fields, fiber.StatusTooManyRequests, msgTooManyRequests, "rate_limited", errRateLimited)
		}
	}

	if err := h.gate.Check(c.Get(fiber.HeaderAuthorization), host); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return h.reject(c, fields, fiber.StatusUnauthorized, msgUnauthorized, "unauthorized", err)
		}
		return h.reject(c, fields, fiber.StatusNotFound, msgInvalidHost, "host_mismatch", err)
	}

	fh, err := c.FormFile(FormField)
	if err != nil {
		return h.reject(c, fields, fiber.StatusBadRequest, msgNoFile, "no_file", err)
	}
	fields["upload_size"] = humanize.IBytes(uint64(max(fh.Size, 0)))

	file, err := fh.Open()
	if err != nil {
		return h.reject(c, fields, fiber.StatusBadRequest, msgNoFile, "no_file", err)
	}
	defer file.Close()

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reserved, err := h.allocator.Allocate(ctx)
	if err != nil {
		if errors.Is(err, slug.ErrExhausted) {
			return h.reject(c, fields, fiber.StatusServiceUnavailable, msgNoSlot, "exhausted", err)
		}
		return h.reject(c, fields, fiber.StatusInternalServerError, msgExtractionFailed, "reserve_failed", err)
	}
	fields["slug"] = reserved.Slug

	stats, err := archive.Extract(ctx, file, reserved.Dir, archive.Options{
		MaxBytes: h.cfg.MaxExtractSize.Int64(),
	})
	metrics.ExtractedBytes.Add(float64(stats.Bytes))
	if err != nil {
		if rmErr := h.store.Remove(ctx, reserved.Slug); rmErr != nil {
			h.logger.WithFields(fields).WithError(rmErr).Warn("upload_cleanup_failed")
		}
		return h.reject(c, fields, fiber.StatusInternalServerError, msgExtractionFailed, "extract_failed", err)
	}

	previewURL := h.cfg.PreviewURL(reserved.Slug)
	metrics.Uploads.WithLabelValues("ok").Inc()
	fields["files"] = stats.Files
	fields["skipped"] = stats.Skipped
	fields["extracted"] = humanize.IBytes(uint64(stats.Bytes))
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	h.logger.WithFields(fields).Info("upload_complete")

	return c.Status(fiber.StatusOK).JSON(Response{PreviewURL: previewURL})
}

func (h *Handler) reject(c fiber.Ctx, fields logrus.Fields, status int, message, result string, err error) error {
	metrics.Uploads.WithLabelValues(result).Inc()
	entry := h.logger.WithFields(fields).WithField("status", status).WithError(err)
	if status >= fiber.StatusInternalServerError {
		entry.Error("upload_failed")
	} else {
		entry.Warn("upload_rejected")
	}
	return c.Status(status).JSON(Response{PreviewURL: message})
}
