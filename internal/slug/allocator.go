package slug

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pv-hub/pv-hub/internal/metrics"
	"github.com/pv-hub/pv-hub/internal/site"
)

// DefaultMaxAttempts 是未配置时的碰撞重试上限。
const DefaultMaxAttempts = 5

var (
	// ErrExhausted 表示所有候选 slug 均已被占用。
	ErrExhausted = errors.New("slug attempts exhausted")
	// errInvalidCandidate 表示生成器产出了不满足字符集的候选。
	errInvalidCandidate = errors.New("generated slug has invalid characters")
)

// Options 控制 Allocator 的行为，零值字段使用默认值。
type Options struct {
	Generator   Generator
	MaxAttempts int
	Logger      *logrus.Logger
}

// Allocator 负责“生成候选 → 独占创建目录”的有限次重试循环。
type Allocator struct {
	store       site.Store
	generate    Generator
	maxAttempts int
	logger      *logrus.Logger
}

// NewAllocator 构造 Allocator，store 为必填。
func NewAllocator(store site.Store, opts Options) (*Allocator, error) {
	if store == nil {
		return nil, errors.New("site store is required")
	}
	if opts.Generator == nil {
		opts.Generator = PetnameGenerator(Words)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Allocator{
		store:       store,
		generate:    opts.Generator,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
	}, nil
}

// Allocate 返回一个新预留的空站点目录。目录已存在视为碰撞并换新候选重试，
// 超过 maxAttempts 次后返回包装了 ErrExhausted 的错误。
func (a *Allocator) Allocate(ctx context.Context) (*site.Site, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidate := a.generate()
		fields := logrus.Fields{
			"action":  "slug_allocate",
			"slug":    candidate,
			"attempt": attempt,
		}

		if !Valid(candidate) {
			a.logger.WithFields(fields).WithError(errInvalidCandidate).Warn("slug_candidate_rejected")
			continue
		}

		reserved, err := a.store.Reserve(ctx, candidate)
		switch {
		case err == nil:
			return reserved, nil
		case errors.Is(err, site.ErrExists):
			metrics.SlugCollisions.Inc()
			a.logger.WithFields(fields).Debug("slug_collision")
		default:
			return nil, fmt.Errorf("reserve %s: %w", candidate, err)
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrExhausted, a.maxAttempts)
}
