package upload

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	defaultLimiterCacheSize = 4096
	defaultLimiterTTL       = time.Hour
)

// Limiter 按客户端地址限制上传频率，每个地址一个令牌桶，桶本身放在 expirable LRU 中。
type Limiter struct {
	interval time.Duration
	burst    int
	buckets  *expirable.LRU[string, *rate.Limiter]
}

// NewLimiter 每 interval 补充一个令牌，最多累积 burst 个。
func NewLimiter(interval time.Duration, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		interval: interval,
		burst:    burst,
		buckets:  expirable.NewLRU[string, *rate.Limiter](defaultLimiterCacheSize, nil, defaultLimiterTTL),
	}
}

// Allow 消耗 key 的一个令牌；没有可用令牌时返回 false 与建议的重试等待时间。
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	bucket, ok := l.buckets.Get(key)
	if !ok {
		bucket = rate.NewLimiter(rate.Every(l.interval), l.burst)
		l.buckets.Add(key, bucket)
	}

	reservation := bucket.Reserve()
	if !reservation.OK() {
		return false, l.interval
	}
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return false, delay
	}
	return true, 0
}
