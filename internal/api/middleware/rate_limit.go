package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yoockh/resumedesk/internal/metrics"
	"github.com/yoockh/resumedesk/internal/utils"
)

// rateKey prefers the routed subject so users behind one NAT do not share a bucket.
func rateKey(c *gin.Context) string {
	if v, ok := c.Get(CtxUserID); ok {
		if s, ok := v.(string); ok && s != "" {
			return "sub:" + s
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func rejectRate(c *gin.Context, limiter string, retryAfter int) {
	c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
	metrics.RateLimitRejected.WithLabelValues(limiter).Inc()
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"code":    utils.CodeUnavailable,
		"message": "rate limit exceeded",
	})
}

// RateLimit is an in-memory token bucket per key. Each call gets its own store.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	return newMemLimiter(rps, burst).handle
}

// minIdle bounds how often idle buckets are swept.
const minIdle = 10 * time.Minute

// memLimiter drops a key's bucket once it has been idle long enough to refill,
// so the map only holds recently seen keys.
type memLimiter struct {
	rps   rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*memBucket
	lastSweep time.Time
}

type memBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newMemLimiter(rps float64, burst int) *memLimiter {
	idle := minIdle
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &memLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
		buckets: map[string]*memBucket{},
	}
}

func (l *memLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.lastSweep.IsZero() {
		l.lastSweep = now
	} else if now.Sub(l.lastSweep) >= l.idle {
		for k, b := range l.buckets {
			if now.Sub(b.seen) >= l.idle {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &memBucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *memLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *memLimiter) handle(c *gin.Context) {
	if !l.allow(rateKey(c)) {
		rejectRate(c, "memory", 1)
		return
	}
	metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
	c.Next()
}

type redisLimiter struct {
	rdb     *redis.Client
	window  int64
	allowed int64
	now     func() time.Time
	log     *logrus.Entry
}

// RedisRateLimit is a fixed window counter shared by every replica:
// INCR rl:<key>:<bucket>, allowing rps*window+burst requests per window.
// A nil client falls back to RateLimit.
func RedisRateLimit(rdb *redis.Client, rps float64, burst int, window time.Duration, log *logrus.Entry) gin.HandlerFunc {
	if rdb == nil {
		return RateLimit(rps, burst)
	}
	return newRedisLimiter(rdb, rps, burst, window, log).handle
}

func newRedisLimiter(rdb *redis.Client, rps float64, burst int, window time.Duration, log *logrus.Entry) *redisLimiter {
	secs := int64(window.Seconds())
	if secs <= 0 {
		secs = 1
	}
	return &redisLimiter{
		rdb:     rdb,
		window:  secs,
		allowed: int64(rps*float64(secs)) + int64(burst),
		now:     time.Now,
		log:     log,
	}
}

func (l *redisLimiter) handle(c *gin.Context) {
	ctx := c.Request.Context()
	bucket := l.now().Unix() / l.window
	key := fmt.Sprintf("rl:%s:%d", rateKey(c), bucket)

	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		// fail open
		l.log.WithError(err).Warn("rate limit check")
		c.Next()
		return
	}
	if cnt == 1 {
		_ = l.rdb.Expire(ctx, key, time.Duration(l.window+1)*time.Second).Err()
	}
	if cnt > l.allowed {
		rejectRate(c, "redis", int(l.window))
		return
	}
	metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
	c.Next()
}
