package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func limitedEngine(h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if uid := c.Query("uid"); uid != "" {
			c.Set(CtxUserID, uid)
		}
		c.Next()
	}, h, func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimit_Memory(t *testing.T) {
	r := limitedEngine(RateLimit(0.0001, 2))

	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?uid=a").Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?uid=a").Code)
	w := serve(r, http.MethodGet, "/x?uid=a")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))

	// separate bucket per subject
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?uid=b").Code)
}

func TestRateLimit_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := newRedisLimiter(rdb, 1, 1, 10*time.Second, quietLog())
	fixed := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return fixed }
	r := limitedEngine(l.handle)

	// rps*window + burst = 11 per window
	for i := 0; i < 11; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?uid=a").Code, "request %d", i)
	}
	w := serve(r, http.MethodGet, "/x?uid=a")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "10", w.Header().Get("Retry-After"))
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?uid=b").Code)

	key := "rl:sub:a:170000000"
	require.True(t, mr.Exists(key))
	require.Greater(t, mr.TTL(key), time.Duration(0))

	// next window starts fresh
	fixed = fixed.Add(10 * time.Second)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?uid=a").Code)
}

func TestRateLimit_RedisFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	r := limitedEngine(RedisRateLimit(rdb, 1, 0, time.Second, quietLog()))
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x").Code)
}

func TestRateLimit_MemoryEvictsIdleKeys(t *testing.T) {
	l := newMemLimiter(1, 5)
	start := time.Unix(1_700_000_000, 0)
	clock := start
	l.now = func() time.Time { return clock }
	r := limitedEngine(l.handle)

	for _, uid := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?uid="+uid).Code)
	}
	require.Equal(t, 3, l.size())

	// "c" stays active, the others go idle
	clock = start.Add(minIdle / 2)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?uid=c").Code)

	clock = start.Add(minIdle)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?uid=d").Code)
	require.Equal(t, 2, l.size(), "idle buckets for a and b are dropped")

	// a returning key starts with a full bucket
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?uid=a").Code, "request %d", i)
	}
	require.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/x?uid=a").Code)
}
