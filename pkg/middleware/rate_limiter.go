package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	pkgredis "github.com/zonelab/geozone/pkg/redis"
	"github.com/zonelab/geozone/pkg/response"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Requests allowed per window per client (0 disables the limiter)
	Requests int
	// Window length
	Window time.Duration
	// Key prefix in Redis
	KeyPrefix string
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Requests:  100,
		Window:    time.Second,
		KeyPrefix: "geozone:ratelimit",
	}
}

// fixedWindowScript counts a request atomically and arms the window TTL on
// the first hit. Returns the count within the current window.
const fixedWindowScript = `
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return current
`

// RateLimit limits requests per client IP with a fixed window counter in
// Redis so the limit holds across replicas. Redis being down fails open:
// availability of the API is preferred over precise limiting.
func RateLimit(client *pkgredis.Client, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Requests <= 0 || client == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}

	return func(c *gin.Context) {
		window := time.Now().UnixMilli() / cfg.Window.Milliseconds()
		key := fmt.Sprintf("%s:%s:%d", cfg.KeyPrefix, c.ClientIP(), window)

		count, err := client.EvalWithFallback(c.Request.Context(), "ratelimit_window", fixedWindowScript,
			[]string{key}, cfg.Window.Milliseconds()).Int64()
		if err != nil {
			c.Next()
			return
		}
		if count > int64(cfg.Requests) {
			response.TooManyRequests(c, "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
