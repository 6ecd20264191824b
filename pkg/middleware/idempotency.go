package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zonelab/geozone/pkg/logger"
	pkgredis "github.com/zonelab/geozone/pkg/redis"
	"github.com/zonelab/geozone/pkg/response"
)

// IdempotencyKeyHeader is the client-supplied key that makes a mutating
// request safe to retry.
const IdempotencyKeyHeader = "X-Idempotency-Key"

// IdempotencyConfig holds idempotency middleware configuration
type IdempotencyConfig struct {
	// KeyPrefix namespaces the Redis keys
	KeyPrefix string
	// ProcessingTTL bounds how long a key is held while the first
	// request is still in flight
	ProcessingTTL time.Duration
	// CompletedTTL is how long a completed response is replayable
	CompletedTTL time.Duration
}

// DefaultIdempotencyConfig returns default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		KeyPrefix:     "geozone:idempotency",
		ProcessingTTL: 60 * time.Second,
		CompletedTTL:  24 * time.Hour,
	}
}

type idempotencyRecord struct {
	Status      string `json:"status"` // "processing" or "completed"
	RequestHash string `json:"request_hash"`
	StatusCode  int    `json:"status_code,omitempty"`
	Body        string `json:"body,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// idempotencyWriter captures the response so it can be cached for replay
type idempotencyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *idempotencyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the cached response for repeated requests carrying the
// same X-Idempotency-Key. Requests without the header pass through untouched.
// Redis failures fail open: the request proceeds without the guarantee.
func Idempotency(client *pkgredis.Client, cfg IdempotencyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}

		log := logger.Get()
		ctx := c.Request.Context()
		redisKey := cfg.KeyPrefix + ":" + key

		hash, err := requestHash(c)
		if err != nil {
			response.BadRequest(c, "failed to read request body")
			c.Abort()
			return
		}

		processing, _ := json.Marshal(idempotencyRecord{
			Status:      "processing",
			RequestHash: hash,
		})

		acquired, err := client.SetNX(ctx, redisKey, string(processing), cfg.ProcessingTTL).Result()
		if err != nil {
			log.Warn("idempotency check unavailable", zap.Error(err))
			c.Next()
			return
		}

		if !acquired {
			raw, err := client.Get(ctx, redisKey).Result()
			if err == redis.Nil {
				// Expired between SetNX and Get, let the request through
				c.Next()
				return
			}
			if err != nil {
				log.Warn("idempotency lookup unavailable", zap.Error(err))
				c.Next()
				return
			}

			var record idempotencyRecord
			if err := json.Unmarshal([]byte(raw), &record); err != nil {
				client.Del(ctx, redisKey)
				c.Next()
				return
			}

			if record.RequestHash != hash {
				response.UnprocessableEntity(c, "IDEMPOTENCY_KEY_REUSED",
					"idempotency key was already used for a different request")
				c.Abort()
				return
			}

			if record.Status == "processing" {
				response.Conflict(c, "REQUEST_IN_PROGRESS",
					"a request with this idempotency key is still being processed")
				c.Abort()
				return
			}

			if record.ContentType != "" {
				c.Header("Content-Type", record.ContentType)
			}
			c.Header("X-Idempotency-Replayed", "true")
			c.String(record.StatusCode, record.Body)
			c.Abort()
			return
		}

		writer := &idempotencyWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status >= 500 {
			// Don't cache failures, let the client retry the same key
			client.Del(ctx, redisKey)
			return
		}

		completed, _ := json.Marshal(idempotencyRecord{
			Status:      "completed",
			RequestHash: hash,
			StatusCode:  status,
			Body:        writer.body.String(),
			ContentType: writer.Header().Get("Content-Type"),
		})
		if err := client.Set(ctx, redisKey, string(completed), cfg.CompletedTTL).Err(); err != nil {
			log.Warn("failed to store idempotency record", zap.Error(err))
		}
	}
}

// requestHash fingerprints the request so a reused key with a different
// payload can be rejected. The body is restored for downstream handlers.
func requestHash(c *gin.Context) (string, error) {
	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	userID, _ := GetUserID(c)

	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte("\n"))
	h.Write([]byte(c.Request.URL.Path))
	h.Write([]byte("\n"))
	h.Write([]byte(userID))
	h.Write([]byte("\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}
