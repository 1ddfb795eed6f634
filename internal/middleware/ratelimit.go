package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/pkg/tgnotify"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitMax    = 50
	rateLimitWindow = time.Second
)

// RateLimit returns a middleware that enforces a per-IP rate limit for
// unauthenticated requests. The Telegram webhook is exempt: its sender is
// a single well-known service and throttling it only provokes redelivery.
func RateLimit(rdb *redis.Client, notifier *tgnotify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAuthenticated(c) {
			c.Next()
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api/v1/telegram/webhook") {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		windowKey := time.Now().Unix()
		key := fmt.Sprintf("gv:rate_limit:%s:%d", ip, windowKey)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}

		if count == 1 {
			rdb.PExpire(ctx, key, rateLimitWindow+time.Second)
		}

		if count > rateLimitMax {
			path := c.Request.URL.Path
			if notifier != nil {
				go notifier.ThrottlePush(ip+"|"+path, "Подозрительная активность", fmt.Sprintf("IP: %s Path: %s", ip, path))
			}
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":      0,
				"code":    http.StatusTooManyRequests,
				"message": "Слишком много запросов, попробуйте чуть позже",
			})
			return
		}

		c.Next()
	}
}
