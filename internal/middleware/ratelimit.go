package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/utils"

	"github.com/go-redis/redis/v8"
)

const rateLimitMessage = "Too many requests, please try again later"

// RateLimit allows limit requests per client IP in each fixed window. Counters
// live in Redis so every replica shares them. When Redis is unreachable the
// request is let through.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := fmt.Sprintf("ratelimit:%s", clientIP(r))

			var incr *redis.IntCmd
			var ttlCmd *redis.DurationCmd
			_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				incr = pipe.Incr(ctx, key)
				ttlCmd = pipe.TTL(ctx, key)
				return nil
			})
			if err != nil {
				log.Warn("RATELIMIT", fmt.Sprintf("redis unavailable, skipping limit: %v", err))
				next.ServeHTTP(w, r)
				return
			}
			count := incr.Val()

			// A counter without expiry would block the client forever, so any
			// key left without a TTL gets a fresh window.
			ttl := ttlCmd.Val()
			if ttl < 0 {
				if err := rdb.Expire(ctx, key, window).Err(); err != nil {
					log.Warn("RATELIMIT", fmt.Sprintf("failed to set window on %s: %v", key, err))
				}
				ttl = window
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

			if count > int64(limit) {
				log.LogSecurity("RATELIMIT", fmt.Sprintf("Rate limit exceeded for IP %s", clientIP(r)))
				utils.WriteError(w, http.StatusTooManyRequests, rateLimitMessage, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
