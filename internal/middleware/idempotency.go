package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/utils"

	"github.com/go-redis/redis/v8"
)

const (
	idempotencyHeader = "Idempotency-Key"
	inProgressTTL     = 10 * time.Second
	processing        = "PROCESSING"
)

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type capturingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *capturingWriter) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// POST requests. Only 2xx and 4xx responses are stored; a 5xx releases the
// key so the client can retry.
func Idempotency(rdb *redis.Client, ttl time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(idempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			idemKey := fmt.Sprintf("idempotency:%s:%s", r.URL.Path, key)
			ctx := r.Context()

			val, err := rdb.Get(ctx, idemKey).Result()
			switch {
			case err == nil && val == processing:
				utils.WriteError(w, http.StatusConflict, "Request with this Idempotency-Key is still in progress", nil)
				return
			case err == nil:
				var stored storedResponse
				if jsonErr := json.Unmarshal([]byte(val), &stored); jsonErr == nil {
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("X-Idempotency-Hit", "true")
					w.WriteHeader(stored.Status)
					w.Write(stored.Body)
					return
				}
				log.Warn("IDEMPOTENCY", fmt.Sprintf("corrupt stored response for %s, reprocessing", key))
				rdb.Del(ctx, idemKey)
			case err != redis.Nil:
				log.Warn("IDEMPOTENCY", fmt.Sprintf("redis unavailable: %v", err))
				next.ServeHTTP(w, r)
				return
			}

			acquired, err := rdb.SetNX(ctx, idemKey, processing, inProgressTTL).Result()
			if err != nil || !acquired {
				utils.WriteError(w, http.StatusConflict, "Request with this Idempotency-Key is still in progress", nil)
				return
			}

			cw := &capturingWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			if cw.status >= http.StatusInternalServerError || !json.Valid(cw.body.Bytes()) {
				rdb.Del(ctx, idemKey)
				return
			}
			payload, err := json.Marshal(storedResponse{Status: cw.status, Body: cw.body.Bytes()})
			if err != nil {
				rdb.Del(ctx, idemKey)
				return
			}
			if err := rdb.Set(ctx, idemKey, payload, ttl).Err(); err != nil {
				log.Warn("IDEMPOTENCY", fmt.Sprintf("store response for %s: %v", key, err))
			}
		})
	}
}
