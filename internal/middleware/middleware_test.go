package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets/available", nil)
	req.RemoteAddr = ip + ":51234"
	return req
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	mr, rdb := setupRedis(t)
	h := RateLimit(rdb, 3, 15*time.Minute, logger.Discard())(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))

	var body utils.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rateLimitMessage, body.Error.Message)

	// other clients have their own window
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.2"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// a new window starts once the key expires
	mr.FastForward(16 * time.Minute)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("RateLimit-Remaining"))
}

func TestRateLimitRepairsCounterWithoutExpiry(t *testing.T) {
	mr, rdb := setupRedis(t)
	require.NoError(t, mr.Set("ratelimit:10.0.0.9", "7"))
	require.Equal(t, time.Duration(0), mr.TTL("ratelimit:10.0.0.9"))

	h := RateLimit(rdb, 3, 15*time.Minute, logger.Discard())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.9"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 15*time.Minute, mr.TTL("ratelimit:10.0.0.9"))

	mr.FastForward(16 * time.Minute)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.9"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr, rdb := setupRedis(t)
	h := RateLimit(rdb, 1, time.Minute, logger.Discard())(okHandler())
	mr.Close()

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

type fakeHTTPRecorder struct {
	method, route string
	code          int
}

func (f *fakeHTTPRecorder) ObserveHTTP(method, route string, code int) {
	f.method, f.route, f.code = method, route, code
}

func TestRequestLoggerUsesRoutePattern(t *testing.T) {
	rec := &fakeHTTPRecorder{}
	r := chi.NewRouter()
	r.Use(RequestLogger(logger.Discard(), rec))
	r.Get("/tickets/{pnr}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tickets/ABCD234567", nil))

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/tickets/{pnr}", rec.route)
	assert.Equal(t, http.StatusNotFound, rec.code)
}

func TestRequestLoggerDefaultsToOK(t *testing.T) {
	rec := &fakeHTTPRecorder{}
	h := RequestLogger(logger.Discard(), rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.code)
	assert.Equal(t, "/health", rec.route)
}

func countingBook(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		utils.WriteJSON(w, status, map[string]int32{"call": n})
	})
}

func postWithKey(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/book", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	_, rdb := setupRedis(t)
	var calls int32
	h := Idempotency(rdb, time.Hour, logger.Discard())(countingBook(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, postWithKey("k-1"))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, postWithKey("k-1"))

	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	third := httptest.NewRecorder()
	h.ServeHTTP(third, postWithKey("k-2"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	_, rdb := setupRedis(t)
	var calls int32
	h := Idempotency(rdb, time.Hour, logger.Discard())(countingBook(&calls, http.StatusCreated))

	h.ServeHTTP(httptest.NewRecorder(), postWithKey(""))
	h.ServeHTTP(httptest.NewRecorder(), postWithKey(""))

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyInProgressConflict(t *testing.T) {
	mr, rdb := setupRedis(t)
	var calls int32
	h := Idempotency(rdb, time.Hour, logger.Discard())(countingBook(&calls, http.StatusCreated))

	require.NoError(t, mr.Set("idempotency:/api/v1/tickets/book:k-1", processing))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postWithKey("k-1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestIdempotencyServerErrorReleasesKey(t *testing.T) {
	mr, rdb := setupRedis(t)
	var calls int32
	h := Idempotency(rdb, time.Hour, logger.Discard())(countingBook(&calls, http.StatusServiceUnavailable))

	h.ServeHTTP(httptest.NewRecorder(), postWithKey("k-1"))
	assert.False(t, mr.Exists("idempotency:/api/v1/tickets/book:k-1"))

	h.ServeHTTP(httptest.NewRecorder(), postWithKey("k-1"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
