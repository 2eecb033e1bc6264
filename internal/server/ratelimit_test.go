package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func requestFrom(h http.Handler, remote string) int {
	req := httptest.NewRequest(http.MethodPost, MCPEndpointPath, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	assert.Equal(t, http.StatusNoContent, requestFrom(h, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusNoContent, requestFrom(h, "10.0.0.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, requestFrom(h, "10.0.0.1:1236"))

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusNoContent, requestFrom(h, "10.0.0.2:1234"))
}

func TestRateLimiter_RetryAfterHeader(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1)
	h := rl.Middleware(http.NotFoundHandler())
	requestFrom(h, "10.0.0.1:1")

	req := httptest.NewRequest(http.MethodPost, MCPEndpointPath, nil)
	req.RemoteAddr = "10.0.0.1:2"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_UnparsableRemoteAddr(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1)
	h := rl.Middleware(http.NotFoundHandler())

	assert.Equal(t, http.StatusNotFound, requestFrom(h, "pipe"))
	assert.Equal(t, http.StatusTooManyRequests, requestFrom(h, "pipe"))
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(rate.Every(time.Hour), 1)
	rl.now = func() time.Time { return now }

	rl.getVisitor("10.0.0.1")
	rl.getVisitor("10.0.0.2")
	assert.Len(t, rl.visitors, 2)

	now = now.Add(visitorTTL + time.Second)
	rl.getVisitor("10.0.0.2")
	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.2")
}
