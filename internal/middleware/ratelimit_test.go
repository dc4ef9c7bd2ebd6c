package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/org-registry/org-registry/internal/config"
)

// ---------------------------------------------------------------------------
// Config derivation
// ---------------------------------------------------------------------------

func TestGeneralRateLimitConfig(t *testing.T) {
	cfg := GeneralRateLimitConfig(config.RateLimitConfig{
		RequestsPerMinute: 200,
		Burst:             50,
	})
	if cfg.RequestsPerMinute != 200 {
		t.Errorf("RequestsPerMinute = %d, want 200", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 50 {
		t.Errorf("BurstSize = %d, want 50", cfg.BurstSize)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

func TestLoginRateLimitConfig(t *testing.T) {
	cfg := LoginRateLimitConfig(config.RateLimitConfig{
		LoginRequestsPerMinute: 10,
		LoginBurst:             5,
	})
	if cfg.RequestsPerMinute != 10 {
		t.Errorf("RequestsPerMinute = %d, want 10", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 5 {
		t.Errorf("BurstSize = %d, want 5", cfg.BurstSize)
	}
}

// ---------------------------------------------------------------------------
// RateLimiter.Allow
// ---------------------------------------------------------------------------

func newTestLimiter(t *testing.T, rpm, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		CleanupInterval:   time.Hour, // Don't clean up during tests
	})
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_NewClientGetsFullBurst(t *testing.T) {
	rl := newTestLimiter(t, 60, 5)

	if !rl.Allow("client-a") {
		t.Error("Allow() = false for new client, want true")
	}
}

func TestRateLimiter_AllowsUpToBurstSize(t *testing.T) {
	burst := 3
	rl := newTestLimiter(t, 600, burst)

	key := "burst-test"
	for i := 0; i < burst; i++ {
		if !rl.Allow(key) {
			t.Fatalf("Allow() = false on request %d, want true within burst %d", i+1, burst)
		}
	}
}

func TestRateLimiter_BlocksAfterBurstExhausted(t *testing.T) {
	burst := 2
	// 1 request per minute so tokens barely refill during the test.
	rl := newTestLimiter(t, 1, burst)

	key := "exhaust-test"
	for i := 0; i < burst; i++ {
		rl.Allow(key)
	}
	if rl.Allow(key) {
		t.Error("Allow() = true after burst exhausted, want false")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := newTestLimiter(t, 1, 1)

	if !rl.Allow("client-a") {
		t.Fatal("first request from client-a should be allowed")
	}
	if rl.Allow("client-a") {
		t.Error("second request from client-a should be blocked")
	}
	if !rl.Allow("client-b") {
		t.Error("client-b has its own bucket and should be allowed")
	}
}

func TestRateLimiter_RemainingTokens(t *testing.T) {
	rl := newTestLimiter(t, 1, 5)

	if got := rl.RemainingTokens("fresh"); got != 5 {
		t.Errorf("RemainingTokens for unseen key = %d, want 5", got)
	}

	rl.Allow("seen")
	if got := rl.RemainingTokens("seen"); got != 4 {
		t.Errorf("RemainingTokens after one request = %d, want 4", got)
	}
}

// ---------------------------------------------------------------------------
// RateLimit middleware
// ---------------------------------------------------------------------------

func newRateLimitRouter(rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(rl))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimit_AllowsWithinLimit(t *testing.T) {
	rl := newTestLimiter(t, 600, 10)
	r := newRateLimitRouter(rl)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "600" {
		t.Errorf("X-RateLimit-Limit = %q, want 600", got)
	}
	if w.Header().Get("X-RateLimit-Remaining") == "" {
		t.Error("X-RateLimit-Remaining should be set")
	}
}

func TestRateLimit_Returns429WhenExceeded(t *testing.T) {
	rl := newTestLimiter(t, 1, 1)
	r := newRateLimitRouter(rl)

	// Exhaust the single-token bucket, then expect 429.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if i == 0 && w.Code != http.StatusOK {
			t.Fatalf("first request status = %d, want 200", w.Code)
		}
		if i == 1 {
			if w.Code != http.StatusTooManyRequests {
				t.Errorf("second request status = %d, want 429", w.Code)
			}
			if got := w.Header().Get("Retry-After"); got != "60" {
				t.Errorf("Retry-After = %q, want 60", got)
			}
		}
	}
}
