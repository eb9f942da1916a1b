package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/utilhub/membership-auth/internal/config"
)

func limiterFixture(t *testing.T, ceiling int) echo.MiddlewareFunc {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled: true,
		Window:  time.Minute,
		Ceiling: ceiling,
		Prefix:  "rl",
	}
	return NewFixedWindow(cfg, rdb)
}

func doLimited(t *testing.T, mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if err := h(c); err != nil {
		t.Fatalf("limiter returned error: %v", err)
	}
	return rec
}

func TestFixedWindow_AllowsUpToCeiling(t *testing.T) {
	mw := limiterFixture(t, 2)

	for i := 0; i < 2; i++ {
		rec := doLimited(t, mw)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := doLimited(t, mw)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the ceiling, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("429 response must carry Retry-After")
	}
}

func TestFixedWindow_Headers(t *testing.T) {
	mw := limiterFixture(t, 5)

	rec := doLimited(t, mw)
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("unexpected X-RateLimit-Limit: %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Fatalf("unexpected X-RateLimit-Remaining: %q", got)
	}
}

func TestFixedWindow_DisabledPassesThrough(t *testing.T) {
	mw := NewFixedWindow(config.RateLimitConfig{Enabled: false}, nil)
	for i := 0; i < 10; i++ {
		rec := doLimited(t, mw)
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled limiter must pass everything, got %d", rec.Code)
		}
	}
}
