package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/auth"
)

func TestRequestID_Generates(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	id := rec.Header().Get(RequestIDHeader)
	if id == "" {
		t.Error("expected generated request id header")
	}
}

func TestRequestID_PreservesClientID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-supplied-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if got := rec.Header().Get(RequestIDHeader); got != "client-supplied-id" {
		t.Errorf("expected client-supplied-id, got %q", got)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("boom")
	})
	err := h(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", he.Code)
	}
}

func TestLimiterStore_BurstExhaustion(t *testing.T) {
	store := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})

	lim := store.get("u:alice")
	if !lim.Allow() {
		t.Error("first request should be allowed")
	}
	if !lim.Allow() {
		t.Error("second request should be allowed")
	}
	if lim.Allow() {
		t.Error("third request should be denied, burst exhausted")
	}
}

func TestLimiterStore_ReusesLimiterPerKey(t *testing.T) {
	store := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	if store.get("u:alice") != store.get("u:alice") {
		t.Error("expected the same limiter for a repeated key")
	}
	if store.get("u:alice") == store.get("u:bob") {
		t.Error("expected distinct limiters for distinct keys")
	}
}

func TestLimiterStore_EvictsIdleCallers(t *testing.T) {
	store := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	stale := store.get("u:stale")
	stale.Allow()

	store.evict(time.Now().Add(time.Second))

	if len(store.callers) != 0 {
		t.Fatalf("expected stale caller evicted, %d remain", len(store.callers))
	}
	// A fresh limiter has its burst back.
	if !store.get("u:stale").Allow() {
		t.Error("expected re-created limiter to allow")
	}
}

func TestLimiterStore_EvictKeepsActiveCallers(t *testing.T) {
	store := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	store.get("u:active")

	store.evict(time.Now().Add(-time.Minute))

	if len(store.callers) != 1 {
		t.Errorf("expected active caller kept, have %d", len(store.callers))
	}
}

func TestRateLimit_Denies(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	h := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	err := h(c)
	if err == nil {
		t.Fatal("second request should be rate limited")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on limited response")
	}
}

func TestRateLimit_SeparateAnonymousClients(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	h := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	c := e.NewContext(req1, httptest.NewRecorder())
	if err := h(c); err != nil {
		t.Fatalf("first client should pass: %v", err)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	c = e.NewContext(req2, httptest.NewRecorder())
	if err := h(c); err != nil {
		t.Fatalf("second client should pass: %v", err)
	}
}

func TestRateLimit_KeyedByUserNotAddress(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	h := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Two users behind the same address each get their own budget.
	send := func(userID string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
		req = req.WithContext(ctx)
		return h(e.NewContext(req, httptest.NewRecorder()))
	}

	if err := send("alice"); err != nil {
		t.Fatalf("alice should pass: %v", err)
	}
	if err := send("bob"); err != nil {
		t.Fatalf("bob should pass: %v", err)
	}
	if err := send("alice"); err == nil {
		t.Error("alice's second request should be rate limited")
	}
}
