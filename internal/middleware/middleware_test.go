package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pix-raffle-checkout/internal/config"
)

func sign(t *testing.T, secret, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "gateway",
		"role": role,
		"exp":  time.Now().Add(time.Minute).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func serve(h echo.HandlerFunc, authz string, mw ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	e := echo.New()
	e.POST("/hook", h, mw...)
	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func ok(c echo.Context) error {
	return c.String(http.StatusOK, callerID(c))
}

func TestJWTAuthAndRole(t *testing.T) {
	guard := []echo.MiddlewareFunc{JWTAuth("s3cret"), RequireRole("GATEWAY")}

	if rec := serve(ok, "", guard...); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", rec.Code)
	}
	if rec := serve(ok, "Bearer "+sign(t, "other", "GATEWAY"), guard...); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rec.Code)
	}
	if rec := serve(ok, "Bearer "+sign(t, "s3cret", "ADMIN"), guard...); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: expected 403, got %d", rec.Code)
	}
	rec := serve(ok, "Bearer "+sign(t, "s3cret", "GATEWAY"), guard...)
	if rec.Code != http.StatusOK || rec.Body.String() != "gateway" {
		t.Fatalf("expected 200 gateway, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	rec := serve(ok, "",
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil),
	)
	if rec.Code != http.StatusOK || rec.Body.String() != "anon" {
		t.Fatalf("expected pass-through, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/purchase", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/purchase")

	got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}, c)
	if got != "rl:ip:10.0.0.1:route:POST /purchase" {
		t.Fatalf("unexpected key %q", got)
	}
	got = rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c)
	if got != "rl:user:anon" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestCaptureWriterDropsOversizedBodies(t *testing.T) {
	cw := &captureWriter{ResponseWriter: httptest.NewRecorder(), limit: 4}
	cw.Write([]byte("abc"))
	if cw.truncated || cw.buf.String() != "abc" {
		t.Fatalf("small body must be captured")
	}
	cw.Write([]byte("defg"))
	if !cw.truncated || cw.buf.Len() != 0 {
		t.Fatalf("oversized body must be dropped")
	}
	if !strings.HasPrefix(cacheKey(config.CacheConfig{Prefix: "p"}, echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/promotion", nil), httptest.NewRecorder())), "p:") {
		t.Fatalf("cache key must carry the prefix")
	}
}
