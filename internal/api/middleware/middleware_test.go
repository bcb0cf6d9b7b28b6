package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	jwtutil "dasa-hub/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newSigner(t *testing.T) (*rsa.PrivateKey, *Auth) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key, NewAuth(&key.PublicKey)
}

func signToken(t *testing.T, key *rsa.PrivateKey, userID, role string, ttl time.Duration) string {
	t.Helper()
	token, err := jwtutil.GenerateAccessToken(jwtutil.NewClaims(userID, role, ttl), key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func whoAmI(c *gin.Context) {
	viewer := Viewer(c)
	c.JSON(http.StatusOK, gin.H{"user_id": viewer.UserID, "role": viewer.Role})
}

func do(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthOptional_AnonymousAndInvalidTokensPass(t *testing.T) {
	key, auth := newSigner(t)
	router := gin.New()
	router.GET("/whoami", auth.Optional(), whoAmI)

	if rec := do(router, http.MethodGet, "/whoami", ""); rec.Code != http.StatusOK {
		t.Fatalf("anonymous: expected 200, got %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/whoami", "garbage"); rec.Code != http.StatusOK {
		t.Fatalf("invalid token: expected 200, got %d", rec.Code)
	}

	rec := do(router, http.MethodGet, "/whoami", signToken(t, key, "u-1", "student", time.Minute))
	if rec.Code != http.StatusOK || rec.Body.String() != `{"role":"student","user_id":"u-1"}` {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	key, auth := newSigner(t)
	router := gin.New()
	router.GET("/me", auth.Required(), whoAmI)

	if rec := do(router, http.MethodGet, "/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	expired := signToken(t, key, "u-1", "student", -time.Minute)
	rec := do(router, http.MethodGet, "/me", expired)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "token expired") {
		t.Fatalf("expected token expired, got %d %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: signToken(t, key, "u-2", "admin", time.Minute)})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie token: expected 200, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	key, auth := newSigner(t)
	router := gin.New()
	router.GET("/admin", auth.Required(), RequireRole("admin"), whoAmI)

	if rec := do(router, http.MethodGet, "/admin", signToken(t, key, "u-1", "student", time.Minute)); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/admin", signToken(t, key, "u-1", "Admin", time.Minute)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

type switchSource bool

func (s switchSource) MaintenanceEnabled() bool { return bool(s) }

func TestMaintenanceMode(t *testing.T) {
	key, auth := newSigner(t)
	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(MaintenanceMode(switchSource(true), auth, "/api/v1/system/settings"))
	api.GET("/announcements", whoAmI)
	api.GET("/system/settings", whoAmI)

	if rec := do(router, http.MethodGet, "/api/v1/announcements", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for anonymous, got %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/api/v1/announcements", signToken(t, key, "u-1", "student", time.Minute)); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for student, got %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/api/v1/announcements", signToken(t, key, "u-1", "admin", time.Minute)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/api/v1/system/settings", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected exempt path to stay open, got %d", rec.Code)
	}

	off := gin.New()
	off.GET("/x", MaintenanceMode(switchSource(false), auth), whoAmI)
	if rec := do(off, http.MethodGet, "/x", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when maintenance is off, got %d", rec.Code)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("k") || !limiter.Allow("k") {
		t.Fatal("first two hits must pass")
	}
	if limiter.Allow("k") {
		t.Fatal("third hit inside the window must be rejected")
	}
	if !limiter.Allow("other") {
		t.Fatal("keys are independent")
	}

	now = now.Add(61 * time.Second)
	if !limiter.Allow("k") {
		t.Fatal("hit after the window must pass")
	}
}

func TestInternalToken(t *testing.T) {
	router := gin.New()
	router.GET("/internal/metrics", InternalToken("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/internal/metrics", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for remote caller without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/internal/metrics", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	req.Header.Set("X-Internal-Token", "s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/internal/metrics", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected loopback to pass, got %d", rec.Code)
	}
}

