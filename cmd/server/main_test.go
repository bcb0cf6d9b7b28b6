package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dasa-hub/internal/api/middleware"
	systemlog "dasa-hub/pkg/logger"
)

func newMemoryApp(t *testing.T) *app {
	t.Helper()

	var cfg Config
	cfg.App.Env = "production"
	cfg.App.Timezone = "UTC"
	cfg.Database.Driver = driverMemory
	cfg.CORS.AllowOrigins = []string{"http://localhost:5173"}
	cfg.Metrics.Token = "metrics-token"

	a, err := newApp(context.Background(), cfg, zap.NewNop(), systemlog.NewRecentLogs(10))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestBuildRouter_HealthAndSettings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := newMemoryApp(t)
	router := buildRouter(a, middleware.NewAuth(nil), false)

	for _, path := range []string{"/health", "/health/ready", "/api/v1/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/system/settings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data struct {
			CurrentAcademicYear string `json:"current_academic_year"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.CurrentAcademicYear != "2024/2025" {
		t.Fatalf("academic year = %q", body.Data.CurrentAcademicYear)
	}
}

func TestBuildRouter_MetricsRequireToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := newMemoryApp(t)
	router := buildRouter(a, middleware.NewAuth(nil), false)

	req := httptest.NewRequest(http.MethodGet, "/internal/metrics", nil)
	req.RemoteAddr = "203.0.113.10:4000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/internal/metrics", nil)
	req.RemoteAddr = "203.0.113.10:4000"
	req.Header.Set("X-Internal-Token", "metrics-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with token = %d", rec.Code)
	}
}

func TestBuildRouter_AnonymousWritesRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := newMemoryApp(t)
	router := buildRouter(a, middleware.NewAuth(nil), false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/announcements", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestNewCronRunner_RegistersJobs(t *testing.T) {
	a := newMemoryApp(t)
	a.cfg.Scheduler.ReconcileSpec = "0 */15 * * * *"

	cronRunner, err := newCronRunner(a)
	if err != nil {
		t.Fatalf("newCronRunner: %v", err)
	}
	if got := len(cronRunner.Entries()); got != 3 {
		t.Fatalf("entries = %d, want 3", got)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	want := map[string]bool{"serve": false, "migrate": false, "sweep": false, "backfill": false, "healthcheck": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRunHealthcheck(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	if err := runHealthcheck(context.Background(), ok.URL); err != nil {
		t.Fatalf("healthy server: %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	if err := runHealthcheck(context.Background(), down.URL); err == nil {
		t.Fatal("expected error for unavailable server")
	}
}
