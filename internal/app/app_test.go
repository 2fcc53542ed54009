package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"roommates-app-go/pkg/logger"
)

func newMemoryApp(t *testing.T) *App {
	t.Helper()
	testChdir(t, t.TempDir())
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_SKIP", "true")
	t.Setenv("AUTH_MOCK_USER_ID", "00000000-0000-0000-0000-00000000000a")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example")
	t.Setenv("SWEEP_SCHEDULE", "@every 1h")

	a, err := New(logger.NewNop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.StopJobs(ctx)
		_ = a.Close()
	})
	return a
}

func TestMemoryAppServesAPI(t *testing.T) {
	a := newMemoryApp(t)
	a.StartJobs()
	handler := a.HTTPServer().Handler

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty inbox, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups/me", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without group, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "roommates_http_requests_total") {
		t.Fatalf("expected metrics output, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	a := newMemoryApp(t)
	handler := a.HTTPServer().Handler

	req := httptest.NewRequest(http.MethodOptions, "/api/groups/invites", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/groups/invites", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for unknown origin, got %q", got)
	}
}

// testChdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
