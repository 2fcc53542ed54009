package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"roommates-app-go/internal/config"
	usersdomain "roommates-app-go/internal/domain/users"
	"roommates-app-go/pkg/logger"
)

type recordingProfiles struct {
	mu    sync.Mutex
	calls []usersdomain.Identity
}

func (p *recordingProfiles) UpsertProfile(_ context.Context, identity usersdomain.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, identity)
	return nil
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(userID))
	})
}

func TestMiddlewareSkipAuthUsesMockUser(t *testing.T) {
	profiles := &recordingProfiles{}
	auth := NewSupabaseAuth(config.SupabaseConfig{
		SkipAuth:     true,
		MockUserID:   "user-mock",
		MockUserName: " Dana ",
	}, profiles, logger.NewNop())

	rec := httptest.NewRecorder()
	auth.Middleware(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "user-mock" {
		t.Fatalf("expected mock user, got %d %q", rec.Code, rec.Body.String())
	}
	if len(profiles.calls) != 1 || profiles.calls[0].FullName != "Dana" || profiles.calls[0].Role != "user" {
		t.Fatalf("expected profile upsert with trimmed name, got %v", profiles.calls)
	}
}

func TestMiddlewareValidatesTokenWithSupabase(t *testing.T) {
	supabase := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"user-1","email":"a@b.c","phone":"972501234567","user_metadata":{"full_name":"Noa","avatar_url":"https://img"},"app_metadata":{"role":"owner"}}`))
	}))
	defer supabase.Close()

	profiles := &recordingProfiles{}
	auth := NewSupabaseAuth(config.SupabaseConfig{URL: supabase.URL + "/", PublishableKey: "key"}, profiles, logger.NewNop())
	handler := auth.Middleware(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "user-1" {
		t.Fatalf("expected user-1, got %d %q", rec.Code, rec.Body.String())
	}
	want := usersdomain.Identity{UserID: "user-1", FullName: "Noa", Phone: "972501234567", AvatarURL: "https://img", Role: "owner"}
	if len(profiles.calls) != 1 || profiles.calls[0] != want {
		t.Fatalf("unexpected profile upsert %v", profiles.calls)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rec.Code)
	}
}

func TestMiddlewareNotConfigured(t *testing.T) {
	auth := NewSupabaseAuth(config.SupabaseConfig{}, nil, logger.NewNop())

	rec := httptest.NewRecorder()
	auth.Middleware(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestSupabaseUserFallbacks(t *testing.T) {
	var payload supabaseUser
	payload.ID = " user-2 "
	payload.UserMetadata.Name = "Dana"
	payload.UserMetadata.Phone = "+972"
	payload.UserMetadata.Picture = "https://pic"

	user := payload.user()
	if user.ID != "user-2" || user.FullName != "Dana" || user.Phone != "+972" || user.AvatarURL != "https://pic" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.Role != defaultRole {
		t.Fatalf("expected default role, got %q", user.Role)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for header, want := range cases {
		got, ok := bearerToken(header)
		if got != want || ok != (want != "") {
			t.Fatalf("bearerToken(%q): expected %q, got %q (%v)", header, want, got, ok)
		}
	}
}
