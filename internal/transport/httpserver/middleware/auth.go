package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"roommates-app-go/internal/config"
	usersdomain "roommates-app-go/internal/domain/users"
	"roommates-app-go/pkg/logger"
)

const defaultRole = "user"

var errInvalidToken = errors.New("invalid token")

type contextKey int

const (
	userIDKey contextKey = iota
	userKey
)

// User is the signed-in roommate as the identity provider describes them.
type User struct {
	ID        string
	Email     string
	FullName  string
	Phone     string
	AvatarURL string
	Role      string
}

func (u User) identity() usersdomain.Identity {
	return usersdomain.Identity{
		UserID:    u.ID,
		FullName:  u.FullName,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
	}
}

// supabaseUser is the subset of GET /auth/v1/user the service reads. Profile
// fields may sit in user_metadata (email sign-up) or at the top level (phone
// sign-up); the app role lives in app_metadata.
type supabaseUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	UserMetadata struct {
		FullName  string `json:"full_name"`
		Name      string `json:"name"`
		Phone     string `json:"phone"`
		AvatarURL string `json:"avatar_url"`
		Picture   string `json:"picture"`
	} `json:"user_metadata"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

func (p supabaseUser) user() User {
	meta := p.UserMetadata
	return User{
		ID:        strings.TrimSpace(p.ID),
		Email:     p.Email,
		FullName:  firstNonEmpty(meta.FullName, meta.Name),
		Phone:     firstNonEmpty(p.Phone, meta.Phone),
		AvatarURL: firstNonEmpty(meta.AvatarURL, meta.Picture),
		Role:      firstNonEmpty(p.AppMetadata.Role, defaultRole),
	}
}

// ProfileSaver keeps the users table in step with the identity provider.
type ProfileSaver interface {
	UpsertProfile(ctx context.Context, identity usersdomain.Identity) error
}

type SupabaseAuth struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	profiles ProfileSaver
	skipAuth bool
	mockUser User
	log      logger.Logger
}

func NewSupabaseAuth(cfg config.SupabaseConfig, profiles ProfileSaver, log logger.Logger) *SupabaseAuth {
	timeout := cfg.AuthTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &SupabaseAuth{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		apiKey:   cfg.PublishableKey,
		client:   &http.Client{Timeout: timeout},
		profiles: profiles,
		skipAuth: cfg.SkipAuth,
		mockUser: User{
			ID:        strings.TrimSpace(cfg.MockUserID),
			FullName:  strings.TrimSpace(cfg.MockUserName),
			AvatarURL: strings.TrimSpace(cfg.MockUserAvatar),
			Role:      defaultRole,
		},
		log: log,
	}
}

func (a *SupabaseAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, status, err := a.authenticate(r)
		if err != nil {
			if status == http.StatusUnauthorized {
				unauthorized(w)
				return
			}
			writeError(w, status, "auth_not_configured", err.Error())
			return
		}

		a.saveProfile(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (a *SupabaseAuth) authenticate(r *http.Request) (User, int, error) {
	if a.skipAuth {
		if a.mockUser.ID == "" {
			return User{}, http.StatusInternalServerError, errors.New("auth mock user id not configured")
		}
		return a.mockUser, http.StatusOK, nil
	}
	if a.baseURL == "" || a.apiKey == "" {
		return User{}, http.StatusInternalServerError, errors.New("auth not configured")
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return User{}, http.StatusUnauthorized, errInvalidToken
	}
	user, err := a.fetchUser(r.Context(), token)
	if err != nil {
		a.log.Debug("auth: token rejected", "error", err.Error())
		return User{}, http.StatusUnauthorized, errInvalidToken
	}
	return user, http.StatusOK, nil
}

func (a *SupabaseAuth) fetchUser(ctx context.Context, token string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}

	var payload supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	user := payload.user()
	if user.ID == "" {
		return User{}, errors.New("user id missing")
	}
	return user, nil
}

func (a *SupabaseAuth) saveProfile(ctx context.Context, user User) {
	if a.profiles == nil {
		return
	}
	if err := a.profiles.UpsertProfile(ctx, user.identity()); err != nil {
		a.log.InternalError("auth: upsert profile failed", err, "user_id", user.ID)
	}
}

func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "invalid_token", errInvalidToken.Error())
}

func WithUser(ctx context.Context, user User) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, userIDKey, user.ID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userKey).(User)
	if !ok || user.ID == "" {
		return User{}, false
	}
	return user, true
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
