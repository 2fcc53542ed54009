package inmemory

import (
	"context"
	"sync"
	"time"

	usersdomain "roommates-app-go/internal/domain/users"
)

type UsersRepository struct {
	mu       sync.RWMutex
	profiles map[string]usersdomain.Profile
}

func NewUsersRepository() *UsersRepository {
	return &UsersRepository{profiles: make(map[string]usersdomain.Profile)}
}

// UpsertProfile keeps stored values for fields the incoming profile leaves
// empty.
func (r *UsersRepository) UpsertProfile(_ context.Context, profile *usersdomain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.profiles[profile.ID]
	if !ok {
		row := *profile
		if row.Role == "" {
			row.Role = "user"
		}
		row.CreatedAt = now
		row.UpdatedAt = now
		r.profiles[profile.ID] = row
		return nil
	}

	if profile.FullName != nil {
		existing.FullName = profile.FullName
	}
	if profile.AvatarURL != nil {
		existing.AvatarURL = profile.AvatarURL
	}
	if profile.Phone != nil {
		existing.Phone = profile.Phone
	}
	if profile.Role != "" {
		existing.Role = profile.Role
	}
	existing.UpdatedAt = now
	r.profiles[profile.ID] = existing
	return nil
}

func (r *UsersRepository) ListProfiles(_ context.Context, ids []string) ([]usersdomain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]usersdomain.Profile, 0, len(ids))
	for _, id := range ids {
		if profile, ok := r.profiles[id]; ok {
			result = append(result, profile)
		}
	}
	return result, nil
}
