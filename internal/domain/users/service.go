package users

import (
	"context"
	"fmt"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// UpsertProfile records what the identity provider knows about a user. Blank
// fields keep whatever the users table already holds.
func (s *Service) UpsertProfile(ctx context.Context, identity Identity) error {
	if identity.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	profile := Profile{ID: identity.UserID, Role: strings.TrimSpace(identity.Role)}
	profile.FullName = optional(identity.FullName)
	profile.Phone = optional(identity.Phone)
	profile.AvatarURL = optional(identity.AvatarURL)

	return s.repo.UpsertProfile(ctx, &profile)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// Profiles returns the known profiles keyed by user id. Unknown ids are absent.
func (s *Service) Profiles(ctx context.Context, ids []string) (map[string]Profile, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[string]Profile{}, nil
	}

	profiles, err := s.repo.ListProfiles(ctx, unique)
	if err != nil {
		return nil, err
	}

	result := make(map[string]Profile, len(profiles))
	for _, profile := range profiles {
		result[profile.ID] = profile
	}
	return result, nil
}
