package users

import "context"

type Repository interface {
	UpsertProfile(ctx context.Context, profile *Profile) error
	ListProfiles(ctx context.Context, ids []string) ([]Profile, error)
}
