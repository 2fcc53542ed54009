package users

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	usersdomain "roommates-app-go/internal/domain/users"
	"roommates-app-go/internal/storeerr"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertProfile(ctx context.Context, profile *usersdomain.Profile) error {
	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if profile.FullName != nil {
		updates["full_name"] = profile.FullName
	}
	if profile.AvatarURL != nil {
		updates["avatar_url"] = profile.AvatarURL
	}
	if profile.Phone != nil {
		updates["phone"] = profile.Phone
	}
	if profile.Role != "" {
		updates["role"] = profile.Role
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(updates),
		}).
		Create(profile).Error
	return storeerr.Wrap("users.upsert_profile", err)
}

func (r *PostgresRepository) ListProfiles(ctx context.Context, ids []string) ([]usersdomain.Profile, error) {
	if len(ids) == 0 {
		return []usersdomain.Profile{}, nil
	}

	var profiles []usersdomain.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, storeerr.Wrap("users.list_profiles", err)
	}
	return profiles, nil
}
