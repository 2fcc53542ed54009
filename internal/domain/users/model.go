package users

import "time"

type Profile struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	FullName  *string   `gorm:"column:full_name;type:text"`
	Phone     *string   `gorm:"type:text"`
	AvatarURL *string   `gorm:"column:avatar_url;type:text"`
	Role      string    `gorm:"type:varchar(32);not null;default:'user'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Identity is what the identity provider reports about the signed-in user.
type Identity struct {
	UserID    string
	FullName  string
	Phone     string
	AvatarURL string
	Role      string
}

func (Profile) TableName() string {
	return "users"
}

func (p Profile) DisplayName() string {
	if p.FullName == nil {
		return ""
	}
	return *p.FullName
}
