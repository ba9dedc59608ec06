package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Username       string     `json:"username" gorm:"size:64;uniqueIndex;not null"`
	Email          string     `json:"-" gorm:"size:120;uniqueIndex;not null"`
	PasswordHash   string     `json:"-" gorm:"size:128;not null"`
	AboutMe        string     `json:"about_me" gorm:"size:140"`
	LastSeen       *time.Time `json:"last_seen"`
	FollowersCount int64      `json:"followers_count" gorm:"default:0"`
	FollowingCount int64      `json:"following_count" gorm:"default:0"`
	PostCount      int64      `json:"post_count" gorm:"default:0"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Follow is one directed edge of the follow graph. The composite primary key
// (follower_id, followed_id) makes the pair unique and serves lookups by
// follower; idx_follows_followed serves the reverse direction.
type Follow struct {
	FollowerID uuid.UUID `json:"follower_id" gorm:"type:uuid;primaryKey"`
	FollowedID uuid.UUID `json:"followed_id" gorm:"type:uuid;primaryKey;index:idx_follows_followed"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (User) TableName() string {
	return "users"
}

func (Follow) TableName() string {
	return "follows"
}
