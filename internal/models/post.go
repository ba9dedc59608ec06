package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxPostLength is the upper bound on a post body, counted in characters.
const MaxPostLength = 140

type Post struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_posts_user_created,priority:1"`
	Body      string    `json:"body" gorm:"size:140;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index;index:idx_posts_user_created,priority:2"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:UserID"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (Post) TableName() string {
	return "posts"
}
