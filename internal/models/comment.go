package models

import (
	"time"
)

type Comment struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	DiscussionID int64     `gorm:"not null;index" json:"discussion_id"`
	UserID       int64     `gorm:"not null;index" json:"user_id"`
	User         User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	ParentID     *int64    `gorm:"index" json:"parent_id,omitempty"` // nil for top-level replies
	Content      string    `gorm:"type:text;not null" json:"content"`
	Likes        int       `gorm:"default:0;not null" json:"likes"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
