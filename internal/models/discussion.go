package models

import (
	"time"
)

// Discussion is a community thread. Views, Likes and Replies are denormalized
// counters; Likes and Replies are only ever written together with the
// discussion_likes / comments rows they summarize.
type Discussion struct {
	ID           int64              `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title        string             `gorm:"size:200;not null" json:"title"`
	Category     string             `gorm:"size:64;not null;index" json:"category"`
	UserID       int64              `gorm:"not null;index" json:"user_id"`
	User         User               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Content      *DiscussionContent `gorm:"foreignKey:DiscussionID;constraint:OnDelete:CASCADE;" json:"-"`
	Views        int                `gorm:"default:0;not null" json:"views"`
	Likes        int                `gorm:"default:0;not null" json:"likes"`
	Replies      int                `gorm:"default:0;not null" json:"replies"`
	Score        int                `gorm:"default:0;not null;index" json:"score"` // hot ranking
	IsPinned     bool               `gorm:"default:false;not null" json:"is_pinned"`
	CreatedAt    time.Time          `gorm:"index" json:"created_at"`
	LastActivity time.Time          `json:"last_activity"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// DiscussionContent holds the markdown body apart from the row the index pages scan.
type DiscussionContent struct {
	DiscussionID int64     `gorm:"primaryKey;autoIncrement:false" json:"discussion_id"`
	Body         string    `gorm:"type:text;not null" json:"body"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Body returns the markdown body or "" when the content row was not loaded.
func (d *Discussion) Body() string {
	if d.Content == nil {
		return ""
	}
	return d.Content.Body
}
