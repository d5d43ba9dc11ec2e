package models

import (
	"time"
)

// DiscussionLike is the junction row behind Discussion.Likes.
type DiscussionLike struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DiscussionID int64     `gorm:"not null;uniqueIndex:idx_discussion_like_user" json:"discussion_id"`
	UserID       int64     `gorm:"not null;index;uniqueIndex:idx_discussion_like_user" json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// CommentLike is the junction row behind Comment.Likes.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID int64     `gorm:"not null;uniqueIndex:idx_comment_like_user" json:"comment_id"`
	UserID    int64     `gorm:"not null;index;uniqueIndex:idx_comment_like_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
