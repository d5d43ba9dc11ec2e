package store

import (
	"context"
	"errors"
	"time"

	"pathway/internal/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidParent is returned when a reply targets a comment of another discussion.
	ErrInvalidParent = errors.New("parent comment belongs to another discussion")
)

const (
	SortNew = "new"
	SortTop = "top"
)

// ListQuery selects a page of the community index.
type ListQuery struct {
	Category string // empty for all categories
	Sort     string // SortNew or SortTop
	Limit    int
	Offset   int
}

// LikeState is the outcome of a like toggle: whether the user now likes the
// target and the target's counter after the toggle.
type LikeState struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// DiscussionStore covers discussions, their comment threads and like junctions.
// Every method that changes a junction row also rewrites the counter it backs
// in the same transaction.
type DiscussionStore interface {
	GetDiscussion(ctx context.Context, id int64) (*models.Discussion, error)
	IncrementViews(ctx context.Context, id int64) (int, error)
	ListComments(ctx context.Context, discussionID int64) ([]models.Comment, error)
	ListRelated(ctx context.Context, category string, excludeID int64, limit int) ([]models.Discussion, error)
	ListDiscussions(ctx context.Context, q ListQuery) ([]models.Discussion, int64, error)
	CreateDiscussion(ctx context.Context, d *models.Discussion, body string) error

	HasLikedDiscussion(ctx context.Context, discussionID, userID int64) (bool, error)
	LikedCommentIDs(ctx context.Context, userID int64, commentIDs []int64) (map[int64]bool, error)
	ToggleDiscussionLike(ctx context.Context, discussionID, userID int64) (LikeState, error)
	ToggleCommentLike(ctx context.Context, commentID, userID int64) (LikeState, int64, error)

	CreateComment(ctx context.Context, c *models.Comment) (int, error)

	RecountDiscussion(ctx context.Context, id int64) (*models.Discussion, error)
	UpdateScore(ctx context.Context, id int64, score int) error
	// RescoreCandidates lists discussions created since the given time plus
	// the top highest-scored ones, without duplicates.
	RescoreCandidates(ctx context.Context, since time.Time, top int) ([]int64, error)
	SetPinned(ctx context.Context, id int64, pinned bool) error

	GetCategory(ctx context.Context, slug string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// UserStore resolves the identities handed to us by the auth provider.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	FindOrCreateUser(ctx context.Context, u *models.User) (*models.User, error)
}

type Store interface {
	DiscussionStore
	UserStore
}
