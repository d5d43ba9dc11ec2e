package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pathway/internal/models"
)

// GormStore implements Store on top of PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) GetDiscussion(ctx context.Context, id int64) (*models.Discussion, error) {
	var d models.Discussion
	if err := s.db.WithContext(ctx).Preload("User").Preload("Content").First(&d, id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

// IncrementViews bumps the view counter and returns the new value.
func (s *GormStore) IncrementViews(ctx context.Context, id int64) (int, error) {
	var d models.Discussion
	res := s.db.WithContext(ctx).Model(&d).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "views"}}}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return d.Views, nil
}

func (s *GormStore) ListComments(ctx context.Context, discussionID int64) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("User").
		Where("discussion_id = ?", discussionID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}

func (s *GormStore) ListRelated(ctx context.Context, category string, excludeID int64, limit int) ([]models.Discussion, error) {
	var related []models.Discussion
	err := s.db.WithContext(ctx).Preload("User").
		Where("category = ? AND id <> ?", category, excludeID).
		Order("created_at DESC").
		Limit(limit).
		Find(&related).Error
	return related, err
}

func (s *GormStore) ListDiscussions(ctx context.Context, q ListQuery) ([]models.Discussion, int64, error) {
	inCategory := func(tx *gorm.DB) *gorm.DB {
		if q.Category != "" {
			return tx.Where("category = ?", q.Category)
		}
		return tx
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Discussion{}).Scopes(inCategory).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "is_pinned DESC, created_at DESC"
	if q.Sort == SortTop {
		order = "is_pinned DESC, score DESC, created_at DESC"
	}

	var discussions []models.Discussion
	err := s.db.WithContext(ctx).Scopes(inCategory).Preload("User").
		Order(order).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&discussions).Error
	return discussions, total, err
}

func (s *GormStore) CreateDiscussion(ctx context.Context, d *models.Discussion, body string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(d).Error; err != nil {
			return err
		}
		content := models.DiscussionContent{DiscussionID: d.ID, Body: body}
		if err := tx.Create(&content).Error; err != nil {
			return err
		}
		d.Content = &content
		return tx.First(&d.User, d.UserID).Error
	})
}

func (s *GormStore) HasLikedDiscussion(ctx context.Context, discussionID, userID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.DiscussionLike{}).
		Where("discussion_id = ? AND user_id = ?", discussionID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) LikedCommentIDs(ctx context.Context, userID int64, commentIDs []int64) (map[int64]bool, error) {
	liked := make(map[int64]bool)
	if len(commentIDs) == 0 {
		return liked, nil
	}
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// ToggleDiscussionLike removes the user's like if present, otherwise adds it,
// then recounts discussions.likes from the junction table. The discussion row
// is locked for the duration so concurrent toggles serialize.
func (s *GormStore) ToggleDiscussionLike(ctx context.Context, discussionID, userID int64) (LikeState, error) {
	var state LikeState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.Discussion
		if err := tx.Clauses(forUpdate).Select("id").First(&target, discussionID).Error; err != nil {
			return err
		}

		res := tx.Where("discussion_id = ? AND user_id = ?", discussionID, userID).Delete(&models.DiscussionLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			like := models.DiscussionLike{DiscussionID: discussionID, UserID: userID}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			state.Liked = true
		}

		if err := tx.Model(&models.Discussion{}).Where("id = ?", discussionID).
			UpdateColumn("likes", gorm.Expr("(SELECT COUNT(*) FROM discussion_likes WHERE discussion_id = ?)", discussionID)).
			Error; err != nil {
			return err
		}

		var updated models.Discussion
		if err := tx.Select("likes").First(&updated, discussionID).Error; err != nil {
			return err
		}
		state.Likes = updated.Likes
		return nil
	})
	return state, translate(err)
}

// ToggleCommentLike is ToggleDiscussionLike for comments. It also returns the
// comment's discussion id so callers can invalidate the thread.
func (s *GormStore) ToggleCommentLike(ctx context.Context, commentID, userID int64) (LikeState, int64, error) {
	var state LikeState
	var discussionID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.Comment
		if err := tx.Clauses(forUpdate).Select("id", "discussion_id").First(&target, commentID).Error; err != nil {
			return err
		}
		discussionID = target.DiscussionID

		res := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&models.CommentLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			like := models.CommentLike{CommentID: commentID, UserID: userID}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			state.Liked = true
		}

		if err := tx.Model(&models.Comment{}).Where("id = ?", commentID).
			UpdateColumn("likes", gorm.Expr("(SELECT COUNT(*) FROM comment_likes WHERE comment_id = ?)", commentID)).
			Error; err != nil {
			return err
		}

		var updated models.Comment
		if err := tx.Select("likes").First(&updated, commentID).Error; err != nil {
			return err
		}
		state.Likes = updated.Likes
		return nil
	})
	return state, discussionID, translate(err)
}

// CreateComment inserts c and recounts discussions.replies in one transaction.
// It returns the new reply count and fills c.User.
func (s *GormStore) CreateComment(ctx context.Context, c *models.Comment) (int, error) {
	var replies int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.Discussion
		if err := tx.Clauses(forUpdate).Select("id").First(&target, c.DiscussionID).Error; err != nil {
			return err
		}

		if c.ParentID != nil {
			var parent models.Comment
			if err := tx.Select("id", "discussion_id").First(&parent, *c.ParentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrInvalidParent
				}
				return err
			}
			if parent.DiscussionID != c.DiscussionID {
				return ErrInvalidParent
			}
		}

		if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Discussion{}).Where("id = ?", c.DiscussionID).
			UpdateColumns(map[string]interface{}{
				"replies":       gorm.Expr("(SELECT COUNT(*) FROM comments WHERE discussion_id = ?)", c.DiscussionID),
				"last_activity": c.CreatedAt,
			}).Error; err != nil {
			return err
		}

		var updated models.Discussion
		if err := tx.Select("replies").First(&updated, c.DiscussionID).Error; err != nil {
			return err
		}
		replies = updated.Replies

		return tx.First(&c.User, c.UserID).Error
	})
	return replies, translate(err)
}

// RecountDiscussion repairs every counter of a discussion and its comments from
// the junction tables, using the recount_discussion() function installed by
// the SQL migrations.
func (s *GormStore) RecountDiscussion(ctx context.Context, id int64) (*models.Discussion, error) {
	var d models.Discussion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).Select("id").First(&d, id).Error; err != nil {
			return err
		}
		if err := tx.Exec("SELECT recount_discussion(?)", id).Error; err != nil {
			return err
		}
		return tx.Preload("User").First(&d, id).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *GormStore) UpdateScore(ctx context.Context, id int64, score int) error {
	return s.db.WithContext(ctx).Model(&models.Discussion{}).
		Where("id = ?", id).
		UpdateColumn("score", score).Error
}

func (s *GormStore) RescoreCandidates(ctx context.Context, since time.Time, top int) ([]int64, error) {
	db := s.db.WithContext(ctx)

	var recent []int64
	if err := db.Model(&models.Discussion{}).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Pluck("id", &recent).Error; err != nil {
		return nil, err
	}

	var hottest []int64
	if err := db.Model(&models.Discussion{}).
		Order("score DESC").
		Limit(top).
		Pluck("id", &hottest).Error; err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(recent)+len(hottest))
	ids := make([]int64, 0, len(recent)+len(hottest))
	for _, id := range append(recent, hottest...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *GormStore) SetPinned(ctx context.Context, id int64, pinned bool) error {
	res := s.db.WithContext(ctx).Model(&models.Discussion{}).
		Where("id = ?", id).
		UpdateColumn("is_pinned", pinned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetCategory(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (s *GormStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.WithContext(ctx).Order("id ASC").Find(&categories).Error
	return categories, err
}

func (s *GormStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindOrCreateUser returns the user with u.AuthID, inserting u when the
// provider subject is new. u.ID must already be assigned.
func (s *GormStore) FindOrCreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var existing models.User
	err := db.Where("auth_id = ?", u.AuthID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "auth_id"}},
		DoNothing: true,
	}).Create(u).Error; err != nil {
		return nil, err
	}

	// Re-read: a concurrent request may have won the insert.
	if err := db.Where("auth_id = ?", u.AuthID).First(&existing).Error; err != nil {
		return nil, translate(err)
	}
	return &existing, nil
}
