package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"pathway/internal/apperr"
	"pathway/internal/idgen"
	"pathway/internal/models"
	"pathway/internal/store"
	"pathway/internal/utils"
)

const (
	PageSize = 20
	// MaxPage bounds the page number so the row offset cannot overflow.
	MaxPage = 10000

	MinTitleLength = 5
	MaxTitleLength = 200
	MinBodyLength  = 10
)

// ListParams selects a page of the community index.
type ListParams struct {
	Category string
	Sort     string
	Page     int
}

type DiscussionPage struct {
	Discussions []models.Discussion `json:"discussions"`
	Category    string              `json:"category,omitempty"`
	Sort        string              `json:"sort"`
	Page        int                 `json:"page"`
	TotalPages  int                 `json:"total_pages"`
	Total       int64               `json:"total"`
}

// DiscussionService serves the community index, new discussions and the
// moderation actions.
type DiscussionService struct {
	store  store.DiscussionStore
	cache  utils.Cache
	ranker ScoreScheduler
	ids    *idgen.Generator
	log    zerolog.Logger
	now    func() time.Time
}

func NewDiscussionService(st store.DiscussionStore, cache utils.Cache, ranker ScoreScheduler, ids *idgen.Generator, log zerolog.Logger) *DiscussionService {
	return &DiscussionService{
		store:  st,
		cache:  cache,
		ranker: ranker,
		ids:    ids,
		log:    log.With().Str("component", "discussions").Logger(),
		now:    time.Now,
	}
}

// List returns one page of discussions, pinned first.
func (s *DiscussionService) List(ctx context.Context, p ListParams) (*DiscussionPage, error) {
	if p.Sort != store.SortTop {
		p.Sort = store.SortNew
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Category != "" {
		if _, err := s.store.GetCategory(ctx, p.Category); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.NotFound("Category not found.")
			}
			return nil, apperr.Store(err)
		}
	}

	discussions, total, err := s.store.ListDiscussions(ctx, store.ListQuery{
		Category: p.Category,
		Sort:     p.Sort,
		Limit:    PageSize,
		Offset:   (p.Page - 1) * PageSize,
	})
	if err != nil {
		return nil, apperr.Store(err)
	}
	if discussions == nil {
		discussions = []models.Discussion{}
	}

	totalPages := int((total + PageSize - 1) / PageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	return &DiscussionPage{
		Discussions: discussions,
		Category:    p.Category,
		Sort:        p.Sort,
		Page:        p.Page,
		TotalPages:  totalPages,
		Total:       total,
	}, nil
}

func (s *DiscussionService) Categories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return categories, nil
}

// NewDiscussion is the input of Create.
type NewDiscussion struct {
	Title    string `json:"title" form:"title"`
	Category string `json:"category" form:"category"`
	Body     string `json:"body" form:"body"`
}

func (in *NewDiscussion) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Body = strings.TrimSpace(in.Body)
}

// Create opens a new discussion authored by userID.
func (s *DiscussionService) Create(ctx context.Context, userID int64, in NewDiscussion) (*models.Discussion, error) {
	if userID == 0 {
		return nil, apperr.Unauthenticated()
	}
	in.normalize()

	switch n := utf8.RuneCountInString(in.Title); {
	case n < MinTitleLength:
		return nil, apperr.Validation(fmt.Sprintf("Title must be at least %d characters.", MinTitleLength))
	case n > MaxTitleLength:
		return nil, apperr.Validation(fmt.Sprintf("Title must be at most %d characters.", MaxTitleLength))
	}
	if utf8.RuneCountInString(in.Body) < MinBodyLength {
		return nil, apperr.Validation(fmt.Sprintf("Body must be at least %d characters.", MinBodyLength))
	}
	if in.Category == "" {
		return nil, apperr.Validation("Please choose a category.")
	}
	if _, err := s.store.GetCategory(ctx, in.Category); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Validation("Unknown category.")
		}
		return nil, apperr.Store(err)
	}

	now := s.now()
	d := &models.Discussion{
		ID:           s.ids.Next(),
		Title:        in.Title,
		Category:     in.Category,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.store.CreateDiscussion(ctx, d, in.Body); err != nil {
		return nil, apperr.Store(err)
	}
	s.ranker.ScheduleUpdate(d.ID)

	s.log.Info().
		Int64("discussion_id", d.ID).
		Int64("user_id", userID).
		Str("category", d.Category).
		Msg("discussion created")
	return d, nil
}

// TogglePin pins or unpins a discussion and returns the new state.
func (s *DiscussionService) TogglePin(ctx context.Context, actor *models.User, discussionID int64) (bool, error) {
	if err := requireAdmin(actor); err != nil {
		return false, err
	}

	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, apperr.NotFound("Discussion not found.")
		}
		return false, apperr.Store(err)
	}

	pinned := !d.IsPinned
	if err := s.store.SetPinned(ctx, discussionID, pinned); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, apperr.NotFound("Discussion not found.")
		}
		return false, apperr.Store(err)
	}
	s.cache.Delete(ctx, threadCacheKey(discussionID))

	s.log.Info().
		Int64("discussion_id", discussionID).
		Int64("admin_id", actor.ID).
		Bool("pinned", pinned).
		Msg("discussion pin toggled")
	return pinned, nil
}

// Recount rewrites the discussion's counters from the junction tables.
func (s *DiscussionService) Recount(ctx context.Context, actor *models.User, discussionID int64) (*models.Discussion, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	d, err := s.store.RecountDiscussion(ctx, discussionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Discussion not found.")
		}
		return nil, apperr.Store(err)
	}
	s.cache.Delete(ctx, threadCacheKey(discussionID))
	s.ranker.ScheduleUpdate(discussionID)

	s.log.Info().
		Int64("discussion_id", discussionID).
		Int("likes", d.Likes).
		Int("replies", d.Replies).
		Msg("discussion recounted")
	return d, nil
}

func requireAdmin(actor *models.User) error {
	if actor == nil {
		return apperr.Unauthenticated()
	}
	if !actor.IsAdmin() {
		return apperr.Forbidden("Only admins can do that.")
	}
	return nil
}
