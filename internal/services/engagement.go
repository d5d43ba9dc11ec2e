package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"sort"
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
	MinCommentLength = 5
	MaxCommentLength = 10000
	RelatedLimit     = 3

	threadCacheTTL = 5 * time.Minute
)

// ScoreScheduler queues a discussion for re-ranking. ScheduleUpdate also
// reconciles its counters first; ScheduleRescore only recomputes the score.
type ScoreScheduler interface {
	ScheduleUpdate(discussionID int64)
	ScheduleRescore(discussionID int64)
}

type LikeResult = store.LikeState

// ThreadComment is a comment as shown in a thread.
type ThreadComment struct {
	models.Comment
	ContentHTML template.HTML `json:"content_html"`
	Floor       int           `json:"floor"`
	Liked       bool          `json:"liked"`
}

// Thread is a discussion with its comments, oldest first, and up to three
// related discussions from the same category.
type Thread struct {
	Discussion      models.Discussion   `json:"discussion"`
	Body            string              `json:"body"`
	BodyHTML        template.HTML       `json:"body_html"`
	Comments        []ThreadComment     `json:"comments"`
	Related         []models.Discussion `json:"related"`
	LikedDiscussion bool                `json:"liked"`
}

// PostedComment is the result of PostComment: the new comment and the
// discussion's reply count after the insert.
type PostedComment struct {
	Comment ThreadComment `json:"comment"`
	Replies int           `json:"replies"`
}

// EngagementService assembles discussion threads and owns the view, like and
// reply counters.
type EngagementService struct {
	store  store.DiscussionStore
	cache  utils.Cache
	ranker ScoreScheduler
	ids    *idgen.Generator
	log    zerolog.Logger
	now    func() time.Time
}

func NewEngagementService(st store.DiscussionStore, cache utils.Cache, ranker ScoreScheduler, ids *idgen.Generator, log zerolog.Logger) *EngagementService {
	return &EngagementService{
		store:  st,
		cache:  cache,
		ranker: ranker,
		ids:    ids,
		log:    log.With().Str("component", "engagement").Logger(),
		now:    time.Now,
	}
}

func threadCacheKey(discussionID int64) string {
	return fmt.Sprintf("thread:shared:%d", discussionID)
}

// LoadThread returns the thread for discussionID and counts one view.
// viewerID 0 is an anonymous viewer.
func (s *EngagementService) LoadThread(ctx context.Context, discussionID, viewerID int64) (*Thread, error) {
	return s.loadThread(ctx, discussionID, viewerID, true)
}

// Thread is LoadThread without counting a view, for re-rendering a page
// after a rejected form.
func (s *EngagementService) Thread(ctx context.Context, discussionID, viewerID int64) (*Thread, error) {
	return s.loadThread(ctx, discussionID, viewerID, false)
}

func (s *EngagementService) loadThread(ctx context.Context, discussionID, viewerID int64, countView bool) (*Thread, error) {
	thread, err := s.sharedThread(ctx, discussionID)
	if err != nil {
		return nil, err
	}

	if countView {
		views, err := s.store.IncrementViews(ctx, discussionID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.cache.Delete(ctx, threadCacheKey(discussionID))
			return nil, apperr.NotFound("Discussion not found.")
		case err != nil:
			// a lost view is not worth failing the page for
			s.log.Warn().Err(err).Int64("discussion_id", discussionID).Msg("failed to count view")
		default:
			thread.Discussion.Views = views
		}
		// views have no junction rows to reconcile
		s.ranker.ScheduleRescore(discussionID)
	}

	if viewerID == 0 {
		return thread, nil
	}

	liked, err := s.store.HasLikedDiscussion(ctx, discussionID, viewerID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	thread.LikedDiscussion = liked

	commentIDs := make([]int64, len(thread.Comments))
	for i, c := range thread.Comments {
		commentIDs[i] = c.ID
	}
	likedComments, err := s.store.LikedCommentIDs(ctx, viewerID, commentIDs)
	if err != nil {
		return nil, apperr.Store(err)
	}
	for i := range thread.Comments {
		thread.Comments[i].Liked = likedComments[thread.Comments[i].ID]
	}
	return thread, nil
}

// sharedThread is the viewer-independent part of a thread, served from cache when possible.
func (s *EngagementService) sharedThread(ctx context.Context, discussionID int64) (*Thread, error) {
	key := threadCacheKey(discussionID)

	var cached Thread
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Discussion not found.")
		}
		return nil, apperr.Store(err)
	}

	comments, err := s.store.ListComments(ctx, discussionID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	sortComments(comments)

	related, err := s.store.ListRelated(ctx, d.Category, d.ID, RelatedLimit)
	if err != nil {
		return nil, apperr.Store(err)
	}
	if len(related) > RelatedLimit {
		related = related[:RelatedLimit]
	}

	thread := &Thread{
		Discussion: *d,
		Body:       d.Body(),
		BodyHTML:   utils.RenderMarkdown(d.Body()),
		Comments:   make([]ThreadComment, len(comments)),
		Related:    related,
	}
	for i, c := range comments {
		thread.Comments[i] = newThreadComment(c, i+1)
	}

	s.cache.Set(ctx, key, thread, threadCacheTTL)
	return thread, nil
}

func newThreadComment(c models.Comment, floor int) ThreadComment {
	return ThreadComment{
		Comment:     c,
		ContentHTML: utils.RenderMarkdown(c.Content),
		Floor:       floor,
	}
}

// sortComments orders oldest first; snowflake ids break timestamp ties.
func sortComments(comments []models.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		a, b := comments[i], comments[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// ToggleDiscussionLike likes the discussion for userID, or removes the like
// if it already exists.
func (s *EngagementService) ToggleDiscussionLike(ctx context.Context, discussionID, userID int64) (LikeResult, error) {
	if userID == 0 {
		return LikeResult{}, apperr.Unauthenticated()
	}

	state, err := s.store.ToggleDiscussionLike(ctx, discussionID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LikeResult{}, apperr.NotFound("Discussion not found.")
		}
		return LikeResult{}, apperr.Store(err)
	}

	s.cache.Delete(ctx, threadCacheKey(discussionID))
	s.ranker.ScheduleUpdate(discussionID)

	s.log.Debug().
		Int64("discussion_id", discussionID).
		Int64("user_id", userID).
		Bool("liked", state.Liked).
		Int("likes", state.Likes).
		Msg("discussion like toggled")
	return state, nil
}

// ToggleCommentLike is ToggleDiscussionLike for a single comment.
func (s *EngagementService) ToggleCommentLike(ctx context.Context, commentID, userID int64) (LikeResult, error) {
	if userID == 0 {
		return LikeResult{}, apperr.Unauthenticated()
	}

	state, discussionID, err := s.store.ToggleCommentLike(ctx, commentID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LikeResult{}, apperr.NotFound("Comment not found.")
		}
		return LikeResult{}, apperr.Store(err)
	}

	s.cache.Delete(ctx, threadCacheKey(discussionID))

	s.log.Debug().
		Int64("comment_id", commentID).
		Int64("user_id", userID).
		Bool("liked", state.Liked).
		Int("likes", state.Likes).
		Msg("comment like toggled")
	return state, nil
}

// InvalidParent is the error for a reply whose parent_id is malformed or
// points outside the discussion.
func InvalidParent() error {
	return apperr.Validation("You can only reply to comments in this discussion.")
}

// ValidateComment trims content and checks its length without touching the store.
func ValidateComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n < MinCommentLength {
		return "", apperr.Validation(fmt.Sprintf("Comment must be at least %d characters.", MinCommentLength))
	}
	if n > MaxCommentLength {
		return "", apperr.Validation(fmt.Sprintf("Comment must be at most %d characters.", MaxCommentLength))
	}
	return content, nil
}

// PostComment adds a reply to a discussion. parentID, when set, must be a
// comment of the same discussion.
func (s *EngagementService) PostComment(ctx context.Context, discussionID, userID int64, content string, parentID *int64) (*PostedComment, error) {
	if userID == 0 {
		return nil, apperr.Unauthenticated()
	}
	content, err := ValidateComment(content)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:           s.ids.Next(),
		DiscussionID: discussionID,
		UserID:       userID,
		ParentID:     parentID,
		Content:      content,
		CreatedAt:    s.now(),
	}

	replies, err := s.store.CreateComment(ctx, comment)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.NotFound("Discussion not found.")
		case errors.Is(err, store.ErrInvalidParent):
			return nil, InvalidParent()
		}
		return nil, apperr.Store(err)
	}

	s.cache.Delete(ctx, threadCacheKey(discussionID))
	s.ranker.ScheduleUpdate(discussionID)

	s.log.Info().
		Int64("discussion_id", discussionID).
		Int64("comment_id", comment.ID).
		Int64("user_id", userID).
		Int("replies", replies).
		Msg("comment posted")

	return &PostedComment{
		Comment: newThreadComment(*comment, replies),
		Replies: replies,
	}, nil
}
