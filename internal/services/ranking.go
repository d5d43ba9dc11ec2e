package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pathway/internal/store"
	"pathway/internal/utils"
)

const (
	rankingQueueSize = 1000
	rankingBatchSize = 50
	rankingInterval  = 500 * time.Millisecond

	// scores decay with age, so recent and hot threads are rescored even
	// when nobody touches them
	refreshInterval = time.Hour
	refreshWindow   = 7 * 24 * time.Hour
	refreshTop      = 30
)

// RankingService reconciles a discussion's counters with its junction rows and
// recomputes its hot score, off the request path.
type RankingService struct {
	store store.DiscussionStore
	cache utils.Cache
	log   zerolog.Logger
	now   func() time.Time

	queue chan int64
	// pending maps a queued discussion to whether it needs a recount
	pending map[int64]bool
	mu      sync.Mutex
}

func NewRankingService(st store.DiscussionStore, cache utils.Cache, log zerolog.Logger) *RankingService {
	return &RankingService{
		store:   st,
		cache:   cache,
		log:     log.With().Str("component", "ranking").Logger(),
		now:     time.Now,
		queue:   make(chan int64, rankingQueueSize),
		pending: make(map[int64]bool),
	}
}

// ScheduleUpdate queues a discussion for a recount and rescore. A discussion
// already waiting in the queue is not queued twice, and a full queue drops
// the request.
func (s *RankingService) ScheduleUpdate(discussionID int64) {
	s.schedule(discussionID, true)
}

// ScheduleRescore queues a discussion for a score update without touching
// its counters.
func (s *RankingService) ScheduleRescore(discussionID int64) {
	s.schedule(discussionID, false)
}

func (s *RankingService) schedule(discussionID int64, recount bool) {
	s.mu.Lock()
	if queued, ok := s.pending[discussionID]; ok {
		s.pending[discussionID] = queued || recount
		s.mu.Unlock()
		return
	}
	s.pending[discussionID] = recount
	s.mu.Unlock()

	select {
	case s.queue <- discussionID:
	default:
		s.mu.Lock()
		delete(s.pending, discussionID)
		s.mu.Unlock()
		s.log.Warn().Int64("discussion_id", discussionID).Msg("ranking queue full, update skipped")
	}
}

// Pending reports how many discussions are waiting for an update.
func (s *RankingService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run processes the queue in batches and refreshes hot scores every hour
// until ctx is done.
func (s *RankingService) Run(ctx context.Context) {
	batch := make([]int64, 0, rankingBatchSize)
	ticker := time.NewTicker(rankingInterval)
	defer ticker.Stop()
	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				// the request context is gone; give the last batch its own deadline
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				s.processBatch(flushCtx, batch)
				cancel()
			}
			s.log.Info().Msg("ranking worker stopped")
			return
		case id := <-s.queue:
			batch = append(batch, id)
			if len(batch) >= rankingBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-refresh.C:
			if err := s.RefreshHot(ctx); err != nil {
				s.log.Error().Err(err).Msg("failed to refresh hot scores")
			}
		}
	}
}

func (s *RankingService) processBatch(ctx context.Context, ids []int64) {
	for _, id := range ids {
		s.mu.Lock()
		recount := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()

		var err error
		if recount {
			err = s.UpdateNow(ctx, id)
		} else {
			err = s.Rescore(ctx, id)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Error().Err(err).Int64("discussion_id", id).Bool("recount", recount).Msg("failed to update discussion score")
		}
	}
}

// UpdateNow recounts the discussion's likes and replies from their junction
// rows, drops its cached thread and stores its new hot score.
func (s *RankingService) UpdateNow(ctx context.Context, discussionID int64) error {
	d, err := s.store.RecountDiscussion(ctx, discussionID)
	if err != nil {
		return err
	}
	s.cache.Delete(ctx, threadCacheKey(discussionID))

	score := utils.CalculateScore(d.CreatedAt, s.now(), d.Likes, d.Replies, d.Views)
	return s.store.UpdateScore(ctx, discussionID, int(score))
}

// Rescore stores a new hot score from the discussion's current counters.
func (s *RankingService) Rescore(ctx context.Context, discussionID int64) error {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return err
	}
	score := utils.CalculateScore(d.CreatedAt, s.now(), d.Likes, d.Replies, d.Views)
	return s.store.UpdateScore(ctx, discussionID, int(score))
}

// RefreshHot rescores every discussion from the last week plus the current
// top threads, so idle threads keep sinking as they age.
func (s *RankingService) RefreshHot(ctx context.Context) error {
	ids, err := s.store.RescoreCandidates(ctx, s.now().Add(-refreshWindow), refreshTop)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.Rescore(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Error().Err(err).Int64("discussion_id", id).Msg("failed to refresh discussion score")
		}
	}
	s.log.Info().Int("count", len(ids)).Msg("refreshed hot scores")
	return nil
}
