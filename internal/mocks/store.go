package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"pathway/internal/models"
	"pathway/internal/store"
)

type likeKey struct {
	TargetID int64
	UserID   int64
}

// MockStore is an in-memory store.Store. Err, when set, is returned by every
// call; Writes counts calls that would mutate the database.
type MockStore struct {
	mu sync.Mutex

	Users           map[int64]*models.User
	Categories      []models.Category
	Discussions     map[int64]*models.Discussion
	Contents        map[int64]string
	Comments        []*models.Comment
	DiscussionLikes map[likeKey]bool
	CommentLikes    map[likeKey]bool

	Err      error
	Writes   int
	Reads    int
	Recounts int
}

func NewMockStore() *MockStore {
	return &MockStore{
		Users:           make(map[int64]*models.User),
		Discussions:     make(map[int64]*models.Discussion),
		Contents:        make(map[int64]string),
		DiscussionLikes: make(map[likeKey]bool),
		CommentLikes:    make(map[likeKey]bool),
	}
}

// AddUser, AddDiscussion and AddComment seed rows without counting as writes.
func (m *MockStore) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[u.ID] = &u
}

func (m *MockStore) AddDiscussion(d models.Discussion, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Discussions[d.ID] = &d
	m.Contents[d.ID] = body
}

func (m *MockStore) AddComment(c models.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Comments = append(m.Comments, &c)
}

// LikeDiscussionRaw inserts a junction row without touching the counter, to
// simulate drift left by older code.
func (m *MockStore) LikeDiscussionRaw(discussionID, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DiscussionLikes[likeKey{discussionID, userID}] = true
}

func (m *MockStore) HasDiscussionLikeRow(discussionID, userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DiscussionLikes[likeKey{discussionID, userID}]
}

func (m *MockStore) HasCommentLikeRow(commentID, userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CommentLikes[likeKey{commentID, userID}]
}

// Discussion returns a snapshot of a stored discussion.
func (m *MockStore) Discussion(id int64) (models.Discussion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.Discussions[id]
	if !ok {
		return models.Discussion{}, false
	}
	return *d, true
}

func (m *MockStore) RecountCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Recounts
}

func (m *MockStore) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Writes
}

func (m *MockStore) withUser(id int64) models.User {
	if u, ok := m.Users[id]; ok {
		return *u
	}
	return models.User{ID: id}
}

func (m *MockStore) discussionCopy(d *models.Discussion) models.Discussion {
	out := *d
	out.User = m.withUser(d.UserID)
	if body, ok := m.Contents[d.ID]; ok {
		out.Content = &models.DiscussionContent{DiscussionID: d.ID, Body: body}
	}
	return out
}

func (m *MockStore) GetDiscussion(ctx context.Context, id int64) (*models.Discussion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return nil, m.Err
	}
	d, ok := m.Discussions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := m.discussionCopy(d)
	return &out, nil
}

func (m *MockStore) IncrementViews(ctx context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.Err != nil {
		return 0, m.Err
	}
	d, ok := m.Discussions[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	d.Views++
	return d.Views, nil
}

// ListComments returns comments in insertion order; callers must not rely on
// the store for ordering.
func (m *MockStore) ListComments(ctx context.Context, discussionID int64) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Comment
	for _, c := range m.Comments {
		if c.DiscussionID == discussionID {
			cp := *c
			cp.User = m.withUser(c.UserID)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *MockStore) ListRelated(ctx context.Context, category string, excludeID int64, limit int) ([]models.Discussion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Discussion
	for _, d := range m.Discussions {
		if d.Category == category && d.ID != excludeID {
			out = append(out, m.discussionCopy(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) ListDiscussions(ctx context.Context, q store.ListQuery) ([]models.Discussion, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return nil, 0, m.Err
	}
	var all []models.Discussion
	for _, d := range m.Discussions {
		if q.Category == "" || d.Category == q.Category {
			all = append(all, m.discussionCopy(d))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if q.Sort == store.SortTop && a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	total := int64(len(all))
	if q.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[q.Offset:]
	if q.Limit > 0 && len(all) > q.Limit {
		all = all[:q.Limit]
	}
	return all, total, nil
}

func (m *MockStore) CreateDiscussion(ctx context.Context, d *models.Discussion, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.Err != nil {
		return m.Err
	}
	stored := *d
	m.Discussions[d.ID] = &stored
	m.Contents[d.ID] = body
	d.Content = &models.DiscussionContent{DiscussionID: d.ID, Body: body}
	d.User = m.withUser(d.UserID)
	return nil
}

func (m *MockStore) HasLikedDiscussion(ctx context.Context, discussionID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return false, m.Err
	}
	return m.DiscussionLikes[likeKey{discussionID, userID}], nil
}

func (m *MockStore) LikedCommentIDs(ctx context.Context, userID int64, commentIDs []int64) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return nil, m.Err
	}
	liked := make(map[int64]bool)
	for _, id := range commentIDs {
		if m.CommentLikes[likeKey{id, userID}] {
			liked[id] = true
		}
	}
	return liked, nil
}

func (m *MockStore) countDiscussionLikes(id int64) int {
	n := 0
	for k := range m.DiscussionLikes {
		if k.TargetID == id {
			n++
		}
	}
	return n
}

func (m *MockStore) countCommentLikes(id int64) int {
	n := 0
	for k := range m.CommentLikes {
		if k.TargetID == id {
			n++
		}
	}
	return n
}

func (m *MockStore) ToggleDiscussionLike(ctx context.Context, discussionID, userID int64) (store.LikeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.Err != nil {
		return store.LikeState{}, m.Err
	}
	d, ok := m.Discussions[discussionID]
	if !ok {
		return store.LikeState{}, store.ErrNotFound
	}
	key := likeKey{discussionID, userID}
	liked := !m.DiscussionLikes[key]
	if liked {
		m.DiscussionLikes[key] = true
	} else {
		delete(m.DiscussionLikes, key)
	}
	d.Likes = m.countDiscussionLikes(discussionID)
	return store.LikeState{Liked: liked, Likes: d.Likes}, nil
}

func (m *MockStore) findComment(id int64) *models.Comment {
	for _, c := range m.Comments {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *MockStore) ToggleCommentLike(ctx context.Context, commentID, userID int64) (store.LikeState, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.Err != nil {
		return store.LikeState{}, 0, m.Err
	}
	c := m.findComment(commentID)
	if c == nil {
		return store.LikeState{}, 0, store.ErrNotFound
	}
	key := likeKey{commentID, userID}
	liked := !m.CommentLikes[key]
	if liked {
		m.CommentLikes[key] = true
	} else {
		delete(m.CommentLikes, key)
	}
	c.Likes = m.countCommentLikes(commentID)
	return store.LikeState{Liked: liked, Likes: c.Likes}, c.DiscussionID, nil
}

func (m *MockStore) CreateComment(ctx context.Context, c *models.Comment) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.Err != nil {
		return 0, m.Err
	}
	d, ok := m.Discussions[c.DiscussionID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if c.ParentID != nil {
		parent := m.findComment(*c.ParentID)
		if parent == nil || parent.DiscussionID != c.DiscussionID {
			return 0, store.ErrInvalidParent
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	stored := *c
	m.Comments = append(m.Comments, &stored)

	replies := 0
	for _, existing := range m.Comments {
		if existing.DiscussionID == c.DiscussionID {
			replies++
		}
	}
	d.Replies = replies
	d.LastActivity = c.CreatedAt
	c.User = m.withUser(c.UserID)
	return replies, nil
}

func (m *MockStore) RecountDiscussion(ctx context.Context, id int64) (*models.Discussion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	m.Recounts++
	if m.Err != nil {
		return nil, m.Err
	}
	d, ok := m.Discussions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	replies := 0
	for _, c := range m.Comments {
		if c.DiscussionID == id {
			replies++
			c.Likes = m.countCommentLikes(c.ID)
		}
	}
	d.Replies = replies
	d.Likes = m.countDiscussionLikes(id)
	out := m.discussionCopy(d)
	return &out, nil
}

func (m *MockStore) UpdateScore(ctx context.Context, id int64, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.Err != nil {
		return m.Err
	}
	if d, ok := m.Discussions[id]; ok {
		d.Score = score
	}
	return nil
}

func (m *MockStore) RescoreCandidates(ctx context.Context, since time.Time, top int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return nil, m.Err
	}
	all := make([]*models.Discussion, 0, len(m.Discussions))
	for _, d := range m.Discussions {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	seen := make(map[int64]bool)
	var ids []int64
	for _, d := range all {
		if !d.CreatedAt.Before(since) {
			seen[d.ID] = true
			ids = append(ids, d.ID)
		}
	}
	for i, d := range all {
		if i >= top {
			break
		}
		if !seen[d.ID] {
			seen[d.ID] = true
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

func (m *MockStore) SetPinned(ctx context.Context, id int64, pinned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.Err != nil {
		return m.Err
	}
	d, ok := m.Discussions[id]
	if !ok {
		return store.ErrNotFound
	}
	d.IsPinned = pinned
	return nil
}

func (m *MockStore) GetCategory(ctx context.Context, slug string) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return nil, m.Err
	}
	for _, c := range m.Categories {
		if c.Slug == slug {
			c := c
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]models.Category(nil), m.Categories...), nil
}

func (m *MockStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockStore) FindOrCreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, existing := range m.Users {
		if existing.AuthID == u.AuthID {
			cp := *existing
			return &cp, nil
		}
	}
	m.Writes++
	stored := *u
	m.Users[u.ID] = &stored
	cp := stored
	return &cp, nil
}
