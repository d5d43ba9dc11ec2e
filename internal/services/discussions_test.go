package services_test

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pathway/internal/apperr"
	"pathway/internal/mocks"
	"pathway/internal/models"
	"pathway/internal/services"
	"pathway/internal/store"
	"pathway/internal/utils"
)

func setupDiscussions(t *testing.T) (*services.DiscussionService, *mocks.MockStore, *recordingScheduler) {
	t.Helper()
	st := mocks.NewMockStore()
	st.Categories = []models.Category{
		{ID: 1, Slug: "career-advice", Name: "Career advice"},
		{ID: 2, Slug: "interviews", Name: "Interviews"},
	}
	st.AddUser(models.User{ID: 1, AuthID: "auth|1", Username: "ana", Role: models.RoleMember})
	sched := &recordingScheduler{}
	svc := services.NewDiscussionService(st, utils.NopCache{}, sched, newIDs(t), zerolog.Nop())
	return svc, st, sched
}

func TestListDiscussionsPaginates(t *testing.T) {
	svc, st, _ := setupDiscussions(t)
	for i := 0; i < 45; i++ {
		st.AddDiscussion(models.Discussion{
			ID:        int64(i + 1),
			Title:     "Thread",
			Category:  "career-advice",
			UserID:    1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}, "body")
	}

	page, err := svc.List(context.Background(), services.ListParams{Page: 3})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.TotalPages != 3 || page.Total != 45 {
		t.Errorf("Expected 3 pages of 45, got %d pages of %d", page.TotalPages, page.Total)
	}
	if len(page.Discussions) != 5 {
		t.Errorf("Expected 5 discussions on the last page, got %d", len(page.Discussions))
	}
	if page.Sort != "new" {
		t.Errorf("Expected default sort new, got %q", page.Sort)
	}

	first, err := svc.List(context.Background(), services.ListParams{Page: -1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if first.Page != 1 || len(first.Discussions) != services.PageSize {
		t.Errorf("Expected a full first page, got page %d with %d items", first.Page, len(first.Discussions))
	}
	if first.Discussions[0].ID != 45 {
		t.Errorf("Expected newest first, got id %d", first.Discussions[0].ID)
	}
}

// queryRecorder remembers the last list query passed to the store.
type queryRecorder struct {
	*mocks.MockStore
	last store.ListQuery
}

func (r *queryRecorder) ListDiscussions(ctx context.Context, q store.ListQuery) ([]models.Discussion, int64, error) {
	r.last = q
	return r.MockStore.ListDiscussions(ctx, q)
}

func TestListDiscussionsHugePage(t *testing.T) {
	st := &queryRecorder{MockStore: mocks.NewMockStore()}
	st.AddUser(models.User{ID: 1, AuthID: "auth|1", Username: "ana"})
	st.AddDiscussion(models.Discussion{ID: 1, Title: "Thread", Category: "career-advice", UserID: 1, CreatedAt: base}, "body")
	svc := services.NewDiscussionService(st, utils.NopCache{}, &recordingScheduler{}, newIDs(t), zerolog.Nop())

	for _, page := range []int{math.MaxInt64, math.MaxInt64/services.PageSize + 1, services.MaxPage + 1} {
		got, err := svc.List(context.Background(), services.ListParams{Page: page})
		if err != nil {
			t.Fatalf("List(page=%d) failed: %v", page, err)
		}
		if st.last.Offset < 0 {
			t.Errorf("List(page=%d) sent negative offset %d", page, st.last.Offset)
		}
		if got.Page != services.MaxPage {
			t.Errorf("List(page=%d) expected page capped at %d, got %d", page, services.MaxPage, got.Page)
		}
		if len(got.Discussions) != 0 {
			t.Errorf("List(page=%d) expected an empty page, got %d items", page, len(got.Discussions))
		}
	}
}

func TestListDiscussionsPinnedAndTop(t *testing.T) {
	svc, st, _ := setupDiscussions(t)
	st.AddDiscussion(models.Discussion{ID: 1, Title: "Old pinned", Category: "interviews", UserID: 1, IsPinned: true, CreatedAt: base}, "b")
	st.AddDiscussion(models.Discussion{ID: 2, Title: "Hot", Category: "interviews", UserID: 1, Score: 90, CreatedAt: base.Add(time.Hour)}, "b")
	st.AddDiscussion(models.Discussion{ID: 3, Title: "New", Category: "interviews", UserID: 1, Score: 10, CreatedAt: base.Add(2 * time.Hour)}, "b")
	st.AddDiscussion(models.Discussion{ID: 4, Title: "Elsewhere", Category: "career-advice", UserID: 1, CreatedAt: base.Add(3 * time.Hour)}, "b")

	page, err := svc.List(context.Background(), services.ListParams{Category: "interviews", Sort: "top"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []int64{1, 2, 3}
	if len(page.Discussions) != len(want) {
		t.Fatalf("Expected %d discussions, got %d", len(want), len(page.Discussions))
	}
	for i, d := range page.Discussions {
		if d.ID != want[i] {
			t.Errorf("Position %d: expected id %d, got %d", i, want[i], d.ID)
		}
	}
}

func TestListDiscussionsUnknownCategory(t *testing.T) {
	svc, _, _ := setupDiscussions(t)

	_, err := svc.List(context.Background(), services.ListParams{Category: "payments"})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestCreateDiscussion(t *testing.T) {
	svc, st, sched := setupDiscussions(t)

	d, err := svc.Create(context.Background(), 1, services.NewDiscussion{
		Title:    "  Switching from QA to backend  ",
		Category: "career-advice",
		Body:     "Has anyone made this move? What helped most?",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if d.ID == 0 {
		t.Error("Expected id to be assigned")
	}
	if d.Title != "Switching from QA to backend" {
		t.Errorf("Expected trimmed title, got %q", d.Title)
	}
	if d.User.Username != "ana" {
		t.Errorf("Expected author ana, got %q", d.User.Username)
	}

	stored, ok := st.Discussion(d.ID)
	if !ok {
		t.Fatal("Expected discussion to be stored")
	}
	if stored.LastActivity.IsZero() {
		t.Error("Expected last activity to be set")
	}
	if st.Contents[d.ID] != "Has anyone made this move? What helped most?" {
		t.Errorf("Unexpected stored body %q", st.Contents[d.ID])
	}
	if !sched.scheduled(d.ID) {
		t.Error("Expected new discussion to be scheduled for ranking")
	}
}

func TestCreateDiscussionValidation(t *testing.T) {
	svc, st, _ := setupDiscussions(t)
	valid := services.NewDiscussion{Title: "A fine title", Category: "interviews", Body: "A long enough body."}

	tests := []struct {
		name   string
		mutate func(*services.NewDiscussion)
	}{
		{"short title", func(in *services.NewDiscussion) { in.Title = "Hey" }},
		{"long title", func(in *services.NewDiscussion) { in.Title = strings.Repeat("a", 201) }},
		{"short body", func(in *services.NewDiscussion) { in.Body = "  tiny  " }},
		{"missing category", func(in *services.NewDiscussion) { in.Category = "" }},
		{"unknown category", func(in *services.NewDiscussion) { in.Category = "payments" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), 1, in)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}

	if _, err := svc.Create(context.Background(), 0, valid); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("Expected unauthenticated error, got %v", err)
	}
	if st.WriteCount() != 0 {
		t.Errorf("Expected no writes, got %d", st.WriteCount())
	}
}

func TestTogglePin(t *testing.T) {
	svc, st, _ := setupDiscussions(t)
	ctx := context.Background()
	st.AddDiscussion(models.Discussion{ID: 7, Title: "Welcome", Category: "interviews", UserID: 1, CreatedAt: base}, "b")
	admin := &models.User{ID: 9, Role: models.RoleAdmin}
	member := &models.User{ID: 1, Role: models.RoleMember}

	if _, err := svc.TogglePin(ctx, member, 7); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("Expected forbidden for member, got %v", err)
	}
	if _, err := svc.TogglePin(ctx, nil, 7); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("Expected unauthenticated for nil actor, got %v", err)
	}

	pinned, err := svc.TogglePin(ctx, admin, 7)
	if err != nil {
		t.Fatalf("TogglePin failed: %v", err)
	}
	if !pinned {
		t.Error("Expected discussion to be pinned")
	}
	if d, _ := st.Discussion(7); !d.IsPinned {
		t.Error("Expected stored discussion to be pinned")
	}

	pinned, err = svc.TogglePin(ctx, admin, 7)
	if err != nil {
		t.Fatalf("TogglePin failed: %v", err)
	}
	if pinned {
		t.Error("Expected discussion to be unpinned")
	}

	if _, err := svc.TogglePin(ctx, admin, 999); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestRecountRepairsDrift(t *testing.T) {
	svc, st, _ := setupDiscussions(t)
	st.AddDiscussion(models.Discussion{ID: 7, Title: "Welcome", Category: "interviews", UserID: 1, Likes: 5, Replies: 9, CreatedAt: base}, "b")
	st.LikeDiscussionRaw(7, 1)
	st.LikeDiscussionRaw(7, 2)
	st.AddComment(models.Comment{ID: 1, DiscussionID: 7, UserID: 1, Content: "hello there", CreatedAt: base})

	d, err := svc.Recount(context.Background(), &models.User{ID: 9, Role: models.RoleAdmin}, 7)
	if err != nil {
		t.Fatalf("Recount failed: %v", err)
	}
	if d.Likes != 2 || d.Replies != 1 {
		t.Errorf("Expected 2 likes and 1 reply, got %d likes and %d replies", d.Likes, d.Replies)
	}
}
