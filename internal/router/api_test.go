package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pathway/internal/auth"
	"pathway/internal/config"
	"pathway/internal/idgen"
	"pathway/internal/middleware"
	"pathway/internal/mocks"
	"pathway/internal/models"
	"pathway/internal/router"
	"pathway/internal/services"
	"pathway/internal/utils"
)

const jwtSecret = "test-jwt-secret"

type noopScheduler struct{}

func (noopScheduler) ScheduleUpdate(int64) {}

func (noopScheduler) ScheduleRescore(int64) {}

type testServer struct {
	engine   *gin.Engine
	store    *mocks.MockStore
	verifier *auth.Verifier
	pingErr  error
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	return setupServerWith(t, config.ServerConfig{})
}

// setupPageServer also renders the HTML templates.
func setupPageServer(t *testing.T) *testServer {
	t.Helper()
	return setupServerWith(t, config.ServerConfig{TemplatesDir: "../../web/templates"})
}

func setupServerWith(t *testing.T, server config.ServerConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := mocks.NewMockStore()
	st.Categories = []models.Category{{ID: 1, Slug: "interviews", Name: "Interviews"}}
	st.AddUser(models.User{ID: 1, AuthID: "auth|author", Username: "ana"})
	st.AddUser(models.User{ID: 2, AuthID: "auth|admin", Username: "root", Role: models.RoleAdmin})
	st.AddDiscussion(models.Discussion{
		ID:        100,
		Title:     "System design interview prep",
		Category:  "interviews",
		UserID:    1,
		Views:     7,
		CreatedAt: time.Now().Add(-time.Hour),
	}, "What resources helped you most?")

	ids, err := idgen.New(2)
	if err != nil {
		t.Fatalf("idgen.New failed: %v", err)
	}
	log := zerolog.Nop()
	verifier := auth.NewVerifier(jwtSecret)
	cache := utils.NopCache{}

	ts := &testServer{store: st, verifier: verifier}
	ts.engine = router.New(router.Deps{
		Config: &config.Config{
			Server: server,
			Auth:   config.AuthConfig{SessionSecret: "test-session-secret"},
		},
		Log:         log,
		Identity:    middleware.NewIdentity(st, verifier, ids, log),
		Engagement:  services.NewEngagementService(st, cache, noopScheduler{}, ids, log),
		Discussions: services.NewDiscussionService(st, cache, noopScheduler{}, ids, log),
		Ping:        func(ctx context.Context) error { return ts.pingErr },
	})
	return ts
}

func (ts *testServer) token(t *testing.T, subject string) string {
	t.Helper()
	token, err := ts.verifier.Sign(subject, subject[5:]+"@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return token
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)

	w := ts.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	ts.pingErr = errors.New("connection refused")
	w = ts.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestGetThread(t *testing.T) {
	ts := setupServer(t)

	w := ts.do(http.MethodGet, "/api/discussions/100", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var thread struct {
		Discussion struct {
			Title  string `json:"title"`
			Views  int    `json:"views"`
			Author struct {
				Username string `json:"username"`
			} `json:"author"`
		} `json:"discussion"`
		Body string `json:"body"`
	}
	decode(t, w, &thread)
	if thread.Discussion.Views != 8 {
		t.Errorf("Expected views 8, got %d", thread.Discussion.Views)
	}
	if thread.Discussion.Author.Username != "ana" {
		t.Errorf("Expected author ana, got %q", thread.Discussion.Author.Username)
	}
	if thread.Body != "What resources helped you most?" {
		t.Errorf("Unexpected body %q", thread.Body)
	}
}

func TestGetThreadNotFound(t *testing.T) {
	ts := setupServer(t)

	for _, path := range []string{"/api/discussions/999", "/api/discussions/abc"} {
		w := ts.do(http.MethodGet, path, "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
		var body errorBody
		decode(t, w, &body)
		if body.Error.Code != "NOT_FOUND" {
			t.Errorf("%s: expected NOT_FOUND, got %q", path, body.Error.Code)
		}
	}
}

func TestStoreFailureIsGeneric(t *testing.T) {
	ts := setupServer(t)
	ts.store.Err = errors.New("pq: too many connections")

	w := ts.do(http.MethodGet, "/api/discussions/100", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "too many connections") {
		t.Error("Store error leaked to the client")
	}
}

func TestLikeDiscussionAPI(t *testing.T) {
	ts := setupServer(t)
	token := ts.token(t, "auth|reader")

	w := ts.do(http.MethodPost, "/api/discussions/100/like", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for anonymous like, got %d", w.Code)
	}

	var res struct {
		Liked bool `json:"liked"`
		Likes int  `json:"likes"`
	}
	w = ts.do(http.MethodPost, "/api/discussions/100/like", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &res)
	if !res.Liked || res.Likes != 1 {
		t.Errorf("Expected liked with 1 like, got %+v", res)
	}

	w = ts.do(http.MethodPost, "/api/discussions/100/like", token, nil)
	decode(t, w, &res)
	if res.Liked || res.Likes != 0 {
		t.Errorf("Expected unliked with 0 likes, got %+v", res)
	}
}

func TestLikeCommentAPI(t *testing.T) {
	ts := setupServer(t)
	ts.store.AddComment(models.Comment{ID: 5, DiscussionID: 100, UserID: 1, Content: "Read DDIA.", CreatedAt: time.Now()})

	w := ts.do(http.MethodPost, "/api/comments/5/like", ts.token(t, "auth|reader"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"likes":1`) {
		t.Errorf("Expected likes 1, got %s", w.Body.String())
	}

	w = ts.do(http.MethodPost, "/api/comments/6/like", ts.token(t, "auth|reader"), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing comment, got %d", w.Code)
	}
}

func TestPostCommentAPI(t *testing.T) {
	ts := setupServer(t)
	token := ts.token(t, "auth|reader")

	w := ts.do(http.MethodPost, "/api/discussions/100/comments", "", map[string]string{"content": "Great point, thanks!"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for anonymous comment, got %d", w.Code)
	}

	w = ts.do(http.MethodPost, "/api/discussions/100/comments", token, map[string]string{"content": "ok"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for short comment, got %d", w.Code)
	}
	var errBody errorBody
	decode(t, w, &errBody)
	if errBody.Error.Code != "INVALID_INPUT" {
		t.Errorf("Expected INVALID_INPUT, got %q", errBody.Error.Code)
	}

	w = ts.do(http.MethodPost, "/api/discussions/100/comments", token, map[string]string{"content": "Great point, thanks!"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var posted struct {
		Comment struct {
			ID      int64  `json:"id"`
			Content string `json:"content"`
			Author  struct {
				Username string `json:"username"`
			} `json:"author"`
		} `json:"comment"`
		Replies int `json:"replies"`
	}
	decode(t, w, &posted)
	if posted.Replies != 1 {
		t.Errorf("Expected 1 reply, got %d", posted.Replies)
	}
	if posted.Comment.Content != "Great point, thanks!" || posted.Comment.Author.Username != "reader" {
		t.Errorf("Unexpected comment %+v", posted.Comment)
	}
}

func TestCreateAndListDiscussionsAPI(t *testing.T) {
	ts := setupServer(t)
	token := ts.token(t, "auth|reader")

	w := ts.do(http.MethodPost, "/api/discussions", token, map[string]string{
		"title":    "Behavioral rounds at big tech",
		"category": "interviews",
		"body":     "How do you structure STAR answers?",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(http.MethodPost, "/api/discussions", token, map[string]string{"title": "Hi", "category": "interviews", "body": "too short"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}

	w = ts.do(http.MethodGet, "/api/discussions?category=interviews", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var page struct {
		Discussions []struct {
			Title string `json:"title"`
		} `json:"discussions"`
		Total int64 `json:"total"`
	}
	decode(t, w, &page)
	if page.Total != 2 || page.Discussions[0].Title != "Behavioral rounds at big tech" {
		t.Errorf("Unexpected page %+v", page)
	}
}

func TestHTMXLike(t *testing.T) {
	ts := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/d/100/like", nil)
	req.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	if w.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("Expected HX-Redirect to /login, got %q", w.Header().Get("HX-Redirect"))
	}
	if d, _ := ts.store.Discussion(100); d.Likes != 0 {
		t.Errorf("Expected likes unchanged, got %d", d.Likes)
	}

	w = ts.do(http.MethodPost, "/d/100/like", ts.token(t, "auth|reader"), nil)
	if w.Code != http.StatusOK || w.Body.String() != "1" {
		t.Errorf("Expected 200 with count 1, got %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Liked") != "true" {
		t.Errorf("Expected X-Liked true, got %q", w.Header().Get("X-Liked"))
	}
}

func TestSessionLogin(t *testing.T) {
	ts := setupServer(t)

	form := url.Values{"token": {ts.token(t, "auth|reader")}, "next": {"/d/100"}}
	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	if w.Code != http.StatusFound || w.Header().Get("Location") != "/d/100" {
		t.Fatalf("Expected redirect to /d/100, got %d %q", w.Code, w.Header().Get("Location"))
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("Expected a session cookie")
	}

	req = httptest.NewRequest(http.MethodPost, "/d/100/like", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	if w.Body.String() != "1" {
		t.Errorf("Expected session user to like, got %d %q", w.Code, w.Body.String())
	}

	form = url.Values{"token": {"forged"}}
	req = httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for forged token, got %d", w.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	ts := setupServer(t)

	w := ts.do(http.MethodPost, "/admin/d/100/pin", ts.token(t, "auth|reader"), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for member, got %d", w.Code)
	}

	admin := ts.token(t, "auth|admin")
	w = ts.do(http.MethodPost, "/admin/d/100/pin", admin, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"pinned":true`) {
		t.Errorf("Expected pinned, got %d %s", w.Code, w.Body.String())
	}

	ts.store.LikeDiscussionRaw(100, 42)
	w = ts.do(http.MethodPost, "/admin/d/100/recount", admin, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"likes":1`) {
		t.Errorf("Expected recounted likes 1, got %d %s", w.Code, w.Body.String())
	}
}

func TestResponsesAreCompressed(t *testing.T) {
	ts := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/discussions", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Errorf("Expected gzip encoding, got %q", w.Header().Get("Content-Encoding"))
	}
}
