package router_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func (ts *testServer) postForm(path, token string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func TestCommentFormRejectsMalformedParent(t *testing.T) {
	ts := setupPageServer(t)
	token := ts.token(t, "auth|reader")

	for _, parent := range []string{"abc", "-4", "0", "99999999999999999999"} {
		form := url.Values{"content": {"Thanks, this helped a lot."}, "parent_id": {parent}}
		w := ts.postForm("/d/100/comments", token, form)

		if w.Code != http.StatusBadRequest {
			t.Errorf("parent_id=%q: expected 400, got %d", parent, w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, "You can only reply to comments in this discussion.") {
			t.Errorf("parent_id=%q: expected the reply error in the page", parent)
		}
		if !strings.Contains(body, "Thanks, this helped a lot.") {
			t.Errorf("parent_id=%q: expected the draft to be kept", parent)
		}
	}

	if n := len(ts.store.Comments); n != 0 {
		t.Errorf("Expected no comment stored, got %d", n)
	}
	if d, _ := ts.store.Discussion(100); d.Replies != 0 {
		t.Errorf("Expected replies unchanged, got %d", d.Replies)
	}
}

func TestCommentFormPostsTopLevel(t *testing.T) {
	ts := setupPageServer(t)

	form := url.Values{"content": {"Practice with a timer."}, "parent_id": {""}}
	w := ts.postForm("/d/100/comments", ts.token(t, "auth|reader"), form)

	if w.Code != http.StatusFound || !strings.HasPrefix(w.Header().Get("Location"), "/d/100#c-") {
		t.Fatalf("Expected redirect to the new comment, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if n := len(ts.store.Comments); n != 1 || ts.store.Comments[0].ParentID != nil {
		t.Errorf("Expected one top-level comment, got %d", n)
	}
}

func TestLikeButtonReadsLikedHeader(t *testing.T) {
	ts := setupPageServer(t)

	w := ts.do(http.MethodGet, "/d/100", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `hx-post="/d/100/like"`) {
		t.Fatal("Expected the discussion like button")
	}
	if !strings.Contains(body, "getResponseHeader('X-Liked')") {
		t.Error("Expected the like button to sync its liked class from X-Liked")
	}
}
