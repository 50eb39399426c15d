package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ysamarin/postline/backend/internal/common/clock"
	"github.com/ysamarin/postline/backend/internal/common/jwtverify"
	"github.com/ysamarin/postline/backend/internal/common/logger"
	"github.com/ysamarin/postline/backend/internal/post/domain"
	postrepo "github.com/ysamarin/postline/backend/internal/post/repository"
	"github.com/ysamarin/postline/backend/internal/post/service"
)

type stubPostRepo struct {
	createFunc        func(ctx context.Context, post domain.Post) error
	updateFunc        func(ctx context.Context, id, authorID string, content *string, hidden *bool, updatedAt time.Time) (domain.Post, error)
	deleteFunc        func(ctx context.Context, id, authorID string) error
	listByAuthorFunc  func(ctx context.Context, authorID string, limit, offset int) ([]domain.Post, error)
	countByAuthorFunc func(ctx context.Context, authorID string) (int, error)
	listPublicFunc    func(ctx context.Context, limit, offset int) ([]domain.FeedPost, error)
	countPublicFunc   func(ctx context.Context) (int, error)
}

func (m *stubPostRepo) Create(ctx context.Context, post domain.Post) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, post)
	}
	return nil
}

func (m *stubPostRepo) Update(ctx context.Context, id, authorID string, content *string, hidden *bool, updatedAt time.Time) (domain.Post, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, authorID, content, hidden, updatedAt)
	}
	return domain.Post{}, postrepo.ErrPostNotFound
}

func (m *stubPostRepo) Delete(ctx context.Context, id, authorID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, authorID)
	}
	return postrepo.ErrPostNotFound
}

func (m *stubPostRepo) ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]domain.Post, error) {
	if m.listByAuthorFunc != nil {
		return m.listByAuthorFunc(ctx, authorID, limit, offset)
	}
	return nil, nil
}

func (m *stubPostRepo) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	if m.countByAuthorFunc != nil {
		return m.countByAuthorFunc(ctx, authorID)
	}
	return 0, nil
}

func (m *stubPostRepo) ListPublic(ctx context.Context, limit, offset int) ([]domain.FeedPost, error) {
	if m.listPublicFunc != nil {
		return m.listPublicFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *stubPostRepo) CountPublic(ctx context.Context) (int, error) {
	if m.countPublicFunc != nil {
		return m.countPublicFunc(ctx)
	}
	return 0, nil
}

type stubIDGenerator struct{}

func (stubIDGenerator) NewID() (string, error) { return "post-1", nil }

var testClaims = jwtverify.Claims{UserID: "user-123", Username: "testuser", JTI: "jti-1"}

// claimsMW stands in for the jwt middleware and injects fixed claims.
func claimsMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(jwtverify.WithClaims(r.Context(), testClaims)))
	})
}

func setupHandler(t *testing.T, repo *stubPostRepo, authMW func(http.Handler) http.Handler) *http.ServeMux {
	t.Helper()

	log, err := logger.New("", "test", "CRITICAL")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}

	clk := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := service.NewPostService(repo, stubIDGenerator{}, clk, log)

	mux := http.NewServeMux()
	NewHandler(mux, svc, log, 10, 5*time.Second, authMW)
	return mux
}

const (
	testPostID  = "3f0b9a52-7c1d-4e8a-b2f6-90d4c1a7e3b5"
	otherPostID = "a1e2d3c4-b5f6-47a8-9b0c-1d2e3f4a5b6c"
)

func TestCreatePost_MissingHidden(t *testing.T) {
	mux := setupHandler(t, &stubPostRepo{}, claimsMW)

	req := httptest.NewRequest(http.MethodPost, "/api/posts/user/", strings.NewReader(`{"content": "hello"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if got := body["hidden"]; len(got) != 1 || got[0] != msgFieldRequired {
		t.Errorf("expected required error on hidden, got %v", body)
	}
}

func TestCreatePost_Success(t *testing.T) {
	repo := &stubPostRepo{}
	var created domain.Post
	repo.createFunc = func(ctx context.Context, post domain.Post) error {
		created = post
		return nil
	}
	mux := setupHandler(t, repo, claimsMW)

	req := httptest.NewRequest(http.MethodPost, "/api/posts/user/", strings.NewReader(`{"content": "hello", "hidden": false, "author": "someone-else"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if created.AuthorID != "user-123" {
		t.Errorf("author must come from the token, got %s", created.AuthorID)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["author"] != "testuser" {
		t.Errorf("expected author username in response, got %v", body["author"])
	}
	if body["hidden"] != false {
		t.Errorf("expected hidden=false, got %v", body["hidden"])
	}
}

func TestFeed_FormatsDateAndHidesHiddenField(t *testing.T) {
	repo := &stubPostRepo{}
	repo.countPublicFunc = func(ctx context.Context) (int, error) { return 1, nil }
	repo.listPublicFunc = func(ctx context.Context, limit, offset int) ([]domain.FeedPost, error) {
		return []domain.FeedPost{{
			ID:             "post-1",
			AuthorUsername: "alice",
			Content:        "visible",
			CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}}, nil
	}
	mux := setupHandler(t, repo, claimsMW)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/public/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var page struct {
		Count    int              `json:"count"`
		Next     *string          `json:"next"`
		Previous *string          `json:"previous"`
		Results  []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if page.Count != 1 || len(page.Results) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}

	item := page.Results[0]
	if item["created_at"] != "01 June 2025" {
		t.Errorf("expected formatted date, got %v", item["created_at"])
	}
	if item["author"] != "alice" {
		t.Errorf("expected author username, got %v", item["author"])
	}
	if _, ok := item["hidden"]; ok {
		t.Error("hidden must never be exposed in the feed")
	}
}

func TestFeed_Pagination(t *testing.T) {
	repo := &stubPostRepo{}
	repo.countPublicFunc = func(ctx context.Context) (int, error) { return 25, nil }
	repo.listPublicFunc = func(ctx context.Context, limit, offset int) ([]domain.FeedPost, error) {
		if limit != 10 || offset != 10 {
			t.Errorf("expected limit=10 offset=10 for page 2, got %d %d", limit, offset)
		}
		return []domain.FeedPost{}, nil
	}
	mux := setupHandler(t, repo, claimsMW)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/public/?page=2", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var page struct {
		Count    int     `json:"count"`
		Next     *string `json:"next"`
		Previous *string `json:"previous"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if page.Next == nil || !strings.Contains(*page.Next, "page=3") {
		t.Errorf("expected next link to page 3, got %v", page.Next)
	}
	if page.Previous == nil || strings.Contains(*page.Previous, "page=") {
		t.Errorf("expected previous link without page param, got %v", page.Previous)
	}
}

func TestUpdatePost_ForeignAndAbsentIndistinguishable(t *testing.T) {
	repo := &stubPostRepo{}
	// The repository scopes by (id, author_id), so a foreign post and a
	// missing one both come back as not found.
	mux := setupHandler(t, repo, claimsMW)

	responses := make([]*httptest.ResponseRecorder, 0, 2)
	for _, id := range []string{testPostID, otherPostID} {
		req := httptest.NewRequest(http.MethodPatch, "/api/posts/user/"+id+"/", strings.NewReader(`{"content": "hijack"}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		responses = append(responses, rec)
	}

	for _, rec := range responses {
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	}
	if responses[0].Body.String() != responses[1].Body.String() {
		t.Error("foreign and absent posts must produce identical bodies")
	}
}

func TestUpdatePost_MalformedIDLooksAbsent(t *testing.T) {
	repo := &stubPostRepo{}
	repo.updateFunc = func(ctx context.Context, id, authorID string, content *string, hidden *bool, updatedAt time.Time) (domain.Post, error) {
		t.Error("a malformed id must never reach the repository")
		return domain.Post{}, postrepo.ErrPostNotFound
	}
	mux := setupHandler(t, repo, claimsMW)

	req := httptest.NewRequest(http.MethodPatch, "/api/posts/user/not-a-uuid/", strings.NewReader(`{"content": "x"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a malformed id, got %d", rec.Code)
	}
}

func TestPutPost_RequiresAllFields(t *testing.T) {
	mux := setupHandler(t, &stubPostRepo{}, claimsMW)

	req := httptest.NewRequest(http.MethodPut, "/api/posts/user/"+testPostID+"/", strings.NewReader(`{"content": "only content"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for PUT without hidden, got %d", rec.Code)
	}
}

func TestPatchPost_BlankContentRejected(t *testing.T) {
	repo := &stubPostRepo{}
	repo.updateFunc = func(ctx context.Context, id, authorID string, content *string, hidden *bool, updatedAt time.Time) (domain.Post, error) {
		t.Error("blank content must never reach the repository")
		return domain.Post{}, postrepo.ErrPostNotFound
	}
	mux := setupHandler(t, repo, claimsMW)

	req := httptest.NewRequest(http.MethodPatch, "/api/posts/user/"+testPostID+"/", strings.NewReader(`{"content": ""}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank content, got %d", rec.Code)
	}

	var errBody map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if got := errBody["content"]; len(got) != 1 || got[0] != msgFieldBlank {
		t.Errorf("expected blank-content error, got %v", got)
	}
}

func TestPatchPost_ContentTooLong(t *testing.T) {
	mux := setupHandler(t, &stubPostRepo{}, claimsMW)

	body := `{"content": "` + strings.Repeat("a", 10001) + `"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/posts/user/"+testPostID+"/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized content, got %d", rec.Code)
	}

	var errBody map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if got := errBody["content"]; len(got) != 1 || !strings.Contains(got[0], "no more than 10000") {
		t.Errorf("expected max-length error on content, got %v", got)
	}
}

func TestPatchPost_PartialUpdate(t *testing.T) {
	repo := &stubPostRepo{}
	repo.updateFunc = func(ctx context.Context, id, authorID string, content *string, hidden *bool, updatedAt time.Time) (domain.Post, error) {
		if content != nil {
			t.Error("content must stay nil when only hidden is patched")
		}
		if hidden == nil || !*hidden {
			t.Error("expected hidden=true to be forwarded")
		}
		return domain.Post{ID: id, AuthorID: authorID, Content: "unchanged", Hidden: true}, nil
	}
	mux := setupHandler(t, repo, claimsMW)

	req := httptest.NewRequest(http.MethodPatch, "/api/posts/user/"+testPostID+"/", strings.NewReader(`{"hidden": true}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOwnPosts_ExtraPathSegmentsNotFound(t *testing.T) {
	repo := &stubPostRepo{}
	repo.listByAuthorFunc = func(ctx context.Context, authorID string, limit, offset int) ([]domain.Post, error) {
		t.Error("a path with trailing segments must not reach the collection list")
		return nil, nil
	}
	mux := setupHandler(t, repo, claimsMW)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/user/"+testPostID+"/extra", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for trailing path segments, got %d", rec.Code)
	}
}

func TestDeletePost_Success(t *testing.T) {
	repo := &stubPostRepo{}
	repo.deleteFunc = func(ctx context.Context, id, authorID string) error {
		return nil
	}
	mux := setupHandler(t, repo, claimsMW)

	req := httptest.NewRequest(http.MethodDelete, "/api/posts/user/"+testPostID+"/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Error("expected empty body on delete")
	}
}

func TestPosts_Unauthenticated(t *testing.T) {
	log, err := logger.New("", "test", "CRITICAL")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	realMW := jwtverify.Middleware("test-secret-key-at-least-32-bytes-long!", log)
	mux := setupHandler(t, &stubPostRepo{}, realMW)

	for _, path := range []string{"/api/posts/public/", "/api/posts/user/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 for %s without a token, got %d", path, rec.Code)
		}
	}
}
