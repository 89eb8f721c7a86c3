package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/newsdeck/internal/backend"
	"github.com/hitoshi/newsdeck/internal/model"
)

// --- モック定義 ---

// mockFeedService はFeedServiceInterfaceのモック実装。
type mockFeedService struct {
	listFeedsFn  func(ctx context.Context) ([]model.FeedSource, error)
	addFeedFn    func(ctx context.Context, req backend.AddFeedRequest) (*model.FeedSource, error)
	updateFeedFn func(ctx context.Context, feedID int, req backend.UpdateFeedRequest) (*model.FeedSource, error)
	deleteFeedFn func(ctx context.Context, feedID int) error
}

func (m *mockFeedService) ListFeeds(ctx context.Context) ([]model.FeedSource, error) {
	if m.listFeedsFn != nil {
		return m.listFeedsFn(ctx)
	}
	return nil, nil
}

func (m *mockFeedService) AddFeed(ctx context.Context, req backend.AddFeedRequest) (*model.FeedSource, error) {
	if m.addFeedFn != nil {
		return m.addFeedFn(ctx, req)
	}
	return &model.FeedSource{}, nil
}

func (m *mockFeedService) UpdateFeed(ctx context.Context, feedID int, req backend.UpdateFeedRequest) (*model.FeedSource, error) {
	if m.updateFeedFn != nil {
		return m.updateFeedFn(ctx, feedID, req)
	}
	return &model.FeedSource{}, nil
}

func (m *mockFeedService) DeleteFeed(ctx context.Context, feedID int) error {
	if m.deleteFeedFn != nil {
		return m.deleteFeedFn(ctx, feedID)
	}
	return nil
}

// mockURLValidator はFeedURLValidatorのモック実装。
type mockURLValidator struct {
	validateErr error
	probeErr    error
	probedURLs  []string
}

func (m *mockURLValidator) ValidateURL(rawURL string) error { return m.validateErr }

func (m *mockURLValidator) ProbeURL(ctx context.Context, rawURL string) error {
	m.probedURLs = append(m.probedURLs, rawURL)
	return m.probeErr
}

// mockFeedCounter はFeedCountSetterのモック実装。
type mockFeedCounter struct {
	counts []int
}

func (m *mockFeedCounter) SetFeedCount(n int) { m.counts = append(m.counts, n) }

// --- GET /api/feeds テスト ---

func TestListFeeds_Success(t *testing.T) {
	svc := &mockFeedService{
		listFeedsFn: func(ctx context.Context) ([]model.FeedSource, error) {
			return []model.FeedSource{
				{ID: 1, URL: "https://example.com/feed.xml"},
				{ID: 2, URL: "https://example.org/rss"},
			}, nil
		},
	}
	counter := &mockFeedCounter{}
	h := NewFeedHandler(svc, &mockURLValidator{}, counter)

	req := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	w := httptest.NewRecorder()
	h.ListFeeds(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}

	var feeds []model.FeedSource
	if err := json.NewDecoder(w.Body).Decode(&feeds); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(feeds) != 2 {
		t.Errorf("フィード数 = %d, want 2", len(feeds))
	}
	// フィード数はコントローラに通知される
	if len(counter.counts) != 1 || counter.counts[0] != 2 {
		t.Errorf("通知されたフィード数 = %v, want [2]", counter.counts)
	}
}

func TestListFeeds_BackendFailureReturns502(t *testing.T) {
	svc := &mockFeedService{
		listFeedsFn: func(ctx context.Context) ([]model.FeedSource, error) {
			return nil, model.NewFetchFailedError("接続できません")
		},
	}
	h := NewFeedHandler(svc, &mockURLValidator{}, &mockFeedCounter{})

	req := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	w := httptest.NewRecorder()
	h.ListFeeds(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

// --- POST /api/feeds テスト ---

func TestAddFeed_Success(t *testing.T) {
	svc := &mockFeedService{
		addFeedFn: func(ctx context.Context, req backend.AddFeedRequest) (*model.FeedSource, error) {
			if req.URL != "https://example.com/feed.xml" {
				t.Errorf("URL = %q, want %q", req.URL, "https://example.com/feed.xml")
			}
			return &model.FeedSource{ID: 5, URL: req.URL}, nil
		},
	}
	validator := &mockURLValidator{}
	h := NewFeedHandler(svc, validator, &mockFeedCounter{})

	body := `{"url": "https://example.com/feed.xml"}`
	req := httptest.NewRequest(http.MethodPost, "/api/feeds", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.AddFeed(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusCreated)
	}
	// 転送前に到達性チェックが行われる
	if len(validator.probedURLs) != 1 {
		t.Errorf("probedURLs = %v, want 1件", validator.probedURLs)
	}
}

func TestAddFeed_BlockedURLReturns400(t *testing.T) {
	validator := &mockURLValidator{
		validateErr: errors.New("プライベートIPへのアクセス"),
	}
	svcCalled := false
	svc := &mockFeedService{
		addFeedFn: func(ctx context.Context, req backend.AddFeedRequest) (*model.FeedSource, error) {
			svcCalled = true
			return nil, nil
		},
	}
	h := NewFeedHandler(svc, validator, &mockFeedCounter{})

	body := `{"url": "http://192.168.1.1/feed.xml"}`
	req := httptest.NewRequest(http.MethodPost, "/api/feeds", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.AddFeed(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if svcCalled {
		t.Error("ブロックされたURLはバックエンドに転送してはならない")
	}
}

func TestAddFeed_UnreachableURLReturns400(t *testing.T) {
	validator := &mockURLValidator{
		probeErr: errors.New("接続タイムアウト"),
	}
	h := NewFeedHandler(&mockFeedService{}, validator, &mockFeedCounter{})

	body := `{"url": "https://unreachable.example.com/feed.xml"}`
	req := httptest.NewRequest(http.MethodPost, "/api/feeds", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.AddFeed(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var errResp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if errResp["code"] != model.ErrCodeFeedUnreachable {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeFeedUnreachable)
	}
}

// --- PUT /api/feeds/{id} テスト ---

func TestUpdateFeed_Success(t *testing.T) {
	svc := &mockFeedService{
		updateFeedFn: func(ctx context.Context, feedID int, req backend.UpdateFeedRequest) (*model.FeedSource, error) {
			if feedID != 7 {
				t.Errorf("feedID = %d, want 7", feedID)
			}
			if req.Name == nil || *req.Name != "新しい名前" {
				t.Errorf("Name = %v, want 設定済み", req.Name)
			}
			return &model.FeedSource{ID: 7, Name: *req.Name}, nil
		},
	}
	h := NewFeedHandler(svc, &mockURLValidator{}, &mockFeedCounter{})

	body := `{"name": "新しい名前"}`
	req := httptest.NewRequest(http.MethodPut, "/api/feeds/7", bytes.NewBufferString(body))
	req = withChiURLParam(req, "id", "7")
	w := httptest.NewRecorder()
	h.UpdateFeed(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestUpdateFeed_InvalidIDReturns400(t *testing.T) {
	h := NewFeedHandler(&mockFeedService{}, &mockURLValidator{}, &mockFeedCounter{})

	req := httptest.NewRequest(http.MethodPut, "/api/feeds/abc", bytes.NewBufferString("{}"))
	req = withChiURLParam(req, "id", "abc")
	w := httptest.NewRecorder()
	h.UpdateFeed(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- DELETE /api/feeds/{id} テスト ---

func TestDeleteFeed_Success(t *testing.T) {
	deleted := []int{}
	svc := &mockFeedService{
		deleteFeedFn: func(ctx context.Context, feedID int) error {
			deleted = append(deleted, feedID)
			return nil
		},
	}
	h := NewFeedHandler(svc, &mockURLValidator{}, &mockFeedCounter{})

	req := httptest.NewRequest(http.MethodDelete, "/api/feeds/9", nil)
	req = withChiURLParam(req, "id", "9")
	w := httptest.NewRecorder()
	h.DeleteFeed(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("StatusCode = %d, want %d", w.Code, http.StatusNoContent)
	}
	if len(deleted) != 1 || deleted[0] != 9 {
		t.Errorf("削除されたフィードID = %v, want [9]", deleted)
	}
}
