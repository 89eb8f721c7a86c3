package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdeck/internal/model"
	"github.com/hitoshi/newsdeck/internal/query"
)

// --- モック定義 ---

// mockController はQueryControllerInterfaceのモック実装。呼び出しを記録する。
type mockController struct {
	view        query.ViewState
	feedFilters []int
	tagFilters  []int
	keywords    []string
	clearCalls  int
	pageSizes   []int
	pageSizeErr error
	dispatches  []query.DispatchReason
	dispatchErr error
	scrollCalls int
}

func (m *mockController) View() query.ViewState { return m.view }
func (m *mockController) SetFeedFilter(feedID int, name string) {
	m.feedFilters = append(m.feedFilters, feedID)
}
func (m *mockController) ToggleTagFilter(tagID int, name string) {
	m.tagFilters = append(m.tagFilters, tagID)
}
func (m *mockController) SetKeyword(term string) { m.keywords = append(m.keywords, term) }
func (m *mockController) ClearAllFilters()       { m.clearCalls++ }
func (m *mockController) SetPageSize(n int) error {
	if m.pageSizeErr != nil {
		return m.pageSizeErr
	}
	m.pageSizes = append(m.pageSizes, n)
	return nil
}
func (m *mockController) Dispatch(ctx context.Context, reason query.DispatchReason) error {
	m.dispatches = append(m.dispatches, reason)
	return m.dispatchErr
}
func (m *mockController) ScrollMore(ctx context.Context) error {
	m.scrollCalls++
	return nil
}

// mockRefresher はRefreshTriggerのモック実装。
type mockRefresher struct {
	calls int
	err   error
}

func (m *mockRefresher) TriggerRefresh(ctx context.Context) error {
	m.calls++
	return m.err
}

// mockPageSizeStore はPageSizeStoreのモック実装。
type mockPageSizeStore struct {
	saved []int
	err   error
}

func (m *mockPageSizeStore) SetPageSize(n int) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, n)
	return nil
}

// --- テストヘルパー ---

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// executeAction は指定アクションを実行するヘルパー。
func executeAction(h *ActionHandler, name, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/actions/"+name, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withChiURLParam(req, "name", name)
	w := httptest.NewRecorder()
	h.Execute(w, req)
	return w
}

// --- アクション実行 テスト ---

func TestExecute_UnknownActionReturns404(t *testing.T) {
	h := NewActionHandler(&mockController{}, &mockRefresher{}, &mockPageSizeStore{})

	w := executeAction(h, "unknown-action", "{}")

	if w.Code != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestExecute_FeedFilter(t *testing.T) {
	ctrl := &mockController{}
	h := NewActionHandler(ctrl, &mockRefresher{}, &mockPageSizeStore{})

	w := executeAction(h, "feed-filter", `{"feed_id": 3, "name": "Tech Blog"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}
	if len(ctrl.feedFilters) != 1 || ctrl.feedFilters[0] != 3 {
		t.Errorf("feedFilters = %v, want [3]", ctrl.feedFilters)
	}
	if len(ctrl.dispatches) != 1 || ctrl.dispatches[0] != query.ReasonFilterChange {
		t.Errorf("dispatches = %v, want [filterChange]", ctrl.dispatches)
	}
}

func TestExecute_TagFilter(t *testing.T) {
	ctrl := &mockController{}
	h := NewActionHandler(ctrl, &mockRefresher{}, &mockPageSizeStore{})

	w := executeAction(h, "tag-filter", `{"tag_id": 7, "name": "golang"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}
	if len(ctrl.tagFilters) != 1 || ctrl.tagFilters[0] != 7 {
		t.Errorf("tagFilters = %v, want [7]", ctrl.tagFilters)
	}
}

func TestExecute_Search(t *testing.T) {
	ctrl := &mockController{}
	h := NewActionHandler(ctrl, &mockRefresher{}, &mockPageSizeStore{})

	w := executeAction(h, "search", `{"keyword": "  golang  "}`)

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}
	// トリムはコントローラ側の責務。ハンドラーは入力をそのまま渡す
	if len(ctrl.keywords) != 1 || ctrl.keywords[0] != "  golang  " {
		t.Errorf("keywords = %v, want 生の入力", ctrl.keywords)
	}
}

func TestExecute_ClearFilters(t *testing.T) {
	ctrl := &mockController{}
	h := NewActionHandler(ctrl, &mockRefresher{}, &mockPageSizeStore{})

	w := executeAction(h, "clear-filters", "")

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}
	if ctrl.clearCalls != 1 {
		t.Errorf("clearCalls = %d, want 1", ctrl.clearCalls)
	}
}

func TestExecute_PageSize(t *testing.T) {
	ctrl := &mockController{}
	store := &mockPageSizeStore{}
	h := NewActionHandler(ctrl, &mockRefresher{}, store)

	w := executeAction(h, "page-size", `{"page_size": 12}`)

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}
	if len(ctrl.pageSizes) != 1 || ctrl.pageSizes[0] != 12 {
		t.Errorf("pageSizes = %v, want [12]", ctrl.pageSizes)
	}
	// ページサイズは永続化もされる
	if len(store.saved) != 1 || store.saved[0] != 12 {
		t.Errorf("保存されたページサイズ = %v, want [12]", store.saved)
	}
}

func TestExecute_PageSizeValidationErrorReturns400(t *testing.T) {
	ctrl := &mockController{
		pageSizeErr: model.NewInvalidPageSizeError(51, 1, 50),
	}
	h := NewActionHandler(ctrl, &mockRefresher{}, &mockPageSizeStore{})

	w := executeAction(h, "page-size", `{"page_size": 51}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want %d", w.Code, http.StatusBadRequest)
	}
	// バリデーション失敗時はネットワーク呼び出しを行わない
	if len(ctrl.dispatches) != 0 {
		t.Errorf("dispatches = %v, want 空（バリデーション失敗時は発行しない）", ctrl.dispatches)
	}
}

func TestExecute_ScrollMore(t *testing.T) {
	ctrl := &mockController{}
	h := NewActionHandler(ctrl, &mockRefresher{}, &mockPageSizeStore{})

	w := executeAction(h, "scroll-more", "")

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}
	if ctrl.scrollCalls != 1 {
		t.Errorf("scrollCalls = %d, want 1", ctrl.scrollCalls)
	}
}

func TestExecute_RefreshTriggersBackendThenRefetches(t *testing.T) {
	ctrl := &mockController{}
	refresher := &mockRefresher{}
	h := NewActionHandler(ctrl, refresher, &mockPageSizeStore{})

	w := executeAction(h, "refresh", "")

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}
	if refresher.calls != 1 {
		t.Errorf("TriggerRefresh の呼び出し回数 = %d, want 1", refresher.calls)
	}
	if len(ctrl.dispatches) != 1 || ctrl.dispatches[0] != query.ReasonManualRefresh {
		t.Errorf("dispatches = %v, want [manualRefresh]", ctrl.dispatches)
	}
	// 手動更新でもフィルタは解除されない
	if ctrl.clearCalls != 0 {
		t.Errorf("clearCalls = %d, want 0", ctrl.clearCalls)
	}
}

func TestExecute_FetchFailureStillReturnsView(t *testing.T) {
	// フェッチ失敗は表示状態（エラーバナー）に反映済みのため200でビューを返す
	ctrl := &mockController{
		dispatchErr: model.NewFetchFailedError("接続できません"),
		view:        query.ViewState{ErrorBanner: "バックエンドへのリクエストに失敗しました"},
	}
	h := NewActionHandler(ctrl, &mockRefresher{}, &mockPageSizeStore{})

	w := executeAction(h, "clear-filters", "")

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}

	var view query.ViewState
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if view.ErrorBanner == "" {
		t.Error("ErrorBanner が空。失敗はビューに反映されるべき")
	}
}

func TestExecute_InvalidBodyReturns400(t *testing.T) {
	h := NewActionHandler(&mockController{}, &mockRefresher{}, &mockPageSizeStore{})

	w := executeAction(h, "feed-filter", "{invalid json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- ビュー取得 テスト ---

func TestView_ReturnsCurrentViewState(t *testing.T) {
	ctrl := &mockController{
		view: query.ViewState{Page: 2, PageSize: 6, TotalPages: 5},
	}
	h := NewActionHandler(ctrl, &mockRefresher{}, &mockPageSizeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	w := httptest.NewRecorder()
	h.View(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", w.Code, http.StatusOK)
	}

	var view query.ViewState
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if view.Page != 2 || view.TotalPages != 5 {
		t.Errorf("Page/TotalPages = %d/%d, want 2/5", view.Page, view.TotalPages)
	}
}
