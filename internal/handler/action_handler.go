package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdeck/internal/model"
	"github.com/hitoshi/newsdeck/internal/query"
)

// QueryControllerInterface はアクションハンドラーが必要とするコントローラのインターフェース。
type QueryControllerInterface interface {
	// View は現在の表示状態のスナップショットを返す。
	View() query.ViewState
	// SetFeedFilter はフィードフィルタをトグル設定する。
	SetFeedFilter(feedID int, name string)
	// ToggleTagFilter はタグフィルタをトグルする。
	ToggleTagFilter(tagID int, name string)
	// SetKeyword はキーワード検索を設定する。
	SetKeyword(term string)
	// ClearAllFilters はすべてのフィルタを解除する。
	ClearAllFilters()
	// SetPageSize はページサイズを検証して変更する。
	SetPageSize(n int) error
	// Dispatch はクエリを発行する。
	Dispatch(ctx context.Context, reason query.DispatchReason) error
	// ScrollMore はスクロール駆動の追加フェッチを行う。
	ScrollMore(ctx context.Context) error
}

// RefreshTrigger は手動更新アクションが必要とするバックエンド呼び出しのインターフェース。
type RefreshTrigger interface {
	// TriggerRefresh はバックエンドのRSS更新をトリガーする。
	TriggerRefresh(ctx context.Context) error
}

// PageSizeStore はページサイズの永続化インターフェース。
type PageSizeStore interface {
	// SetPageSize はページサイズを検証して保存する。
	SetPageSize(n int) error
}

// ActionHandler はユーザー操作をコントローラ操作に変換するHTTPハンドラー。
// DOMイベントのコールバック配線の代わりに、論理アクション名をキーとする
// 明示的なディスパッチテーブルで操作を解決する。
type ActionHandler struct {
	controller QueryControllerInterface
	refresher  RefreshTrigger
	pageSizes  PageSizeStore
	actions    map[string]actionFunc
}

// actionFunc は1つの論理アクションを実行する。
// 状態の変更とクエリの発行を行い、失敗時はエラーを返す。
type actionFunc func(ctx context.Context, body json.RawMessage) error

// NewActionHandler はActionHandlerを生成し、ディスパッチテーブルを構築する。
func NewActionHandler(controller QueryControllerInterface, refresher RefreshTrigger, pageSizes PageSizeStore) *ActionHandler {
	h := &ActionHandler{
		controller: controller,
		refresher:  refresher,
		pageSizes:  pageSizes,
	}
	h.actions = map[string]actionFunc{
		"feed-filter":   h.actionFeedFilter,
		"tag-filter":    h.actionTagFilter,
		"search":        h.actionSearch,
		"clear-filters": h.actionClearFilters,
		"page-size":     h.actionPageSize,
		"scroll-more":   h.actionScrollMore,
		"refresh":       h.actionRefresh,
	}
	return h
}

// Execute は論理アクションを実行し、実行後の表示状態を返す。
// POST /api/actions/{name}
//
// バリデーションエラーは400で返し、状態は変更されない。
// バックエンドのフェッチ失敗は表示状態（エラーバナー／インラインエラー）に
// 反映されたうえで200として返す。失敗の扱いは表示ポリシー側が決める。
func (h *ActionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	action, ok := h.actions[name]
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewInvalidActionError(name))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	if err := action(r.Context(), body); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Category == "validation" {
			writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
		// フェッチ失敗は表示状態に反映済みのため、ビューをそのまま返す
	}

	writeJSONResponse(w, http.StatusOK, h.controller.View())
}

// View は現在の表示状態を返す。
// GET /api/view
func (h *ActionHandler) View(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.controller.View())
}

// --- アクション実装 ---

// feedFilterRequest はfeed-filterアクションのボディ。
type feedFilterRequest struct {
	FeedID int    `json:"feed_id"`
	Name   string `json:"name"`
}

// actionFeedFilter はフィードフィルタをトグルして再フェッチする。
func (h *ActionHandler) actionFeedFilter(ctx context.Context, body json.RawMessage) error {
	var req feedFilterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.NewInvalidRequestError(err.Error())
	}
	h.controller.SetFeedFilter(req.FeedID, req.Name)
	return h.controller.Dispatch(ctx, query.ReasonFilterChange)
}

// tagFilterRequest はtag-filterアクションのボディ。
type tagFilterRequest struct {
	TagID int    `json:"tag_id"`
	Name  string `json:"name"`
}

// actionTagFilter はタグフィルタをトグルして再フェッチする。
func (h *ActionHandler) actionTagFilter(ctx context.Context, body json.RawMessage) error {
	var req tagFilterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.NewInvalidRequestError(err.Error())
	}
	h.controller.ToggleTagFilter(req.TagID, req.Name)
	return h.controller.Dispatch(ctx, query.ReasonFilterChange)
}

// searchRequest はsearchアクションのボディ。
type searchRequest struct {
	Keyword string `json:"keyword"`
}

// actionSearch はキーワード検索を設定して再フェッチする。
func (h *ActionHandler) actionSearch(ctx context.Context, body json.RawMessage) error {
	var req searchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.NewInvalidRequestError(err.Error())
	}
	h.controller.SetKeyword(req.Keyword)
	return h.controller.Dispatch(ctx, query.ReasonFilterChange)
}

// actionClearFilters はすべてのフィルタを解除して再フェッチする。
func (h *ActionHandler) actionClearFilters(ctx context.Context, body json.RawMessage) error {
	h.controller.ClearAllFilters()
	return h.controller.Dispatch(ctx, query.ReasonFilterChange)
}

// pageSizeRequest はpage-sizeアクションのボディ。
type pageSizeRequest struct {
	PageSize int `json:"page_size"`
}

// actionPageSize はページサイズを検証・永続化して再フェッチする。
// バリデーションエラーの場合は状態を変更せず、ネットワーク呼び出しも行わない。
func (h *ActionHandler) actionPageSize(ctx context.Context, body json.RawMessage) error {
	var req pageSizeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.NewInvalidRequestError(err.Error())
	}
	if err := h.controller.SetPageSize(req.PageSize); err != nil {
		return err
	}
	if err := h.pageSizes.SetPageSize(req.PageSize); err != nil {
		return err
	}
	return h.controller.Dispatch(ctx, query.ReasonFilterChange)
}

// actionScrollMore はスクロール閾値到達時の追加フェッチを行う。
// 事前条件を満たさない場合は何もせず正常終了する。
func (h *ActionHandler) actionScrollMore(ctx context.Context, body json.RawMessage) error {
	return h.controller.ScrollMore(ctx)
}

// actionRefresh はバックエンドのRSS更新をトリガーし、ページ1を再フェッチする。
// 現在のフィルタは維持される。
func (h *ActionHandler) actionRefresh(ctx context.Context, body json.RawMessage) error {
	if err := h.refresher.TriggerRefresh(ctx); err != nil {
		return err
	}
	return h.controller.Dispatch(ctx, query.ReasonManualRefresh)
}
