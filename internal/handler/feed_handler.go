package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdeck/internal/backend"
	"github.com/hitoshi/newsdeck/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするバックエンド呼び出しのインターフェース。
type FeedServiceInterface interface {
	// ListFeeds は登録済みフィードソースの一覧を取得する。
	ListFeeds(ctx context.Context) ([]model.FeedSource, error)
	// AddFeed は新しいフィードソースを登録する。
	AddFeed(ctx context.Context, req backend.AddFeedRequest) (*model.FeedSource, error)
	// UpdateFeed はフィードソースの設定を更新する。
	UpdateFeed(ctx context.Context, feedID int, req backend.UpdateFeedRequest) (*model.FeedSource, error)
	// DeleteFeed はフィードソースを削除する。
	DeleteFeed(ctx context.Context, feedID int) error
}

// FeedURLValidator はフィード登録前のURL検証インターフェース。
type FeedURLValidator interface {
	// ValidateURL はURLの安全性を静的に検証する。
	ValidateURL(rawURL string) error
	// ProbeURL はURLの到達性を検証する。
	ProbeURL(ctx context.Context, rawURL string) error
}

// FeedCountSetter は登録済みフィード数の更新インターフェース。
// 空結果メッセージの文言判定のためコントローラに通知する。
type FeedCountSetter interface {
	SetFeedCount(n int)
}

// FeedHandler はフィード管理のHTTPハンドラー。
// 操作はバックエンドへのプロキシだが、登録時のURL検証は
// ネットワーク転送前のクライアント側チェックとしてここで行う。
type FeedHandler struct {
	service   FeedServiceInterface
	validator FeedURLValidator
	counter   FeedCountSetter
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface, validator FeedURLValidator, counter FeedCountSetter) *FeedHandler {
	return &FeedHandler{
		service:   service,
		validator: validator,
		counter:   counter,
	}
}

// addFeedRequest はフィード登録リクエストのボディ。
type addFeedRequest struct {
	URL                  string `json:"url"`
	Name                 string `json:"name,omitempty"`
	FetchIntervalMinutes int    `json:"fetch_interval_minutes,omitempty"`
}

// updateFeedRequest はフィード設定更新リクエストのボディ。
// nilフィールドは変更しない部分更新を行う。
type updateFeedRequest struct {
	Name                 *string `json:"name,omitempty"`
	FetchIntervalMinutes *int    `json:"fetch_interval_minutes,omitempty"`
}

// ListFeeds は登録済みフィードソースの一覧を返す。
// GET /api/feeds
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.service.ListFeeds(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.counter.SetFeedCount(len(feeds))
	writeJSONResponse(w, http.StatusOK, feeds)
}

// AddFeed はフィード登録を処理する。
// POST /api/feeds
//
// バックエンドへ転送する前に、URLの静的検証（スキーム・ホスト・IP）と
// SSRF防止付きクライアントによる到達性チェックを行う。
func (h *FeedHandler) AddFeed(w http.ResponseWriter, r *http.Request) {
	var req addFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	if err := h.validator.ValidateURL(req.URL); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewSSRFBlockedError())
		return
	}
	if err := h.validator.ProbeURL(r.Context(), req.URL); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewFeedUnreachableError(req.URL))
		return
	}

	feed, err := h.service.AddFeed(r.Context(), backend.AddFeedRequest{
		URL:                  req.URL,
		Name:                 req.Name,
		FetchIntervalMinutes: req.FetchIntervalMinutes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, feed)
}

// UpdateFeed はフィード設定の更新を処理する。
// PUT /api/feeds/{id}
func (h *FeedHandler) UpdateFeed(w http.ResponseWriter, r *http.Request) {
	feedID, err := feedIDFromURL(r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("フィードIDが不正です"))
		return
	}

	var req updateFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	feed, err := h.service.UpdateFeed(r.Context(), feedID, backend.UpdateFeedRequest{
		Name:                 req.Name,
		FetchIntervalMinutes: req.FetchIntervalMinutes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, feed)
}

// DeleteFeed はフィード削除を処理する。
// DELETE /api/feeds/{id}
func (h *FeedHandler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	feedID, err := feedIDFromURL(r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("フィードIDが不正です"))
		return
	}

	if err := h.service.DeleteFeed(r.Context(), feedID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// feedIDFromURL はURLパラメータからフィードIDを取り出す。
func feedIDFromURL(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}
