package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/newsdeck/internal/model"
	"github.com/hitoshi/newsdeck/internal/prefs"
)

// PreferencesStoreInterface は設定ハンドラーが必要とするストアのインターフェース。
type PreferencesStoreInterface interface {
	// Snapshot は現在の設定のコピーを返す。
	Snapshot() prefs.Preferences
	// SetPrompts はカスタムプロンプトを検証して保存する。
	SetPrompts(summary, tag, chat *string) error
}

// PrefsHandler はユーザー設定のHTTPハンドラー。
// ページサイズの変更はクエリ再発行を伴うためアクションとして扱い、
// ここではプロンプト設定の取得・更新のみを提供する。
type PrefsHandler struct {
	store PreferencesStoreInterface
}

// NewPrefsHandler はPrefsHandlerを生成する。
func NewPrefsHandler(store PreferencesStoreInterface) *PrefsHandler {
	return &PrefsHandler{store: store}
}

// preferencesResponse は設定取得レスポンスのボディ。
type preferencesResponse struct {
	PageSize      int    `json:"page_size"`
	SummaryPrompt string `json:"summary_prompt"`
	TagPrompt     string `json:"tag_generation_prompt"`
	ChatPrompt    string `json:"chat_prompt"`
}

// updatePromptsRequest はプロンプト更新リクエストのボディ。
// nilフィールドは変更しない部分更新を行う。
type updatePromptsRequest struct {
	SummaryPrompt *string `json:"summary_prompt,omitempty"`
	TagPrompt     *string `json:"tag_generation_prompt,omitempty"`
	ChatPrompt    *string `json:"chat_prompt,omitempty"`
}

// Get は現在のユーザー設定を返す。
// GET /api/preferences
func (h *PrefsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := h.store.Snapshot()
	writeJSONResponse(w, http.StatusOK, preferencesResponse{
		PageSize:      p.PageSize,
		SummaryPrompt: p.SummaryPrompt,
		TagPrompt:     p.TagPrompt,
		ChatPrompt:    p.ChatPrompt,
	})
}

// UpdatePrompts はカスタムプロンプトの更新を処理する。
// PUT /api/preferences/prompts
//
// 空文字列の指定はプロンプトをデフォルトに戻す。非空のプロンプトは
// 本文埋め込みプレースホルダを含まない場合バリデーションエラーになる。
func (h *PrefsHandler) UpdatePrompts(w http.ResponseWriter, r *http.Request) {
	var req updatePromptsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	if err := h.store.SetPrompts(req.SummaryPrompt, req.TagPrompt, req.ChatPrompt); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
		handleServiceError(w, err)
		return
	}

	p := h.store.Snapshot()
	writeJSONResponse(w, http.StatusOK, preferencesResponse{
		PageSize:      p.PageSize,
		SummaryPrompt: p.SummaryPrompt,
		TagPrompt:     p.TagPrompt,
		ChatPrompt:    p.ChatPrompt,
	})
}
