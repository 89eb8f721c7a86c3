package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdeck/internal/backend"
	"github.com/hitoshi/newsdeck/internal/model"
	"github.com/hitoshi/newsdeck/internal/prefs"
)

// ArticleServiceInterface は記事ハンドラーが必要とするバックエンド呼び出しのインターフェース。
type ArticleServiceInterface interface {
	// RegenerateSummary は記事の要約を再生成し、更新後の記事を返す。
	RegenerateSummary(ctx context.Context, articleID int, req backend.RegenerateRequest) (*model.Article, error)
	// ChatHistory は記事のチャット履歴を取得する。
	ChatHistory(ctx context.Context, articleID int) ([]model.ChatMessage, error)
	// PostChat は記事についての質問を送信し、AIの回答を受け取る。
	PostChat(ctx context.Context, req backend.ChatRequest) (*backend.ChatAnswer, error)
	// FetchArticleContent は記事のサニタイズ済みHTML本文を取得する。
	FetchArticleContent(ctx context.Context, articleID int) (*backend.ArticleContent, error)
}

// SummaryApplier は再生成された要約の表示リストへの反映インターフェース。
type SummaryApplier interface {
	ApplyRegeneratedSummary(article model.Article)
}

// ContentSanitizer はHTML本文の再サニタイズインターフェース。
type ContentSanitizer interface {
	Sanitize(rawHTML string) string
}

// ArticleHandler は記事単位の操作（要約再生成・チャット・本文表示）のHTTPハンドラー。
type ArticleHandler struct {
	service   ArticleServiceInterface
	applier   SummaryApplier
	sanitizer ContentSanitizer
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface, applier SummaryApplier, sanitizer ContentSanitizer) *ArticleHandler {
	return &ArticleHandler{
		service:   service,
		applier:   applier,
		sanitizer: sanitizer,
	}
}

// regenerateRequest は要約再生成リクエストのボディ。
type regenerateRequest struct {
	CustomPrompt   *string `json:"custom_prompt,omitempty"`
	RegenerateTags bool    `json:"regenerate_tags"`
}

// chatPostRequest はチャット問い合わせリクエストのボディ。
type chatPostRequest struct {
	Question    string              `json:"question"`
	ChatPrompt  *string             `json:"chat_prompt,omitempty"`
	ChatHistory []model.ChatMessage `json:"chat_history,omitempty"`
}

// RegenerateSummary は記事の要約再生成を処理する。
// POST /api/articles/{id}/regenerate-summary
//
// カスタムプロンプトが指定された場合、本文を埋め込むプレースホルダを
// 含むことを転送前に検証する。再生成後の記事は表示中リストに差し替え反映する。
func (h *ArticleHandler) RegenerateSummary(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDFromURL(r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("記事IDが不正です"))
		return
	}

	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	if req.CustomPrompt != nil && !strings.Contains(*req.CustomPrompt, prefs.PromptPlaceholder) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPromptError(prefs.PromptPlaceholder))
		return
	}

	article, err := h.service.RegenerateSummary(r.Context(), articleID, backend.RegenerateRequest{
		CustomPrompt:   req.CustomPrompt,
		RegenerateTags: req.RegenerateTags,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.applier.ApplyRegeneratedSummary(*article)
	writeJSONResponse(w, http.StatusOK, article)
}

// ChatHistory は記事のチャット履歴を返す。
// GET /api/articles/{id}/chat-history
func (h *ArticleHandler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDFromURL(r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("記事IDが不正です"))
		return
	}

	history, err := h.service.ChatHistory(r.Context(), articleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if history == nil {
		history = []model.ChatMessage{}
	}
	writeJSONResponse(w, http.StatusOK, history)
}

// PostChat は記事についての質問を処理する。
// POST /api/articles/{id}/chat
func (h *ArticleHandler) PostChat(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDFromURL(r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("記事IDが不正です"))
		return
	}

	var req chatPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("質問が空です"))
		return
	}

	answer, err := h.service.PostChat(r.Context(), backend.ChatRequest{
		ArticleID:   articleID,
		Question:    req.Question,
		ChatPrompt:  req.ChatPrompt,
		ChatHistory: req.ChatHistory,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, answer)
}

// Content は記事のHTML本文を返す。
// GET /api/articles/{id}/content
//
// バックエンドでサニタイズ済みの本文を、許可リストベースのポリシーで
// もう一度サニタイズしてから返す。
func (h *ArticleHandler) Content(w http.ResponseWriter, r *http.Request) {
	articleID, err := articleIDFromURL(r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("記事IDが不正です"))
		return
	}

	content, err := h.service.FetchArticleContent(r.Context(), articleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	content.HTMLContent = h.sanitizer.Sanitize(content.HTMLContent)
	writeJSONResponse(w, http.StatusOK, content)
}

// articleIDFromURL はURLパラメータから記事IDを取り出す。
func articleIDFromURL(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}
