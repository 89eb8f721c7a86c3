// Package backend はニュース集約バックエンドのAPIクライアントを提供する。
// 要約クエリ、フィードCRUD、要約再生成、チャットなどのエンドポイントを
// 型付きの非同期呼び出しとして公開する。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/newsdeck/internal/model"
)

// maxErrorBodyBytes はエラーメッセージとして保持するレスポンス本文の上限。
const maxErrorBodyBytes = 512

// SummariesQuery は要約一覧クエリのリクエストボディを表す。
// QueryStateから構築される正規化済みのクエリ。
type SummariesQuery struct {
	Page          int     `json:"page"`
	PageSize      int     `json:"page_size"`
	FeedSourceIDs []int   `json:"feed_source_ids,omitempty"`
	TagIDs        []int   `json:"tag_ids,omitempty"`
	Keyword       *string `json:"keyword,omitempty"`
	SummaryPrompt *string `json:"summary_prompt,omitempty"`
	TagPrompt     *string `json:"tag_generation_prompt,omitempty"`
}

// SummariesPage は要約一覧クエリのレスポンスを表す。
type SummariesPage struct {
	SearchSource   string          `json:"search_source"`
	RequestedPage  int             `json:"requested_page"`
	PageSize       int             `json:"page_size"`
	TotalArticles  int             `json:"total_articles_available"`
	TotalPages     int             `json:"total_pages"`
	ArticlesOnPage []model.Article `json:"processed_articles_on_page"`
}

// AddFeedRequest はフィード登録リクエストのボディ。
type AddFeedRequest struct {
	URL                  string `json:"url"`
	Name                 string `json:"name,omitempty"`
	FetchIntervalMinutes int    `json:"fetch_interval_minutes,omitempty"`
}

// UpdateFeedRequest はフィード設定更新リクエストのボディ。
// nilフィールドは変更しない部分更新を行う。
type UpdateFeedRequest struct {
	Name                 *string `json:"name,omitempty"`
	FetchIntervalMinutes *int    `json:"fetch_interval_minutes,omitempty"`
}

// RegenerateRequest は要約再生成リクエストのボディ。
type RegenerateRequest struct {
	CustomPrompt   *string `json:"custom_prompt,omitempty"`
	RegenerateTags bool    `json:"regenerate_tags"`
}

// ChatRequest はチャット問い合わせリクエストのボディ。
type ChatRequest struct {
	ArticleID   int                 `json:"article_id"`
	Question    string              `json:"question"`
	ChatPrompt  *string             `json:"chat_prompt,omitempty"`
	ChatHistory []model.ChatMessage `json:"chat_history,omitempty"`
}

// ChatAnswer はチャット問い合わせのレスポンス。
type ChatAnswer struct {
	ArticleID    int    `json:"article_id"`
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	ErrorMessage string `json:"error_message"`
}

// ArticleContent は記事のサニタイズ済みHTML本文のレスポンス。
type ArticleContent struct {
	ArticleID    int    `json:"article_id"`
	OriginalURL  string `json:"original_url"`
	Title        string `json:"title"`
	HTMLContent  string `json:"sanitized_html_content"`
	ErrorMessage string `json:"error_message"`
}

// MetricsRecorder はクライアントが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordBackendStatus(statusCode int)
	RecordBackendLatency(duration time.Duration)
}

// nopMetrics はメトリクス未設定時に使用する何もしない実装。
type nopMetrics struct{}

func (nopMetrics) RecordBackendStatus(int)           {}
func (nopMetrics) RecordBackendLatency(time.Duration) {}

// Client はニュース集約バックエンドのAPIクライアント。
// すべての呼び出しは失敗時にmodel.APIError（カテゴリfetch）を返す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	metrics    MetricsRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾スラッシュなしのバックエンドのベースURL。
// metricsがnilの場合はメトリクスを記録しない。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, metrics MetricsRecorder) *Client {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		metrics:    metrics,
	}
}

// QuerySummaries は要約一覧ページを取得する。
// POST /api/get-news-summaries
func (c *Client) QuerySummaries(ctx context.Context, query SummariesQuery) (*SummariesPage, error) {
	var page SummariesPage
	if err := c.doJSON(ctx, http.MethodPost, "/api/get-news-summaries", query, &page, http.StatusOK); err != nil {
		return nil, err
	}
	return &page, nil
}

// InitialConfig は初期設定を取得する。
// GET /api/initial-config
func (c *Client) InitialConfig(ctx context.Context) (*model.InitialConfig, error) {
	var cfg model.InitialConfig
	if err := c.doJSON(ctx, http.MethodGet, "/api/initial-config", nil, &cfg, http.StatusOK); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListFeeds は登録済みフィードソースの一覧を取得する。
// GET /api/feeds
func (c *Client) ListFeeds(ctx context.Context) ([]model.FeedSource, error) {
	var feeds []model.FeedSource
	if err := c.doJSON(ctx, http.MethodGet, "/api/feeds", nil, &feeds, http.StatusOK); err != nil {
		return nil, err
	}
	return feeds, nil
}

// AddFeed は新しいフィードソースを登録する。
// POST /api/feeds（成功時201）
func (c *Client) AddFeed(ctx context.Context, req AddFeedRequest) (*model.FeedSource, error) {
	var feed model.FeedSource
	if err := c.doJSON(ctx, http.MethodPost, "/api/feeds", req, &feed, http.StatusCreated); err != nil {
		return nil, err
	}
	return &feed, nil
}

// UpdateFeed はフィードソースの設定を更新する。
// PUT /api/feeds/{id}
func (c *Client) UpdateFeed(ctx context.Context, feedID int, req UpdateFeedRequest) (*model.FeedSource, error) {
	var feed model.FeedSource
	path := fmt.Sprintf("/api/feeds/%d", feedID)
	if err := c.doJSON(ctx, http.MethodPut, path, req, &feed, http.StatusOK); err != nil {
		return nil, err
	}
	return &feed, nil
}

// DeleteFeed はフィードソースを削除する。
// DELETE /api/feeds/{id}（成功時204）
func (c *Client) DeleteFeed(ctx context.Context, feedID int) error {
	path := fmt.Sprintf("/api/feeds/%d", feedID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, http.StatusNoContent)
}

// TriggerRefresh はバックエンドのRSS更新を手動でトリガーする。
// POST /api/trigger-rss-refresh（受理時202）
func (c *Client) TriggerRefresh(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/trigger-rss-refresh", nil, nil, http.StatusAccepted)
}

// RegenerateSummary は記事の要約を再生成し、更新後の記事を返す。
// POST /api/articles/{id}/regenerate-summary
func (c *Client) RegenerateSummary(ctx context.Context, articleID int, req RegenerateRequest) (*model.Article, error) {
	var article model.Article
	path := fmt.Sprintf("/api/articles/%d/regenerate-summary", articleID)
	if err := c.doJSON(ctx, http.MethodPost, path, req, &article, http.StatusOK); err != nil {
		return nil, err
	}
	return &article, nil
}

// ChatHistory は記事のチャット履歴を取得する。
// GET /api/article/{id}/chat-history
func (c *Client) ChatHistory(ctx context.Context, articleID int) ([]model.ChatMessage, error) {
	var history []model.ChatMessage
	path := fmt.Sprintf("/api/article/%d/chat-history", articleID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &history, http.StatusOK); err != nil {
		return nil, err
	}
	return history, nil
}

// PostChat は記事についての質問を送信し、AIの回答を受け取る。
// POST /api/chat-with-article
func (c *Client) PostChat(ctx context.Context, req ChatRequest) (*ChatAnswer, error) {
	var answer ChatAnswer
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat-with-article", req, &answer, http.StatusOK); err != nil {
		return nil, err
	}
	return &answer, nil
}

// FetchArticleContent は記事のサニタイズ済みHTML本文を取得する。
// GET /api/article/{id}/content
func (c *Client) FetchArticleContent(ctx context.Context, articleID int) (*ArticleContent, error) {
	var content ArticleContent
	path := fmt.Sprintf("/api/article/%d/content", articleID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &content, http.StatusOK); err != nil {
		return nil, err
	}
	return &content, nil
}

// TriggerCleanup はバックエンドの古い記事のクリーンアップをトリガーする。
// POST /api/admin/cleanup-articles（受理時202）
func (c *Client) TriggerCleanup(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/admin/cleanup-articles", nil, nil, http.StatusAccepted)
}

// doJSON はJSONリクエストを発行し、期待ステータスならレスポンスをoutにデコードする。
// bodyがnilの場合はボディなし、outがnilの場合はレスポンス本文を破棄する。
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, wantStatus int) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return model.NewFetchFailedError(fmt.Sprintf("リクエストのエンコードに失敗しました: %v", err))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return model.NewFetchFailedError(fmt.Sprintf("HTTPリクエストの作成に失敗しました: %v", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Newsdeck/1.0 Frontend")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordBackendLatency(time.Since(start))
	if err != nil {
		c.logger.Error("バックエンドAPIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	c.metrics.RecordBackendStatus(resp.StatusCode)
	if resp.StatusCode != wantStatus {
		detail := extractErrorDetail(resp)
		c.logger.Error("バックエンドAPIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.NewFetchFailedError(detail)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.NewFetchFailedError(fmt.Sprintf("レスポンスJSONのパースに失敗しました: %v", err))
	}
	return nil
}

// extractErrorDetail はエラーレスポンスからユーザー向けメッセージを抽出する。
// 優先順: 構造化されたdetailフィールド → レスポンス本文 → HTTPステータスメッセージ。
func extractErrorDetail(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err == nil && len(body) > 0 {
		var structured struct {
			Detail string `json:"detail"`
		}
		if jsonErr := json.Unmarshal(body, &structured); jsonErr == nil && structured.Detail != "" {
			return structured.Detail
		}
		if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
			return trimmed
		}
	}
	return fmt.Sprintf("HTTPステータス %d (%s)", resp.StatusCode, http.StatusText(resp.StatusCode))
}
