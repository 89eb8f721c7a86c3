package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdeck/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// クエリ状態
	Controller QueryControllerInterface
	Refresher  RefreshTrigger
	PageSizes  PageSizeStore

	// フィード管理
	FeedService   FeedServiceInterface
	FeedValidator FeedURLValidator
	FeedCounter   FeedCountSetter

	// 記事操作
	ArticleService ArticleServiceInterface
	SummaryApplier SummaryApplier
	Sanitizer      ContentSanitizer

	// ユーザー設定
	PrefsStore PreferencesStoreInterface

	// メトリクス
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	actionHandler := NewActionHandler(deps.Controller, deps.Refresher, deps.PageSizes)
	feedHandler := NewFeedHandler(deps.FeedService, deps.FeedValidator, deps.FeedCounter)
	articleHandler := NewArticleHandler(deps.ArticleService, deps.SummaryApplier, deps.Sanitizer)
	prefsHandler := NewPrefsHandler(deps.PrefsStore)

	// --- 監視系ルート（レート制限の外） ---

	r.Get("/health", healthCheck)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// クエリ状態の操作と表示
		r.Post("/api/actions/{name}", actionHandler.Execute)
		r.Get("/api/view", actionHandler.View)

		// フィード管理
		r.Route("/api/feeds", func(r chi.Router) {
			r.Get("/", feedHandler.ListFeeds)

			// 変更系操作には専用レート制限を追加
			r.With(deps.RateLimiter.MutationMiddleware()).Post("/", feedHandler.AddFeed)

			r.Route("/{id}", func(r chi.Router) {
				r.With(deps.RateLimiter.MutationMiddleware()).Put("/", feedHandler.UpdateFeed)
				r.With(deps.RateLimiter.MutationMiddleware()).Delete("/", feedHandler.DeleteFeed)
			})
		})

		// 記事操作
		r.Route("/api/articles/{id}", func(r chi.Router) {
			r.Post("/regenerate-summary", articleHandler.RegenerateSummary)
			r.Get("/chat-history", articleHandler.ChatHistory)
			r.Post("/chat", articleHandler.PostChat)
			r.Get("/content", articleHandler.Content)
		})

		// ユーザー設定
		r.Route("/api/preferences", func(r chi.Router) {
			r.Get("/", prefsHandler.Get)
			r.With(deps.RateLimiter.MutationMiddleware()).Put("/prompts", prefsHandler.UpdatePrompts)
		})
	})

	return r
}

// healthCheck はサーバーの生存確認エンドポイント。
// GET /health
func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
