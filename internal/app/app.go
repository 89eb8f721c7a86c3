// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/newsdeck/internal/backend"
	"github.com/hitoshi/newsdeck/internal/config"
	"github.com/hitoshi/newsdeck/internal/handler"
	"github.com/hitoshi/newsdeck/internal/logger"
	"github.com/hitoshi/newsdeck/internal/metrics"
	"github.com/hitoshi/newsdeck/internal/middleware"
	"github.com/hitoshi/newsdeck/internal/prefs"
	"github.com/hitoshi/newsdeck/internal/query"
	"github.com/hitoshi/newsdeck/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("backend_base_url", cfg.BackendBaseURL),
	)

	switch cmd {
	case CommandCleanup:
		return runCleanup(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はフロントエンドサーバーモードで起動する。
// バックエンドAPIクライアント・クエリコントローラ・ハンドラーをワイヤリングし、
// HTTPサーバーを起動する。起動後にバックエンドの初期設定を非同期で取得して
// クエリ状態をブートストラップする。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. バックエンドAPIクライアントの初期化
	backendClient := backend.NewClient(
		&http.Client{Timeout: cfg.BackendTimeout},
		slog.Default(),
		cfg.BackendBaseURL,
		collector,
	)

	// 3. ユーザー設定ストアの読み込み
	prefsStore, err := prefs.Load(cfg.PrefsFile)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	// 4. クエリコントローラの初期化
	controller := query.NewController(
		backendClient, prefsStore, collector,
		slog.Default(), prefsStore.PageSize(),
	)

	// 5. セキュリティサービスの初期化
	urlGuard := security.NewFeedURLGuard(cfg.FeedProbeTimeout)
	sanitizer := security.NewContentSanitizer()

	// 6. レート制限の初期化（configはreq/min単位なのでreq/secに変換する）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.MutationRate = rate.Limit(float64(cfg.RateLimitMutation) / 60.0)
	rateLimiterCfg.MutationBurst = cfg.RateLimitMutation
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		Controller: controller,
		Refresher:  backendClient,
		PageSizes:  prefsStore,

		FeedService:   backendClient,
		FeedValidator: urlGuard,
		FeedCounter:   controller,

		ArticleService: backendClient,
		SummaryApplier: controller,
		Sanitizer:      sanitizer,

		PrefsStore: prefsStore,

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 8. 初期表示のブートストラップ（非同期）
	// バックエンドの初期設定を取得してフィード数とページサイズを補完し、
	// デフォルトクエリで最初のページを取得する。失敗してもサーバーは起動を続け、
	// 最初のユーザー操作時に再フェッチされる。
	go bootstrap(backendClient, prefsStore, controller)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("frontend server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down frontend server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("frontend server stopped gracefully")
	return nil
}

// bootstrap はバックエンドの初期設定からクエリ状態を初期化する。
func bootstrap(client *backend.Client, store *prefs.Store, controller *query.Controller) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	initial, err := client.InitialConfig(ctx)
	if err != nil {
		slog.Warn("初期設定の取得に失敗しました。デフォルト設定で起動します",
			slog.String("error", err.Error()),
		)
	} else {
		if err := store.SeedDefaults(initial); err != nil {
			slog.Warn("初期設定の保存に失敗しました", slog.String("error", err.Error()))
		}
		controller.SetFeedCount(len(initial.FeedSources))
		slog.Info("初期設定を取得しました",
			slog.Int("feed_count", len(initial.FeedSources)),
			slog.Int("default_page_size", initial.DefaultArticlesPerPage),
		)
	}

	if err := controller.Dispatch(ctx, query.ReasonFilterChange); err != nil {
		slog.Warn("初期ページの取得に失敗しました", slog.String("error", err.Error()))
	}
}

// runCleanup はバックエンドの古い記事のクリーンアップをトリガーする。
// 定期メンテナンス用のワンショットサブコマンド。
func runCleanup(cfg *config.Config) error {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	client := backend.NewClient(
		&http.Client{Timeout: cfg.BackendTimeout},
		slog.Default(),
		cfg.BackendBaseURL,
		collector,
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BackendTimeout)
	defer cancel()

	if err := client.TriggerCleanup(ctx); err != nil {
		return fmt.Errorf("cleanup trigger failed: %w", err)
	}

	slog.Info("cleanup triggered successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
