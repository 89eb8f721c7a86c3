package query

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/newsdeck/internal/backend"
	"github.com/hitoshi/newsdeck/internal/model"
)

// DispatchReason はディスパッチの契機を表す。
type DispatchReason string

const (
	// ReasonFilterChange はフィルタ・検索・ページサイズ変更によるディスパッチ。
	ReasonFilterChange DispatchReason = "filterChange"
	// ReasonScrollMore はスクロール閾値到達による追加ページのディスパッチ。
	ReasonScrollMore DispatchReason = "scrollMore"
	// ReasonManualRefresh は手動更新ボタンによるディスパッチ。
	ReasonManualRefresh DispatchReason = "manualRefresh"
)

// Dispatch はクエリ状態をちょうど1つのバックエンドリクエストに変換して発行する。
//
// ReasonScrollMoreの場合、フェッチ実行中なら何もしない（no-op）。
// スクロール駆動の呼び出し側はCanScrollMoreで事前条件を確認する前提。
// ReasonFilterChange / ReasonManualRefreshは実行中フェッチがあっても常に発行でき、
// 発行前に世代番号を進めることで古いリクエストのレスポンスを失効させる。
//
// 成功時はtotalPages / totalArticlesをクエリ状態にマージし、記事リストを
// 表示ポリシーに渡す（ページ1・フィルタ変更・手動更新はreplace、スクロールはappend）。
// 失敗時はtotalPagesを現在のページに固定して以降のスクロールフェッチを止め、
// 表示済みの記事リストは変更しない。自動リトライは行わない。
func (c *Controller) Dispatch(ctx context.Context, reason DispatchReason) error {
	c.mu.Lock()

	if reason == ReasonScrollMore && c.inFlight > 0 {
		c.mu.Unlock()
		return nil
	}

	if reason != ReasonScrollMore {
		// 最新のディスパッチを常に勝たせる: 実行中の古いリクエストを失効させる
		c.generation++
	}
	if reason == ReasonManualRefresh {
		// 手動更新はフィルタを維持したままページ1から再表示する
		c.state.Page = 1
	}
	gen := c.generation
	mode := modeReplace
	if reason == ReasonScrollMore {
		mode = modeAppend
	}
	req := c.buildQueryLocked()
	c.inFlight++
	c.mu.Unlock()

	c.metrics.RecordDispatch(string(reason))
	page, err := c.fetcher.QuerySummaries(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	// 世代番号の照合: リクエスト発行後にフィルタが変更されていた場合、
	// 遅延して到着したレスポンスが新しいフィルタの結果を上書きしてはならない
	if gen != c.generation {
		c.metrics.RecordStaleDiscard()
		c.logger.Info("失効したレスポンスを破棄しました",
			slog.Uint64("request_generation", gen),
			slog.Uint64("current_generation", c.generation),
			slog.String("reason", string(reason)),
		)
		return nil
	}

	if err != nil {
		c.metrics.RecordFetchFailure()
		c.state.TotalPages = c.state.Page
		c.display.setFetchFailure(mode, fetchErrorMessage(err))
		c.logger.Error("クエリのディスパッチに失敗しました",
			slog.String("reason", string(reason)),
			slog.Int("page", c.state.Page),
			slog.String("error", err.Error()),
		)
		return err
	}

	c.state.TotalPages = page.TotalPages
	c.state.TotalArticles = page.TotalArticles
	// バックエンドは範囲外のページ番号を有効範囲にクランプして返す
	if page.RequestedPage >= 1 {
		c.state.Page = page.RequestedPage
	}

	c.display.merge(mode, page, c.anyFilterActiveLocked(), c.feedCount)
	c.metrics.RecordArticlesDisplayed(len(c.display.articles))
	return nil
}

// ScrollMore はスクロール閾値到達時の追加フェッチを行う。
// 事前条件（page < totalPages かつフェッチ未実行）を満たさない場合は何もしない。
func (c *Controller) ScrollMore(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight > 0 || c.state.Page >= c.state.TotalPages {
		c.mu.Unlock()
		return nil
	}
	c.state.Page++
	c.mu.Unlock()

	return c.Dispatch(ctx, ReasonScrollMore)
}

// ApplyRegeneratedSummary は要約再生成後の記事を表示リスト内で楽観的に差し替える。
// 対象記事が表示中でない場合は何もしない。
func (c *Controller) ApplyRegeneratedSummary(article model.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.display.replaceArticle(article)
}

// buildQueryLocked は現在のクエリ状態から正規化済みのリクエストを構築する。
// フィルタ未設定の次元は省略され（nil）、空リストは送信しない。
func (c *Controller) buildQueryLocked() backend.SummariesQuery {
	req := backend.SummariesQuery{
		Page:     c.state.Page,
		PageSize: c.state.PageSize,
	}

	if c.state.FeedFilter != nil {
		req.FeedSourceIDs = []int{c.state.FeedFilter.ID}
	}
	if len(c.state.TagFilters) > 0 {
		ids := make([]int, len(c.state.TagFilters))
		for i, t := range c.state.TagFilters {
			ids[i] = t.ID
		}
		req.TagIDs = ids
	}
	if c.state.Keyword != "" {
		kw := c.state.Keyword
		req.Keyword = &kw
	}
	if p := c.prompts.SummaryPrompt(); p != "" {
		req.SummaryPrompt = &p
	}
	if p := c.prompts.TagPrompt(); p != "" {
		req.TagPrompt = &p
	}

	return req
}

// fetchErrorMessage はエラーから表示用メッセージを取り出す。
func fetchErrorMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
