// Package query はクライアント側のクエリ状態の管理と照合を提供する。
// ページ番号・ページサイズ・フィードフィルタ・タグフィルタ・キーワード検索を
// 単一の正規化されたクエリに照合し、世代番号による失効レスポンス破棄を行う。
package query

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/newsdeck/internal/backend"
	"github.com/hitoshi/newsdeck/internal/model"
)

const (
	// MinPageSize はページサイズの下限。
	MinPageSize = 1
	// MaxPageSize はページサイズの上限。
	MaxPageSize = 50
	// DefaultPageSize はページサイズのデフォルト値。
	DefaultPageSize = 6
)

// State は次のフェッチを駆動するクエリ状態のスナップショットを表す。
// フィルタ次元はUI上は相互排他だが、モデルとしては強制しない。
type State struct {
	Page          int
	PageSize      int
	FeedFilter    *model.FeedRef
	TagFilters    []model.Tag
	Keyword       string
	TotalPages    int
	TotalArticles int
}

// Controller はクエリ状態を所有し、文書化された操作経由でのみ変更を許可する。
// すべての操作はミューテックスで直列化され、操作後の状態はそのまま
// クエリ発行に使用できる（呼び出し側での追加正規化は不要）。
type Controller struct {
	mu         sync.Mutex
	state      State
	generation uint64
	inFlight   int
	display    displayState
	feedCount  int

	fetcher SummariesFetcher
	prompts PromptSource
	metrics Recorder
	logger  *slog.Logger
}

// SummariesFetcher はディスパッチャが必要とするバックエンド呼び出しのインターフェース。
type SummariesFetcher interface {
	// QuerySummaries は正規化済みクエリを発行し、要約ページを返す。
	QuerySummaries(ctx context.Context, query backend.SummariesQuery) (*backend.SummariesPage, error)
}

// PromptSource はクエリに添付するカスタムプロンプトの読み取りインターフェース。
// 空文字列はプロンプト未設定（バックエンドのデフォルトを使用）を意味する。
type PromptSource interface {
	SummaryPrompt() string
	TagPrompt() string
}

// Recorder はメトリクス収集のインターフェース。
type Recorder interface {
	RecordDispatch(reason string)
	RecordStaleDiscard()
	RecordFetchFailure()
	RecordArticlesDisplayed(count int)
}

// NewController はControllerを生成する。
// pageSizeが範囲外の場合はDefaultPageSizeで開始する。
func NewController(fetcher SummariesFetcher, prompts PromptSource, metrics Recorder, logger *slog.Logger, pageSize int) *Controller {
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return &Controller{
		state: State{
			Page:     1,
			PageSize: pageSize,
		},
		fetcher: fetcher,
		prompts: prompts,
		metrics: metrics,
		logger:  logger,
	}
}

// SetFeedFilter はフィードフィルタを設定する（トグル動作）。
// 同じフィードが既にアクティブな場合はフィルタを解除し、
// 別のフィードがアクティブな場合は置き換える。
// タグフィルタとキーワードを解除し、ページを1にリセットする。
func (c *Controller) SetFeedFilter(feedID int, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.FeedFilter != nil && c.state.FeedFilter.ID == feedID {
		c.state.FeedFilter = nil
	} else {
		c.state.FeedFilter = &model.FeedRef{ID: feedID, Name: name}
	}
	c.state.TagFilters = nil
	c.state.Keyword = ""
	c.resetPageLocked()
}

// ToggleTagFilter はタグフィルタをトグルする（未選択なら追加、選択済みなら削除）。
// フィードフィルタとキーワードを解除し、ページを1にリセットする。
// タグは挿入順を保持し、複数同時選択をサポートする。
func (c *Controller) ToggleTagFilter(tagID int, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := false
	for i, t := range c.state.TagFilters {
		if t.ID == tagID {
			c.state.TagFilters = append(c.state.TagFilters[:i], c.state.TagFilters[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		c.state.TagFilters = append(c.state.TagFilters, model.Tag{ID: tagID, Name: name})
	}
	c.state.FeedFilter = nil
	c.state.Keyword = ""
	c.resetPageLocked()
}

// SetKeyword はキーワード検索を設定する。
// 入力はトリムされ、空文字列は「フィルタなし」に正規化される。
// フィードフィルタとタグフィルタを解除し、ページを1にリセットする。
func (c *Controller) SetKeyword(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Keyword = trimKeyword(term)
	c.state.FeedFilter = nil
	c.state.TagFilters = nil
	c.resetPageLocked()
}

// ClearAllFilters はフィードフィルタ・タグフィルタ・キーワードをすべて解除する。
// ページを1にリセットする。
func (c *Controller) ClearAllFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.FeedFilter = nil
	c.state.TagFilters = nil
	c.state.Keyword = ""
	c.resetPageLocked()
}

// SetPageSize はページサイズを変更する。
// 範囲外（MinPageSize未満またはMaxPageSize超）の場合はバリデーションエラーを返し、
// 状態は変更しない。成功時はページを1にリセットする。
func (c *Controller) SetPageSize(n int) error {
	if n < MinPageSize || n > MaxPageSize {
		return model.NewInvalidPageSizeError(n, MinPageSize, MaxPageSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.PageSize = n
	c.resetPageLocked()
	return nil
}

// AdvancePage はページ番号を1進める。
// 呼び出し側がpage < totalPagesを事前に確認する前提（CanScrollMore参照）。
func (c *Controller) AdvancePage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Page++
}

// SetFeedCount は登録済みフィード数を更新する。
// 空結果メッセージの文言（フィルタ不一致かフィード未登録か）の判定に使用する。
func (c *Controller) SetFeedCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feedCount = n
}

// FetchInFlight はフェッチが実行中かを返す。
func (c *Controller) FetchInFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// CanScrollMore はスクロール駆動の追加フェッチが可能かを返す。
// page < totalPages かつフェッチ未実行の場合のみtrue。
func (c *Controller) CanScrollMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Page < c.state.TotalPages && c.inFlight == 0
}

// Snapshot は現在のクエリ状態のコピーを返す。
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// snapshotLocked はロック保持下で状態のディープコピーを返す。
func (c *Controller) snapshotLocked() State {
	st := c.state
	if st.FeedFilter != nil {
		ref := *st.FeedFilter
		st.FeedFilter = &ref
	}
	st.TagFilters = append([]model.Tag(nil), c.state.TagFilters...)
	return st
}

// resetPageLocked はフィルタ変更時の共通処理を行う。
// ページを1に戻し、世代番号を進めて実行中のフェッチ結果を失効させる。
func (c *Controller) resetPageLocked() {
	c.state.Page = 1
	c.generation++
}

// anyFilterActiveLocked はいずれかのフィルタ次元が有効かを返す。
func (c *Controller) anyFilterActiveLocked() bool {
	return c.state.FeedFilter != nil || len(c.state.TagFilters) > 0 || c.state.Keyword != ""
}

// trimKeyword はキーワード入力を正規化する。
// 前後の空白を除去し、空白のみの入力は空文字列（フィルタなし）にする。
func trimKeyword(term string) string {
	return strings.TrimSpace(term)
}
