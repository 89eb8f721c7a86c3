package query

import (
	"github.com/hitoshi/newsdeck/internal/backend"
	"github.com/hitoshi/newsdeck/internal/model"
)

// mergeMode はフェッチ結果を表示リストに反映する方式を表す。
type mergeMode int

const (
	// modeReplace は表示中の記事を破棄して新しいページの結果で置き換える。
	modeReplace mergeMode = iota
	// modeAppend は既存の記事の後ろに新しい記事を追加する（順序保持）。
	modeAppend
)

// 空結果メッセージの文言。フィルタの有無とフィード登録状況で変化する。
const (
	emptyMessageFiltered = "現在のフィルタに一致する記事はありません。フィルタを変更するか解除してください。"
	emptyMessageNoFeeds  = "フィードが登録されていません。フィードを追加すると記事が表示されます。"
	emptyMessageNoItems  = "記事がまだありません。RSS更新をトリガーするか、しばらく待ってから再度お試しください。"
)

// displayState は表示中の記事リストと付随するメッセージを保持する。
// Controllerのミューテックス保持下でのみ変更される。
type displayState struct {
	articles     []model.Article
	searchSource string
	emptyMessage string
	errorBanner  string // replace系フェッチ失敗時のバナーメッセージ
	inlineError  string // append系フェッチ失敗時のインラインメッセージ
}

// merge はフェッチ結果を表示リストに反映する。
// replaceは表示中の記事を破棄し、appendは末尾に追加する。
// ページ1が0件かつ総件数0の場合は空結果メッセージを設定する。
func (d *displayState) merge(mode mergeMode, page *backend.SummariesPage, anyFilterActive bool, feedCount int) {
	d.errorBanner = ""
	d.inlineError = ""
	d.searchSource = page.SearchSource

	switch mode {
	case modeReplace:
		d.articles = append([]model.Article(nil), page.ArticlesOnPage...)
	case modeAppend:
		d.articles = append(d.articles, page.ArticlesOnPage...)
	}

	d.emptyMessage = ""
	if len(d.articles) == 0 && page.TotalArticles == 0 {
		d.emptyMessage = emptyMessage(anyFilterActive, feedCount)
	}
}

// setFetchFailure はフェッチ失敗を表示状態に反映する。
// replace系の失敗は結果エリアのエラーバナーとして表示し、
// append系の失敗は描画済みの記事を破棄せずインラインで表示する。
func (d *displayState) setFetchFailure(mode mergeMode, message string) {
	if mode == modeReplace {
		d.errorBanner = message
	} else {
		d.inlineError = message
	}
}

// replaceArticle は表示リスト内の同一IDの記事を差し替える。
func (d *displayState) replaceArticle(article model.Article) {
	for i, a := range d.articles {
		if a.ID == article.ID {
			d.articles[i] = article
			return
		}
	}
}

// emptyMessage は空結果時の表示メッセージを決定する。
func emptyMessage(anyFilterActive bool, feedCount int) string {
	if anyFilterActive {
		return emptyMessageFiltered
	}
	if feedCount == 0 {
		return emptyMessageNoFeeds
	}
	return emptyMessageNoItems
}
