package query

import "github.com/hitoshi/newsdeck/internal/model"

// TagView はカード上のタグと選択状態を表す。
// Activeは現在のタグフィルタに含まれるかどうか。
type TagView struct {
	model.Tag
	Active bool `json:"active"`
}

// ArticleView は描画用の記事カードを表す。
type ArticleView struct {
	ID            int       `json:"id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Summary       string    `json:"summary"`
	Publisher     string    `json:"publisher"`
	PublishedDate *string   `json:"published_date"`
	SourceFeedURL string    `json:"source_feed_url"`
	Tags          []TagView `json:"tags"`
	ErrorMessage  string    `json:"error_message"`
}

// ViewState は表示状態全体のスナップショットを表す。
// GET /api/view とアクション実行後のレスポンスとして返される。
type ViewState struct {
	Articles      []ArticleView  `json:"articles"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
	TotalPages    int            `json:"total_pages"`
	TotalArticles int            `json:"total_articles_available"`
	FeedFilter    *model.FeedRef `json:"feed_filter"`
	TagFilters    []model.Tag    `json:"tag_filters"`
	Keyword       string         `json:"keyword"`
	SearchSource  string         `json:"search_source"`
	EmptyMessage  string         `json:"empty_message,omitempty"`
	ErrorBanner   string         `json:"error_banner,omitempty"`
	InlineError   string         `json:"inline_error,omitempty"`
	FetchInFlight bool           `json:"fetch_in_flight"`
	CanScrollMore bool           `json:"can_scroll_more"`
}

// View は現在の表示状態のスナップショットを返す。
// タグのハイライト（カードのタグ × 現在のタグフィルタ）は描画のたびに
// 再計算される純粋関数であり、キャッシュしない。
func (c *Controller) View() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()

	activeIDs := make(map[int]bool, len(c.state.TagFilters))
	for _, t := range c.state.TagFilters {
		activeIDs[t.ID] = true
	}

	articles := make([]ArticleView, len(c.display.articles))
	for i, a := range c.display.articles {
		tags := make([]TagView, len(a.Tags))
		for j, t := range a.Tags {
			tags[j] = TagView{Tag: t, Active: activeIDs[t.ID]}
		}

		var published *string
		if a.PublishedDate != nil {
			s := a.PublishedDate.Format("2006-01-02T15:04:05Z07:00")
			published = &s
		}

		articles[i] = ArticleView{
			ID:            a.ID,
			Title:         a.Title,
			URL:           a.URL,
			Summary:       a.Summary,
			Publisher:     a.Publisher,
			PublishedDate: published,
			SourceFeedURL: a.SourceFeedURL,
			Tags:          tags,
			ErrorMessage:  a.ErrorMessage,
		}
	}

	st := c.snapshotLocked()
	return ViewState{
		Articles:      articles,
		Page:          st.Page,
		PageSize:      st.PageSize,
		TotalPages:    st.TotalPages,
		TotalArticles: st.TotalArticles,
		FeedFilter:    st.FeedFilter,
		TagFilters:    st.TagFilters,
		Keyword:       st.Keyword,
		SearchSource:  c.display.searchSource,
		EmptyMessage:  c.display.emptyMessage,
		ErrorBanner:   c.display.errorBanner,
		InlineError:   c.display.inlineError,
		FetchInFlight: c.inFlight > 0,
		CanScrollMore: c.state.Page < c.state.TotalPages && c.inFlight == 0,
	}
}
