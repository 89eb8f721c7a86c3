package query

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/newsdeck/internal/backend"
	"github.com/hitoshi/newsdeck/internal/model"
)

func TestView_TagHighlightRecomputedPerRender(t *testing.T) {
	published := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &mockFetcher{
		fn: func(ctx context.Context, query backend.SummariesQuery) (*backend.SummariesPage, error) {
			return &backend.SummariesPage{
				RequestedPage: 1,
				TotalPages:    1,
				TotalArticles: 1,
				ArticlesOnPage: []model.Article{
					{
						ID:            1,
						Title:         "記事",
						PublishedDate: &published,
						Tags: []model.Tag{
							{ID: 10, Name: "golang"},
							{ID: 20, Name: "ai"},
						},
					},
				},
			}, nil
		},
	}
	c := newTestController(fetcher)
	c.Dispatch(context.Background(), ReasonFilterChange)

	// フィルタ未設定: すべて非アクティブ
	view := c.View()
	for _, tag := range view.Articles[0].Tags {
		if tag.Active {
			t.Errorf("タグ %q の Active = true, want false", tag.Name)
		}
	}

	// タグフィルタ設定後: 該当タグのみアクティブ
	// （ディスパッチを挟まなくてもハイライトは描画のたびに再計算される）
	c.state.TagFilters = []model.Tag{{ID: 20, Name: "ai"}}
	view = c.View()
	if view.Articles[0].Tags[0].Active {
		t.Error("Tags[0].Active = true, want false")
	}
	if !view.Articles[0].Tags[1].Active {
		t.Error("Tags[1].Active = false, want true")
	}
}

func TestView_PublishedDateFormatting(t *testing.T) {
	published := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	fetcher := &mockFetcher{
		fn: func(ctx context.Context, query backend.SummariesQuery) (*backend.SummariesPage, error) {
			return &backend.SummariesPage{
				RequestedPage: 1,
				TotalPages:    1,
				TotalArticles: 2,
				ArticlesOnPage: []model.Article{
					{ID: 1, PublishedDate: &published},
					{ID: 2, PublishedDate: nil},
				},
			}, nil
		},
	}
	c := newTestController(fetcher)
	c.Dispatch(context.Background(), ReasonFilterChange)

	view := c.View()
	if view.Articles[0].PublishedDate == nil {
		t.Fatal("Articles[0].PublishedDate = nil, want 設定済み")
	}
	if got := *view.Articles[0].PublishedDate; got != "2026-08-01T12:30:00Z" {
		t.Errorf("PublishedDate = %q, want %q", got, "2026-08-01T12:30:00Z")
	}
	if view.Articles[1].PublishedDate != nil {
		t.Errorf("Articles[1].PublishedDate = %v, want nil（日付不明）", *view.Articles[1].PublishedDate)
	}
}

func TestView_ReflectsQueryState(t *testing.T) {
	c := newTestController(&mockFetcher{})
	c.SetFeedFilter(3, "Tech Blog")

	view := c.View()
	if view.FeedFilter == nil || view.FeedFilter.ID != 3 {
		t.Errorf("FeedFilter = %v, want ID=3", view.FeedFilter)
	}
	if view.Page != 1 {
		t.Errorf("Page = %d, want 1", view.Page)
	}
	if view.FetchInFlight {
		t.Error("FetchInFlight = true, want false")
	}
}
