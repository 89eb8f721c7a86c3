// Package model はドメインモデルを定義する。
package model

import "time"

// Tag は記事に付与されたタグを表す。
// バックエンドがAI生成したタグのIDと名前の組。
type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Article はバックエンドの記事レコードの読み取り専用投影を表す。
// クライアント側では要約再生成後のSummary差し替え以外に変更されない。
type Article struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Summary       string     `json:"summary"` // Markdown形式の要約
	Publisher     string     `json:"publisher"`
	PublishedDate *time.Time `json:"published_date"`
	SourceFeedURL string     `json:"source_feed_url"`
	Tags          []Tag      `json:"tags"`
	ErrorMessage  string     `json:"error_message"`
}

// FeedSource はバックエンドに登録されたRSSフィードソースを表す。
type FeedSource struct {
	ID                   int    `json:"id"`
	URL                  string `json:"url"`
	Name                 string `json:"name"`
	FetchIntervalMinutes int    `json:"fetch_interval_minutes"`
}

// FeedRef はクエリ状態で保持するフィードフィルタの参照。
// UIは同時に1つのフィードフィルタのみを許可する（シングルトン）。
type FeedRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// InitialConfig はバックエンドの初期設定レスポンスを表す。
// 起動時のブートストラップでデフォルト値の種として使用する。
type InitialConfig struct {
	FeedSources              []FeedSource `json:"all_db_feed_sources"`
	DefaultArticlesPerPage   int          `json:"default_articles_per_page"`
	DefaultSummaryPrompt     string       `json:"default_summary_prompt"`
	DefaultChatPrompt        string       `json:"default_chat_prompt"`
	DefaultTagPrompt         string       `json:"default_tag_generation_prompt"`
	DefaultFetchIntervalMins int          `json:"default_rss_fetch_interval_minutes"`
}

// ChatMessage はチャット履歴の1メッセージを表す。
// Roleは "user" または "assistant"。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
