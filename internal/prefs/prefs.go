// Package prefs はユーザー設定のファイル永続化を提供する。
// ページサイズとカスタムプロンプトをYAMLファイルに保存し、
// セッションをまたいで復元する。
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/newsdeck/internal/model"
)

const (
	// minPageSize / maxPageSize はページサイズの許容範囲。
	minPageSize = 1
	maxPageSize = 50
	// defaultPageSize はページサイズのデフォルト値。
	defaultPageSize = 6
	// PromptPlaceholder はカスタムプロンプトに必須のプレースホルダ。
	// バックエンドが記事本文をこの位置に埋め込む。
	PromptPlaceholder = "{text}"
)

// Preferences はYAMLにシリアライズされるユーザー設定を表す。
type Preferences struct {
	PageSize      int    `yaml:"page_size"`
	SummaryPrompt string `yaml:"summary_prompt,omitempty"`
	TagPrompt     string `yaml:"tag_generation_prompt,omitempty"`
	ChatPrompt    string `yaml:"chat_prompt,omitempty"`
}

// Store はユーザー設定のスレッドセーフなファイルストア。
// 設定変更のたびにYAMLファイルへ保存する。
type Store struct {
	mu    sync.RWMutex
	path  string
	prefs Preferences
}

// Load は指定パスから設定を読み込んだStoreを返す。
// ファイルが存在しない場合はデフォルト値で開始する（エラーにしない）。
// 読み込んだページサイズが範囲外の場合はデフォルト値に補正する。
func Load(path string) (*Store, error) {
	s := &Store{
		path:  path,
		prefs: Preferences{PageSize: defaultPageSize},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}

	var loaded Preferences
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("設定ファイルのパースに失敗しました: %w", err)
	}

	if loaded.PageSize < minPageSize || loaded.PageSize > maxPageSize {
		loaded.PageSize = defaultPageSize
	}
	s.prefs = loaded
	return s, nil
}

// PageSize は現在のページサイズを返す。
func (s *Store) PageSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.PageSize
}

// SetPageSize はページサイズを検証して保存する。
// 範囲外の場合はバリデーションエラーを返し、ファイルは変更しない。
func (s *Store) SetPageSize(n int) error {
	if n < minPageSize || n > maxPageSize {
		return model.NewInvalidPageSizeError(n, minPageSize, maxPageSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.PageSize = n
	return s.saveLocked()
}

// SummaryPrompt はカスタム要約プロンプトを返す。空文字列は未設定。
func (s *Store) SummaryPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.SummaryPrompt
}

// TagPrompt はカスタムタグ生成プロンプトを返す。空文字列は未設定。
func (s *Store) TagPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.TagPrompt
}

// ChatPrompt はカスタムチャットプロンプトを返す。空文字列は未設定。
func (s *Store) ChatPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.ChatPrompt
}

// SetPrompts はカスタムプロンプトを検証して保存する。
// 非空のプロンプトはPromptPlaceholderを含む必要がある（チャットプロンプトを除く）。
// nilフィールドは変更しない部分更新を行う。
func (s *Store) SetPrompts(summary, tag, chat *string) error {
	if summary != nil && *summary != "" && !strings.Contains(*summary, PromptPlaceholder) {
		return model.NewInvalidPromptError(PromptPlaceholder)
	}
	if tag != nil && *tag != "" && !strings.Contains(*tag, PromptPlaceholder) {
		return model.NewInvalidPromptError(PromptPlaceholder)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if summary != nil {
		s.prefs.SummaryPrompt = *summary
	}
	if tag != nil {
		s.prefs.TagPrompt = *tag
	}
	if chat != nil {
		s.prefs.ChatPrompt = *chat
	}
	return s.saveLocked()
}

// SeedDefaults は未設定の項目にバックエンドの初期設定値を補完して保存する。
// 起動時のブートストラップで1回だけ呼ばれる。既存の設定は上書きしない。
func (s *Store) SeedDefaults(cfg *model.InitialConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	if s.prefs.PageSize == defaultPageSize && cfg.DefaultArticlesPerPage >= minPageSize && cfg.DefaultArticlesPerPage <= maxPageSize {
		s.prefs.PageSize = cfg.DefaultArticlesPerPage
		changed = true
	}
	if !changed {
		return nil
	}
	return s.saveLocked()
}

// Snapshot は現在の設定のコピーを返す。
func (s *Store) Snapshot() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// saveLocked は設定をYAMLファイルに書き出す。
// 一時ファイルへの書き込みとリネームで部分書き込みを防ぐ。
func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(s.prefs)
	if err != nil {
		return fmt.Errorf("設定のシリアライズに失敗しました: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("設定ディレクトリの作成に失敗しました: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("設定ファイルの書き込みに失敗しました: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("設定ファイルの更新に失敗しました: %w", err)
	}
	return nil
}
