// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string `json:"code"`     // エラーコード
	Message  string `json:"message"`  // エラーメッセージ
	Category string `json:"category"` // カテゴリ: validation, fetch, system
	Action   string `json:"action"`   // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidPageSize = "INVALID_PAGE_SIZE"
	ErrCodeInvalidPrompt   = "INVALID_PROMPT"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeInvalidAction   = "INVALID_ACTION"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeFeedUnreachable = "FEED_UNREACHABLE"
)

// NewInvalidPageSizeError はページサイズ範囲外エラーを生成する。
// バリデーションエラーはネットワーク呼び出し前に同期的に検出される。
func NewInvalidPageSizeError(size, min, max int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPageSize,
		Message:  fmt.Sprintf("無効なページサイズです: %d", size),
		Category: "validation",
		Action:   fmt.Sprintf("ページサイズは%dから%dの範囲で指定してください。", min, max),
	}
}

// NewInvalidPromptError はプロンプトのプレースホルダ不足エラーを生成する。
func NewInvalidPromptError(placeholder string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrompt,
		Message:  fmt.Sprintf("プロンプトに必須プレースホルダ %s が含まれていません。", placeholder),
		Category: "validation",
		Action:   fmt.Sprintf("プロンプト本文に %s を含めてください。", placeholder),
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPは許可されていません。",
	}
}

// NewFetchFailedError はバックエンド呼び出し失敗エラーを生成する。
// reasonにはバックエンドのdetailフィールド、レスポンス本文、
// HTTPステータスメッセージのいずれかが優先順で入る。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("バックエンドへのリクエストに失敗しました: %s", reason),
		Category: "fetch",
		Action:   "しばらく待ってから再度お試しください。自動リトライは行われません。",
	}
}

// NewInvalidActionError は未定義のアクション名エラーを生成する。
func NewInvalidActionError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAction,
		Message:  fmt.Sprintf("未定義のアクションです: %s", action),
		Category: "validation",
		Action:   "サポートされているアクション名を指定してください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの解析に失敗しました: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewFeedUnreachableError はフィードURL到達性チェック失敗エラーを生成する。
func NewFeedUnreachableError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedUnreachable,
		Message:  fmt.Sprintf("指定されたURLに到達できませんでした: %s", url),
		Category: "validation",
		Action:   "URLが正しいか、サイトが公開されているか確認してください。",
	}
}
