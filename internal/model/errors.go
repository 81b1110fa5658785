package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, profile, upload, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeProfileNotFound = "PROFILE_NOT_FOUND"
	ErrCodeInvalidProfile  = "INVALID_PROFILE"
	ErrCodeInvalidLink     = "INVALID_LINK"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeFilenameMissing = "FILENAME_REQUIRED"
	ErrCodeUploadTooLarge  = "UPLOAD_TOO_LARGE"
	ErrCodeInvalidImage    = "INVALID_IMAGE"
	ErrCodeInvalidReplay   = "INVALID_REPLAY"
)

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("プロフィールが見つかりません: %s", id),
		Category: "profile",
		Action:   "URLが正しいか確認してください。",
	}
}

// NewInvalidProfileError はプロフィールの入力値エラーを生成する。
func NewInvalidProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Message:  fmt.Sprintf("プロフィールの入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "名前を入力し、入力内容を確認してください。",
	}
}

// NewInvalidLinkError はSNSリンクの形式エラーを生成する。
func NewInvalidLinkError(platform Platform, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLink,
		Message:  fmt.Sprintf("%sのリンクが正しくありません: %s", platform, reason),
		Category: "validation",
		Action:   "http:// または https:// で始まるURLを入力してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されている画像のURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError は外部URLの取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "upload",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewFilenameRequiredError はアップロード時のファイル名未指定エラーを生成する。
func NewFilenameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeFilenameMissing,
		Message:  "ファイル名が指定されていません。",
		Category: "validation",
		Action:   "filenameクエリパラメータを指定してください。",
	}
}

// NewUploadTooLargeError はアップロードサイズ超過エラーを生成する。
// limitは人が読める形式（例: "4.5 MB"）で渡す。
func NewUploadTooLargeError(limit string) *APIError {
	return &APIError{
		Code:     ErrCodeUploadTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%s）を超えています。", limit),
		Category: "upload",
		Action:   "サイズの小さい画像を選択してください。",
	}
}

// NewInvalidImageError は画像として読み込めない場合のエラーを生成する。
func NewInvalidImageError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  "画像を読み込めませんでした。",
		Category: "upload",
		Action:   "PNG、JPEG、GIF、WebP形式の画像を選択してください。",
	}
}

// NewInvalidReplayError はモーション再生リクエストの入力値エラーを生成する。
func NewInvalidReplayError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidReplay,
		Message:  fmt.Sprintf("再生データが正しくありません: %s", reason),
		Category: "validation",
		Action:   "イベントの種類と値を確認してください。",
	}
}
