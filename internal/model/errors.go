// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// 外部呼び出しの失敗分類。
// 呼び出し元でログ出力のうえ「結果なし」や三値の結果に変換される。
var (
	// ErrTransportFailure はリモート呼び出し（Places API・ストア）の失敗を表す。
	ErrTransportFailure = errors.New("transport failure")
	// ErrEmptyResult は該当データが存在しないことを表す。
	ErrEmptyResult = errors.New("empty result")
	// ErrPartialWrite は一括削除などで一部の書き込みのみ成功したことを表す。
	ErrPartialWrite = errors.New("partial write")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, location, restaurant, lunch, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeLocationDenied     = "LOCATION_DENIED"
	ErrCodeLocationQuerying   = "LOCATION_QUERYING"
	ErrCodeInvalidLocation    = "INVALID_LOCATION"
	ErrCodePlacesFailed       = "PLACES_FAILED"
	ErrCodeRestaurantNotFound = "RESTAURANT_NOT_FOUND"
	ErrCodeWorkmateNotFound   = "WORKMATE_NOT_FOUND"
	ErrCodeLunchWriteFailed   = "LUNCH_WRITE_FAILED"
	ErrCodeLikeWriteFailed    = "LIKE_WRITE_FAILED"
	ErrCodeInvalidDevice      = "INVALID_DEVICE"
	ErrCodePushUnavailable    = "PUSH_UNAVAILABLE"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUpstreamFailed     = "UPSTREAM_FAILED"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証トークンが無効な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewLocationDeniedError は位置情報の権限がない場合のエラーを生成する。
func NewLocationDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeLocationDenied,
		Message:  "位置情報の利用が許可されていません。",
		Category: "location",
		Action:   "端末の設定で位置情報の利用を許可するか、検索地点を指定してください。",
	}
}

// NewInvalidLocationError は座標が不正な場合のエラーを生成する。
func NewInvalidLocationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLocation,
		Message:  fmt.Sprintf("無効な位置情報です: %s", reason),
		Category: "validation",
		Action:   "緯度は-90〜90、経度は-180〜180の範囲で指定してください。",
	}
}

// NewPlacesFailedError はレストラン検索APIの呼び出し失敗エラーを生成する。
func NewPlacesFailedError() *APIError {
	return &APIError{
		Code:     ErrCodePlacesFailed,
		Message:  "レストラン情報の取得に失敗しました。",
		Category: "restaurant",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRestaurantNotFoundError はレストランが見つからない場合のエラーを生成する。
func NewRestaurantNotFoundError(placeID string) *APIError {
	return &APIError{
		Code:     ErrCodeRestaurantNotFound,
		Message:  fmt.Sprintf("指定されたレストランが見つかりません: %s", placeID),
		Category: "restaurant",
		Action:   "レストランIDを確認してください。",
	}
}

// NewWorkmateNotFoundError は同僚レコードが見つからない場合のエラーを生成する。
func NewWorkmateNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeWorkmateNotFound,
		Message:  "同僚情報が見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewLunchWriteFailedError はランチの登録・取消に失敗した場合のエラーを生成する。
func NewLunchWriteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLunchWriteFailed,
		Message:  "ランチの更新に失敗しました。",
		Category: "lunch",
		Action:   "表示を更新してから再度お試しください。",
	}
}

// NewLikeWriteFailedError はお気に入りの更新に失敗した場合のエラーを生成する。
func NewLikeWriteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLikeWriteFailed,
		Message:  "お気に入りの更新に失敗しました。",
		Category: "restaurant",
		Action:   "表示を更新してから再度お試しください。",
	}
}

// NewInvalidDeviceError はデバイス登録のリクエストが不正な場合のエラーを生成する。
func NewInvalidDeviceError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDevice,
		Message:  fmt.Sprintf("無効なデバイス情報です: %s", reason),
		Category: "validation",
		Action:   "プッシュ通知のトークンを確認してください。",
	}
}

// NewPushUnavailableError はプッシュ通知の登録先が構成されていない場合のエラーを生成する。
func NewPushUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodePushUnavailable,
		Message:  "プッシュ通知は現在利用できません。",
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewUpstreamFailedError はストアなど外部依存の呼び出し失敗エラーを生成する。
func NewUpstreamFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  "外部サービスとの通信に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
