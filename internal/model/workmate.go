package model

import "time"

// Workmate は組織に所属する同僚を表す。
// 外部IDプロバイダの識別子（ExternalID）ごとに1レコードだけ存在する。
type Workmate struct {
	ID                  string
	ExternalID          string
	Name                string
	Email               string
	AvatarURL           string
	NotificationEnabled bool
	// PushEndpoint はプッシュ通知の配信先。空の場合は通知権限が未付与。
	PushEndpoint string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity はサインイン済みの外部IDを表す。
// 認証トークンから取り出され、同僚レコードの解決に使われる。
type Identity struct {
	ExternalID string
	Name       string
	Email      string
	AvatarURL  string
}

// LikedRestaurant は同僚が「お気に入り」にしたレストランを表す。
// レストラン名をキーとする。
type LikedRestaurant struct {
	ID         string
	WorkmateID string
	Name       string
	CreatedAt  time.Time
}
