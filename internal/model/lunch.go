package model

import "time"

// WorkmateSnapshot はランチ選択時点の同僚情報を表す。
type WorkmateSnapshot struct {
	ExternalID          string `json:"external_id" bson:"uid"`
	Name                string `json:"name" bson:"name"`
	Email               string `json:"email,omitempty" bson:"email,omitempty"`
	AvatarURL           string `json:"avatar_url,omitempty" bson:"avatarUrl,omitempty"`
	NotificationEnabled bool   `json:"notification_enabled" bson:"notificationEnabled"`
}

// SnapshotOf は同僚レコードからスナップショットを作成する。
func SnapshotOf(w *Workmate) WorkmateSnapshot {
	return WorkmateSnapshot{
		ExternalID:          w.ExternalID,
		Name:                w.Name,
		Email:               w.Email,
		AvatarURL:           w.AvatarURL,
		NotificationEnabled: w.NotificationEnabled,
	}
}

// Lunch は同僚がある日に選んだレストランを表す。
// 同僚とレストランは選択時点のスナップショットとして保持され、後から更新されない。
type Lunch struct {
	ID         string
	Workmate   WorkmateSnapshot
	Restaurant Restaurant
	Date       string
	CreatedAt  time.Time
}

// LunchID は同僚と日付から決まるランチの複合キーを返す。
// 同僚1人につき1日1件のランチしか存在しないことをストア側で保証する。
func LunchID(externalID, date string) string {
	return externalID + "|" + date
}

// LunchEventType はランチ変更イベントの種別を表す。
type LunchEventType string

const (
	LunchCreated LunchEventType = "lunch_created"
	LunchDeleted LunchEventType = "lunch_deleted"
)

// LunchEvent はリアルタイム配信されるランチ変更イベントを表す。
type LunchEvent struct {
	Type           LunchEventType `json:"type"`
	Date           string         `json:"date"`
	WorkmateID     string         `json:"workmate_id"`
	WorkmateName   string         `json:"workmate_name"`
	RestaurantID   string         `json:"restaurant_id"`
	RestaurantName string         `json:"restaurant_name"`
}
