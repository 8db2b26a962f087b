// Package notify は当日のランチのリマインダー通知を組み立てて配信する。
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/lunchmate/internal/model"
)

const (
	// NotificationTag は端末上で通知を置き換えるための固定タグ。
	NotificationTag = "lunchmate-reminder"
	// NotificationTitle は通知のタイトル。
	NotificationTitle = "Lunch Notification"
)

// Notification は配信する通知を表す。
// Restaurantはタップ時に詳細画面を開くためのスナップショット。
type Notification struct {
	Tag        string
	Title      string
	Body       string
	Restaurant model.Restaurant
}

// ErrNoEndpoint は同僚の通知配信先が未登録のため送信しなかったことを表す。
var ErrNoEndpoint = errors.New("通知配信先が未登録です")

// Notifier は同僚に通知を配信する。
// 配信先が未登録の場合は何も送らずErrNoEndpointを返す。
type Notifier interface {
	Notify(ctx context.Context, workmate *model.Workmate, n Notification) error
}

// ComposeMessage は通知本文を組み立てる。
func ComposeMessage(restaurant model.Restaurant, attendees []string) string {
	return fmt.Sprintf("eating at %s, %s with %s",
		restaurant.Name, restaurant.Address, strings.Join(attendees, ", "))
}

// NewNotification はレストランと参加者名から通知を生成する。
func NewNotification(restaurant model.Restaurant, attendees []string) Notification {
	return Notification{
		Tag:        NotificationTag,
		Title:      NotificationTitle,
		Body:       ComposeMessage(restaurant, attendees),
		Restaurant: restaurant,
	}
}

// LogNotifier は通知をログに出力するだけのNotifier。
// プッシュ配信を構成しない環境で使用し、配信先の有無は見ない。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify は通知内容をログに出力する。
func (n *LogNotifier) Notify(ctx context.Context, workmate *model.Workmate, notification Notification) error {
	n.logger.Info("リマインダー通知",
		slog.String("workmate", workmate.ExternalID),
		slog.String("tag", notification.Tag),
		slog.String("body", notification.Body),
		slog.String("restaurant_id", notification.Restaurant.ID),
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
