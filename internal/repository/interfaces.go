// Package repository はデータ永続化のインターフェースを定義する。
// 実装はPostgreSQL版とMongoDB版があり、どちらも等価条件の組み合わせのみで検索する。
package repository

import (
	"context"

	"github.com/hitoshi/lunchmate/internal/model"
)

// WorkmateRepository は同僚データの永続化インターフェース。
type WorkmateRepository interface {
	// FindByExternalID は外部IDで同僚を検索する。見つからない場合はnilを返す。
	FindByExternalID(ctx context.Context, externalID string) (*model.Workmate, error)

	// Create は同僚を作成する。
	Create(ctx context.Context, workmate *model.Workmate) error

	// UpdateNotificationEnabled は通知設定を更新する。
	UpdateNotificationEnabled(ctx context.Context, externalID string, enabled bool) error

	// UpdatePushEndpoint はプッシュ通知の配信先を更新する。
	UpdatePushEndpoint(ctx context.Context, externalID, endpoint string) error

	// List は全同僚を名前順で取得する。
	List(ctx context.Context) ([]*model.Workmate, error)

	// Count は同僚の件数を返す。
	Count(ctx context.Context) (int, error)
}

// LikedRestaurantRepository はお気に入りレストランの永続化インターフェース。
type LikedRestaurantRepository interface {
	// Add はお気に入りを追加する。既に存在する場合は何もしない。
	Add(ctx context.Context, liked *model.LikedRestaurant) error

	// Remove はお気に入りを削除し、削除件数を返す。
	Remove(ctx context.Context, workmateID, name string) (int64, error)

	// Exists はお気に入りの存在を確認する。
	Exists(ctx context.Context, workmateID, name string) (bool, error)

	// ListNames は同僚のお気に入りレストラン名を取得する。
	ListNames(ctx context.Context, workmateID string) ([]string, error)
}

// LunchFilter はランチ検索の等価条件を表す。空のフィールドは条件に含めない。
type LunchFilter struct {
	Date               string
	WorkmateExternalID string
	RestaurantName     string
}

// LunchRepository はランチデータの永続化インターフェース。
type LunchRepository interface {
	// Upsert はランチを複合キー（同僚・日付）で書き込む。
	// 同じ日の既存ランチは置き換えられる。
	Upsert(ctx context.Context, lunch *model.Lunch) error

	// Find は条件に一致するランチを作成順で取得する。
	Find(ctx context.Context, filter LunchFilter) ([]*model.Lunch, error)

	// Count は条件に一致するランチの件数を返す。
	Count(ctx context.Context, filter LunchFilter) (int64, error)

	// Delete は条件に一致するランチをすべて削除する。
	// matchedは削除前に一致した件数、deletedは実際に削除された件数。
	Delete(ctx context.Context, filter LunchFilter) (matched, deleted int64, err error)
}

// LunchPruner は保持期間を過ぎたランチを削除する。
// 日付キーは辞書順で比較できる形式（2006-01-02T00:00:00Z）であることを前提とする。
type LunchPruner interface {
	// DeleteBefore は日付キーがbeforeより前のランチを削除し、削除件数を返す。
	DeleteBefore(ctx context.Context, before string) (int64, error)
}
