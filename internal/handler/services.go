package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/lunchmate/internal/directory"
	"github.com/hitoshi/lunchmate/internal/ledger"
	"github.com/hitoshi/lunchmate/internal/location"
	"github.com/hitoshi/lunchmate/internal/middleware"
	"github.com/hitoshi/lunchmate/internal/model"
)

// DirectoryServiceInterface はハンドラーが必要とする同僚ディレクトリのインターフェース。
type DirectoryServiceInterface interface {
	// Resolve は外部IDに対応する同僚を解決し、存在しなければ作成する。
	Resolve(ctx context.Context, identity model.Identity) (*directory.Session, error)
	SetNotificationEnabled(ctx context.Context, sess *directory.Session, enabled bool) error
	SetPushEndpoint(ctx context.Context, sess *directory.Session, endpoint string) error
	ListWorkmates(ctx context.Context) ([]*model.Workmate, error)
	IsLiked(ctx context.Context, sess *directory.Session, name string) (bool, error)
	LikedNames(ctx context.Context, sess *directory.Session) ([]string, error)
	// ToggleLike はお気に入りを切り替え、再取得した実際の状態を返す。
	ToggleLike(ctx context.Context, sess *directory.Session, name string, like bool) (bool, error)
}

// RestaurantFinderInterface はレストラン検索のインターフェース。
type RestaurantFinderInterface interface {
	GetNearby(ctx context.Context, center model.LatLng, radius int, category string) ([]model.Restaurant, error)
	GetDetail(ctx context.Context, placeID string) (*model.Restaurant, error)
	PhotoURL(reference string) string
}

// LunchLedgerInterface は当日のランチ台帳のインターフェース。
type LunchLedgerInterface interface {
	FetchTodayLunches(ctx context.Context) ([]*model.Lunch, error)
	FetchTodayWorkmatesAtRestaurant(ctx context.Context, restaurant model.Restaurant) ([]model.WorkmateSnapshot, error)
	FetchTodayLunchRestaurantNames(ctx context.Context) ([]string, error)
	HasChosen(ctx context.Context, restaurant model.Restaurant, externalID string) (bool, error)
	TodayLunch(ctx context.Context, externalID string) (*model.Lunch, error)
	// ToggleChoice はランチを登録または取消し、再取得した実際の選択状態を返す。
	ToggleChoice(ctx context.Context, workmate *model.Workmate, restaurant model.Restaurant, choose bool) (bool, error)
	WorkmatesWithLunch(ctx context.Context, workmates []*model.Workmate, query string) ([]ledger.WorkmateLunch, error)
}

// LocationTrackerInterface は同僚ごとの位置情報状態のインターフェース。
type LocationTrackerInterface interface {
	Report(externalID string, permission bool, loc *model.LatLng) location.Status
	Status(externalID string) location.Status
}

// DeviceRegistrar はプッシュ通知の端末登録を行う。
type DeviceRegistrar interface {
	// RegisterDevice は端末トークンを登録し、配信先の識別子を返す。
	RegisterDevice(ctx context.Context, platform, token string) (string, error)
}

// HealthChecker はストアの疎通確認を行う。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// resolveSession は認証済みの外部IDから同僚セッションを解決する。
// 失敗した場合はエラーレスポンスを書き込み、nilを返す。
func resolveSession(w http.ResponseWriter, r *http.Request, dir DirectoryServiceInterface) *directory.Session {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil
	}

	sess, err := dir.Resolve(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return nil
	}
	return sess
}
