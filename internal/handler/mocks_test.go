package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lunchmate/internal/directory"
	"github.com/hitoshi/lunchmate/internal/ledger"
	"github.com/hitoshi/lunchmate/internal/location"
	"github.com/hitoshi/lunchmate/internal/middleware"
	"github.com/hitoshi/lunchmate/internal/model"
)

// --- モック定義 ---

// mockDirectory はDirectoryServiceInterfaceのモック実装。
// resolveFnが未設定の場合、外部IDから同僚を組み立てて返す。
type mockDirectory struct {
	resolveFn       func(ctx context.Context, identity model.Identity) (*directory.Session, error)
	setNotifFn      func(ctx context.Context, sess *directory.Session, enabled bool) error
	setEndpointFn   func(ctx context.Context, sess *directory.Session, endpoint string) error
	listWorkmatesFn func(ctx context.Context) ([]*model.Workmate, error)
	isLikedFn       func(ctx context.Context, sess *directory.Session, name string) (bool, error)
	likedNamesFn    func(ctx context.Context, sess *directory.Session) ([]string, error)
	toggleLikeFn    func(ctx context.Context, sess *directory.Session, name string, like bool) (bool, error)
}

func (m *mockDirectory) Resolve(ctx context.Context, identity model.Identity) (*directory.Session, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, identity)
	}
	return &directory.Session{
		Identity: identity,
		Workmate: &model.Workmate{ID: "wm-" + identity.ExternalID, ExternalID: identity.ExternalID, Name: identity.Name},
	}, nil
}

func (m *mockDirectory) SetNotificationEnabled(ctx context.Context, sess *directory.Session, enabled bool) error {
	if m.setNotifFn != nil {
		return m.setNotifFn(ctx, sess, enabled)
	}
	sess.Workmate.NotificationEnabled = enabled
	return nil
}

func (m *mockDirectory) SetPushEndpoint(ctx context.Context, sess *directory.Session, endpoint string) error {
	if m.setEndpointFn != nil {
		return m.setEndpointFn(ctx, sess, endpoint)
	}
	sess.Workmate.PushEndpoint = endpoint
	return nil
}

func (m *mockDirectory) ListWorkmates(ctx context.Context) ([]*model.Workmate, error) {
	if m.listWorkmatesFn != nil {
		return m.listWorkmatesFn(ctx)
	}
	return nil, nil
}

func (m *mockDirectory) IsLiked(ctx context.Context, sess *directory.Session, name string) (bool, error) {
	if m.isLikedFn != nil {
		return m.isLikedFn(ctx, sess, name)
	}
	return false, nil
}

func (m *mockDirectory) LikedNames(ctx context.Context, sess *directory.Session) ([]string, error) {
	if m.likedNamesFn != nil {
		return m.likedNamesFn(ctx, sess)
	}
	return nil, nil
}

func (m *mockDirectory) ToggleLike(ctx context.Context, sess *directory.Session, name string, like bool) (bool, error) {
	if m.toggleLikeFn != nil {
		return m.toggleLikeFn(ctx, sess, name, like)
	}
	return like, nil
}

// mockFinder はRestaurantFinderInterfaceのモック実装。
type mockFinder struct {
	getNearbyFn func(ctx context.Context, center model.LatLng, radius int, category string) ([]model.Restaurant, error)
	getDetailFn func(ctx context.Context, placeID string) (*model.Restaurant, error)
}

func (m *mockFinder) GetNearby(ctx context.Context, center model.LatLng, radius int, category string) ([]model.Restaurant, error) {
	if m.getNearbyFn != nil {
		return m.getNearbyFn(ctx, center, radius, category)
	}
	return nil, nil
}

func (m *mockFinder) GetDetail(ctx context.Context, placeID string) (*model.Restaurant, error) {
	if m.getDetailFn != nil {
		return m.getDetailFn(ctx, placeID)
	}
	return &model.Restaurant{ID: placeID, Name: "Restaurant " + placeID}, nil
}

func (m *mockFinder) PhotoURL(reference string) string {
	return "https://photos.example.com/" + reference
}

// mockLedger はLunchLedgerInterfaceのモック実装。
type mockLedger struct {
	fetchTodayFn   func(ctx context.Context) ([]*model.Lunch, error)
	attendeesFn    func(ctx context.Context, restaurant model.Restaurant) ([]model.WorkmateSnapshot, error)
	namesFn        func(ctx context.Context) ([]string, error)
	hasChosenFn    func(ctx context.Context, restaurant model.Restaurant, externalID string) (bool, error)
	todayLunchFn   func(ctx context.Context, externalID string) (*model.Lunch, error)
	toggleChoiceFn func(ctx context.Context, workmate *model.Workmate, restaurant model.Restaurant, choose bool) (bool, error)
	withLunchFn    func(ctx context.Context, workmates []*model.Workmate, query string) ([]ledger.WorkmateLunch, error)
}

func (m *mockLedger) FetchTodayLunches(ctx context.Context) ([]*model.Lunch, error) {
	if m.fetchTodayFn != nil {
		return m.fetchTodayFn(ctx)
	}
	return nil, nil
}

func (m *mockLedger) FetchTodayWorkmatesAtRestaurant(ctx context.Context, restaurant model.Restaurant) ([]model.WorkmateSnapshot, error) {
	if m.attendeesFn != nil {
		return m.attendeesFn(ctx, restaurant)
	}
	return nil, nil
}

func (m *mockLedger) FetchTodayLunchRestaurantNames(ctx context.Context) ([]string, error) {
	if m.namesFn != nil {
		return m.namesFn(ctx)
	}
	return nil, nil
}

func (m *mockLedger) HasChosen(ctx context.Context, restaurant model.Restaurant, externalID string) (bool, error) {
	if m.hasChosenFn != nil {
		return m.hasChosenFn(ctx, restaurant, externalID)
	}
	return false, nil
}

func (m *mockLedger) TodayLunch(ctx context.Context, externalID string) (*model.Lunch, error) {
	if m.todayLunchFn != nil {
		return m.todayLunchFn(ctx, externalID)
	}
	return nil, nil
}

func (m *mockLedger) ToggleChoice(ctx context.Context, workmate *model.Workmate, restaurant model.Restaurant, choose bool) (bool, error) {
	if m.toggleChoiceFn != nil {
		return m.toggleChoiceFn(ctx, workmate, restaurant, choose)
	}
	return choose, nil
}

func (m *mockLedger) WorkmatesWithLunch(ctx context.Context, workmates []*model.Workmate, query string) ([]ledger.WorkmateLunch, error) {
	if m.withLunchFn != nil {
		return m.withLunchFn(ctx, workmates, query)
	}
	return nil, nil
}

// mockDevices はDeviceRegistrarのモック実装。
type mockDevices struct {
	registerFn func(ctx context.Context, platform, token string) (string, error)
}

func (m *mockDevices) RegisterDevice(ctx context.Context, platform, token string) (string, error) {
	return m.registerFn(ctx, platform, token)
}

// mockPinger はHealthCheckerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

// --- ヘルパー ---

// newTestLogger はバッファに出力するテスト用ロガーを返す。
func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// withIdentity はテスト用にリクエストコンテキストへ外部IDを注入するヘルパー。
func withIdentity(r *http.Request, externalID string) *http.Request {
	ctx := middleware.ContextWithIdentity(r.Context(), model.Identity{ExternalID: externalID, Name: "Name " + externalID})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// availableAt は指定座標で測位済みの位置情報状態を持つトラッカーを返す。
func availableAt(externalID string, loc model.LatLng) *location.Registry {
	reg := location.NewRegistry()
	reg.Report(externalID, true, &loc)
	return reg
}
