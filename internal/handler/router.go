package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lunchmate/internal/metrics"
	"github.com/hitoshi/lunchmate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Auth              middleware.AuthConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	HealthChecker HealthChecker

	// ドメイン
	Directory DirectoryServiceInterface
	Finder    RestaurantFinderInterface
	Ledger    LunchLedgerInterface
	Locations LocationTrackerInterface
	Devices   DeviceRegistrar
	Search    SearchDefaults

	// Stream はランチ変更イベントのWebSocket配信ハンドラー。nilの場合は登録しない。
	Stream http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → Auth → RateLimit(General)
//
// /health と /metrics は認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	meHandler := NewMeHandler(deps.Directory, deps.Ledger, deps.Locations, deps.Devices, logger)
	restaurantHandler := NewRestaurantHandler(deps.Directory, deps.Finder, deps.Ledger, deps.Locations, deps.Search, logger)
	lunchHandler := NewLunchHandler(deps.Directory, deps.Ledger)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Auth))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Route("/api/me", func(r chi.Router) {
			r.Get("/", meHandler.GetMe)
			r.Put("/settings", meHandler.UpdateSettings)
			r.Put("/device", meHandler.RegisterDevice)
			r.Get("/location", meHandler.GetLocation)
			r.Post("/location", meHandler.ReportLocation)
		})

		r.Route("/api/restaurants", func(r chi.Router) {
			// GET /api/restaurants - 周辺検索（検索専用レート制限を追加）
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.SearchMiddleware()).Get("/", restaurantHandler.ListNearby)
			} else {
				r.Get("/", restaurantHandler.ListNearby)
			}

			r.Route("/{placeID}", func(r chi.Router) {
				r.Get("/", restaurantHandler.GetRestaurant)
				r.Put("/choice", restaurantHandler.UpdateChoice)
				r.Put("/like", restaurantHandler.UpdateLike)
			})
		})

		r.Route("/api/lunches/today", func(r chi.Router) {
			r.Get("/", lunchHandler.ListTodayLunches)
			r.Get("/restaurants", lunchHandler.ListTodayRestaurantNames)
		})

		r.Get("/api/workmates", lunchHandler.ListWorkmates)

		if deps.Stream != nil {
			r.Handle("/api/stream", deps.Stream)
		}
	})

	return r
}
