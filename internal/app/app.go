package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/lunchmate/internal/config"
	"github.com/hitoshi/lunchmate/internal/database"
	"github.com/hitoshi/lunchmate/internal/directory"
	"github.com/hitoshi/lunchmate/internal/finder"
	"github.com/hitoshi/lunchmate/internal/handler"
	"github.com/hitoshi/lunchmate/internal/ledger"
	"github.com/hitoshi/lunchmate/internal/location"
	"github.com/hitoshi/lunchmate/internal/logger"
	"github.com/hitoshi/lunchmate/internal/metrics"
	"github.com/hitoshi/lunchmate/internal/middleware"
	"github.com/hitoshi/lunchmate/internal/model"
	"github.com/hitoshi/lunchmate/internal/notify"
	"github.com/hitoshi/lunchmate/internal/places"
	"github.com/hitoshi/lunchmate/internal/realtime"
	"github.com/hitoshi/lunchmate/internal/repository"
	"github.com/hitoshi/lunchmate/internal/security"
	"github.com/hitoshi/lunchmate/internal/seed"
	"github.com/hitoshi/lunchmate/internal/worker/cleanup"
	"github.com/hitoshi/lunchmate/internal/worker/reminder"
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（LOG_LEVELを反映するためログ初期化より前）
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	// 2. ログの初期化
	logger.SetupDefault(w)

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store_driver", cfg.StoreDriver),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// stores はストアドライバごとのリポジトリ実装をまとめる。
type stores struct {
	workmates repository.WorkmateRepository
	liked     repository.LikedRestaurantRepository
	lunches   repository.LunchRepository
	pruner    repository.LunchPruner
	pinger    handler.HealthChecker
	close     func()
}

// openStores は設定されたストアドライバに接続し、リポジトリを初期化する。
// 接続確認に失敗した場合はエラーを返す。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, db, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}

		pinger := database.MongoPinger{Client: client}
		if err := pinger.PingContext(ctx); err != nil {
			closeFn()
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}

		lunches := repository.NewMongoLunchRepo(db, database.CollectionLunches)
		return &stores{
			workmates: repository.NewMongoWorkmateRepo(db, database.CollectionWorkmates),
			liked:     repository.NewMongoLikedRestaurantRepo(db, database.CollectionLikedRestaurants),
			lunches:   lunches,
			pruner:    lunches,
			pinger:    pinger,
			close:     closeFn,
		}, nil

	default:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		lunches := repository.NewPostgresLunchRepo(db)
		return &stores{
			workmates: repository.NewPostgresWorkmateRepo(db),
			liked:     repository.NewPostgresLikedRestaurantRepo(db),
			lunches:   lunches,
			pruner:    lunches,
			pinger:    db,
			close:     func() { db.Close() },
		}, nil
	}
}

// newFinder はSSRF対策済みのHTTPクライアントでPlaces APIクライアントを構築する。
func newFinder(cfg *config.Config, mc metrics.MetricsCollector, log *slog.Logger) *finder.Finder {
	guard := security.NewOutboundGuard()
	client := places.NewClient(
		guard.NewSafeClient(cfg.PlacesTimeout),
		log,
		cfg.PlacesAPIKey,
		places.WithBaseURL(cfg.PlacesBaseURL),
		places.WithRateLimit(cfg.PlacesQPS),
	)
	return finder.NewFinder(client, security.NewTextSanitizer(), mc, log)
}

// newNotifier はPUSH_PROVIDERに応じたNotifierを構築する。
// SNSの場合は端末登録にも使うため、DeviceRegistrarとしても返す。
func newNotifier(ctx context.Context, cfg *config.Config, log *slog.Logger) (notify.Notifier, handler.DeviceRegistrar, error) {
	if cfg.PushProvider != config.PushProviderSNS {
		return notify.NewLogNotifier(log), nil, nil
	}

	client, err := notify.NewSNSClient(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, nil, err
	}
	n := notify.NewSNSNotifier(client, cfg.SNSPlatformAppARN, log)
	return n, n, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()
	log := slog.Default()

	// 1. ストア接続とリポジトリの初期化
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	slog.Info("store connection established", slog.String("driver", cfg.StoreDriver))

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc := metrics.NewCollector(reg)

	// 3. ドメインサービスの初期化
	hub := realtime.NewHub(cfg.CORSAllowedOrigin, mc, log)
	dir := directory.NewService(st.workmates, st.liked, security.NewOutboundGuard(), log)
	lunchLedger := ledger.NewLedger(st.lunches, hub, mc, log)
	restaurantFinder := newFinder(cfg, mc, log)
	locations := location.NewRegistry()

	_, devices, err := newNotifier(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize push provider: %w", err)
	}

	// 4. ルーターの構築
	// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger: log,
		Auth: middleware.AuthConfig{
			Secret:   []byte(cfg.JWTSecret),
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           mc,
		Gatherer:          reg,
		HealthChecker:     st.pinger,
		Directory:         dir,
		Finder:            restaurantFinder,
		Ledger:            lunchLedger,
		Locations:         locations,
		Devices:           devices,
		Search: handler.SearchDefaults{
			Radius:   cfg.SearchRadius,
			Category: cfg.SearchCategory,
		},
		Stream: http.HandlerFunc(hub.ServeWS),
	})

	// 5. HTTPサーバーの起動
	// WebSocketの長時間接続を妨げないよう、WriteTimeoutは設定しない
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// ストアに接続し、リマインダースケジューラとランチのクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	log := slog.Default()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. ストア接続
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	slog.Info("store connection established (worker)", slog.String("driver", cfg.StoreDriver))

	// 2. サービスの初期化
	// ワーカーにはリアルタイム配信の購読者がいないため、publisherは渡さない
	dir := directory.NewService(st.workmates, st.liked, nil, log)
	lunchLedger := ledger.NewLedger(st.lunches, nil, nil, log)

	notifier, _, err := newNotifier(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize push provider: %w", err)
	}

	reg := prometheus.NewRegistry()
	mc := metrics.NewCollector(reg)

	// 3. リマインダーとスケジューラ
	runner := notify.NewReminder(dir, lunchLedger, notifier, mc, log)
	scheduler := reminder.NewScheduler(
		dir, runner, log,
		cfg.ReminderHour, cfg.ReminderMinute, cfg.ReminderLocation,
		cfg.ReminderMaxConcurrent,
	)

	// 4. クリーンアップジョブ
	cleanupJob := cleanup.NewCleanupJob(st.pruner, log)
	if cfg.LunchRetentionDays > 0 {
		cleanupJob.RetentionDays = cfg.LunchRetentionDays
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("reminder_hour", cfg.ReminderHour),
		slog.Int("reminder_minute", cfg.ReminderMinute),
		slog.Int("max_concurrent", cfg.ReminderMaxConcurrent),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// メトリクスの公開
	var metricsServer *http.Server
	if cfg.MetricsPort != "" {
		metricsServer = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metrics.SetupMetricsRoute(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server listen error", slog.String("error", err.Error()))
			}
		}()
	}

	// クリーンアップジョブをバックグラウンドで実行
	go cleanupJob.Start(ctx, cfg.CleanupInterval)

	// リマインダースケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	if metricsServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はスキーマの準備を行う。
// PostgreSQLでは未適用マイグレーションを順番に適用し、MongoDBではインデックスを作成する。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreDriver == config.StoreDriverMongo {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client, db, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())

		slog.Info("ensuring mongo indexes", slog.String("database", cfg.MongoDatabase))
		if err := database.EnsureMongoIndexes(ctx, db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("mongo indexes are up to date")
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrationsWithVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runSeed は開発用のダミー同僚と当日のランチを投入する。
func runSeed(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	log := slog.Default()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	seeder := seed.NewSeeder(
		st.workmates,
		newFinder(cfg, nil, log),
		ledger.NewLedger(st.lunches, nil, nil, log),
		seed.Config{
			Workmates: cfg.SeedWorkmates,
			Center:    model.LatLng{Lat: cfg.SeedLatitude, Lng: cfg.SeedLongitude},
			Radius:    cfg.SearchRadius,
			Category:  cfg.SearchCategory,
		},
		log,
	)

	if _, err := seeder.Run(ctx); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

var _ handler.HealthChecker = (*sql.DB)(nil)
