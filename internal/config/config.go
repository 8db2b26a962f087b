package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ストアドライバ
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// プッシュ通知の配信方式
const (
	PushProviderLog = "log"
	PushProviderSNS = "sns"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	// Places
	PlacesAPIKey   string
	PlacesBaseURL  string
	PlacesTimeout  time.Duration
	PlacesQPS      int
	SearchRadius   int
	SearchCategory string

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Reminder
	ReminderHour          int
	ReminderMinute        int
	ReminderLocation      *time.Location
	ReminderMaxConcurrent int

	// Push
	PushProvider      string
	AWSRegion         string
	SNSPlatformAppARN string

	// Cleanup
	LunchRetentionDays int
	CleanupInterval    time.Duration

	// Rate Limit
	RateLimitGeneral int

	// Seed
	SeedWorkmates int
	SeedLatitude  float64
	SeedLongitude float64

	// Server
	ServerPort string
	// MetricsPort はworkerがメトリクスを公開するポート。空の場合は公開しない。
	MetricsPort string

	// CORS
	CORSAllowedOrigin string
}

// LoadDotEnv は.envファイルを環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.StoreDriver = getEnvString("STORE_DRIVER", StoreDriverPostgres)
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreDriverMongo:
		cfg.MongoURI = os.Getenv("MONGO_URI")
		if cfg.MongoURI == "" {
			missing = append(missing, "MONGO_URI")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER: %q", cfg.StoreDriver)
	}

	cfg.PlacesAPIKey = os.Getenv("PLACES_API_KEY")
	if cfg.PlacesAPIKey == "" {
		missing = append(missing, "PLACES_API_KEY")
	}

	cfg.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}

	cfg.PushProvider = getEnvString("PUSH_PROVIDER", PushProviderLog)
	switch cfg.PushProvider {
	case PushProviderLog:
	case PushProviderSNS:
		cfg.SNSPlatformAppARN = os.Getenv("SNS_PLATFORM_APPLICATION_ARN")
		if cfg.SNSPlatformAppARN == "" {
			missing = append(missing, "SNS_PLATFORM_APPLICATION_ARN")
		}
	default:
		return nil, fmt.Errorf("unsupported PUSH_PROVIDER: %q", cfg.PushProvider)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	hour, minute, err := ParseClock(getEnvString("REMINDER_TIME", "12:00"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TIME: %w", err)
	}
	cfg.ReminderHour, cfg.ReminderMinute = hour, minute

	loc, err := time.LoadLocation(getEnvString("REMINDER_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TIMEZONE: %w", err)
	}
	cfg.ReminderLocation = loc

	// Optional fields with defaults
	cfg.MongoDatabase = getEnvString("MONGO_DATABASE", "lunchmate")
	cfg.PlacesBaseURL = getEnvString("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place")
	cfg.PlacesTimeout = getEnvDuration("PLACES_TIMEOUT", 10*time.Second)
	cfg.PlacesQPS = getEnvInt("PLACES_QPS", 10)
	cfg.SearchRadius = getEnvInt("SEARCH_RADIUS", 500)
	cfg.SearchCategory = getEnvString("SEARCH_CATEGORY", "restaurant")
	cfg.JWTIssuer = getEnvString("AUTH_JWT_ISSUER", "")
	cfg.JWTAudience = getEnvString("AUTH_JWT_AUDIENCE", "")
	cfg.ReminderMaxConcurrent = getEnvInt("REMINDER_MAX_CONCURRENT", 10)
	cfg.AWSRegion = getEnvString("AWS_REGION", "ap-northeast-1")
	cfg.LunchRetentionDays = getEnvInt("LUNCH_RETENTION_DAYS", 30)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.SeedWorkmates = getEnvInt("SEED_WORKMATES", 40)
	cfg.SeedLatitude = getEnvFloat("SEED_LATITUDE", 48.8566)
	cfg.SeedLongitude = getEnvFloat("SEED_LONGITUDE", 2.3522)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("WORKER_METRICS_PORT", "9090")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ParseClock は "HH:MM" 形式の時刻を時・分に分解する。
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
