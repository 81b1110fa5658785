package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/hitoshi/hitouch/internal/motion"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	StoreDriver string
	DatabaseURL string

	// Upload
	UploadDir       string
	UploadMaxSize   int64
	AvatarSize      int
	AvatarRetention time.Duration
	CleanupInterval time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitUpload  int

	// Posts
	PostsFetchTimeout time.Duration
	PostsCacheTTL     time.Duration
	PostsLimit        int

	// Motion
	Motion motion.Options

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// デフォルトのアップロード上限（4.5 MB）。
const defaultUploadMaxSize = "4.5MB"

// LoadDotEnv は.envファイルを環境変数に読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や値が解釈できない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.StoreDriver = getEnvString("STORE_DRIVER", "postgres")
	if cfg.StoreDriver != "postgres" && cfg.StoreDriver != "sqlite" {
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q (postgres or sqlite)", cfg.StoreDriver)
	}

	model, err := motion.ParseModel(os.Getenv("MOTION_MODEL"))
	if err != nil {
		return nil, fmt.Errorf("invalid MOTION_MODEL: %w", err)
	}

	// Optional fields with defaults
	cfg.UploadDir = getEnvString("UPLOAD_DIR", "./data/blobs")
	cfg.UploadMaxSize = getEnvBytes("UPLOAD_MAX_SIZE", defaultUploadMaxSize)
	cfg.AvatarSize = getEnvInt("AVATAR_SIZE", 400)
	cfg.AvatarRetention = getEnvDuration("AVATAR_RETENTION", 24*time.Hour)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 10)
	cfg.PostsFetchTimeout = getEnvDuration("POSTS_FETCH_TIMEOUT", 10*time.Second)
	cfg.PostsCacheTTL = getEnvDuration("POSTS_CACHE_TTL", 30*time.Minute)
	cfg.PostsLimit = getEnvInt("POSTS_LIMIT", 5)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	cfg.Motion = motion.Options{
		Sensitivity:  getEnvFloat("MOTION_SENSITIVITY", motion.DefaultSensitivity),
		Smoothing:    getEnvFloat("MOTION_SMOOTHING", motion.DefaultSmoothing),
		MaxRotation:  getEnvFloat("MOTION_MAX_ROTATION", motion.DefaultMaxRotation),
		Decay:        getEnvFloat("MOTION_DECAY", motion.DefaultDecay),
		PointerScale: getEnvFloat("MOTION_POINTER_SCALE", motion.DefaultPointerScale),
		Model:        model,
	}

	return cfg, nil
}

// ProfileURL はプロフィールの公開URLを返す。
func (c *Config) ProfileURL(id string) string {
	return c.BaseURL + "/profile/" + id
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

// getEnvBytes は "4.5MB" や "512KiB" のようなサイズ表記をバイト数として読み込む。
func getEnvBytes(key, defaultVal string) int64 {
	v := getEnvString(key, defaultVal)
	n, err := humanize.ParseBytes(v)
	if err != nil || n == 0 {
		n, _ = humanize.ParseBytes(defaultVal)
	}
	return int64(n)
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
