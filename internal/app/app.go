package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/hitouch/internal/avatar"
	"github.com/hitoshi/hitouch/internal/blob"
	"github.com/hitoshi/hitouch/internal/config"
	"github.com/hitoshi/hitouch/internal/database"
	"github.com/hitoshi/hitouch/internal/handler"
	"github.com/hitoshi/hitouch/internal/logger"
	"github.com/hitoshi/hitouch/internal/metrics"
	"github.com/hitoshi/hitouch/internal/middleware"
	"github.com/hitoshi/hitouch/internal/posts"
	"github.com/hitoshi/hitouch/internal/preview"
	"github.com/hitoshi/hitouch/internal/profile"
	"github.com/hitoshi/hitouch/internal/repository"
	"github.com/hitoshi/hitouch/internal/security"
	"github.com/hitoshi/hitouch/internal/worker/cleanup"
)

const (
	// blobURLPrefix はアップロード画像の公開パス。
	blobURLPrefix = "/blobs"
	// postsMaxResponseSize はZennのページ・フィード取得時のレスポンス上限。
	postsMaxResponseSize = 5 << 20
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. .envファイルと環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// .envでLOG_LEVELが指定された場合に反映する
	logger.SetupDefault(w, cfg.LogLevel)

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

	if cmd == CommandPreview {
		if len(args) < 2 || args[1] == "" {
			return errors.New("usage: hitouch preview <profile-id>")
		}
		// 端末描画と混ざらないようログは捨てる
		w = io.Discard
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandPreview:
		return runPreview(cfg, args[1])
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("store_driver", cfg.StoreDriver),
	)
	return db, nil
}

// newPostsService はZenn記事取得サービスを構築する。
func newPostsService(cfg *config.Config, guard security.SSRFGuard, sanitizer security.TextSanitizer) *posts.Service {
	return posts.NewService(
		guard,
		guard.NewSafeClient(cfg.PostsFetchTimeout, postsMaxResponseSize),
		sanitizer,
		cfg.PostsCacheTTL,
		cfg.PostsLimit,
		slog.Default(),
	)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	profileRepo := repository.NewSQLProfileRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 4. ブロブストアの初期化
	store, err := blob.NewLocalStore(cfg.UploadDir, blobURLPrefix)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}

	// 5. ドメインサービスの初期化
	profileService := profile.NewService(profileRepo, sanitizer)
	avatarService := avatar.NewService(
		store, ssrfGuard,
		ssrfGuard.NewSafeClient(cfg.PostsFetchTimeout, cfg.UploadMaxSize),
		cfg.AvatarSize, cfg.UploadMaxSize,
		slog.Default(),
	)
	postsService := newPostsService(cfg, ssrfGuard, sanitizer)

	// 6. メトリクス
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitUpload),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HealthChecker:     db,

		Metrics:         collector,
		MetricsGatherer: prometheus.DefaultGatherer,

		ProfileService: profileService,
		ProfileURL:     cfg.ProfileURL,

		AvatarService: avatarService,
		BlobHandler:   store.Handler(),

		PostsService: postsService,

		MotionDefaults: cfg.Motion,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、未参照アバター画像のクリーンアップジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリとブロブストアの初期化
	profileRepo := repository.NewSQLProfileRepo(db)
	store, err := blob.NewLocalStore(cfg.UploadDir, blobURLPrefix)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}

	// 3. クリーンアップジョブの初期化
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	cleanupJob := cleanup.NewCleanupJob(profileRepo, store, collector, slog.Default(), cfg.BaseURL)
	cleanupJob.Retention = cfg.AvatarRetention

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("avatar_retention", cfg.AvatarRetention),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.StoreDriver, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runPreview は指定プロフィールのカードを端末にプレビュー表示する。
func runPreview(cfg *config.Config, profileID string) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	profileService := profile.NewService(repository.NewSQLProfileRepo(db), security.NewTextSanitizer())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := profileService.Get(ctx, profileID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	postsService := newPostsService(cfg, security.NewSSRFGuard(), security.NewTextSanitizer())
	recent := postsService.Recent(ctx, p)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()
	screen.EnableMouse()

	pv := preview.New(screen, p, cfg.ProfileURL(p.ID), recent, cfg.Motion, slog.Default())
	defer pv.Close()

	pv.Run(ctx)
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
