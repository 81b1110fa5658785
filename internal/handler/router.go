package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/hitouch/internal/metrics"
	"github.com/hitoshi/hitouch/internal/middleware"
	"github.com/hitoshi/hitouch/internal/motion"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HealthChecker     HealthChecker

	// メトリクス。Gathererがnilの場合は/metricsを公開しない
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer

	// プロフィール
	ProfileService ProfileServiceInterface
	ProfileURL     func(id string) string

	// アバター画像
	AvatarService AvatarServiceInterface
	// BlobHandler は/blobs/*で保存済みファイルを配信する
	BlobHandler http.Handler

	// 最近の記事
	PostsService PostsFetcher

	// モーション再生
	MotionDefaults motion.Options
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS → RateLimit(General)
//
// /health、/metrics、/blobs/* はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.NewCollector(prometheus.NewRegistry())
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(mc))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(middleware.NotFoundHandler())
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler())

	profileHandler := NewProfileHandler(deps.ProfileService, deps.ProfileURL, mc)
	avatarHandler := NewAvatarHandler(deps.AvatarService, mc)
	qrHandler := NewQRHandler(deps.ProfileService, deps.ProfileURL, mc)
	postsHandler := NewPostsHandler(deps.ProfileService, deps.PostsService)
	motionHandler := NewMotionHandler(deps.MotionDefaults, logger, mc)

	// --- 運用系エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	if deps.BlobHandler != nil {
		r.Method(http.MethodGet, "/blobs/*", deps.BlobHandler)
		r.Method(http.MethodHead, "/blobs/*", deps.BlobHandler)
	}

	// --- API ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プロフィール管理
		r.Route("/api/profiles", func(r chi.Router) {
			r.Get("/", profileHandler.ListProfiles)
			r.Post("/", profileHandler.CreateProfile)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", profileHandler.GetProfile)
				r.Put("/", profileHandler.UpdateProfile)
				r.Delete("/", profileHandler.DeleteProfile)

				// カード裏面のQRコード
				r.Get("/qr.png", qrHandler.Render)
				// Zennの最近の記事
				r.Get("/posts", postsHandler.ListPosts)
			})
		})

		// アバター画像（アップロード専用レート制限を追加）
		r.Route("/api/avatar", func(r chi.Router) {
			r.Use(deps.RateLimiter.UploadMiddleware())
			r.Post("/upload", avatarHandler.Upload)
			r.Post("/import", avatarHandler.Import)
		})

		// モーション再生
		r.Post("/api/motion/replay", motionHandler.Replay)
	})

	return r
}
