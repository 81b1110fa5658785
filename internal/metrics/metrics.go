// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー層とワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(route string, duration time.Duration)
	RecordProfileOperation(op string)
	RecordAvatarStored(source string, size int64)
	RecordAvatarRejected(source, reason string)
	RecordQRRendered()
	RecordMotionReplay(model string, frames int)
	RecordBlobsCleaned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	profileOps     *prometheus.CounterVec
	avatarStored   *prometheus.CounterVec
	avatarRejected *prometheus.CounterVec
	avatarBytes    prometheus.Histogram
	qrRendered     prometheus.Counter
	motionReplays  *prometheus.CounterVec
	replayFrames   prometheus.Histogram
	blobsCleaned   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitouch_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hitouch_request_latency_seconds",
			Help:    "ルート別のリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		profileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitouch_profile_operations_total",
			Help: "プロフィールの作成・更新・削除の合計数",
		}, []string{"op"}),
		avatarStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitouch_avatar_stored_total",
			Help: "保存されたアバター画像の合計数",
		}, []string{"source"}),
		avatarRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitouch_avatar_rejected_total",
			Help: "拒否されたアバター画像の合計数",
		}, []string{"source", "reason"}),
		avatarBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hitouch_avatar_stored_bytes",
			Help:    "変換後のアバター画像サイズ（バイト）",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 8),
		}),
		qrRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitouch_qr_rendered_total",
			Help: "生成したQRコード画像の合計数",
		}),
		motionReplays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitouch_motion_replays_total",
			Help: "モーション再生の実行回数",
		}, []string{"model"}),
		replayFrames: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hitouch_motion_replay_frames",
			Help:    "モーション再生1回あたりのフレーム数",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		}),
		blobsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitouch_blobs_cleaned_total",
			Help: "クリーンアップで削除されたアバター画像の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.profileOps,
		c.avatarStored,
		c.avatarRejected,
		c.avatarBytes,
		c.qrRendered,
		c.motionReplays,
		c.replayFrames,
		c.blobsCleaned,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はルートパターン別の処理時間を記録する。
func (c *Collector) RecordRequestLatency(route string, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordProfileOperation はプロフィール操作（create/update/delete）を記録する。
func (c *Collector) RecordProfileOperation(op string) {
	c.profileOps.WithLabelValues(op).Inc()
}

// RecordAvatarStored はアバター画像の保存を記録する。sourceはupload/import。
func (c *Collector) RecordAvatarStored(source string, size int64) {
	c.avatarStored.WithLabelValues(source).Inc()
	c.avatarBytes.Observe(float64(size))
}

// RecordAvatarRejected はアバター画像の拒否をエラーコード別に記録する。
func (c *Collector) RecordAvatarRejected(source, reason string) {
	c.avatarRejected.WithLabelValues(source, reason).Inc()
}

// RecordQRRendered はQRコード画像の生成を記録する。
func (c *Collector) RecordQRRendered() {
	c.qrRendered.Inc()
}

// RecordMotionReplay はモーション再生の実行とフレーム数を記録する。
func (c *Collector) RecordMotionReplay(model string, frames int) {
	c.motionReplays.WithLabelValues(model).Inc()
	c.replayFrames.Observe(float64(frames))
}

// RecordBlobsCleaned はクリーンアップで削除したファイル数を記録する。
func (c *Collector) RecordBlobsCleaned(count int) {
	c.blobsCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
