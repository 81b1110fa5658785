// Package cleanup はどのプロフィールからも参照されなくなったアバター画像の自動削除ジョブを提供する。
// アップロード後にプロフィールへ保存されなかった画像や、差し替え前の古い画像が対象。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/hitouch/internal/avatar"
	"github.com/hitoshi/hitouch/internal/model"
)

// ImageURLLister はプロフィールが参照している画像URLの一覧を返す。
type ImageURLLister interface {
	ListImageURLs(ctx context.Context) ([]string, error)
}

// BlobStore はクリーンアップに必要なブロブストアの操作。
type BlobStore interface {
	List(ctx context.Context, prefix string) ([]model.Blob, error)
	Delete(ctx context.Context, pathname string) error
	Pathname(url string) (string, bool)
}

// Recorder は削除件数を記録するメトリクス。
type Recorder interface {
	RecordBlobsCleaned(count int)
}

// CleanupJob は未参照のアバター画像を削除するジョブ。
// 何度実行しても同じ結果になる。
type CleanupJob struct {
	profiles ImageURLLister
	store    BlobStore
	metrics  Recorder
	logger   *slog.Logger
	baseURL  string
	now      func() time.Time

	// Retention はアップロード直後の画像を保護する猶予期間（デフォルト: 24時間）。
	// プロフィール保存前の画像を誤って消さないために使う。
	Retention time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
// baseURLはプロフィールに絶対URLで保存された画像を照合するために使う。
func NewCleanupJob(profiles ImageURLLister, store BlobStore, metrics Recorder, logger *slog.Logger, baseURL string) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		profiles:  profiles,
		store:     store,
		metrics:   metrics,
		logger:    logger,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		now:       time.Now,
		Retention: 24 * time.Hour,
	}
}

// Run は猶予期間を過ぎた未参照の画像を削除し、削除件数を返す。
// 個々の削除失敗はログに残して処理を続ける。
func (j *CleanupJob) Run(ctx context.Context) (int, error) {
	start := j.now()

	urls, err := j.profiles.ListImageURLs(ctx)
	if err != nil {
		j.logger.Error("参照中の画像URLの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("参照中の画像URLの取得に失敗: %w", err)
	}

	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if pathname, ok := j.store.Pathname(strings.TrimPrefix(u, j.baseURL)); ok {
			referenced[pathname] = struct{}{}
		}
	}

	blobs, err := j.store.List(ctx, avatar.PathPrefix)
	if err != nil {
		j.logger.Error("アバター画像一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("アバター画像一覧の取得に失敗: %w", err)
	}

	cutoff := start.Add(-j.Retention)
	deleted := 0
	for _, b := range blobs {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if _, ok := referenced[b.Pathname]; ok {
			continue
		}
		if b.UploadedAt.After(cutoff) {
			continue
		}
		if err := j.store.Delete(ctx, b.Pathname); err != nil {
			j.logger.Warn("アバター画像の削除に失敗しました",
				slog.String("pathname", b.Pathname),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	if j.metrics != nil {
		j.metrics.RecordBlobsCleaned(deleted)
	}

	j.logger.Info("アバター画像クリーンアップジョブが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Int("scanned_count", len(blobs)),
		slog.Int("referenced_count", len(referenced)),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deleted, nil
}

// Start は起動直後に1回実行し、以後intervalごとにRunを実行する。
// ctxがキャンセルされると戻る。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	run := func() {
		if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
