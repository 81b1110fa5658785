package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/hitouch/internal/blob"
	"github.com/hitoshi/hitouch/internal/model"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// mockLister はImageURLListerのモック実装。
type mockLister struct {
	urls []string
	err  error
}

func (m *mockLister) ListImageURLs(ctx context.Context) ([]string, error) {
	return m.urls, m.err
}

// memStore はBlobStoreのインメモリ実装。
type memStore struct {
	blobs     []model.Blob
	listErr   error
	deleteErr map[string]error
	deleted   []string
	listedFor string
}

func (m *memStore) List(ctx context.Context, prefix string) ([]model.Blob, error) {
	m.listedFor = prefix
	return m.blobs, m.listErr
}

func (m *memStore) Delete(ctx context.Context, pathname string) error {
	if err := m.deleteErr[pathname]; err != nil {
		return err
	}
	m.deleted = append(m.deleted, pathname)
	return nil
}

func (m *memStore) Pathname(url string) (string, bool) {
	if !strings.HasPrefix(url, "/blobs/") {
		return "", false
	}
	return strings.TrimPrefix(url, "/blobs/"), true
}

// mockRecorder はRecorderのモック実装。
type mockRecorder struct {
	calls []int
}

func (m *mockRecorder) RecordBlobsCleaned(count int) {
	m.calls = append(m.calls, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestJob(lister ImageURLLister, store BlobStore, rec Recorder, buf *bytes.Buffer) *CleanupJob {
	job := NewCleanupJob(lister, store, rec, newTestLogger(buf), "https://hitouch.example.com/")
	job.now = func() time.Time { return testNow }
	return job
}

func avatarBlob(name string, age time.Duration) model.Blob {
	return model.Blob{
		URL:         "/blobs/avatars/" + name,
		Pathname:    "avatars/" + name,
		ContentType: "image/webp",
		UploadedAt:  testNow.Add(-age),
	}
}

func TestNewCleanupJob_DefaultRetention(t *testing.T) {
	job := NewCleanupJob(&mockLister{}, &memStore{}, nil, nil, "")

	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
	if job.Retention != 24*time.Hour {
		t.Errorf("Retention = %v, want 24h", job.Retention)
	}
}

func TestCleanupJob_Run_DeletesOnlyOldUnreferencedBlobs(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{blobs: []model.Blob{
		avatarBlob("kept-relative.webp", 72*time.Hour),
		avatarBlob("kept-absolute.webp", 72*time.Hour),
		avatarBlob("orphan-old.webp", 48*time.Hour),
		avatarBlob("orphan-fresh.webp", time.Hour),
	}}
	lister := &mockLister{urls: []string{
		"/blobs/avatars/kept-relative.webp",
		"https://hitouch.example.com/blobs/avatars/kept-absolute.webp",
		"https://cdn.example.com/someone-else.png",
	}}
	rec := &mockRecorder{}

	deleted, err := newTestJob(lister, store, rec, &buf).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "avatars/orphan-old.webp" {
		t.Errorf("削除対象 = %v, want [avatars/orphan-old.webp]", store.deleted)
	}
	if store.listedFor != "avatars/" {
		t.Errorf("List prefix = %q, want avatars/", store.listedFor)
	}
	if len(rec.calls) != 1 || rec.calls[0] != 1 {
		t.Errorf("RecordBlobsCleaned calls = %v, want [1]", rec.calls)
	}
}

func TestCleanupJob_Run_RetentionBoundary(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{blobs: []model.Blob{
		avatarBlob("exactly.webp", 24*time.Hour),
		avatarBlob("just-inside.webp", 24*time.Hour-time.Second),
	}}

	deleted, err := newTestJob(&mockLister{}, store, nil, &buf).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	// 猶予期間ちょうどの画像は削除対象、猶予期間内の画像は保護される
	if deleted != 1 || store.deleted[0] != "avatars/exactly.webp" {
		t.Errorf("deleted = %d %v, want [avatars/exactly.webp]", deleted, store.deleted)
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{blobs: []model.Blob{
		avatarBlob("a.webp", 48*time.Hour),
		avatarBlob("b.webp", 48*time.Hour),
	}}

	_, _ = newTestJob(&mockLister{}, store, nil, &buf).Run(context.Background())

	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["deleted_count"] == float64(2) && entry["scanned_count"] == float64(2) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=2 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ListerFailure(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{blobs: []model.Blob{avatarBlob("a.webp", 48*time.Hour)}}
	lister := &mockLister{err: errors.New("connection refused")}

	_, err := newTestJob(lister, store, nil, &buf).Run(context.Background())
	if err == nil {
		t.Fatal("参照URL取得失敗時に Run() はエラーを返すべき")
	}
	// 参照状況が分からない場合は何も削除しない
	if len(store.deleted) != 0 {
		t.Errorf("削除してはならない: %v", store.deleted)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("ERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ListFailure(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{listErr: errors.New("permission denied")}

	if _, err := newTestJob(&mockLister{}, store, nil, &buf).Run(context.Background()); err == nil {
		t.Fatal("一覧取得失敗時に Run() はエラーを返すべき")
	}
}

func TestCleanupJob_Run_ContinuesAfterDeleteFailure(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{
		blobs: []model.Blob{
			avatarBlob("a.webp", 48*time.Hour),
			avatarBlob("b.webp", 48*time.Hour),
		},
		deleteErr: map[string]error{"avatars/a.webp": errors.New("busy")},
	}

	deleted, err := newTestJob(&mockLister{}, store, nil, &buf).Run(context.Background())
	if err != nil {
		t.Fatalf("個別の削除失敗で Run() はエラーを返さない: %v", err)
	}
	if deleted != 1 || store.deleted[0] != "avatars/b.webp" {
		t.Errorf("deleted = %d %v, want [avatars/b.webp]", deleted, store.deleted)
	}
	if !strings.Contains(buf.String(), "WARN") {
		t.Errorf("WARNレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	job := newTestJob(&mockLister{}, &memStore{}, nil, &buf)

	for i := 0; i < 2; i++ {
		deleted, err := job.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() #%d がエラーを返した: %v", i+1, err)
		}
		if deleted != 0 {
			t.Errorf("Run() #%d deleted = %d, want 0", i+1, deleted)
		}
	}
}

func TestCleanupJob_Run_CanceledContext(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{blobs: []model.Blob{avatarBlob("a.webp", 48*time.Hour)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestJob(&mockLister{}, store, nil, &buf).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(store.deleted) != 0 {
		t.Errorf("キャンセル後に削除してはならない: %v", store.deleted)
	}
}

// chanRecorder は実行完了をチャネルで通知するRecorder。
type chanRecorder chan int

func (c chanRecorder) RecordBlobsCleaned(count int) {
	c <- count
}

func TestCleanupJob_Start_StopsOnCancel(t *testing.T) {
	rec := make(chanRecorder, 1)
	job := NewCleanupJob(&mockLister{}, &memStore{}, rec, slog.New(slog.DiscardHandler), "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の1回目の実行を待つ
	select {
	case <-rec:
	case <-time.After(2 * time.Second):
		t.Fatal("起動直後の実行が行われなかった")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start がキャンセル後に終了しなかった")
	}
}

// TestCleanupJob_WithLocalStore は実ファイルシステム上のブロブストアで削除されることを検証する。
func TestCleanupJob_WithLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := blob.NewLocalStore(dir, "/blobs")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	ctx := context.Background()
	for _, name := range []string{"avatars/keep.webp", "avatars/orphan.webp"} {
		if _, err := store.Put(ctx, name, strings.NewReader("RIFF"), "image/webp"); err != nil {
			t.Fatalf("Put(%s): %v", name, err)
		}
		old := time.Now().Add(-72 * time.Hour)
		if err := os.Chtimes(filepath.Join(dir, filepath.FromSlash(name)), old, old); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}

	var buf bytes.Buffer
	job := NewCleanupJob(&mockLister{urls: []string{"/blobs/avatars/keep.webp"}}, store, nil, newTestLogger(&buf), "")

	deleted, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := os.Stat(filepath.Join(dir, "avatars", "orphan.webp")); !os.IsNotExist(err) {
		t.Error("orphan.webp が削除されていない")
	}
	if _, err := os.Stat(filepath.Join(dir, "avatars", "keep.webp")); err != nil {
		t.Errorf("keep.webp は残すべき: %v", err)
	}
}
