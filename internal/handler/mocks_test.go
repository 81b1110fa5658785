package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/hitouch/internal/metrics"
	"github.com/hitoshi/hitouch/internal/model"
	"github.com/hitoshi/hitouch/internal/profile"
)

// --- モック定義 ---

// mockProfileService はProfileServiceInterfaceのモック実装。
type mockProfileService struct {
	createFn func(ctx context.Context, in profile.Input) (*model.Profile, error)
	getFn    func(ctx context.Context, id string) (*model.Profile, error)
	listFn   func(ctx context.Context) ([]*model.Profile, error)
	updateFn func(ctx context.Context, id string, in profile.Input) (*model.Profile, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockProfileService) Create(ctx context.Context, in profile.Input) (*model.Profile, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return nil, nil
}

func (m *mockProfileService) Get(ctx context.Context, id string) (*model.Profile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewProfileNotFoundError(id)
}

func (m *mockProfileService) List(ctx context.Context) ([]*model.Profile, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Profile{}, nil
}

func (m *mockProfileService) Update(ctx context.Context, id string, in profile.Input) (*model.Profile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return nil, nil
}

func (m *mockProfileService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockAvatarService はAvatarServiceInterfaceのモック実装。
type mockAvatarService struct {
	uploadFn func(ctx context.Context, filename string, body io.Reader) (*model.Blob, error)
	importFn func(ctx context.Context, rawURL string) (*model.Blob, error)
	maxSize  int64
}

func (m *mockAvatarService) Upload(ctx context.Context, filename string, body io.Reader) (*model.Blob, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, filename, body)
	}
	return nil, nil
}

func (m *mockAvatarService) Import(ctx context.Context, rawURL string) (*model.Blob, error) {
	if m.importFn != nil {
		return m.importFn(ctx, rawURL)
	}
	return nil, nil
}

func (m *mockAvatarService) MaxSize() int64 {
	if m.maxSize == 0 {
		return 4500000
	}
	return m.maxSize
}

// mockPostsFetcher はPostsFetcherのモック実装。
type mockPostsFetcher struct {
	recentFn func(ctx context.Context, p *model.Profile) []model.Post
}

func (m *mockPostsFetcher) Recent(ctx context.Context, p *model.Profile) []model.Post {
	if m.recentFn != nil {
		return m.recentFn(ctx, p)
	}
	return nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

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

// newTestMetrics は独立したレジストリのCollectorを返す。
func newTestMetrics() (*metrics.Collector, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.NewCollector(reg), reg
}

// counterValue はレジストリから指定メトリクスのカウンタ値の合計を返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func testProfileURL(id string) string {
	return "https://hitouch.example.com/profile/" + id
}
