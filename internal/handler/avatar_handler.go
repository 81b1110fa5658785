package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hitoshi/hitouch/internal/metrics"
	"github.com/hitoshi/hitouch/internal/model"
)

// maxImportBodySize は画像取り込みリクエストボディの上限。
const maxImportBodySize = 8 * 1024

// AvatarServiceInterface はアバターハンドラーが必要とするサービスインターフェース。
type AvatarServiceInterface interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*model.Blob, error)
	Import(ctx context.Context, rawURL string) (*model.Blob, error)
	MaxSize() int64
}

// AvatarHandler はアバター画像のアップロード・取り込みのHTTPハンドラー。
type AvatarHandler struct {
	service AvatarServiceInterface
	metrics metrics.MetricsCollector
}

// NewAvatarHandler はAvatarHandlerを生成する。
func NewAvatarHandler(service AvatarServiceInterface, mc metrics.MetricsCollector) *AvatarHandler {
	return &AvatarHandler{service: service, metrics: mc}
}

// importRequest は画像取り込みリクエストのボディ。
type importRequest struct {
	URL string `json:"url"`
}

// blobResponse は保存した画像のAPIレスポンス。
type blobResponse struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func toBlobResponse(b *model.Blob) blobResponse {
	return blobResponse{
		URL:         b.URL,
		Pathname:    b.Pathname,
		ContentType: b.ContentType,
		Size:        b.Size,
	}
}

// Upload はリクエストボディの画像を保存する。
// POST /api/avatar/upload?filename=NAME
func (h *AvatarHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		h.reject(w, "upload", model.NewFilenameRequiredError())
		return
	}

	// Content-Lengthで判定できる場合は本文を読まずに拒否する
	max := h.service.MaxSize()
	if r.ContentLength > max {
		h.reject(w, "upload", model.NewUploadTooLargeError(humanize.Bytes(uint64(max))))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, max)

	b, err := h.service.Upload(r.Context(), filename, r.Body)
	if err != nil {
		h.reject(w, "upload", err)
		return
	}

	h.metrics.RecordAvatarStored("upload", b.Size)
	writeJSON(w, http.StatusOK, toBlobResponse(b))
}

// Import は外部URLの画像を取得して保存する。
// POST /api/avatar/import
func (h *AvatarHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)

	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		h.reject(w, "import", model.NewInvalidURLError("URLが空です"))
		return
	}

	b, err := h.service.Import(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		h.reject(w, "import", err)
		return
	}

	h.metrics.RecordAvatarStored("import", b.Size)
	writeJSON(w, http.StatusOK, toBlobResponse(b))
}

// reject は拒否理由をメトリクスに記録してエラーレスポンスを書き込む。
func (h *AvatarHandler) reject(w http.ResponseWriter, source string, err error) {
	reason := "INTERNAL_ERROR"
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		reason = apiErr.Code
	}
	h.metrics.RecordAvatarRejected(source, reason)
	handleServiceError(w, err)
}
