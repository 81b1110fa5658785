package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hitouch/internal/card"
	"github.com/hitoshi/hitouch/internal/metrics"
	"github.com/hitoshi/hitouch/internal/model"
	"github.com/hitoshi/hitouch/internal/qrcode"
)

// ProfileGetter はプロフィールを1件取得するインターフェース。
type ProfileGetter interface {
	Get(ctx context.Context, id string) (*model.Profile, error)
}

// QRHandler はカード裏面のQRコード画像を返すHTTPハンドラー。
type QRHandler struct {
	profiles   ProfileGetter
	profileURL func(id string) string
	metrics    metrics.MetricsCollector
}

// NewQRHandler はQRHandlerを生成する。
func NewQRHandler(profiles ProfileGetter, profileURL func(id string) string, mc metrics.MetricsCollector) *QRHandler {
	return &QRHandler{profiles: profiles, profileURL: profileURL, metrics: mc}
}

// invalidQRParamError はQRコードのクエリパラメータエラー。
func invalidQRParamError(message string) *model.APIError {
	return &model.APIError{
		Code:     "INVALID_QR_PARAM",
		Message:  message,
		Category: "validation",
		Action:   "sizeは整数、levelはL/M/Q/Hのいずれかを指定してください。",
	}
}

// Render はプロフィールのQRコードをPNGで返す。
// linkを指定した場合はそのSNSリンクを、省略した場合はプロフィールURLを内容とする。
// GET /api/profiles/{id}/qr.png?link=twitter|github|zenn&size=N&level=L|M|Q|H
func (h *QRHandler) Render(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// カードの状態遷移で表示対象を決める
	var c card.Card
	if link := q.Get("link"); link != "" {
		p, ok := model.ParsePlatform(link)
		if !ok {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidLinkError(model.Platform(link), "未対応のリンク種別です"))
			return
		}
		c.ActivateLink(p)
	} else {
		c.Toggle()
	}

	size := qrcode.DefaultSize
	if s := q.Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, invalidQRParamError("sizeが整数ではありません: "+s))
			return
		}
		size = qrcode.ClampSize(n)
	}

	level, err := qrcode.ParseLevel(q.Get("level"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidQRParamError(err.Error()))
		return
	}

	id := chi.URLParam(r, "id")
	p, err := h.profiles.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	png, err := qrcode.Render(c.Payload(h.profileURL(p.ID), p.Links), size, level)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordQRRendered()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
