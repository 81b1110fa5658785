package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hitouch/internal/metrics"
	"github.com/hitoshi/hitouch/internal/model"
	"github.com/hitoshi/hitouch/internal/profile"
)

// maxProfileBodySize はプロフィール作成・更新リクエストボディの上限。
const maxProfileBodySize = 64 * 1024

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Create(ctx context.Context, in profile.Input) (*model.Profile, error)
	Get(ctx context.Context, id string) (*model.Profile, error)
	List(ctx context.Context) ([]*model.Profile, error)
	Update(ctx context.Context, id string, in profile.Input) (*model.Profile, error)
	Delete(ctx context.Context, id string) error
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	service    ProfileServiceInterface
	profileURL func(id string) string
	metrics    metrics.MetricsCollector
}

// NewProfileHandler はProfileHandlerを生成する。
// profileURLはプロフィールIDから公開URLを組み立てる関数。
func NewProfileHandler(service ProfileServiceInterface, profileURL func(id string) string, mc metrics.MetricsCollector) *ProfileHandler {
	return &ProfileHandler{
		service:    service,
		profileURL: profileURL,
		metrics:    mc,
	}
}

// linksPayload はSNSリンクのJSON表現。
type linksPayload struct {
	Twitter string `json:"twitter"`
	GitHub  string `json:"github"`
	Zenn    string `json:"zenn"`
}

// profileRequest はプロフィール作成・更新リクエストのボディ。
type profileRequest struct {
	Name     string       `json:"name"`
	ImageURL string       `json:"image_url"`
	Links    linksPayload `json:"links"`
}

// profileResponse はプロフィール情報のAPIレスポンス。
type profileResponse struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	ImageURL   string       `json:"image_url"`
	Links      linksPayload `json:"links"`
	ProfileURL string       `json:"profile_url"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// profileListResponse はプロフィール一覧のAPIレスポンス。
type profileListResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

func (req profileRequest) toInput() profile.Input {
	return profile.Input{
		Name:     req.Name,
		ImageURL: req.ImageURL,
		Links: model.Links{
			Twitter: req.Links.Twitter,
			GitHub:  req.Links.GitHub,
			Zenn:    req.Links.Zenn,
		},
	}
}

func (h *ProfileHandler) toResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID:       p.ID,
		Name:     p.Name,
		ImageURL: p.ImageURL,
		Links: linksPayload{
			Twitter: p.Links.Twitter,
			GitHub:  p.Links.GitHub,
			Zenn:    p.Links.Zenn,
		},
		ProfileURL: h.profileURL(p.ID),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// CreateProfile はプロフィールを作成する。
// POST /api/profiles
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProfileBodySize)

	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordProfileOperation("create")
	w.Header().Set("Location", "/api/profiles/"+p.ID)
	writeJSON(w, http.StatusCreated, h.toResponse(p))
}

// ListProfiles はプロフィール一覧を返す。
// GET /api/profiles
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := profileListResponse{Profiles: make([]profileResponse, 0, len(profiles))}
	for _, p := range profiles {
		resp.Profiles = append(resp.Profiles, h.toResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProfile はプロフィールを取得する。
// GET /api/profiles/{id}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(p))
}

// UpdateProfile はプロフィールを更新する。
// PUT /api/profiles/{id}
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProfileBodySize)

	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordProfileOperation("update")
	writeJSON(w, http.StatusOK, h.toResponse(p))
}

// DeleteProfile はプロフィールを削除する。
// DELETE /api/profiles/{id}
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordProfileOperation("delete")
	w.WriteHeader(http.StatusNoContent)
}
