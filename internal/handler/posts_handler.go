package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hitouch/internal/model"
)

// PostsFetcher はプロフィールの最近の記事を取得するインターフェース。
// 取得に失敗した場合は空のスライスを返す。
type PostsFetcher interface {
	Recent(ctx context.Context, p *model.Profile) []model.Post
}

// PostsHandler は最近の記事一覧のHTTPハンドラー。
type PostsHandler struct {
	profiles ProfileGetter
	posts    PostsFetcher
}

// NewPostsHandler はPostsHandlerを生成する。
func NewPostsHandler(profiles ProfileGetter, posts PostsFetcher) *PostsHandler {
	return &PostsHandler{profiles: profiles, posts: posts}
}

// postResponse は記事1件のAPIレスポンス。
type postResponse struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at"`
}

// postsResponse は記事一覧のAPIレスポンス。
type postsResponse struct {
	Posts []postResponse `json:"posts"`
}

// ListPosts はプロフィールに登録されたZennの最近の記事を返す。
// GET /api/profiles/{id}/posts
func (h *PostsHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	posts := h.posts.Recent(r.Context(), p)

	resp := postsResponse{Posts: make([]postResponse, 0, len(posts))}
	for _, post := range posts {
		pr := postResponse{Title: post.Title, URL: post.URL}
		if !post.PublishedAt.IsZero() {
			t := post.PublishedAt
			pr.PublishedAt = &t
		}
		resp.Posts = append(resp.Posts, pr)
	}
	writeJSON(w, http.StatusOK, resp)
}
