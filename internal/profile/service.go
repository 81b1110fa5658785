// Package profile はプロフィール（デジタル名刺）管理のドメインロジックを提供する。
package profile

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/hitouch/internal/model"
	"github.com/hitoshi/hitouch/internal/repository"
	"github.com/hitoshi/hitouch/internal/security"
)

// MaxNameLength は名前の最大文字数（rune数）。
const MaxNameLength = 50

// BlobPathPrefix はローカルブロブストアの公開パスの接頭辞。
const BlobPathPrefix = "/blobs/"

// Input はプロフィールの作成・更新時の入力値。
type Input struct {
	Name     string
	ImageURL string
	Links    model.Links
}

// Service はプロフィール管理のサービス層。
type Service struct {
	repo      repository.ProfileRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ProfileRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Create は新しいプロフィールを作成する。IDはサーバー側で採番する。
func (s *Service) Create(ctx context.Context, in Input) (*model.Profile, error) {
	normalized, err := s.normalize(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Profile{
		ID:        s.newID(),
		Name:      normalized.Name,
		ImageURL:  normalized.ImageURL,
		Links:     normalized.Links,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}
	return p, nil
}

// Get は指定IDのプロフィールを返す。存在しない場合はPROFILE_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError(id)
	}
	return p, nil
}

// List は全プロフィールを作成日時の昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Profile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("プロフィール一覧の取得に失敗しました: %w", err)
	}
	return profiles, nil
}

// Update は既存プロフィールの内容を置き換える。作成日時は維持する。
func (s *Service) Update(ctx context.Context, id string, in Input) (*model.Profile, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	normalized, err := s.normalize(in)
	if err != nil {
		return nil, err
	}

	current.Name = normalized.Name
	current.ImageURL = normalized.ImageURL
	current.Links = normalized.Links
	current.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, current); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return current, nil
}

// Delete はプロフィールを削除する。存在しない場合はPROFILE_NOT_FOUNDエラーを返す。
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewProfileNotFoundError(id)
	}
	return nil
}

// normalize は入力値をサニタイズ・検証し、保存可能な値を返す。
func (s *Service) normalize(in Input) (Input, error) {
	name := s.sanitizer.Sanitize(in.Name)
	if name == "" {
		return Input{}, model.NewInvalidProfileError("名前は必須です")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return Input{}, model.NewInvalidProfileError(fmt.Sprintf("名前は%d文字以内で入力してください", MaxNameLength))
	}

	imageURL := strings.TrimSpace(in.ImageURL)
	if imageURL != "" && !isBlobPath(imageURL) {
		if err := validateHTTPURL(imageURL); err != nil {
			return Input{}, model.NewInvalidProfileError("画像URL: " + err.Error())
		}
	}

	links := model.Links{
		Twitter: strings.TrimSpace(in.Links.Twitter),
		GitHub:  strings.TrimSpace(in.Links.GitHub),
		Zenn:    strings.TrimSpace(in.Links.Zenn),
	}
	for _, platform := range model.Platforms {
		link := links.URL(platform)
		if link == "" {
			continue
		}
		if err := validateHTTPURL(link); err != nil {
			return Input{}, model.NewInvalidLinkError(platform, err.Error())
		}
	}

	return Input{Name: name, ImageURL: imageURL, Links: links}, nil
}

// validateHTTPURL はhttp/httpsの絶対URLであることを検証する。
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("URLの形式が正しくありません")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("http または https のURLである必要があります")
	}
	if u.Host == "" {
		return fmt.Errorf("ホスト名がありません")
	}
	return nil
}

// isBlobPath はローカルブロブストアの公開パスかどうかを判定する。
// ディレクトリトラバーサルを含むパスは拒否する。
func isBlobPath(p string) bool {
	if !strings.HasPrefix(p, BlobPathPrefix) || strings.ContainsAny(p, "?#\\") {
		return false
	}
	cleaned := path.Clean(p)
	return cleaned == p && len(cleaned) > len(BlobPathPrefix)
}
