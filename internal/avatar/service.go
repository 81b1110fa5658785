package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/hitoshi/hitouch/internal/blob"
	"github.com/hitoshi/hitouch/internal/model"
	"github.com/hitoshi/hitouch/internal/security"
)

// PathPrefix はアバター画像を保存するブロブストア上のディレクトリ。
const PathPrefix = "avatars/"

// maxStemLength はファイル名から作るパス名の最大長。
const maxStemLength = 40

// Service はアバター画像のアップロードと取り込みのサービス層。
type Service struct {
	store   blob.Store
	guard   security.SSRFGuard
	client  *http.Client
	size    int
	maxSize int64
	logger  *slog.Logger
	suffix  func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// clientはURL取り込みに使うHTTPクライアントで、本番ではguard.NewSafeClientの結果を渡す。
func NewService(store blob.Store, guard security.SSRFGuard, client *http.Client, size int, maxSize int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		guard:   guard,
		client:  client,
		size:    size,
		maxSize: maxSize,
		logger:  logger,
		suffix:  randomSuffix,
	}
}

// MaxSize はアップロードを許可する最大バイト数を返す。
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// Upload はbodyの画像を変換して保存する。
// filenameは保存パス名の元になる。空の場合はFILENAME_REQUIREDエラーを返す。
func (s *Service) Upload(ctx context.Context, filename string, body io.Reader) (*model.Blob, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, model.NewFilenameRequiredError()
	}

	data, err := s.readLimited(body)
	if err != nil {
		return nil, err
	}

	return s.save(ctx, filename, data)
}

// Import は外部URLの画像を取得し、Uploadと同じ変換を行って保存する。
func (s *Service) Import(ctx context.Context, rawURL string) (*model.Blob, error) {
	if err := s.guard.ValidateURL(rawURL); err != nil {
		if errors.Is(err, security.ErrBlockedURL) {
			s.logger.Warn("SSRFブロック", slog.String("url", rawURL), slog.String("error", err.Error()))
			return nil, model.NewSSRFBlockedError()
		}
		return nil, model.NewInvalidURLError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("Accept", "image/*")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, security.ErrResponseTooLarge) {
			return nil, model.NewUploadTooLargeError(humanize.Bytes(uint64(s.maxSize)))
		}
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	data, err := s.readLimited(resp.Body)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, model.NewFetchFailedError(err.Error())
	}

	return s.save(ctx, filenameFromURL(rawURL), data)
}

// readLimited は上限+1バイトまで読み、上限超過ならUPLOAD_TOO_LARGEエラーを返す。
func (s *Service) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		if errors.Is(err, security.ErrResponseTooLarge) {
			return nil, model.NewUploadTooLargeError(humanize.Bytes(uint64(s.maxSize)))
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, model.NewUploadTooLargeError(humanize.Bytes(uint64(s.maxSize)))
		}
		return nil, fmt.Errorf("画像の読み込みに失敗しました: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, model.NewUploadTooLargeError(humanize.Bytes(uint64(s.maxSize)))
	}
	return data, nil
}

func (s *Service) save(ctx context.Context, filename string, data []byte) (*model.Blob, error) {
	webp, err := Transform(bytes.NewReader(data), s.size)
	if err != nil {
		if errors.Is(err, ErrInvalidImage) {
			return nil, model.NewInvalidImageError()
		}
		return nil, fmt.Errorf("画像の変換に失敗しました: %w", err)
	}

	pathname := PathPrefix + Stem(filename) + "-" + s.suffix() + ".webp"
	b, err := s.store.Put(ctx, pathname, bytes.NewReader(webp), ContentType)
	if err != nil {
		return nil, fmt.Errorf("画像の保存に失敗しました: %w", err)
	}

	s.logger.Info("アバター画像を保存しました",
		slog.String("pathname", b.Pathname),
		slog.String("original_size", humanize.Bytes(uint64(len(data)))),
		slog.String("stored_size", humanize.Bytes(uint64(b.Size))),
	)
	return b, nil
}

// Stem はファイル名から拡張子を除き、パス名に使える文字だけを残した文字列を返す。
// 使える文字が残らない場合は "avatar" を返す。
func Stem(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))

	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(base) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && b.Len() > 0 {
			b.WriteByte('-')
			lastDash = true
		}
	}

	stem := strings.Trim(b.String(), "-")
	if len(stem) > maxStemLength {
		stem = strings.TrimRight(stem[:maxStemLength], "-")
	}
	if stem == "" {
		return "avatar"
	}
	return stem
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "avatar"
	}
	return path.Base(u.Path)
}

// randomSuffix は同名ファイルの衝突を避けるためのランダムな接尾辞を返す。
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
