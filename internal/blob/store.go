// Package blob はアップロードされたファイルの保存先（ブロブストア）を提供する。
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hitoshi/hitouch/internal/model"
)

// ErrInvalidPathname はパス名が不正（空、絶対パス、トラバーサル等）な場合のエラー。
var ErrInvalidPathname = errors.New("invalid blob pathname")

// Store はブロブストアのインターフェース。
// pathnameは "avatars/me-abc.webp" のようなスラッシュ区切りの相対パス。
type Store interface {
	// Put はrの内容をpathnameに保存する。既存のファイルは上書きする。
	Put(ctx context.Context, pathname string, r io.Reader, contentType string) (*model.Blob, error)
	// Delete はpathnameのファイルを削除する。存在しない場合はエラーにしない。
	Delete(ctx context.Context, pathname string) error
	// List はprefix配下のファイルをパス名の昇順で返す。
	List(ctx context.Context, prefix string) ([]model.Blob, error)
	// URL はpathnameの公開URLを返す。
	URL(pathname string) string
}

// LocalStore はローカルファイルシステムに保存するStore実装。
// 保存したファイルはHandlerを通じてurlPrefix配下で公開する。
type LocalStore struct {
	root      string
	urlPrefix string
}

// NewLocalStore はrootディレクトリを作成し、LocalStoreを返す。
// urlPrefixは公開URLの接頭辞（例: "/blobs"）。
func NewLocalStore(root, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalStore{
		root:      root,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Put はファイルを一時ファイルに書き込んでからリネームする。
// 書き込み途中のファイルが公開されることはない。
func (s *LocalStore) Put(ctx context.Context, pathname string, r io.Reader, contentType string) (*model.Blob, error) {
	full, err := s.resolve(pathname)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}

	if contentType == "" {
		contentType = contentTypeOf(pathname)
	}

	return &model.Blob{
		URL:         s.URL(pathname),
		Pathname:    pathname,
		ContentType: contentType,
		Size:        size,
		UploadedAt:  info.ModTime().UTC(),
	}, nil
}

// Delete はpathnameのファイルを削除する。
func (s *LocalStore) Delete(ctx context.Context, pathname string) error {
	full, err := s.resolve(pathname)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// List はprefix配下のファイルを返す。prefixが存在しない場合は空を返す。
func (s *LocalStore) List(ctx context.Context, prefix string) ([]model.Blob, error) {
	dir := s.root
	if prefix != "" {
		resolved, err := s.resolve(prefix)
		if err != nil {
			return nil, err
		}
		dir = resolved
	}

	var blobs []model.Blob
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		pathname := filepath.ToSlash(rel)

		blobs = append(blobs, model.Blob{
			URL:         s.URL(pathname),
			Pathname:    pathname,
			ContentType: contentTypeOf(pathname),
			Size:        info.Size(),
			UploadedAt:  info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Pathname < blobs[j].Pathname })
	return blobs, nil
}

// URL はpathnameの公開URLを返す。
func (s *LocalStore) URL(pathname string) string {
	return s.urlPrefix + "/" + pathname
}

// Pathname は公開URLからpathnameを取り出す。このストアのURLでない場合はfalseを返す。
func (s *LocalStore) Pathname(url string) (string, bool) {
	if !strings.HasPrefix(url, s.urlPrefix+"/") {
		return "", false
	}
	return strings.TrimPrefix(url, s.urlPrefix+"/"), true
}

// Handler は保存したファイルを配信するhttp.Handlerを返す。
// ディレクトリ一覧は返さない。
func (s *LocalStore) Handler() http.Handler {
	fileServer := http.FileServer(http.Dir(s.root))
	return http.StripPrefix(s.urlPrefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || strings.Contains(r.URL.Path, "/.upload-") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fileServer.ServeHTTP(w, r)
	}))
}

// resolve はpathnameを検証し、root配下の実ファイルパスを返す。
func (s *LocalStore) resolve(pathname string) (string, error) {
	if pathname == "" || strings.HasPrefix(pathname, "/") || strings.Contains(pathname, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPathname, pathname)
	}
	cleaned := path.Clean(pathname)
	if cleaned != strings.TrimSuffix(pathname, "/") || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPathname, pathname)
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func contentTypeOf(pathname string) string {
	if ct := mime.TypeByExtension(path.Ext(pathname)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// compile-time interface check
var _ Store = (*LocalStore)(nil)
