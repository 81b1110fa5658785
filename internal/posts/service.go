package posts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/hitouch/internal/model"
	"github.com/hitoshi/hitouch/internal/security"
)

// maxBodySize はページ・フィード取得時に読み込む最大バイト数。
const maxBodySize = 5 * 1024 * 1024

// Service はZennの最新記事を取得し、TTL付きでキャッシュする。
type Service struct {
	guard     security.SSRFGuard
	client    *http.Client
	sanitizer security.TextSanitizer
	ttl       time.Duration
	limit     int
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	cache    map[string]cacheEntry
	failures map[string]failure
}

// failure は取得失敗の連続回数と次に取得を試みる時刻。
type failure struct {
	count   int
	retryAt time.Time
}

type cacheEntry struct {
	posts     []model.Post
	expiresAt time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// clientは本番ではguard.NewSafeClientの結果を渡す。
func NewService(
	guard security.SSRFGuard,
	client *http.Client,
	sanitizer security.TextSanitizer,
	ttl time.Duration,
	limit int,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 5
	}
	return &Service{
		guard:     guard,
		client:    client,
		sanitizer: sanitizer,
		ttl:       ttl,
		limit:     limit,
		logger:    logger,
		now:       time.Now,
		cache:     make(map[string]cacheEntry),
		failures:  make(map[string]failure),
	}
}

// Recent はプロフィールのZennアカウントの最新記事を新しい順に返す。
// Zennリンクが未登録の場合や取得に失敗した場合は空のスライスを返す（失敗は警告ログに残す）。
func (s *Service) Recent(ctx context.Context, p *model.Profile) []model.Post {
	pageURL := p.Links.Zenn
	if pageURL == "" {
		return []model.Post{}
	}

	if posts, ok := s.cached(pageURL); ok {
		return posts
	}
	if s.backingOff(pageURL) {
		return []model.Post{}
	}

	posts, err := s.fetch(ctx, pageURL)
	if err != nil {
		delay := s.recordFailure(pageURL, err)
		s.logger.Warn("最新記事の取得に失敗しました",
			slog.String("profile_id", p.ID),
			slog.String("url", pageURL),
			slog.String("error", err.Error()),
			slog.Duration("retry_after", delay),
		)
		return []model.Post{}
	}

	s.store(pageURL, posts)
	return posts
}

func (s *Service) cached(key string) ([]model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.cache, key)
		return nil, false
	}
	return slices.Clone(entry.posts), true
}

func (s *Service) store(key string, posts []model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, key)
	if s.ttl <= 0 {
		return
	}
	s.cache[key] = cacheEntry{posts: slices.Clone(posts), expiresAt: s.now().Add(s.ttl)}
}

// backingOff は直近の失敗によるバックオフ期間中かを返す。
func (s *Service) backingOff(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.failures[key]
	return ok && s.now().Before(f.retryAt)
}

// recordFailure は取得失敗を記録し、再取得を控える期間を返す。
func (s *Service) recordFailure(key string, err error) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.failures[key]
	f.count++
	delay := retryDelay(err, f.count)
	f.retryAt = s.now().Add(delay)
	s.failures[key] = f
	return delay
}

// fetch はページを取得してフィードURLを特定し、フィードを解析する。
// ページがフィードそのものならそのまま解析する。
func (s *Service) fetch(ctx context.Context, pageURL string) ([]model.Post, error) {
	body, contentType, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if !isFeedResponse(contentType, body) {
		feedURL := feedLinkFromHTML(body, pageURL)
		if feedURL == "" {
			feedURL = fallbackFeedURL(pageURL)
		}
		body, _, err = s.get(ctx, feedURL)
		if err != nil {
			return nil, err
		}
	}

	return s.parse(body)
}

func (s *Service) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := s.guard.ValidateURL(rawURL); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "HiTouch/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/html;q=0.9, */*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if classifyHTTPStatus(resp.StatusCode) != fetchResultOK {
		return nil, "", &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (s *Service) parse(body []byte) ([]model.Post, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	posts := make([]model.Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		post := model.Post{
			Title: s.sanitizer.Sanitize(item.Title),
			URL:   item.Link,
		}
		if item.PublishedParsed != nil {
			post.PublishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			post.PublishedAt = item.UpdatedParsed.UTC()
		}
		posts = append(posts, post)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].PublishedAt.After(posts[j].PublishedAt)
	})
	if len(posts) > s.limit {
		posts = posts[:s.limit]
	}
	return posts, nil
}
