package posts

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// fetchResult はHTTPステータスコードに基づく取得結果の分類。
type fetchResult int

const (
	// fetchResultOK は取得成功（200）。
	fetchResultOK fetchResult = iota
	// fetchResultStop は再試行しても回復しないステータス（404/410/401/403）。
	fetchResultStop
	// fetchResultBackoff は時間をおいて再試行するステータス（429/5xx）。
	fetchResultBackoff
	// fetchResultUnknown は未知のステータスコード。
	fetchResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延（1分）。
	initialBackoff = time.Minute
	// maxBackoff は指数バックオフの最大遅延（1時間）。回復しないステータスにも使う。
	maxBackoff = time.Hour
)

// statusError は200以外のHTTPステータスを表すエラー。
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: HTTP %d", e.code)
}

// classifyHTTPStatus はHTTPステータスコードを取得結果に分類する。
func classifyHTTPStatus(statusCode int) fetchResult {
	switch {
	case statusCode == http.StatusOK:
		return fetchResultOK
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return fetchResultStop
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fetchResultStop
	case statusCode == http.StatusTooManyRequests:
		return fetchResultBackoff
	case statusCode >= 500:
		return fetchResultBackoff
	default:
		return fetchResultUnknown
	}
}

// calculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回1分、2倍ずつ増加、最大1時間。
func calculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// retryDelay は取得失敗後に再取得を控える期間を返す。
// consecutiveErrorsは今回の失敗を含む連続失敗回数。
func retryDelay(err error, consecutiveErrors int) time.Duration {
	var se *statusError
	if errors.As(err, &se) && classifyHTTPStatus(se.code) == fetchResultStop {
		return maxBackoff
	}
	return calculateBackoff(consecutiveErrors - 1)
}
