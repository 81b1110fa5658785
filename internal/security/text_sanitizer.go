// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力や外部フィードの文字列からHTMLを取り除き、
// プレーンテキストとして保存できる形に正規化する。
type TextSanitizer interface {
	// Sanitize は全てのタグを除去し、前後の空白と制御文字を取り除いた文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyはスレッドセーフなので共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグを除去したプレーンテキストを返す。
// StrictPolicyはエンティティをエスケープして返すため、保存前に元の文字へ戻す。
// 戻した結果がタグとして解釈できる場合は、タグが無くなるまで繰り返し除去する。
func (s *textSanitizer) Sanitize(raw string) string {
	text := raw
	for i := 0; i < 3; i++ {
		stripped := html.UnescapeString(s.policy.Sanitize(text))
		if stripped == text {
			break
		}
		text = stripped
	}

	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			if r == '\t' || r == '\n' {
				return ' '
			}
			return -1
		}
		return r
	}, text)

	return strings.TrimSpace(text)
}
