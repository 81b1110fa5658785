// Package qrcode はプロフィール共有用のQRコードを生成する。
package qrcode

import (
	"errors"
	"fmt"
	"strings"

	goqrcode "github.com/skip2/go-qrcode"
)

// Level は誤り訂正レベル。
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelHighest
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

// ErrEmptyPayload は空文字列をQRコード化しようとした場合のエラー。
var ErrEmptyPayload = errors.New("empty qr payload")

// ParseLevel はL/M/Q/Hの表記からLevelを解析する。空文字列はLevelMedium。
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "M":
		return LevelMedium, nil
	case "L":
		return LevelLow, nil
	case "Q":
		return LevelHigh, nil
	case "H":
		return LevelHighest, nil
	default:
		return LevelMedium, fmt.Errorf("unknown qr level: %q", s)
	}
}

func (l Level) recovery() goqrcode.RecoveryLevel {
	switch l {
	case LevelLow:
		return goqrcode.Low
	case LevelHigh:
		return goqrcode.High
	case LevelHighest:
		return goqrcode.Highest
	default:
		return goqrcode.Medium
	}
}

// ClampSize はPNGの一辺のピクセル数をMinSize..MaxSizeに収める。0以下はDefaultSize。
func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	default:
		return size
	}
}

// Render はtextをエンコードしたQRコードをPNGで返す。
func Render(text string, size int, level Level) ([]byte, error) {
	q, err := encode(text, level)
	if err != nil {
		return nil, err
	}
	png, err := q.PNG(ClampSize(size))
	if err != nil {
		return nil, fmt.Errorf("failed to render qr png: %w", err)
	}
	return png, nil
}

// Bitmap はQRコードのモジュール配列を返す。trueが暗モジュール。
// 余白（クワイエットゾーン）は含まない。端末表示に使う。
func Bitmap(text string, level Level) ([][]bool, error) {
	q, err := encode(text, level)
	if err != nil {
		return nil, err
	}
	q.DisableBorder = true
	return q.Bitmap(), nil
}

func encode(text string, level Level) (*goqrcode.QRCode, error) {
	if text == "" {
		return nil, ErrEmptyPayload
	}
	q, err := goqrcode.New(text, level.recovery())
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}
	return q, nil
}
