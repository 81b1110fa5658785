// Package avatar はアバター画像のアップロードと取り込みを提供する。
// 画像は中央を正方形に切り抜いて縮小し、WebPに変換してブロブストアに保存する。
package avatar

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage は画像としてデコードできない入力に対するエラー。
var ErrInvalidImage = errors.New("invalid image")

// maxPixels はデコードを許可する最大画素数。展開後のメモリ消費を抑える。
const maxPixels = 40_000_000

// ContentType は変換後の画像のMIMEタイプ。
const ContentType = "image/webp"

// Transform は画像をデコードし、size×sizeの正方形WebPに変換する。
func Transform(r io.Reader, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid avatar size: %d", size)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: unsupported dimensions %dx%d", ErrInvalidImage, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	dst := CropSquare(src, size)

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, dst, nil); err != nil {
		return nil, fmt.Errorf("WebP encode: %w", err)
	}
	return buf.Bytes(), nil
}

// CropSquare は画像の中央を正方形に切り抜き、size×sizeに拡大縮小する。
func CropSquare(src image.Image, size int) *image.NRGBA {
	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}

	offX := b.Min.X + (b.Dx()-side)/2
	offY := b.Min.Y + (b.Dy()-side)/2
	crop := image.Rect(offX, offY, offX+side, offY+side)

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
