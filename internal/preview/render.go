package preview

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/hitoshi/hitouch/internal/card"
	"github.com/hitoshi/hitouch/internal/model"
	"github.com/hitoshi/hitouch/internal/motion"
	"github.com/hitoshi/hitouch/internal/qrcode"
)

// HalfBlocks はQRコードのモジュール配列を上下2モジュールで1文字の行に変換する。
// 端末の文字セルは縦長のため、1文字に2行分を詰めるとほぼ正方形に表示できる。
func HalfBlocks(bitmap [][]bool) []string {
	lines := make([]string, 0, (len(bitmap)+1)/2)
	for y := 0; y < len(bitmap); y += 2 {
		var b strings.Builder
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bottom := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteRune(' ')
			}
		}
		lines = append(lines, b.String())
	}
	return lines
}

// frontLines はカード表面の内容を返す。
func frontLines(p *model.Profile, posts []model.Post) []string {
	lines := []string{p.Name, ""}
	for i, platform := range model.Platforms {
		u := p.Links.URL(platform)
		if u == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%d] %-7s %s", i+1, platform, u))
	}
	if len(posts) > 0 {
		lines = append(lines, "", "Recent posts")
		for _, post := range posts {
			lines = append(lines, "・"+post.Title)
		}
	}
	return lines
}

// backLines はカード裏面の内容（QRコードと表示対象）を返す。
func backLines(c *card.Card, p *model.Profile, profileURL string) ([]string, error) {
	payload := c.Payload(profileURL, p.Links)
	bitmap, err := qrcode.Bitmap(payload, qrcode.LevelMedium)
	if err != nil {
		return nil, err
	}

	label := "profile"
	if t := c.Target(); t != "" && p.Links.URL(t) != "" {
		label = string(t)
	}
	lines := HalfBlocks(bitmap)
	return append(lines, "", label+": "+payload), nil
}

// statusLine は画面下部の操作説明と回転値を返す。
func statusLine(face card.Face, r motion.Rotation) string {
	return fmt.Sprintf("%s  rotate x=%+.1f y=%+.1f  Enter/Space: flip  1-3: links  q: quit", face, r.X, r.Y)
}

// tiltOffset は回転値を枠の影のずらし量（セル数）に変換する。
// 前後の傾き（X）は縦方向、左右の傾き（Y）は横方向の影になる。
func tiltOffset(r motion.Rotation, maxRotation float64) (dx, dy int) {
	if maxRotation <= 0 {
		return 0, 0
	}
	dx = int(r.Y / maxRotation * 2)
	dy = int(r.X / maxRotation)
	return dx, dy
}

// truncate は表示幅がwidthを超える文字列を切り詰める。
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
