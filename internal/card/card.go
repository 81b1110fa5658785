// Package card はプロフィールカードの表裏の状態遷移を提供する。
//
// カード本体の操作で表（front）と裏（flipped）を切り替え、裏面にはQRコードを表示する。
// SNSリンクを操作した場合は、そのリンク自体をQRコードの内容にする。
package card

import "github.com/hitoshi/hitouch/internal/model"

// Face はカードの向き。
type Face int

const (
	FaceFront Face = iota
	FaceFlipped
)

// String はFaceの文字列表現を返す。
func (f Face) String() string {
	if f == FaceFlipped {
		return "flipped"
	}
	return "front"
}

// Card はカード1枚分の表示状態。ゼロ値は表向き。
type Card struct {
	face   Face
	target model.Platform // 空文字列はプロフィールURL
}

// Face は現在の向きを返す。
func (c *Card) Face() Face {
	return c.face
}

// Target は裏面QRコードの対象リンクを返す。プロフィールURLの場合は空文字列。
func (c *Card) Target() model.Platform {
	return c.target
}

// Toggle はカード本体の操作で表裏を切り替える。
// 表から裏へ返したときはプロフィールURLを表示する。
func (c *Card) Toggle() Face {
	if c.face == FaceFront {
		c.face = FaceFlipped
	} else {
		c.face = FaceFront
	}
	c.target = ""
	return c.face
}

// ActivateLink はSNSリンクの操作を反映する。
// 表向きなら裏返してそのリンクを表示し、同じリンクの再操作で表に戻す。
// 別のリンクを操作した場合は裏向きのまま表示対象だけを切り替える。
func (c *Card) ActivateLink(p model.Platform) Face {
	switch {
	case c.face == FaceFront:
		c.face = FaceFlipped
		c.target = p
	case c.target == p:
		c.face = FaceFront
		c.target = ""
	default:
		c.target = p
	}
	return c.face
}

// Payload は現在の表示対象に対応するQRコードの内容を返す。
// 対象リンクが未設定の場合はプロフィールURLを返す。
func (c *Card) Payload(profileURL string, links model.Links) string {
	if c.target == "" {
		return profileURL
	}
	if u := links.URL(c.target); u != "" {
		return u
	}
	return profileURL
}
