// Package model はドメインモデルを定義する。
package model

import "time"

// Platform はプロフィールに登録できるSNSの種類。
type Platform string

const (
	PlatformTwitter Platform = "twitter"
	PlatformGitHub  Platform = "github"
	PlatformZenn    Platform = "zenn"
)

// Platforms はカードに表示する順序でPlatformを並べたもの。
var Platforms = []Platform{PlatformTwitter, PlatformGitHub, PlatformZenn}

// ParsePlatform は文字列からPlatformを解析する。未知の値はfalseを返す。
func ParsePlatform(s string) (Platform, bool) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Links はSNSリンク。未登録のリンクは空文字列。
type Links struct {
	Twitter string
	GitHub  string
	Zenn    string
}

// URL は指定PlatformのリンクURLを返す。
func (l Links) URL(p Platform) string {
	switch p {
	case PlatformTwitter:
		return l.Twitter
	case PlatformGitHub:
		return l.GitHub
	case PlatformZenn:
		return l.Zenn
	default:
		return ""
	}
}

// Profile はデジタル名刺1枚分のプロフィール。
// IDは一意、Nameは保存時に空であってはならない。
type Profile struct {
	ID        string
	Name      string
	ImageURL  string
	Links     Links
	CreatedAt time.Time
	UpdatedAt time.Time
}
