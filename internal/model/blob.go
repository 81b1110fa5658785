package model

import "time"

// Blob はブロブストアに保存されたファイルのメタデータ。
type Blob struct {
	URL         string
	Pathname    string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// Post はZennなど外部フィードから取得した記事。
type Post struct {
	Title       string
	URL         string
	PublishedAt time.Time
}
