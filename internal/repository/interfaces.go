// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/hitouch/internal/model"
)

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// List は全プロフィールを作成日時の昇順（同時刻はID順）で返す。
	List(ctx context.Context) ([]*model.Profile, error)

	// Save はプロフィールを作成または更新する（IDで判定するupsert）。
	// 更新時はcreated_atを変更しない。
	Save(ctx context.Context, profile *model.Profile) error

	// Delete は指定IDのプロフィールを削除する。削除対象が存在しなかった場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// ListImageURLs はいずれかのプロフィールが参照している画像URLを返す。
	// アバター画像のクリーンアップで使用する。
	ListImageURLs(ctx context.Context) ([]string, error)
}
