package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/hitouch/internal/model"
)

// SQLProfileRepo はdatabase/sqlを使用したプロフィールリポジトリ。
// クエリはPostgreSQLとSQLiteの共通構文（$N プレースホルダ、ON CONFLICT）のみを使う。
type SQLProfileRepo struct {
	db *sql.DB
}

// NewSQLProfileRepo はSQLProfileRepoを生成する。
func NewSQLProfileRepo(db *sql.DB) *SQLProfileRepo {
	return &SQLProfileRepo{db: db}
}

const profileColumns = `id, name, image_url, twitter_url, github_url, zenn_url, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(s rowScanner) (*model.Profile, error) {
	p := &model.Profile{}
	var imageURL, twitter, github, zenn sql.NullString

	if err := s.Scan(
		&p.ID, &p.Name, &imageURL, &twitter, &github, &zenn,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.ImageURL = nullStringValue(imageURL)
	p.Links = model.Links{
		Twitter: nullStringValue(twitter),
		GitHub:  nullStringValue(github),
		Zenn:    nullStringValue(zenn),
	}
	return p, nil
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *SQLProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	return p, nil
}

// List は全プロフィールを作成日時の昇順で返す。
func (r *SQLProfileRepo) List(ctx context.Context) ([]*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("プロフィール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	profiles := make([]*model.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("プロフィールの読み取りに失敗しました: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プロフィール一覧の走査に失敗しました: %w", err)
	}

	return profiles, nil
}

// Save はプロフィールを作成または更新する。
func (r *SQLProfileRepo) Save(ctx context.Context, p *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		    name = excluded.name,
		    image_url = excluded.image_url,
		    twitter_url = excluded.twitter_url,
		    github_url = excluded.github_url,
		    zenn_url = excluded.zenn_url,
		    updated_at = excluded.updated_at`,
		p.ID, p.Name, nullString(p.ImageURL),
		nullString(p.Links.Twitter), nullString(p.Links.GitHub), nullString(p.Links.Zenn),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのプロフィールを削除する。
func (r *SQLProfileRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// ListImageURLs はいずれかのプロフィールが参照している画像URLを返す。
func (r *SQLProfileRepo) ListImageURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT image_url FROM profiles WHERE image_url IS NOT NULL AND image_url <> ''`,
	)
	if err != nil {
		return nil, fmt.Errorf("画像URLの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("画像URLの読み取りに失敗しました: %w", err)
		}
		urls = append(urls, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("画像URLの走査に失敗しました: %w", err)
	}
	return urls, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ ProfileRepository = (*SQLProfileRepo)(nil)
