// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// sqlitePath はsqlite:// スキーム付きのURLからファイルパスを取り出す。
func sqlitePath(databaseURL string) string {
	return strings.TrimPrefix(databaseURL, "sqlite://")
}

// migrateURL はgolang-migrateに渡すデータベースURLを組み立てる。
func migrateURL(driver, databaseURL string) string {
	if driver == DriverSQLite {
		return "sqlite://" + sqlitePath(databaseURL)
	}
	return databaseURL
}

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
// ドライバごとに migrations/<driver> 配下のSQLを使用する。
func NewMigrator(driver, databaseURL string) (*migrate.Migrate, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(driver, databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(driver, databaseURL string) error {
	m, err := NewMigrator(driver, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
