package migrations

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed changelog/*.sql
var changelog embed.FS

// Migrate применяет все новые миграции схемы
func Migrate(db *sql.DB, log *zap.Logger) error {
	goose.SetBaseFS(changelog)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "changelog"); err != nil {
		return err
	}

	log.Info("Миграции успешно применены")
	return nil
}
