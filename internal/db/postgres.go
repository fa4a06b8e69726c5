package db

import (
	"fmt"
	"time"

	"carpool-backend/internal/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectWithRetry открывает соединение с PostgreSQL, повторяя попытки при неудаче
func ConnectWithRetry(cfg config.DBConfig, log *zap.Logger, maxAttempts int, delay time.Duration) (*gorm.DB, error) {
	var err error

	for i := 0; i < maxAttempts; i++ {
		var db *gorm.DB
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Error),
		})
		if err == nil {
			// Настройка пула соединений с БД
			sqlDB, dbErr := db.DB()
			if dbErr != nil {
				return nil, fmt.Errorf("не удалось получить доступ к sql.DB: %w", dbErr)
			}
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
			return db, nil
		}
		log.Warn("Попытка подключения к БД не удалась",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("не удалось подключиться к базе данных после %d попыток: %w", maxAttempts, err)
}
