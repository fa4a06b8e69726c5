package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"carpool-backend/internal/config"
	"carpool-backend/internal/db"
	"carpool-backend/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dbConnectAttempts = 5
	dbConnectDelay    = 5 * time.Second
)

var rootCmd = &cobra.Command{
	Use:           "carpool",
	Short:         "Сервис поиска попутчиков",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
}

// bootstrap читает конфигурацию и создает логгер
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка конфигурации: %w", err)
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format), nil
}

func connectDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gdb, err := db.ConnectWithRetry(cfg.DB, log, dbConnectAttempts, dbConnectDelay)
	if err != nil {
		return nil, err
	}
	log.Info("Подключение к базе данных установлено", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))
	return gdb, nil
}
