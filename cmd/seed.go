package cmd

import (
	"time"

	"carpool-backend/internal/db"
	"carpool-backend/internal/geo"
	"carpool-backend/internal/repository"
	"carpool-backend/internal/seed"
	"carpool-backend/internal/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Заполнить базу тестовыми маршрутами по Хошимину",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()
		ctx := cmd.Context()

		gdb, err := connectDB(cfg, log)
		if err != nil {
			return err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		// Через Redis запущенные экземпляры узнают о новых маршрутах
		var events services.RouteEvents
		redisClient, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis недоступен, запущенные экземпляры не получат новые маршруты до перезапуска", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			events = services.NewRedisRouteEvents(redisClient, log)
		}

		routeService := services.NewRouteService(
			repository.NewRouteRepository(gdb),
			geo.NewIndex(),
			events,
			log,
		)

		_, err = seed.Run(ctx, routeService, time.Now(), log)
		return err
	},
}
