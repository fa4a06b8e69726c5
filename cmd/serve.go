package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"carpool-backend/internal/auth"
	"carpool-backend/internal/config"
	"carpool-backend/internal/db"
	"carpool-backend/internal/geo"
	"carpool-backend/internal/middleware"
	"carpool-backend/internal/repository"
	"carpool-backend/internal/routes"
	"carpool-backend/internal/services"
	"carpool-backend/internal/services/cache"
	"carpool-backend/internal/websocket"
	"carpool-backend/migrations"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP и WebSocket сервер",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, log)
	},
}

// identity выбирает проверку токенов и отправку push-уведомлений.
// Приложение Firebase создается один раз и обслуживает обе задачи.
func identity(ctx context.Context, cfg *config.Config, log *zap.Logger) (auth.Verifier, services.MessageSender, error) {
	var sender services.MessageSender
	var verifier auth.Verifier

	if cfg.Firebase.Enabled() {
		clients, err := services.NewFirebaseClients(ctx, cfg.Firebase)
		if err != nil {
			if cfg.Auth.Provider == config.AuthProviderFirebase {
				return nil, nil, err
			}
			log.Warn("Firebase недоступен, push-уведомления отключены", zap.Error(err))
		} else {
			sender = clients.Messaging
			if cfg.Auth.Provider == config.AuthProviderFirebase {
				verifier = auth.NewFirebaseVerifier(clients.Auth)
			}
		}
	} else {
		log.Warn("Firebase не настроен, push-уведомления отключены")
	}

	if verifier == nil {
		verifier = auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	}
	log.Info("Проверка токенов", zap.String("provider", cfg.Auth.Provider))
	return verifier, sender, nil
}

func corsConfig(clientURL string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if clientURL == "" || clientURL == "*" {
		c.AllowAllOrigins = true
		return c
	}
	for _, origin := range strings.Split(clientURL, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			c.AllowOrigins = append(c.AllowOrigins, origin)
		}
	}
	c.AllowCredentials = true
	return c
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	gdb, err := connectDB(cfg, log)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := migrations.Migrate(sqlDB, log); err != nil {
		return fmt.Errorf("ошибка миграции базы данных: %w", err)
	}

	redisClient, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Redis недоступен, продолжаем без кэширования", zap.Error(err))
		redisClient = nil
	} else {
		log.Info("Успешное подключение к Redis")
		defer redisClient.Close()
	}

	verifier, sender, err := identity(ctx, cfg, log)
	if err != nil {
		return err
	}

	routeRepo := repository.NewRouteRepository(gdb)
	tripRepo := repository.NewTripRequestRepository(gdb)
	messageRepo := repository.NewMessageRepository(gdb)
	userRepo := repository.NewUserRepository(gdb)

	searchCache := cache.NewCacheService(redisClient, cfg.Cache.NearbyTTL, cfg.Cache.Enabled)
	index := geo.NewIndex()

	var events services.RouteEvents
	var redisEvents *services.RedisRouteEvents
	if redisClient != nil {
		redisEvents = services.NewRedisRouteEvents(redisClient, log)
		events = redisEvents
	}

	routeService := services.NewRouteService(routeRepo, index, events, log)
	if err := routeService.LoadIndex(ctx); err != nil {
		return fmt.Errorf("ошибка загрузки индекса маршрутов: %w", err)
	}
	if redisEvents != nil {
		if err := redisEvents.Subscribe(ctx, routeService.HandleIndexed); err != nil {
			log.Warn("Не удалось подписаться на новые маршруты", zap.Error(err))
		}
	}
	matcher := services.NewMatcher(routeRepo, index, searchCache, log)

	notifications := services.NewNotificationService(sender, userRepo, cfg.Notify.Workers, cfg.Notify.QueueSize, log)
	notifications.Start()
	defer notifications.Stop()

	tripService := services.NewTripRequestService(tripRepo, routeRepo, userRepo, notifications, log)
	messageService := services.NewMessageService(messageRepo, tripRepo, notifications, log)
	userService := services.NewUserService(userRepo, log)

	hub := websocket.NewHub(messageService, verifier, log)
	tripService.SetBroadcaster(hub)

	r := gin.New()
	r.Use(middleware.RequestLogger(log))
	r.Use(gin.Recovery())
	r.Use(middleware.PrometheusMiddleware())
	r.Use(cors.New(corsConfig(cfg.ClientURL)))

	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		return err
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
			"routes": index.Len(),
		})
	})

	routes.SetupRoutes(r.Group("/api"), routes.Deps{
		Verifier: verifier,
		Routes:   routeService,
		Matcher:  matcher,
		Trips:    tripService,
		Chat:     messageService,
		Users:    userService,
		Rooms:    hub,
	})

	// Токен WebSocket проверяется в самом обработчике, вне группы /api
	r.GET("/ws", hub.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Сервер запущен", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("ошибка запуска сервера: %w", err)
	case <-ctx.Done():
	}

	log.Info("Получен сигнал завершения, закрываем соединения")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	log.Info("Сервер корректно завершил работу")
	return nil
}
