package routes

import (
	"carpool-backend/internal/auth"
	"carpool-backend/internal/handlers"
	"carpool-backend/internal/middleware"
	"carpool-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Deps сервисы, которые обслуживают HTTP API
type Deps struct {
	Verifier auth.Verifier
	Routes   handlers.RouteAPI
	Matcher  handlers.MatchAPI
	Trips    handlers.TripAPI
	Chat     handlers.ChatAPI
	Users    handlers.UserAPI
	Rooms    services.RoomBroadcaster
}

func SetupRoutes(api *gin.RouterGroup, deps Deps) {
	// Все маршруты API требуют аутентификации
	protected := api.Group("")
	protected.Use(middleware.Auth(deps.Verifier))
	{
		// Маршруты водителей и поиск попутчиков
		protected.POST("/routes", handlers.RouteCreate(deps.Routes))
		protected.GET("/routes/nearby", handlers.RouteNearby(deps.Matcher))
		protected.GET("/routes/nearby-both", handlers.RouteNearbyBoth(deps.Matcher))
		protected.GET("/routes/:id", handlers.RouteGet(deps.Routes))

		// Заявки на поездку
		protected.POST("/trips/request-trip", handlers.TripRequestCreate(deps.Trips))
		protected.GET("/trips/driver/:driverId", handlers.TripRequestListByDriver(deps.Trips))
		protected.GET("/trips/passenger/:passengerId", handlers.TripRequestListByPassenger(deps.Trips))
		protected.GET("/trips/:id", handlers.TripRequestGet(deps.Trips))
		protected.PUT("/trips/:id/accept", handlers.TripRequestAccept(deps.Trips))
		protected.PUT("/trips/:id/reject", handlers.TripRequestReject(deps.Trips))
		protected.PUT("/trips/:id/cancel", handlers.TripRequestCancel(deps.Trips))

		// Чат заявки
		protected.GET("/messages/:tripRequestId", handlers.MessageList(deps.Chat))
		protected.POST("/messages", handlers.MessageCreate(deps.Chat, deps.Rooms))
		protected.PUT("/messages/:messageId/read", handlers.MessageMarkRead(deps.Chat, deps.Rooms))

		// Пользователи и устройства
		protected.GET("/users/me", handlers.UserGetProfile(deps.Users))
		protected.POST("/users/device-token", handlers.UpdateDeviceToken(deps.Users))
	}
}
