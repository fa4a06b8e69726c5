package handlers

import (
	"net/http"
	"time"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/geo"
	"carpool-backend/internal/middleware"
	"carpool-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// RouteCreate создание маршрута; водителем считается текущий пользователь
func RouteCreate(routes RouteAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.CreateRouteInput
		if !bindJSON(c, &in) {
			return
		}

		route, err := routes.CreateRoute(c.Request.Context(), middleware.UserID(c), in)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "Маршрут создан", "route": route})
	}
}

func RouteGet(routes RouteAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		route, err := routes.GetRoute(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, route)
	}
}

// RouteNearby маршруты рядом с точкой: ?lng&lat&maxDistance
func RouteNearby(matcher MatchAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		lng, err := queryFloat(c, "lng", nil)
		if err != nil {
			respondError(c, err)
			return
		}
		lat, err := queryFloat(c, "lat", nil)
		if err != nil {
			respondError(c, err)
			return
		}
		def := services.DefaultMaxDistance
		maxDistance, err := queryFloat(c, "maxDistance", &def)
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := matcher.Nearby(c.Request.Context(), geo.Point{Lng: lng, Lat: lat}, maxDistance)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// RouteNearbyBoth маршруты рядом с посадкой и назначением в окне отправления
func RouteNearbyBoth(matcher MatchAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		var coords [4]float64
		for i, name := range []string{"pickupLng", "pickupLat", "destLng", "destLat"} {
			v, err := queryFloat(c, name, nil)
			if err != nil {
				respondError(c, err)
				return
			}
			coords[i] = v
		}

		def := services.DefaultMaxDistance
		maxDistance, err := queryFloat(c, "maxDistance", &def)
		if err != nil {
			respondError(c, err)
			return
		}
		limit, err := queryInt(c, "limit", services.DefaultLimit)
		if err != nil {
			respondError(c, err)
			return
		}

		raw := c.Query("departureTime")
		if raw == "" {
			respondError(c, apperrors.Validation("Отсутствует параметр departureTime"))
			return
		}
		departure, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, apperrors.Validation("Неверный формат параметра departureTime"))
			return
		}

		result, err := matcher.NearbyBoth(c.Request.Context(), services.NearbyBothQuery{
			Pickup:        geo.Point{Lng: coords[0], Lat: coords[1]},
			Destination:   geo.Point{Lng: coords[2], Lat: coords[3]},
			MaxDistance:   maxDistance,
			Limit:         limit,
			DepartureTime: departure.UTC(),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
