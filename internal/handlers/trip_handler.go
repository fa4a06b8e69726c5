package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/middleware"
	"carpool-backend/internal/models"
	"carpool-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// requestTripBody принимает точку как {address, lat, lng} или, как в старых клиентах,
// строку адреса плюс pickupCoords/destinationCoords в формате [lng, lat]
type requestTripBody struct {
	RouteID           string               `json:"routeId"`
	Pickup            json.RawMessage      `json:"pickup"`
	Destination       json.RawMessage      `json:"destination"`
	PickupCoords      []float64            `json:"pickupCoords"`
	DestinationCoords []float64            `json:"destinationCoords"`
	DepartureTime     string               `json:"departureTime"`
	RouteDistance     float64              `json:"routeDistance"`
	RouteDuration     float64              `json:"routeDuration"`
	ExpectedPrice     *float64             `json:"expectedPrice"`
	RequestNote       string               `json:"requestNote"`
	TransportMode     models.TransportMode `json:"transportMode"`
}

func parsePlace(field string, raw json.RawMessage, coords []float64) (services.PlaceInput, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return services.PlaceInput{}, apperrors.Validation("Отсутствует поле " + field)
	}

	if raw[0] == '"' {
		var address string
		if err := json.Unmarshal(raw, &address); err != nil {
			return services.PlaceInput{}, apperrors.Validation("Неверный формат поля " + field)
		}
		if len(coords) != 2 {
			return services.PlaceInput{}, apperrors.Validation("Поле " + field + "Coords должно быть парой [lng, lat]")
		}
		return services.NewPlaceInput(address, coords[1], coords[0]), nil
	}

	// Отсутствующие lat/lng остаются nil и отклоняются сервисом
	var place services.PlaceInput
	if err := json.Unmarshal(raw, &place); err != nil {
		return services.PlaceInput{}, apperrors.Validation("Неверный формат поля " + field)
	}
	return place, nil
}

// TripRequestCreate пассажир отправляет заявку на маршрут
func TripRequestCreate(trips TripAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body requestTripBody
		if !bindJSON(c, &body) {
			return
		}

		pickup, err := parsePlace("pickup", body.Pickup, body.PickupCoords)
		if err != nil {
			respondError(c, err)
			return
		}
		destination, err := parsePlace("destination", body.Destination, body.DestinationCoords)
		if err != nil {
			respondError(c, err)
			return
		}

		req, err := trips.RequestTrip(c.Request.Context(), middleware.UserID(c), services.RequestTripInput{
			RouteID:       body.RouteID,
			Pickup:        pickup,
			Destination:   destination,
			DepartureTime: body.DepartureTime,
			RouteDistance: body.RouteDistance,
			RouteDuration: body.RouteDuration,
			ExpectedPrice: body.ExpectedPrice,
			RequestNote:   body.RequestNote,
			TransportMode: body.TransportMode,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "Заявка на поездку создана", "tripRequest": req})
	}
}

func TripRequestGet(trips TripAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := trips.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, req)
	}
}

func transition(message string, apply func(c *gin.Context) (*models.TripRequest, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := apply(c)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": message, "tripRequest": req})
	}
}

// TripRequestAccept водитель принимает заявку
func TripRequestAccept(trips TripAPI) gin.HandlerFunc {
	return transition("Заявка принята", func(c *gin.Context) (*models.TripRequest, error) {
		return trips.Accept(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	})
}

// TripRequestReject водитель отклоняет заявку
func TripRequestReject(trips TripAPI) gin.HandlerFunc {
	return transition("Заявка отклонена", func(c *gin.Context) (*models.TripRequest, error) {
		return trips.Reject(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	})
}

// TripRequestCancel пассажир отменяет заявку
func TripRequestCancel(trips TripAPI) gin.HandlerFunc {
	return transition("Заявка отменена", func(c *gin.Context) (*models.TripRequest, error) {
		return trips.Cancel(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	})
}

func TripRequestListByDriver(trips TripAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := trips.ListForDriver(c.Request.Context(), c.Param("driverId"), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func TripRequestListByPassenger(trips TripAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := trips.ListForPassenger(c.Request.Context(), c.Param("passengerId"), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}
