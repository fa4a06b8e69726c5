package handlers

import (
	"context"
	"strconv"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/geo"
	"carpool-backend/internal/models"
	"carpool-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type RouteAPI interface {
	CreateRoute(ctx context.Context, driverID string, in services.CreateRouteInput) (*models.Route, error)
	GetRoute(ctx context.Context, id string) (*models.Route, error)
}

type MatchAPI interface {
	Nearby(ctx context.Context, p geo.Point, maxDistance float64) (*services.NearbyResult, error)
	NearbyBoth(ctx context.Context, q services.NearbyBothQuery) (*services.NearbyBothResult, error)
}

type TripAPI interface {
	RequestTrip(ctx context.Context, passengerID string, in services.RequestTripInput) (*models.TripRequest, error)
	Get(ctx context.Context, id, callerID string) (*models.TripRequest, error)
	Accept(ctx context.Context, id, callerID string) (*models.TripRequest, error)
	Reject(ctx context.Context, id, callerID string) (*models.TripRequest, error)
	Cancel(ctx context.Context, id, callerID string) (*models.TripRequest, error)
	ListForDriver(ctx context.Context, driverID, callerID string) ([]models.TripRequestListItem, error)
	ListForPassenger(ctx context.Context, passengerID, callerID string) ([]models.TripRequestListItem, error)
}

type ChatAPI interface {
	ListMessages(ctx context.Context, tripRequestID, callerID string) ([]models.Message, error)
	SendMessage(ctx context.Context, senderID string, in services.SendMessageInput) (*models.Message, error)
	MarkRead(ctx context.Context, messageID, callerID string) (*models.Message, error)
}

type UserAPI interface {
	RegisterDeviceToken(ctx context.Context, subject string, in services.RegisterDeviceTokenInput) ([]models.User, error)
	Profiles(ctx context.Context, subject string) ([]models.User, error)
}

// respondError отвечает {"error": сообщение, "code": код}; причина внутренних ошибок
// попадает в журнал запросов
func respondError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	if appErr.Kind == apperrors.KindUpstream {
		_ = c.Error(err)
	}
	c.JSON(apperrors.HTTPStatus(appErr), gin.H{"error": appErr.Message, "code": appErr.Code})
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperrors.Validation("Неверный формат данных запроса"))
		return false
	}
	return true
}

// queryFloat читает число из query; пустое значение заменяется def, если он задан
func queryFloat(c *gin.Context, name string, def *float64) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		if def != nil {
			return *def, nil
		}
		return 0, apperrors.Validation("Отсутствует параметр " + name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.Validation("Неверный формат параметра " + name)
	}
	return v, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validation("Неверный формат параметра " + name)
	}
	return v, nil
}
