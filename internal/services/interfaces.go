package services

import (
	"context"
	"time"

	"carpool-backend/internal/models"
)

type RouteStore interface {
	Create(ctx context.Context, route *models.Route) error
	GetByID(ctx context.Context, id string) (*models.Route, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Route, error)
	ForEach(ctx context.Context, fn func(route *models.Route) error) error
}

type TripRequestStore interface {
	Create(ctx context.Context, req *models.TripRequest) error
	GetByID(ctx context.Context, id string) (*models.TripRequest, error)
	TransitionFromPending(ctx context.Context, id string, to models.TripRequestStatus, at time.Time) (bool, error)
	ListByDriver(ctx context.Context, driverID string) ([]models.TripRequest, error)
	ListByPassenger(ctx context.Context, passengerID string) ([]models.TripRequest, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByTripRequest(ctx context.Context, tripRequestID string) ([]models.Message, error)
	MarkRead(ctx context.Context, id string) error
}

type UserStore interface {
	UpsertDeviceToken(ctx context.Context, user *models.User) error
	GetBySubjectRole(ctx context.Context, subject string, role models.UserRole) (*models.User, error)
	ListBySubject(ctx context.Context, subject string) ([]models.User, error)
	DisplayNames(ctx context.Context, subjects []string, role models.UserRole) (map[string]string, error)
	ClearDeviceToken(ctx context.Context, token string) error
}

// Notifier ставит push-уведомление в очередь и не блокирует вызывающего
type Notifier interface {
	Notify(userID string, role models.UserRole, event NotificationEvent)
}

// RoomBroadcaster рассылает событие участникам комнаты чата заявки
type RoomBroadcaster interface {
	BroadcastToTrip(tripRequestID string, event string, data interface{})
}

// RouteEvents оповещает другие экземпляры сервиса о новых маршрутах
type RouteEvents interface {
	PublishIndexed(ctx context.Context, routeID string) error
}
