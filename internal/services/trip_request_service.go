package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/models"
	"carpool-backend/internal/repository"

	"go.uber.org/zap"
)

const (
	UnknownPassengerName = "Unknown passenger"
	UnknownDriverName    = "Unknown driver"

	// EventTripRequestStatus событие комнаты чата при смене статуса заявки
	EventTripRequestStatus = "trip-request-status"
)

// RequestTripInput заявка пассажира на маршрут
type RequestTripInput struct {
	RouteID       string               `json:"routeId" validate:"required"`
	Pickup        PlaceInput           `json:"pickup"`
	Destination   PlaceInput           `json:"destination"`
	DepartureTime string               `json:"departureTime" validate:"required"`
	RouteDistance float64              `json:"routeDistance" validate:"gt=0"`
	RouteDuration float64              `json:"routeDuration" validate:"gt=0"`
	ExpectedPrice *float64             `json:"expectedPrice" validate:"required,gte=0"`
	RequestNote   string               `json:"requestNote" validate:"max=500"`
	TransportMode models.TransportMode `json:"transportMode" validate:"required,oneof=car scooter"`
}

// TripRequestStatusEvent данные события trip-request-status
type TripRequestStatusEvent struct {
	TripRequestID string                   `json:"tripRequestId"`
	Status        models.TripRequestStatus `json:"status"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

type TripRequestService struct {
	requests    TripRequestStore
	routes      RouteStore
	users       UserStore
	notifier    Notifier
	broadcaster RoomBroadcaster
	now         func() time.Time
	log         *zap.Logger
}

func NewTripRequestService(requests TripRequestStore, routes RouteStore, users UserStore, notifier Notifier, log *zap.Logger) *TripRequestService {
	return &TripRequestService{
		requests: requests,
		routes:   routes,
		users:    users,
		notifier: notifier,
		now:      time.Now,
		log:      log.Named("trip_requests"),
	}
}

// SetBroadcaster подключает рассылку событий в комнаты чата
func (s *TripRequestService) SetBroadcaster(b RoomBroadcaster) {
	s.broadcaster = b
}

// RequestTrip создает заявку в статусе pending и уведомляет водителя
func (s *TripRequestService) RequestTrip(ctx context.Context, passengerID string, in RequestTripInput) (*models.TripRequest, error) {
	in.RouteID = strings.TrimSpace(in.RouteID)
	in.Pickup.Address = strings.TrimSpace(in.Pickup.Address)
	in.Destination.Address = strings.TrimSpace(in.Destination.Address)
	in.RequestNote = strings.TrimSpace(in.RequestNote)

	if err := validateStruct(in); err != nil {
		return nil, err
	}
	departure, err := parseTime("departureTime", in.DepartureTime)
	if err != nil {
		return nil, err
	}

	route, err := s.routes.GetByID(ctx, in.RouteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Маршрут не найден")
	}
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при получении маршрута", err)
	}

	if route.DriverID == passengerID {
		return nil, apperrors.ValidationCode(apperrors.CodeSelfRequest, "Нельзя отправить заявку на собственный маршрут")
	}

	req := &models.TripRequest{
		RouteID:       route.ID,
		DriverID:      route.DriverID,
		PassengerID:   passengerID,
		Pickup:        in.Pickup.Place(),
		Destination:   in.Destination.Place(),
		DepartureTime: departure,
		RouteDistance: in.RouteDistance,
		RouteDuration: in.RouteDuration,
		ExpectedPrice: *in.ExpectedPrice,
		RequestNote:   in.RequestNote,
		TransportMode: in.TransportMode,
		Status:        models.TripRequestStatusPending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperrors.Upstream("Ошибка при создании заявки", err)
	}

	s.notifier.Notify(req.DriverID, models.UserRoleDriver, NotificationEvent{
		Type:  NotificationTripRequest,
		Title: "Новая заявка на поездку",
		Body:  fmt.Sprintf("Поездка от %s до %s", req.Pickup.Address, req.Destination.Address),
		Data: map[string]string{
			"tripRequestId": req.ID,
			"routeId":       req.RouteID,
			"pickup":        req.Pickup.Address,
			"destination":   req.Destination.Address,
			"departureTime": req.DepartureTime.Format(time.RFC3339),
			"expectedPrice": strconv.FormatFloat(req.ExpectedPrice, 'f', -1, 64),
		},
	})

	s.log.Info("Заявка на поездку создана",
		zap.String("trip_request_id", req.ID),
		zap.String("route_id", req.RouteID),
		zap.String("passenger_id", passengerID))
	return req, nil
}

// Get возвращает заявку участнику
func (s *TripRequestService) Get(ctx context.Context, id, callerID string) (*models.TripRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.IsParticipant(callerID) {
		return nil, apperrors.Forbidden("Нет доступа к этой заявке")
	}
	return req, nil
}

// Accept водитель принимает заявку
func (s *TripRequestService) Accept(ctx context.Context, id, callerID string) (*models.TripRequest, error) {
	return s.transition(ctx, id, callerID, models.TripRequestStatusAccepted)
}

// Reject водитель отклоняет заявку
func (s *TripRequestService) Reject(ctx context.Context, id, callerID string) (*models.TripRequest, error) {
	return s.transition(ctx, id, callerID, models.TripRequestStatusRejected)
}

// Cancel пассажир отменяет свою заявку, пока она ожидает решения
func (s *TripRequestService) Cancel(ctx context.Context, id, callerID string) (*models.TripRequest, error) {
	return s.transition(ctx, id, callerID, models.TripRequestStatusCancelled)
}

func (s *TripRequestService) transition(ctx context.Context, id, callerID string, to models.TripRequestStatus) (*models.TripRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := req.DriverID
	if to == models.TripRequestStatusCancelled {
		actor = req.PassengerID
	}
	if callerID != actor {
		return nil, apperrors.Forbidden("Нет прав на изменение статуса заявки")
	}
	if !models.CanTransition(req.Status, to) {
		return nil, apperrors.InvalidState(fmt.Sprintf("Заявка уже в статусе %s", req.Status))
	}

	now := s.now().UTC()
	ok, err := s.requests.TransitionFromPending(ctx, id, to, now)
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при обновлении заявки", err)
	}
	if !ok {
		// Статус изменился между чтением и обновлением
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.InvalidState(fmt.Sprintf("Заявка уже в статусе %s", current.Status))
	}

	req.Status = to
	req.UpdatedAt = now

	s.announce(req)
	s.log.Info("Статус заявки изменен",
		zap.String("trip_request_id", req.ID),
		zap.String("status", string(to)),
		zap.String("actor_id", callerID))
	return req, nil
}

// announce уведомляет второго участника и комнату чата о новом статусе
func (s *TripRequestService) announce(req *models.TripRequest) {
	var (
		recipient string
		role      models.UserRole
		event     NotificationEvent
	)
	data := map[string]string{"tripRequestId": req.ID, "routeId": req.RouteID, "status": string(req.Status)}

	switch req.Status {
	case models.TripRequestStatusAccepted:
		recipient, role = req.PassengerID, models.UserRolePassenger
		event = NotificationEvent{Type: NotificationTripRequestAccepted, Title: "Заявка принята", Body: "Водитель принял вашу заявку на поездку", Data: data}
	case models.TripRequestStatusRejected:
		recipient, role = req.PassengerID, models.UserRolePassenger
		event = NotificationEvent{Type: NotificationTripRequestRejected, Title: "Заявка отклонена", Body: "Водитель отклонил вашу заявку на поездку", Data: data}
	case models.TripRequestStatusCancelled:
		recipient, role = req.DriverID, models.UserRoleDriver
		event = NotificationEvent{Type: NotificationTripRequestCanceled, Title: "Заявка отменена", Body: "Пассажир отменил заявку на поездку", Data: data}
	default:
		return
	}
	s.notifier.Notify(recipient, role, event)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToTrip(req.ID, EventTripRequestStatus, TripRequestStatusEvent{
			TripRequestID: req.ID,
			Status:        req.Status,
			UpdatedAt:     req.UpdatedAt,
		})
	}
}

// ListForDriver заявки водителя, новые первыми, с именами пассажиров
func (s *TripRequestService) ListForDriver(ctx context.Context, driverID, callerID string) ([]models.TripRequestListItem, error) {
	if driverID != callerID {
		return nil, apperrors.Forbidden("Нет доступа к заявкам другого водителя")
	}
	requests, err := s.requests.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при получении заявок", err)
	}
	return s.withNames(ctx, requests, models.UserRolePassenger, func(r *models.TripRequest) string { return r.PassengerID }, UnknownPassengerName), nil
}

// ListForPassenger заявки пассажира, новые первыми, с именами водителей
func (s *TripRequestService) ListForPassenger(ctx context.Context, passengerID, callerID string) ([]models.TripRequestListItem, error) {
	if passengerID != callerID {
		return nil, apperrors.Forbidden("Нет доступа к заявкам другого пассажира")
	}
	requests, err := s.requests.ListByPassenger(ctx, passengerID)
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при получении заявок", err)
	}
	return s.withNames(ctx, requests, models.UserRoleDriver, func(r *models.TripRequest) string { return r.DriverID }, UnknownDriverName), nil
}

func (s *TripRequestService) withNames(ctx context.Context, requests []models.TripRequest, role models.UserRole, counterpart func(*models.TripRequest) string, placeholder string) []models.TripRequestListItem {
	seen := make(map[string]struct{}, len(requests))
	subjects := make([]string, 0, len(requests))
	for i := range requests {
		id := counterpart(&requests[i])
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			subjects = append(subjects, id)
		}
	}

	names, err := s.users.DisplayNames(ctx, subjects, role)
	if err != nil {
		s.log.Warn("Не удалось получить имена участников", zap.Error(err))
		names = nil
	}

	items := make([]models.TripRequestListItem, 0, len(requests))
	for i := range requests {
		name, ok := names[counterpart(&requests[i])]
		if !ok || name == "" {
			name = placeholder
		}
		items = append(items, models.TripRequestListItem{TripRequest: requests[i], CounterpartName: name})
	}
	return items
}

func (s *TripRequestService) load(ctx context.Context, id string) (*models.TripRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Заявка не найдена")
	}
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при получении заявки", err)
	}
	return req, nil
}
