package services

import (
	"context"
	"errors"
	"strings"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/geo"
	"carpool-backend/internal/models"
	"carpool-backend/internal/repository"

	"go.uber.org/zap"
)

// CreateRouteInput данные нового маршрута водителя
type CreateRouteInput struct {
	From          PlaceInput           `json:"from"`
	To            PlaceInput           `json:"to"`
	RouteLine     models.LineString    `json:"routeLine"`
	DepartureTime string               `json:"departureTime" validate:"required"`
	TransportMode models.TransportMode `json:"transportMode" validate:"required,oneof=car scooter"`
}

// RouteService реестр маршрутов и их пространственный индекс
type RouteService struct {
	routes RouteStore
	index  *geo.Index
	events RouteEvents
	log    *zap.Logger
}

// NewRouteService events может быть nil; тогда другие экземпляры не узнают о новых маршрутах
func NewRouteService(routes RouteStore, index *geo.Index, events RouteEvents, log *zap.Logger) *RouteService {
	return &RouteService{
		routes: routes,
		index:  index,
		events: events,
		log:    log.Named("routes"),
	}
}

// CreateRoute сохраняет маршрут водителя driverID и добавляет его в индекс
func (s *RouteService) CreateRoute(ctx context.Context, driverID string, in CreateRouteInput) (*models.Route, error) {
	in.From.Address = strings.TrimSpace(in.From.Address)
	in.To.Address = strings.TrimSpace(in.To.Address)

	if driverID == "" {
		return nil, apperrors.Validation("Отсутствует driverId")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.RouteLine.Type == "" {
		return nil, apperrors.Validation("Отсутствует routeLine.type")
	}
	if in.RouteLine.Type != models.LineStringType {
		return nil, apperrors.Validation("Неверный тип routeLine, ожидается LineString")
	}
	line, err := geo.ParseLine(in.RouteLine.Coordinates)
	if err != nil {
		return nil, apperrors.Validation("Неверные координаты routeLine: " + err.Error())
	}
	departure, err := parseTime("departureTime", in.DepartureTime)
	if err != nil {
		return nil, err
	}

	route := &models.Route{
		DriverID: driverID,
		From:     in.From.Place(),
		To:       in.To.Place(),
		RouteLine: models.LineString{
			Type:        models.LineStringType,
			Coordinates: in.RouteLine.Coordinates,
		},
		DepartureTime: departure,
		TransportMode: in.TransportMode,
	}

	if err := s.routes.Create(ctx, route); err != nil {
		return nil, apperrors.Upstream("Ошибка при сохранении маршрута", err)
	}

	if err := s.index.Insert(geo.Entry{RouteID: route.ID, DepartureTime: route.DepartureTime, Line: line}); err != nil {
		s.log.Error("Не удалось добавить маршрут в индекс", zap.String("route_id", route.ID), zap.Error(err))
	}
	if s.events != nil {
		if err := s.events.PublishIndexed(ctx, route.ID); err != nil {
			s.log.Warn("Не удалось оповестить о новом маршруте", zap.String("route_id", route.ID), zap.Error(err))
		}
	}

	s.log.Info("Маршрут создан",
		zap.String("route_id", route.ID),
		zap.String("driver_id", driverID),
		zap.Time("departure_time", route.DepartureTime))
	return route, nil
}

func (s *RouteService) GetRoute(ctx context.Context, id string) (*models.Route, error) {
	route, err := s.routes.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Маршрут не найден")
	}
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при получении маршрута", err)
	}
	return route, nil
}

// LoadIndex загружает все маршруты из хранилища в индекс
func (s *RouteService) LoadIndex(ctx context.Context) error {
	if err := s.routes.ForEach(ctx, s.indexRoute); err != nil {
		return err
	}
	s.log.Info("Индекс маршрутов загружен", zap.Int("routes", s.index.Len()))
	return nil
}

// HandleIndexed добавляет в индекс маршрут, созданный другим экземпляром сервиса
func (s *RouteService) HandleIndexed(ctx context.Context, routeID string) {
	if s.index.Contains(routeID) {
		return
	}
	route, err := s.routes.GetByID(ctx, routeID)
	if err != nil {
		s.log.Warn("Не удалось загрузить маршрут для индекса", zap.String("route_id", routeID), zap.Error(err))
		return
	}
	if err := s.indexRoute(route); err != nil {
		s.log.Warn("Маршрут пропущен при индексации", zap.String("route_id", routeID), zap.Error(err))
	}
}

func (s *RouteService) indexRoute(route *models.Route) error {
	line, err := geo.ParseLine(route.RouteLine.Coordinates)
	if err != nil {
		// Некорректная геометрия в хранилище не должна останавливать загрузку
		s.log.Warn("Некорректная линия маршрута", zap.String("route_id", route.ID), zap.Error(err))
		return nil
	}
	return s.index.Insert(geo.Entry{RouteID: route.ID, DepartureTime: route.DepartureTime, Line: line})
}
