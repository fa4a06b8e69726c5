package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/geo"
	"carpool-backend/internal/models"
	"carpool-backend/internal/services/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseDeparture = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type recordingEvents struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (e *recordingEvents) PublishIndexed(_ context.Context, routeID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.published = append(e.published, routeID)
	return e.err
}

func disabledCache() *cache.CacheService {
	return cache.NewCacheService(nil, 0, false)
}

func redisCache(t *testing.T) (*cache.CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewCacheService(client, time.Minute, true), mr
}

// horizontalLine линия вдоль параллели lat
func horizontalLine(lat float64) models.LineString {
	return models.LineString{
		Type:        models.LineStringType,
		Coordinates: [][]float64{{106.69, lat}, {106.76, lat}},
	}
}

func coord(v float64) *float64 {
	return &v
}

func validRouteInput() CreateRouteInput {
	return CreateRouteInput{
		From:          NewPlaceInput("Ben Thanh Market", 10.7725, 106.6980),
		To:            NewPlaceInput("Thu Duc", 10.8497, 106.7717),
		RouteLine:     horizontalLine(10.77),
		DepartureTime: baseDeparture.Format(time.RFC3339),
		TransportMode: models.TransportModeCar,
	}
}

func TestCreateRoute(t *testing.T) {
	store := newFakeRouteStore()
	index := geo.NewIndex()
	events := &recordingEvents{}
	svc := NewRouteService(store, index, events, zap.NewNop())

	in := validRouteInput()
	in.From.Address = "  Ben Thanh Market  "

	route, err := svc.CreateRoute(context.Background(), "driver-1", in)
	require.NoError(t, err)

	assert.NotEmpty(t, route.ID)
	assert.Equal(t, "driver-1", route.DriverID)
	assert.Equal(t, "Ben Thanh Market", route.From.Address)
	assert.Equal(t, models.LineStringType, route.RouteLine.Type)
	assert.True(t, route.DepartureTime.Equal(baseDeparture))

	assert.True(t, index.Contains(route.ID))
	assert.Equal(t, []string{route.ID}, events.published)
}

func TestCreateRoutePublishFailureIsNotFatal(t *testing.T) {
	index := geo.NewIndex()
	events := &recordingEvents{err: errors.New("redis down")}
	svc := NewRouteService(newFakeRouteStore(), index, events, zap.NewNop())

	route, err := svc.CreateRoute(context.Background(), "driver-1", validRouteInput())
	require.NoError(t, err)
	assert.True(t, index.Contains(route.ID))
}

func TestCreateRouteValidation(t *testing.T) {
	tests := []struct {
		name     string
		driverID string
		modify   func(in *CreateRouteInput)
	}{
		{name: "пустой водитель", driverID: "", modify: func(in *CreateRouteInput) {}},
		{name: "нет адреса отправления", driverID: "d", modify: func(in *CreateRouteInput) { in.From.Address = "   " }},
		{name: "широта вне диапазона", driverID: "d", modify: func(in *CreateRouteInput) { in.To.Lat = coord(91) }},
		{name: "долгота вне диапазона", driverID: "d", modify: func(in *CreateRouteInput) { in.From.Lng = coord(-181) }},
		{name: "нет широты отправления", driverID: "d", modify: func(in *CreateRouteInput) { in.From.Lat = nil }},
		{name: "нет долготы назначения", driverID: "d", modify: func(in *CreateRouteInput) { in.To.Lng = nil }},
		{name: "одна точка линии", driverID: "d", modify: func(in *CreateRouteInput) {
			in.RouteLine.Coordinates = [][]float64{{106.69, 10.77}}
		}},
		{name: "точка линии без широты", driverID: "d", modify: func(in *CreateRouteInput) {
			in.RouteLine.Coordinates = [][]float64{{106.69, 10.77}, {106.70}}
		}},
		{name: "неверный тип линии", driverID: "d", modify: func(in *CreateRouteInput) { in.RouteLine.Type = "Point" }},
		{name: "нет типа линии", driverID: "d", modify: func(in *CreateRouteInput) { in.RouteLine.Type = "" }},
		{name: "неверное время", driverID: "d", modify: func(in *CreateRouteInput) { in.DepartureTime = "tomorrow" }},
		{name: "нет времени", driverID: "d", modify: func(in *CreateRouteInput) { in.DepartureTime = "" }},
		{name: "неизвестный транспорт", driverID: "d", modify: func(in *CreateRouteInput) { in.TransportMode = "bike" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeRouteStore()
			index := geo.NewIndex()
			svc := NewRouteService(store, index, nil, zap.NewNop())

			in := validRouteInput()
			tt.modify(&in)

			_, err := svc.CreateRoute(context.Background(), tt.driverID, in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidation), "got %v", err)
			assert.Empty(t, store.routes)
			assert.Equal(t, 0, index.Len())
		})
	}
}

func TestCreateRouteStoreFailure(t *testing.T) {
	store := newFakeRouteStore()
	store.err = errors.New("connection refused")
	index := geo.NewIndex()
	svc := NewRouteService(store, index, nil, zap.NewNop())

	_, err := svc.CreateRoute(context.Background(), "driver-1", validRouteInput())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))
	assert.Equal(t, 0, index.Len())
}

func TestGetRoute(t *testing.T) {
	svc := NewRouteService(newFakeRouteStore(), geo.NewIndex(), nil, zap.NewNop())

	_, err := svc.GetRoute(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	created, err := svc.CreateRoute(context.Background(), "driver-1", validRouteInput())
	require.NoError(t, err)

	got, err := svc.GetRoute(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestLoadIndexSkipsBrokenLines(t *testing.T) {
	store := newFakeRouteStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Route{ID: "good", RouteLine: horizontalLine(10.77), DepartureTime: baseDeparture}))
	require.NoError(t, store.Create(ctx, &models.Route{ID: "broken", RouteLine: models.LineString{Coordinates: [][]float64{{1, 2}}}}))

	index := geo.NewIndex()
	svc := NewRouteService(store, index, nil, zap.NewNop())

	require.NoError(t, svc.LoadIndex(ctx))
	assert.True(t, index.Contains("good"))
	assert.False(t, index.Contains("broken"))
	assert.Equal(t, 1, index.Len())
}

func TestHandleIndexed(t *testing.T) {
	store := newFakeRouteStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Route{ID: "remote", RouteLine: horizontalLine(10.77), DepartureTime: baseDeparture}))

	index := geo.NewIndex()
	svc := NewRouteService(store, index, nil, zap.NewNop())

	svc.HandleIndexed(ctx, "remote")
	assert.True(t, index.Contains("remote"))

	// Повтор и неизвестный маршрут не ломают индекс
	svc.HandleIndexed(ctx, "remote")
	svc.HandleIndexed(ctx, "unknown")
	assert.Equal(t, 1, index.Len())
}
