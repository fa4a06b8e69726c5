package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/geo"
	"carpool-backend/internal/metrics"
	"carpool-backend/internal/models"
	"carpool-backend/internal/services/cache"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxDistance = 100.0   // метров
	MaxMaxDistance     = 50000.0 // метров
	DefaultLimit       = 10
	MaxLimit           = 50
	// DepartureWindow маршрут должен отправляться не раньше чем за это время до запрошенного
	DepartureWindow = 30 * time.Minute
	nearbyLimit     = 10

	// cellCandidateLimit если вокруг ячейки больше кандидатов, поиск идет без кэша:
	// обрезанный набор мог бы потерять маршруты, ближайшие к конкретной точке ячейки
	cellCandidateLimit = 100
	// cellSlack запас на погрешность локальной проекции в SegmentDistance, метров
	cellSlack = 1.0
)

// cellRoutes кандидаты поиска вокруг ячейки геохеша; расстояния считаются для каждой точки заново
type cellRoutes struct {
	Routes []models.Route `json:"routes"`
}

// NearbyBothQuery поиск маршрутов, проходящих рядом с посадкой и назначением
type NearbyBothQuery struct {
	Pickup        geo.Point
	Destination   geo.Point
	MaxDistance   float64
	Limit         int
	DepartureTime time.Time
}

type NearbyResult struct {
	Routes      []models.NearbyRoute `json:"routes"`
	Total       int                  `json:"total"`
	MaxDistance float64              `json:"maxDistance"`
}

type NearbyBothResult struct {
	Routes      []models.MatchedRoute `json:"routes"`
	Total       int                   `json:"total"`
	MaxDistance float64               `json:"maxDistance"`
}

// Matcher подбирает маршруты по близости к точкам
type Matcher struct {
	routes RouteStore
	index  *geo.Index
	cache  *cache.CacheService
	log    *zap.Logger
}

func NewMatcher(routes RouteStore, index *geo.Index, cache *cache.CacheService, log *zap.Logger) *Matcher {
	return &Matcher{routes: routes, index: index, cache: cache, log: log.Named("matcher")}
}

func validateMaxDistance(maxDistance float64) error {
	if !(maxDistance > 0 && maxDistance <= MaxMaxDistance) {
		return apperrors.Validation(fmt.Sprintf("maxDistance должен быть больше 0 и не больше %g", MaxMaxDistance))
	}
	return nil
}

func validatePoint(name string, p geo.Point) error {
	if err := p.Validate(); err != nil {
		return apperrors.Validation(fmt.Sprintf("Неверные координаты %s: %v", name, err))
	}
	return nil
}

// Nearby до 10 маршрутов, проходящих не дальше maxDistance от точки, ближайшие первыми.
// Кэш хранит кандидатов для всей ячейки геохеша, поэтому соседние запросы
// из одной ячейки разделяют одну запись.
func (m *Matcher) Nearby(ctx context.Context, p geo.Point, maxDistance float64) (*NearbyResult, error) {
	if err := validatePoint("point", p); err != nil {
		return nil, err
	}
	if err := validateMaxDistance(maxDistance); err != nil {
		return nil, err
	}

	start := time.Now()
	if !m.cache.Enabled() {
		result, err := m.nearbyExact(ctx, p, maxDistance)
		if err == nil {
			metrics.TrackGeoQuery("nearby", false, time.Since(start))
		}
		return result, err
	}

	// Отпечаток читается до поиска: маршрут, добавленный во время поиска,
	// может попасть в запись, но не может из нее пропасть
	cell := geo.CellOf(p)
	key := m.cache.NearbyCellKey(m.index.Snapshot(), cell.Hash, maxDistance)

	var area cellRoutes
	if m.lookup(ctx, key, &area) {
		metrics.TrackGeoQuery("nearby", true, time.Since(start))
		return nearbyWithin(p, maxDistance, area.Routes), nil
	}

	candidates, err := m.index.Nearest(ctx, cell.Center, maxDistance+cell.Radius+cellSlack, cellCandidateLimit+1, nil)
	if err != nil {
		return nil, searchError(err)
	}
	if len(candidates) > cellCandidateLimit {
		result, err := m.nearbyExact(ctx, p, maxDistance)
		if err == nil {
			metrics.TrackGeoQuery("nearby", false, time.Since(start))
		}
		return result, err
	}

	byID, err := m.load(ctx, candidateIDs(candidates))
	if err != nil {
		return nil, err
	}
	area.Routes = make([]models.Route, 0, len(candidates))
	for _, c := range candidates {
		if route, ok := byID[c.RouteID]; ok {
			area.Routes = append(area.Routes, route)
		}
	}
	m.store(ctx, key, area)

	metrics.TrackGeoQuery("nearby", false, time.Since(start))
	return nearbyWithin(p, maxDistance, area.Routes), nil
}

// nearbyExact поиск от самой точки, без кэша
func (m *Matcher) nearbyExact(ctx context.Context, p geo.Point, maxDistance float64) (*NearbyResult, error) {
	candidates, err := m.index.Nearest(ctx, p, maxDistance, nearbyLimit, nil)
	if err != nil {
		return nil, searchError(err)
	}
	byID, err := m.load(ctx, candidateIDs(candidates))
	if err != nil {
		return nil, err
	}

	result := &NearbyResult{Routes: []models.NearbyRoute{}, MaxDistance: maxDistance}
	for _, c := range candidates {
		route, ok := byID[c.RouteID]
		if !ok {
			continue
		}
		result.Routes = append(result.Routes, models.NearbyRoute{Route: route, Distance: c.Distance})
	}
	result.Total = len(result.Routes)
	return result, nil
}

// nearbyWithin отбирает из кандидатов ячейки маршруты не дальше maxDistance от p
func nearbyWithin(p geo.Point, maxDistance float64, routes []models.Route) *NearbyResult {
	result := &NearbyResult{Routes: []models.NearbyRoute{}, MaxDistance: maxDistance}
	for _, route := range routes {
		line, err := geo.ParseLine(route.RouteLine.Coordinates)
		if err != nil {
			continue
		}
		if d := geo.LineDistance(p, line); d <= maxDistance {
			result.Routes = append(result.Routes, models.NearbyRoute{Route: route, Distance: d})
		}
	}

	sort.Slice(result.Routes, func(a, b int) bool {
		ra, rb := result.Routes[a], result.Routes[b]
		if ra.Distance != rb.Distance {
			return ra.Distance < rb.Distance
		}
		return ra.ID < rb.ID
	})
	if len(result.Routes) > nearbyLimit {
		result.Routes = result.Routes[:nearbyLimit]
	}
	result.Total = len(result.Routes)
	return result
}

// NearbyBoth маршруты, проходящие рядом и с посадкой, и с назначением,
// с отправлением в окне [T-30мин, T). Каждый набор кандидатов ограничивается
// лимитом до пересечения; порядок результата совпадает с порядком по посадке.
func (m *Matcher) NearbyBoth(ctx context.Context, q NearbyBothQuery) (*NearbyBothResult, error) {
	if err := validatePoint("pickup", q.Pickup); err != nil {
		return nil, err
	}
	if err := validatePoint("destination", q.Destination); err != nil {
		return nil, err
	}
	if err := validateMaxDistance(q.MaxDistance); err != nil {
		return nil, err
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return nil, apperrors.Validation(fmt.Sprintf("limit должен быть от 1 до %d", MaxLimit))
	}
	if q.DepartureTime.IsZero() {
		return nil, apperrors.Validation("Отсутствует departureTime")
	}

	start := time.Now()
	useCache := m.cache.Enabled()
	key := m.cache.NearbyBothKey(m.index.Snapshot(), q.Pickup, q.Destination, q.MaxDistance, q.Limit, q.DepartureTime)

	var cached NearbyBothResult
	if useCache && m.lookup(ctx, key, &cached) {
		metrics.TrackGeoQuery("nearby_both", true, time.Since(start))
		return &cached, nil
	}

	windowStart := q.DepartureTime.Add(-DepartureWindow)
	inWindow := func(_ string, departure time.Time) bool {
		return !departure.Before(windowStart) && departure.Before(q.DepartureTime)
	}

	// Оба поиска прерываются при отмене запроса
	var nearPickup, nearDest []geo.Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		nearPickup, err = m.index.Nearest(gctx, q.Pickup, q.MaxDistance, q.Limit, inWindow)
		return err
	})
	g.Go(func() (err error) {
		nearDest, err = m.index.Nearest(gctx, q.Destination, q.MaxDistance, q.Limit, inWindow)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, searchError(err)
	}

	destDistance := make(map[string]float64, len(nearDest))
	for _, c := range nearDest {
		destDistance[c.RouteID] = c.Distance
	}

	type match struct {
		id             string
		pickupDistance float64
		destDistance   float64
	}
	matches := make([]match, 0, len(nearPickup))
	for _, c := range nearPickup {
		if d, ok := destDistance[c.RouteID]; ok {
			matches = append(matches, match{id: c.RouteID, pickupDistance: c.Distance, destDistance: d})
		}
	}
	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	ids := make([]string, len(matches))
	for i, mt := range matches {
		ids[i] = mt.id
	}
	byID, err := m.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &NearbyBothResult{Routes: []models.MatchedRoute{}, MaxDistance: q.MaxDistance}
	for _, mt := range matches {
		route, ok := byID[mt.id]
		if !ok {
			continue
		}
		result.Routes = append(result.Routes, models.MatchedRoute{
			Route:          route,
			PickupDistance: mt.pickupDistance,
			DestDistance:   mt.destDistance,
		})
	}
	result.Total = len(result.Routes)

	if useCache {
		m.store(ctx, key, result)
	}
	metrics.TrackGeoQuery("nearby_both", false, time.Since(start))
	return result, nil
}

// load загружает маршруты одним запросом
func (m *Matcher) load(ctx context.Context, ids []string) (map[string]models.Route, error) {
	byID := make(map[string]models.Route, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	routes, err := m.routes.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при загрузке маршрутов", err)
	}
	for _, r := range routes {
		byID[r.ID] = r
	}
	if len(byID) != len(ids) {
		m.log.Warn("Часть маршрутов из индекса отсутствует в хранилище",
			zap.Int("expected", len(ids)), zap.Int("found", len(byID)))
	}
	return byID, nil
}

// searchError поиск по индексу падает только при отмене запроса
func searchError(err error) error {
	return apperrors.Upstream("Поиск маршрутов прерван", err)
}

func (m *Matcher) lookup(ctx context.Context, key string, dst interface{}) bool {
	found, err := m.cache.Get(ctx, key, dst)
	if err != nil {
		m.log.Warn("Ошибка чтения кэша", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (m *Matcher) store(ctx context.Context, key string, value interface{}) {
	if err := m.cache.Set(ctx, key, value); err != nil {
		m.log.Warn("Ошибка записи в кэш", zap.String("key", key), zap.Error(err))
	}
}

func candidateIDs(candidates []geo.Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.RouteID
	}
	return ids
}
