package geo

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dhconnelly/rtreego"
)

const (
	// minExtent ненулевая сторона прямоугольника для вертикальных и горизонтальных отрезков
	minExtent = 1e-9
	// cancelCheckEvery как часто поиск проверяет отмену контекста
	cancelCheckEvery = 256
)

// Entry маршрут для индексации
type Entry struct {
	RouteID       string
	DepartureTime time.Time
	Line          []Point
}

// Candidate маршрут-кандидат с расстоянием до точки запроса в метрах
type Candidate struct {
	RouteID       string
	DepartureTime time.Time
	Distance      float64
}

// Filter отбирает кандидатов до применения лимита
type Filter func(routeID string, departure time.Time) bool

type segment struct {
	routeID string
	a, b    Point
	rect    rtreego.Rect
}

func (s *segment) Bounds() rtreego.Rect {
	return s.rect
}

// Index пространственный индекс линий маршрутов: каждый отрезок линии хранится в R-дереве
type Index struct {
	mu       sync.RWMutex
	tree     *rtreego.Rtree
	routes   map[string]time.Time
	snapshot uint64
}

func NewIndex() *Index {
	return &Index{
		tree:   rtreego.NewTree(2, 25, 50),
		routes: make(map[string]time.Time),
	}
}

// Insert добавляет маршрут; повторная вставка того же маршрута игнорируется
func (i *Index) Insert(e Entry) error {
	segments := make([]*segment, 0, len(e.Line))
	for k := 1; k < len(e.Line); k++ {
		rect, err := segmentRect(e.Line[k-1], e.Line[k])
		if err != nil {
			return err
		}
		segments = append(segments, &segment{routeID: e.RouteID, a: e.Line[k-1], b: e.Line[k], rect: rect})
	}
	if len(e.Line) == 1 {
		rect, err := segmentRect(e.Line[0], e.Line[0])
		if err != nil {
			return err
		}
		segments = append(segments, &segment{routeID: e.RouteID, a: e.Line[0], b: e.Line[0], rect: rect})
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.routes[e.RouteID]; exists {
		return nil
	}
	for _, s := range segments {
		i.tree.Insert(s)
	}
	i.routes[e.RouteID] = e.DepartureTime
	i.snapshot ^= xxhash.Sum64String(e.RouteID)
	return nil
}

// Snapshot отпечаток набора проиндексированных маршрутов. Два индекса с одинаковым
// набором маршрутов дают одинаковый отпечаток независимо от порядка вставки.
func (i *Index) Snapshot() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.snapshot
}

// Contains сообщает, проиндексирован ли маршрут
func (i *Index) Contains(routeID string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.routes[routeID]
	return ok
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.routes)
}

// Nearest возвращает маршруты, проходящие не дальше maxDistance метров от точки,
// по возрастанию расстояния (при равенстве по идентификатору).
// filter применяется до лимита; limit <= 0 снимает ограничение.
// Ошибка возвращается только при отмене ctx.
func (i *Index) Nearest(ctx context.Context, p Point, maxDistance float64, limit int, filter Filter) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queries, err := searchRects(p, maxDistance)
	if err != nil {
		return []Candidate{}, nil
	}

	best := make(map[string]float64)

	i.mu.RLock()
	for _, query := range queries {
		hits := i.tree.SearchIntersect(query)
		for n, hit := range hits {
			if n%cancelCheckEvery == cancelCheckEvery-1 {
				if err := ctx.Err(); err != nil {
					i.mu.RUnlock()
					return nil, err
				}
			}
			s := hit.(*segment)
			d := SegmentDistance(p, s.a, s.b)
			if d > maxDistance {
				continue
			}
			if cur, ok := best[s.routeID]; !ok || d < cur {
				best[s.routeID] = d
			}
		}
	}

	candidates := make([]Candidate, 0, len(best))
	for routeID, d := range best {
		departure := i.routes[routeID]
		if filter != nil && !filter(routeID, departure) {
			continue
		}
		candidates = append(candidates, Candidate{RouteID: routeID, DepartureTime: departure, Distance: d})
	}
	i.mu.RUnlock()

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].Distance != candidates[b].Distance {
			return candidates[a].Distance < candidates[b].Distance
		}
		return candidates[a].RouteID < candidates[b].RouteID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// segmentRect прямоугольник отрезка. Отрезок через антимеридиан получает
// прямоугольник почти во всю долготу: поиск по нему избыточен, но не теряет отрезок.
func segmentRect(a, b Point) (rtreego.Rect, error) {
	minLng, maxLng := math.Min(a.Lng, b.Lng), math.Max(a.Lng, b.Lng)
	minLat, maxLat := math.Min(a.Lat, b.Lat), math.Max(a.Lat, b.Lat)
	return rtreego.NewRect(
		rtreego.Point{minLng, minLat},
		[]float64{math.Max(maxLng-minLng, minExtent), math.Max(maxLat-minLat, minExtent)},
	)
}

// searchRects прямоугольники, описанные вокруг окружности радиуса maxDistance.
// Выходящий за ±180° прямоугольник делится на две части по обе стороны антимеридиана.
func searchRects(p Point, maxDistance float64) ([]rtreego.Rect, error) {
	dLat := maxDistance / EarthRadius * 180 / math.Pi
	cosLat := math.Max(math.Cos(toRad(p.Lat)), 1e-6)
	dLng := dLat / cosLat

	minLat, maxLat := p.Lat-dLat, p.Lat+dLat
	minLng, maxLng := p.Lng-dLng, p.Lng+dLng

	var spans [][2]float64
	switch {
	case dLng >= 180:
		spans = [][2]float64{{-180, 180}}
	case minLng < -180:
		spans = [][2]float64{{-180, maxLng}, {minLng + 360, 180}}
	case maxLng > 180:
		spans = [][2]float64{{minLng, 180}, {-180, maxLng - 360}}
	default:
		spans = [][2]float64{{minLng, maxLng}}
	}

	rects := make([]rtreego.Rect, 0, len(spans))
	for _, span := range spans {
		rect, err := rtreego.NewRect(
			rtreego.Point{span[0], minLat},
			[]float64{math.Max(span[1]-span[0], minExtent), math.Max(maxLat-minLat, minExtent)},
		)
		if err != nil {
			return nil, err
		}
		rects = append(rects, rect)
	}
	return rects, nil
}
