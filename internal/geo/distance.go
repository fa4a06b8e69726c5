package geo

import (
	"fmt"
	"math"
)

// EarthRadius радиус сферы в метрах, как у сферических запросов MongoDB
const EarthRadius = 6378100.0

// Point географическая точка
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Validate проверяет, что координаты конечны и в допустимом диапазоне
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("координаты должны быть числами")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("широта %v вне диапазона [-90, 90]", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("долгота %v вне диапазона [-180, 180]", p.Lng)
	}
	return nil
}

// ParseLine разбирает пары [lng, lat] линии маршрута
func ParseLine(coords [][]float64) ([]Point, error) {
	if len(coords) < 2 {
		return nil, fmt.Errorf("линия маршрута должна содержать минимум 2 точки")
	}
	line := make([]Point, 0, len(coords))
	for i, pair := range coords {
		if len(pair) != 2 {
			return nil, fmt.Errorf("точка %d: ожидается пара [lng, lat]", i)
		}
		p := Point{Lng: pair[0], Lat: pair[1]}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("точка %d: %w", i, err)
		}
		line = append(line, p)
	}
	return line, nil
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Haversine расстояние по большому кругу в метрах
func Haversine(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// SegmentDistance расстояние в метрах от точки до отрезка [a, b].
// Ближайшая точка отрезка ищется в локальной равнопромежуточной проекции вокруг p,
// затем расстояние до нее считается по формуле гаверсинусов.
// Разность долгот приводится к [-180, 180), поэтому отрезок у антимеридиана
// измеряется по короткой стороне.
func SegmentDistance(p, a, b Point) float64 {
	cosLat := math.Cos(toRad(p.Lat))
	aLng, bLng := wrapLng(a.Lng-p.Lng), wrapLng(b.Lng-p.Lng)
	ax, ay := aLng*cosLat, a.Lat-p.Lat
	bx, by := bLng*cosLat, b.Lat-p.Lat

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = -(ax*dx + ay*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}

	closest := Point{
		Lng: p.Lng + aLng + t*(bLng-aLng),
		Lat: a.Lat + t*(b.Lat-a.Lat),
	}
	return Haversine(p, closest)
}

// wrapLng приводит разность долгот к [-180, 180)
func wrapLng(d float64) float64 {
	d = math.Mod(d+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// LineDistance минимальное расстояние от точки до ломаной
func LineDistance(p Point, line []Point) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return Haversine(p, line[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(line); i++ {
		if d := SegmentDistance(p, line[i-1], line[i]); d < best {
			best = d
		}
	}
	return best
}
