package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

// CellPrecision длина геохеша ячейки поиска (около 153x153 м)
const CellPrecision = 7

// Cell ячейка геохеша. Любая точка ячейки лежит не дальше Radius от Center,
// поэтому поиск от центра с радиусом d+Radius покрывает поиск с радиусом d
// от любой точки ячейки.
type Cell struct {
	Hash   string
	Center Point
	Radius float64 // метров
}

// CellOf ячейка, содержащая точку
func CellOf(p Point) Cell {
	hash := geohash.EncodeWithPrecision(p.Lat, p.Lng, CellPrecision)
	box := geohash.BoundingBox(hash)
	lat, lng := box.Center()
	center := Point{Lng: lng, Lat: lat}

	corners := []Point{
		{Lng: box.MinLng, Lat: box.MinLat},
		{Lng: box.MinLng, Lat: box.MaxLat},
		{Lng: box.MaxLng, Lat: box.MinLat},
		{Lng: box.MaxLng, Lat: box.MaxLat},
	}
	radius := 0.0
	for _, c := range corners {
		radius = math.Max(radius, Haversine(center, c))
	}
	return Cell{Hash: hash, Center: center, Radius: radius}
}
