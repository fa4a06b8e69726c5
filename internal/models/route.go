package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransportMode string

const (
	TransportModeCar     TransportMode = "car"     // Автомобиль
	TransportModeScooter TransportMode = "scooter" // Скутер
)

// Valid проверяет, что вид транспорта входит в допустимый набор
func (m TransportMode) Valid() bool {
	return m == TransportModeCar || m == TransportModeScooter
}

// Place точка с адресом
type Place struct {
	Address string  `json:"address" gorm:"not null" validate:"required"`
	Lat     float64 `json:"lat" gorm:"not null" validate:"gte=-90,lte=90"`
	Lng     float64 `json:"lng" gorm:"not null" validate:"gte=-180,lte=180"`
}

const LineStringType = "LineString"

// LineString геометрия маршрута, координаты в порядке [lng, lat]
type LineString struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// Route опубликованный водителем маршрут с временем отправления
type Route struct {
	ID            string        `json:"id" gorm:"primaryKey;type:uuid"`
	DriverID      string        `json:"driverId" gorm:"not null;index"`
	From          Place         `json:"from" gorm:"embedded;embeddedPrefix:from_"`
	To            Place         `json:"to" gorm:"embedded;embeddedPrefix:to_"`
	RouteLine     LineString    `json:"routeLine" gorm:"type:jsonb;serializer:json;not null"`
	DepartureTime time.Time     `json:"departureTime" gorm:"not null;index"`
	TransportMode TransportMode `json:"transportMode" gorm:"type:varchar(20);not null"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func (r *Route) TableName() string {
	return "routes"
}

// BeforeCreate назначает идентификатор новой записи
func (r *Route) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// NearbyRoute маршрут рядом с одной точкой
type NearbyRoute struct {
	Route
	Distance float64 `json:"distance"`
}

// MatchedRoute маршрут, проходящий рядом и с точкой посадки, и с точкой назначения
type MatchedRoute struct {
	Route
	PickupDistance float64 `json:"pickupDistance"`
	DestDistance   float64 `json:"destDistance"`
}
