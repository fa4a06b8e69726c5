package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TripRequestStatus string

const (
	TripRequestStatusPending   TripRequestStatus = "pending"   // Ожидает решения водителя
	TripRequestStatusAccepted  TripRequestStatus = "accepted"  // Принята водителем
	TripRequestStatusRejected  TripRequestStatus = "rejected"  // Отклонена водителем
	TripRequestStatusCancelled TripRequestStatus = "cancelled" // Отменена
)

// tripRequestTransitions допустимые переходы; из конечных статусов переходов нет
var tripRequestTransitions = map[TripRequestStatus][]TripRequestStatus{
	TripRequestStatusPending: {
		TripRequestStatusAccepted,
		TripRequestStatusRejected,
		TripRequestStatusCancelled,
	},
}

// CanTransition проверяет, разрешен ли переход статуса заявки
func CanTransition(from, to TripRequestStatus) bool {
	for _, next := range tripRequestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из статуса нет переходов
func (s TripRequestStatus) IsTerminal() bool {
	return len(tripRequestTransitions[s]) == 0
}

// TripRequest заявка пассажира на поездку по маршруту водителя
type TripRequest struct {
	ID            string            `json:"id" gorm:"primaryKey;type:uuid"`
	RouteID       string            `json:"routeId" gorm:"type:uuid;not null;index"`
	DriverID      string            `json:"driverId" gorm:"not null"`
	PassengerID   string            `json:"passengerId" gorm:"not null"`
	Pickup        Place             `json:"pickup" gorm:"embedded;embeddedPrefix:pickup_"`
	Destination   Place             `json:"destination" gorm:"embedded;embeddedPrefix:destination_"`
	DepartureTime time.Time         `json:"departureTime" gorm:"not null"`
	RouteDistance float64           `json:"routeDistance" gorm:"not null"`
	RouteDuration float64           `json:"routeDuration" gorm:"not null"`
	ExpectedPrice float64           `json:"expectedPrice" gorm:"not null"`
	RequestNote   string            `json:"requestNote,omitempty" gorm:"default:''"`
	TransportMode TransportMode     `json:"transportMode" gorm:"type:varchar(20);not null"`
	Status        TripRequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func (t *TripRequest) TableName() string {
	return "trip_requests"
}

func (t *TripRequest) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// IsParticipant сообщает, является ли пользователь водителем или пассажиром заявки
func (t *TripRequest) IsParticipant(userID string) bool {
	return userID != "" && (userID == t.DriverID || userID == t.PassengerID)
}

// OtherParticipant возвращает второго участника заявки
func (t *TripRequest) OtherParticipant(userID string) string {
	if userID == t.PassengerID {
		return t.DriverID
	}
	return t.PassengerID
}

// RoleOf возвращает роль участника в этой заявке
func (t *TripRequest) RoleOf(userID string) UserRole {
	if userID == t.DriverID {
		return UserRoleDriver
	}
	return UserRolePassenger
}

// TripRequestListItem элемент списка заявок с именем второго участника
type TripRequestListItem struct {
	TripRequest
	CounterpartName string `json:"counterpartName"`
}
