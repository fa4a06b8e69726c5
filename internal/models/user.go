package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleDriver    UserRole = "driver"
	UserRolePassenger UserRole = "passenger"
)

func (r UserRole) Valid() bool {
	return r == UserRoleDriver || r == UserRolePassenger
}

// User запись о пользователе; одна запись на пару (subject, role).
// Роль не участвует в авторизации, по ней выбирается токен устройства для уведомления.
type User struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	Subject     string    `json:"subject" gorm:"column:subject;not null;uniqueIndex:idx_users_subject_role"`
	Role        UserRole  `json:"role" gorm:"column:role;type:varchar(20);not null;uniqueIndex:idx_users_subject_role"`
	DisplayName string    `json:"displayName" gorm:"column:display_name;default:''"`
	Email       string    `json:"email" gorm:"column:email;default:''"`
	DeviceToken *string   `json:"-" gorm:"column:device_token"`
	CreatedAt   time.Time `json:"createdAt" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// HasDeviceToken сообщает, зарегистрировано ли устройство для push-уведомлений
func (u *User) HasDeviceToken() bool {
	return u.DeviceToken != nil && *u.DeviceToken != ""
}

// UserResponse представляет ответ API с информацией о пользователе
type UserResponse struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	Role           UserRole  `json:"role"`
	DisplayName    string    `json:"displayName"`
	Email          string    `json:"email"`
	HasDeviceToken bool      `json:"hasDeviceToken"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:             u.ID,
		Subject:        u.Subject,
		Role:           u.Role,
		DisplayName:    u.DisplayName,
		Email:          u.Email,
		HasDeviceToken: u.HasDeviceToken(),
		UpdatedAt:      u.UpdatedAt,
	}
}
